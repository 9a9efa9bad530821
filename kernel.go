package marcher

// GBufRecordSize is the size in bytes of one G-buffer pixel record.
// The record layout (packed surface normal, quantized depth, shadow,
// ambient occlusion, color gradient, orbit trap, roughness) belongs to
// the compute kernel; the orchestrator only sizes and partitions it.
const GBufRecordSize = 18

// RGBAPixelSize is the size in bytes of one output pixel (R, G, B, A).
const RGBAPixelSize = 4

// Kernel is the compute boundary of the render pipeline. Implementations
// are stateless with respect to jobs: every call receives the full set of
// opaque parameter buffers and output regions it needs.
//
// The parameter buffers are produced by Params.EncodeRender,
// Params.EncodeFormulas and Params.EncodePaint; the orchestrator forwards
// them without interpretation.
type Kernel interface {
	// MarchRow evaluates one image scanline and writes width records of
	// GBufRecordSize bytes into row. The worker index is informational
	// (some kernels seed per-worker noise with it).
	MarchRow(render []float64, formulaIDs []uint32, row []byte, y, width, workerIndex int) error

	// Paint converts a completed G-buffer into RGBA bytes. Called once
	// per job, after every scanline has been marched.
	Paint(gbuf, rgba []byte, width, height int, paint []float64) error

	// Quick renders a complete image at the given size in a single call,
	// allocating its own intermediate storage. Used for low-resolution
	// previews; it must not touch any caller-shared buffer.
	Quick(render []float64, formulaIDs []uint32, paint []float64, width, height int) ([]byte, error)
}

// KernelLoader constructs one kernel instance for a worker execution
// context. It is invoked once per worker at pool initialization and the
// returned kernel is reused for every subsequent job.
type KernelLoader func() (Kernel, error)
