package marcher

import "time"

// RenderJob describes one render invocation: the output dimensions and the
// three opaque parameter buffers forwarded to the compute kernel. A job is
// immutable once submitted to the pool.
type RenderJob struct {
	Width  int
	Height int

	// Opaque kernel payloads, produced by the parameter encoder.
	RenderParams []float64
	FormulaIDs   []uint32
	PaintParams  []float64
}

// RenderResult is the finished output of a job: the RGBA pixel bytes
// (Width*Height*4), the image dimensions and the wall-clock render time.
type RenderResult struct {
	RGBA    []byte
	Width   int
	Height  int
	Elapsed time.Duration
}
