// Package mandelbulb is the built-in compute kernel: a CPU
// distance-estimator ray marcher for Mandelbulb and Mandelbox style
// fractals, with a deferred Phong paint pass over the shared G-buffer.
// It implements the marcher.Kernel boundary; the orchestrator treats it
// as an opaque collaborator.
package mandelbulb

import "github.com/esimov/marcher"

// Kernel is a stateless marcher.Kernel implementation. One instance is
// loaded per worker context and reused across jobs.
type Kernel struct{}

// New returns a kernel instance.
func New() *Kernel { return &Kernel{} }

// Load is a marcher.KernelLoader for the built-in kernel.
func Load() (marcher.Kernel, error) { return New(), nil }

// Quick renders a complete image in one call at the given size: it
// marches every scanline into a private G-buffer and paints it, touching
// no caller-shared memory. Intended for low-resolution previews.
func (k *Kernel) Quick(render []float64, formulaIDs []uint32, paint []float64, width, height int) ([]byte, error) {
	gbuf := make([]byte, width*height*marcher.GBufRecordSize)
	rowSize := width * marcher.GBufRecordSize

	for y := 0; y < height; y++ {
		row := gbuf[y*rowSize : (y+1)*rowSize]
		if err := k.MarchRow(render, formulaIDs, row, y, width, 0); err != nil {
			return nil, err
		}
	}

	rgba := make([]byte, width*height*marcher.RGBAPixelSize)
	if err := k.Paint(gbuf, rgba, width, height, paint); err != nil {
		return nil, err
	}
	return rgba, nil
}
