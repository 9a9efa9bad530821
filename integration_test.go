package marcher_test

import (
	"testing"

	"github.com/esimov/marcher"
	"github.com/esimov/marcher/mandelbulb"
	"github.com/stretchr/testify/assert"
)

// Renders a tiny Mandelbulb through the real kernel, end to end: pool
// init, parallel march, paint, and the quick path.
func TestRenderWithBuiltinKernel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kernel render in short mode")
	}
	assert := assert.New(t)

	s := marcher.NewSession(mandelbulb.Load)
	defer s.Close()

	s.UpdateParams(func(p *marcher.Params) {
		p.Width, p.Height = 48, 32
		p.Workers = 3
		p.Iterations = 20
		p.PreviewScale = 2
	})

	res, err := s.Render()
	assert.NoError(err)
	assert.Len(res.RGBA, 48*32*4)
	assert.NoError(marcher.ValidateResult(res))
	assert.Equal(marcher.StatusIdle, s.Status())

	// The camera faces the bulb, so at least one ray must hit: a hit
	// pixel is lit differently from the uniform background.
	bg := res.RGBA[0]
	var hits int
	for i := 0; i < len(res.RGBA); i += 4 {
		if res.RGBA[i] != bg {
			hits++
		}
	}
	assert.Greater(hits, 0, "expected at least one surface hit")

	quick, err := s.QuickPreview()
	assert.NoError(err)
	assert.Equal(24, quick.Width)
	assert.Equal(16, quick.Height)
	assert.Len(quick.RGBA, 24*16*4)
}
