package marcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_EncodeRenderLayout(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Width, p.Height = 320, 240
	p.DEStop = 0.001
	p.Iterations = 42
	p.Julia = true
	p.JuliaC = Vec3{X: 0.1, Y: 0.2, Z: 0.3}
	p.BinarySearchSteps = 7

	buf := p.EncodeRender(p.Width, p.Height)
	assert.Len(buf, renderParamSlots)

	assert.Equal(320.0, buf[0])
	assert.Equal(240.0, buf[1])
	assert.Equal(p.CameraPos.X, buf[2])
	assert.Equal(p.CameraPos.Y, buf[3])
	assert.Equal(p.CameraPos.Z, buf[4])
	assert.Equal(0.001, buf[14])
	assert.Equal(42.0, buf[17])
	assert.Equal(1.0, buf[20])
	assert.Equal(0.1, buf[21])
	assert.Equal(0.2, buf[22])
	assert.Equal(0.3, buf[23])
	assert.Equal(7.0, buf[29])
}

func TestParams_RayBasis(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Yaw, p.Pitch = 0, 0
	p.FOV = 90
	p.Zoom = 1

	base, dx, dy := p.rayBasis(200, 100)

	// Camera looks down +Z with no rotation.
	assert.InDelta(0.0, base.X, 1e-12)
	assert.InDelta(0.0, base.Y, 1e-12)
	assert.InDelta(1.0, base.Z, 1e-12)

	// Horizontal increment spans tan(45°) scaled by the aspect ratio.
	assert.InDelta(2.0, dx.X, 1e-12)
	assert.InDelta(0.0, dx.Y, 1e-12)

	// Screen-space y grows downward, world y upward.
	assert.InDelta(0.0, dy.X, 1e-12)
	assert.InDelta(-1.0, dy.Y, 1e-12)
}

func TestParams_RayBasisZoomNarrows(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Zoom = 2
	_, dx1, _ := p.rayBasis(100, 100)
	p.Zoom = 4
	_, dx2, _ := p.rayBasis(100, 100)

	assert.InDelta(dx1.X/2, dx2.X, 1e-12)
}

func TestParams_EncodeFormulas(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Formulas = []FormulaSlot{
		{ID: FormulaMandelbulbPower8, Iterations: 3},
		{ID: FormulaAmazingBox, Iterations: 1},
	}
	p.Hybrid = HybridInterpolated

	buf := p.EncodeFormulas()
	assert.Equal([]uint32{2, FormulaMandelbulbPower8, 3, FormulaAmazingBox, 1, uint32(HybridInterpolated)}, buf)
}

func TestParams_EncodeFormulasDefault(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Formulas = nil

	buf := p.EncodeFormulas()
	assert.Equal([]uint32{1, FormulaMandelbulbPower8, 1, 0}, buf)
}

func TestParams_EncodePaintLayout(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	buf := p.EncodePaint()
	assert.Len(buf, 21)
	assert.Equal(p.AmbientColor.R, buf[0])
	assert.Equal(p.AmbientIntensity, buf[3])
	assert.Equal(p.LightDir.X, buf[4])
	assert.Equal(p.SpecularSize, buf[11])
	assert.Equal(p.Background.B, buf[19])
	assert.Equal(p.AOStrength, buf[20])
}

func TestParams_QuickJobDimensions(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	p.Width, p.Height = 801, 601
	p.PreviewScale = 4

	job, w, h := NewQuickJob(p)
	assert.Equal(801/4, w)
	assert.Equal(601/4, h)
	assert.Equal(w, job.Width)
	assert.Equal(h, job.Height)
	assert.Equal(float64(w), job.RenderParams[0])
	assert.Equal(float64(h), job.RenderParams[1])

	// Degenerate scales clamp to at least one pixel.
	p.Width, p.Height, p.PreviewScale = 2, 2, 10
	_, w, h = NewQuickJob(p)
	assert.Equal(1, w)
	assert.Equal(1, h)
}

func TestParams_FOVFactorPositive(t *testing.T) {
	assert := assert.New(t)

	p := DefaultParams()
	buf := p.EncodeRender(p.Width, p.Height)
	assert.Greater(buf[19], 0.0)
	assert.False(math.IsNaN(buf[19]))
}
