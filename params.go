package marcher

import (
	"math"
	"runtime"
)

// Formula identifiers understood by the formula-ID buffer. The orchestrator
// never interprets them; they are defined here because the parameter
// encoder owns the buffer layout.
const (
	FormulaMandelbulbPower2 uint32 = 1
	FormulaMandelbulbPower8 uint32 = 2
	FormulaAmazingBox       uint32 = 3
)

// HybridMode selects how multiple formula slots are combined by the kernel.
type HybridMode uint32

const (
	HybridAlternating HybridMode = iota
	HybridInterpolated
	Hybrid4D
)

// FormulaSlot pairs a formula with the number of consecutive iterations it
// contributes to a hybrid sequence.
type FormulaSlot struct {
	ID         uint32
	Iterations uint32
}

// Vec3 is a 3D vector used for camera and lighting parameters.
type Vec3 struct {
	X, Y, Z float64
}

// RGB is a color with channels in [0, 1].
type RGB struct {
	R, G, B float64
}

// renderParamSlots is the fixed length of the encoded render-parameter
// buffer. Kernels reject shorter buffers; trailing slots are reserved.
const renderParamSlots = 32

// Params is the semantic parameter set of a render. It is plain data; the
// session owns the mutable copy and supersedes it wholesale between jobs.
type Params struct {
	Width  int
	Height int

	// Workers requested from the pool; 0 picks the platform default.
	Workers int

	// Camera.
	CameraPos Vec3
	Yaw       float64 // degrees
	Pitch     float64 // degrees
	FOV       float64 // degrees
	Zoom      float64

	// March controls.
	DEStop            float64
	StepWidth         float64
	MaxRayLength      float64
	Iterations        int
	Bailout           float64
	BinarySearchSteps int

	// Julia mode.
	Julia  bool
	JuliaC Vec3

	// Cutting plane.
	CutEnabled bool
	CutNormal  Vec3
	CutD       float64

	// Formula stack.
	Formulas []FormulaSlot
	Hybrid   HybridMode

	// Quick preview downscale divisor.
	PreviewScale int

	// Lighting.
	AmbientColor      RGB
	AmbientIntensity  float64
	LightDir          Vec3
	LightColor        RGB
	LightAmplitude    float64
	SpecularSize      float64
	SpecularIntensity float64
	FogDensity        float64
	FogColor          RGB
	Background        RGB
	AOStrength        float64
}

// DefaultParams returns a parameter set that renders a power-8 Mandelbulb
// centered in frame.
func DefaultParams() Params {
	return Params{
		Width:             800,
		Height:            600,
		Workers:           runtime.NumCPU(),
		CameraPos:         Vec3{X: 0, Y: 0, Z: -2.5},
		FOV:               60,
		Zoom:              1,
		DEStop:            0.0005,
		StepWidth:         1,
		MaxRayLength:      8,
		Iterations:        60,
		Bailout:           4,
		BinarySearchSteps: 5,
		Formulas:          []FormulaSlot{{ID: FormulaMandelbulbPower8, Iterations: 1}},
		PreviewScale:      4,
		AmbientColor:      RGB{R: 0.25, G: 0.25, B: 0.375},
		AmbientIntensity:  0.3,
		LightDir:          Vec3{X: 0.577, Y: 0.577, Z: -0.577},
		LightColor:        RGB{R: 1, G: 1, B: 1},
		LightAmplitude:    1,
		SpecularSize:      32,
		SpecularIntensity: 0.5,
		FogColor:          RGB{},
		Background:        RGB{R: 0.02, G: 0.02, B: 0.05},
		AOStrength:        0.5,
	}
}

// rayBasis derives the camera ray frame from yaw, pitch, fov and zoom:
// the central ray direction plus the per-pixel horizontal and vertical
// increments. Pixel coordinates are mapped to [-1, 1] by the kernel, so
// the increments span half the viewport each.
func (p Params) rayBasis(width, height int) (base, dx, dy Vec3) {
	yaw := p.Yaw * math.Pi / 180
	pitch := p.Pitch * math.Pi / 180

	forward := Vec3{
		X: math.Sin(yaw) * math.Cos(pitch),
		Y: math.Sin(pitch),
		Z: math.Cos(yaw) * math.Cos(pitch),
	}
	right := Vec3{X: math.Cos(yaw), Y: 0, Z: -math.Sin(yaw)}
	up := Vec3{
		X: forward.Y*right.Z - forward.Z*right.Y,
		Y: forward.Z*right.X - forward.X*right.Z,
		Z: forward.X*right.Y - forward.Y*right.X,
	}

	zoom := p.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	halfTan := math.Tan(p.FOV*math.Pi/360) / zoom
	aspect := float64(width) / float64(height)

	dx = Vec3{X: right.X * halfTan * aspect, Y: right.Y * halfTan * aspect, Z: right.Z * halfTan * aspect}
	dy = Vec3{X: -up.X * halfTan, Y: -up.Y * halfTan, Z: -up.Z * halfTan}
	return forward, dx, dy
}

// EncodeRender flattens the march-relevant parameters into the opaque
// float64 buffer consumed by Kernel.MarchRow. The slot layout is a fixed
// ABI shared with the kernels:
//
//	[0] width [1] height [2..4] camera [5..7] ray base [8..10] ray dx
//	[11..13] ray dy [14] deStop [15] stepWidth [16] maxRayLength
//	[17] iterations [18] bailout [19] fovFactor [20] julia
//	[21..23] juliaC [24] cutEnabled [25..27] cutNormal [28] cutD
//	[29] binarySearchSteps
func (p Params) EncodeRender(width, height int) []float64 {
	base, dx, dy := p.rayBasis(width, height)

	zoom := p.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	// Distance-dependent DE threshold scaling: one pixel's angular size.
	fovFactor := 2 * math.Tan(p.FOV*math.Pi/360) / zoom / float64(height)

	buf := make([]float64, renderParamSlots)
	buf[0] = float64(width)
	buf[1] = float64(height)
	buf[2], buf[3], buf[4] = p.CameraPos.X, p.CameraPos.Y, p.CameraPos.Z
	buf[5], buf[6], buf[7] = base.X, base.Y, base.Z
	buf[8], buf[9], buf[10] = dx.X, dx.Y, dx.Z
	buf[11], buf[12], buf[13] = dy.X, dy.Y, dy.Z
	buf[14] = p.DEStop
	buf[15] = p.StepWidth
	buf[16] = p.MaxRayLength
	buf[17] = float64(p.Iterations)
	buf[18] = p.Bailout
	buf[19] = fovFactor
	if p.Julia {
		buf[20] = 1
	}
	buf[21], buf[22], buf[23] = p.JuliaC.X, p.JuliaC.Y, p.JuliaC.Z
	if p.CutEnabled {
		buf[24] = 1
	}
	buf[25], buf[26], buf[27] = p.CutNormal.X, p.CutNormal.Y, p.CutNormal.Z
	buf[28] = p.CutD
	buf[29] = float64(p.BinarySearchSteps)
	return buf
}

// EncodeFormulas flattens the formula stack into the opaque uint32 buffer:
// [slotCount, id1, iters1, id2, iters2, ..., hybridMode].
func (p Params) EncodeFormulas() []uint32 {
	formulas := p.Formulas
	if len(formulas) == 0 {
		formulas = []FormulaSlot{{ID: FormulaMandelbulbPower8, Iterations: 1}}
	}
	buf := make([]uint32, 0, 2+2*len(formulas))
	buf = append(buf, uint32(len(formulas)))
	for _, f := range formulas {
		buf = append(buf, f.ID, f.Iterations)
	}
	buf = append(buf, uint32(p.Hybrid))
	return buf
}

// EncodePaint flattens the lighting parameters into the opaque float64
// buffer consumed by Kernel.Paint:
//
//	[0..2] ambient rgb [3] ambient intensity [4..6] light direction
//	[7..9] light rgb [10] amplitude [11] specular size [12] specular
//	intensity [13] fog density [14..16] fog rgb [17..19] background rgb
//	[20] ao strength
func (p Params) EncodePaint() []float64 {
	return []float64{
		p.AmbientColor.R, p.AmbientColor.G, p.AmbientColor.B,
		p.AmbientIntensity,
		p.LightDir.X, p.LightDir.Y, p.LightDir.Z,
		p.LightColor.R, p.LightColor.G, p.LightColor.B,
		p.LightAmplitude,
		p.SpecularSize,
		p.SpecularIntensity,
		p.FogDensity,
		p.FogColor.R, p.FogColor.G, p.FogColor.B,
		p.Background.R, p.Background.G, p.Background.B,
		p.AOStrength,
	}
}

// NewRenderJob encodes the parameter set into a job at full resolution.
func NewRenderJob(p Params) *RenderJob {
	return &RenderJob{
		Width:        p.Width,
		Height:       p.Height,
		RenderParams: p.EncodeRender(p.Width, p.Height),
		FormulaIDs:   p.EncodeFormulas(),
		PaintParams:  p.EncodePaint(),
	}
}

// NewQuickJob encodes the parameter set at the preview scale, returning
// the job and the reduced dimensions.
func NewQuickJob(p Params) (*RenderJob, int, int) {
	scale := p.PreviewScale
	if scale < 1 {
		scale = 1
	}
	w := p.Width / scale
	if w < 1 {
		w = 1
	}
	h := p.Height / scale
	if h < 1 {
		h = 1
	}
	return &RenderJob{
		Width:        w,
		Height:       h,
		RenderParams: p.EncodeRender(w, h),
		FormulaIDs:   p.EncodeFormulas(),
		PaintParams:  p.EncodePaint(),
	}, w, h
}
