package mandelbulb

import (
	"errors"
	"math"
)

type vec3 struct {
	x, y, z float64
}

func (v vec3) add(o vec3) vec3      { return vec3{v.x + o.x, v.y + o.y, v.z + o.z} }
func (v vec3) scale(s float64) vec3 { return vec3{v.x * s, v.y * s, v.z * s} }
func (v vec3) dot(o vec3) float64   { return v.x*o.x + v.y*o.y + v.z*o.z }
func (v vec3) length() float64      { return math.Sqrt(v.dot(v)) }

func (v vec3) normalize() vec3 {
	l := v.length()
	if l == 0 {
		return vec3{z: 1}
	}
	return v.scale(1 / l)
}

// renderParams is the decoded form of the opaque render-parameter buffer.
// The slot layout is the ABI documented on Params.EncodeRender.
type renderParams struct {
	width  int
	height int

	camera  vec3
	rayBase vec3
	rayDX   vec3
	rayDY   vec3

	deStop       float64
	stepWidth    float64
	maxRayLength float64
	maxIter      int
	bailout      float64
	fovFactor    float64

	julia  bool
	juliaC vec3

	cutEnabled bool
	cutNormal  vec3
	cutD       float64

	binSearchSteps int
}

var errShortBuffer = errors.New("mandelbulb: render parameter buffer too short")

func decodeRender(data []float64) (renderParams, error) {
	if len(data) < 30 {
		return renderParams{}, errShortBuffer
	}
	rp := renderParams{
		width:          int(data[0]),
		height:         int(data[1]),
		camera:         vec3{data[2], data[3], data[4]},
		rayBase:        vec3{data[5], data[6], data[7]},
		rayDX:          vec3{data[8], data[9], data[10]},
		rayDY:          vec3{data[11], data[12], data[13]},
		deStop:         data[14],
		stepWidth:      data[15],
		maxRayLength:   data[16],
		maxIter:        int(data[17]),
		bailout:        data[18],
		fovFactor:      data[19],
		julia:          data[20] != 0,
		juliaC:         vec3{data[21], data[22], data[23]},
		cutEnabled:     data[24] != 0,
		cutNormal:      vec3{data[25], data[26], data[27]},
		cutD:           data[28],
		binSearchSteps: int(data[29]),
	}
	if rp.deStop <= 0 {
		rp.deStop = 0.0005
	}
	if rp.stepWidth <= 0 {
		rp.stepWidth = 1
	}
	if rp.maxRayLength <= 0 {
		rp.maxRayLength = 8
	}
	if rp.maxIter <= 0 {
		rp.maxIter = 60
	}
	if rp.bailout <= 0 {
		rp.bailout = 4
	}
	return rp, nil
}
