package mandelbulb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/esimov/marcher"
)

// maxMarchSteps bounds a single ray walk; rays that neither hit nor
// escape within the budget are treated as background.
const maxMarchSteps = 8000

type marchResult struct {
	hit       bool
	totalDist float64
	pos       vec3
	steps     int
	smoothIt  float64
	orbitTrap float64
}

// marchRay walks one ray with adaptive distance-estimator stepping: the
// step never exceeds the previous estimate plus the previous step, which
// guards against overshooting thin structures.
func marchRay(origin, dir vec3, rp renderParams, f formula) marchResult {
	var res marchResult

	var juliaC *vec3
	if rp.julia {
		juliaC = &rp.juliaC
	}

	pos := origin
	totalDist := 0.0
	lastDE := math.MaxFloat64
	lastStep := 0.0

	for step := 0; step < maxMarchSteps; step++ {
		if rp.cutEnabled {
			// Behind the cutting plane: jump forward to the plane.
			planeDist := pos.dot(rp.cutNormal) - rp.cutD
			if planeDist < 0 {
				cos := dir.dot(rp.cutNormal)
				if math.Abs(cos) > 1e-10 {
					if t := -planeDist / cos; t > 0 {
						pos = pos.add(dir.scale(t))
						totalDist += t
					}
				}
			}
		}

		threshold := rp.deStop
		if rp.fovFactor > 0 {
			threshold = rp.deStop * (1 + totalDist*rp.fovFactor)
		}

		fr := f.eval(pos, juliaC)
		de := fr.de
		if step > 0 && de > lastDE+lastStep {
			de = lastDE + lastStep
		}

		if de < threshold {
			res.hit = true
			res.totalDist = totalDist
			res.pos = pos
			res.steps = step
			res.smoothIt = fr.smoothIt
			res.orbitTrap = fr.orbitTrap
			if rp.binSearchSteps > 0 {
				binarySearchRefine(&res, dir, rp, f, de)
			}
			return res
		}

		stepLen := de * rp.stepWidth
		pos = pos.add(dir.scale(stepLen))
		totalDist += stepLen
		lastDE = de
		lastStep = stepLen

		if totalDist > rp.maxRayLength {
			break
		}
	}

	res.totalDist = totalDist
	return res
}

// binarySearchRefine halves the last step interval a few times to settle
// the hit position closer to the actual surface.
func binarySearchRefine(res *marchResult, dir vec3, rp renderParams, f formula, de float64) {
	var juliaC *vec3
	if rp.julia {
		juliaC = &rp.juliaC
	}

	step := de * 0.5
	for i := 0; i < rp.binSearchSteps; i++ {
		probe := res.pos.add(dir.scale(step))
		if f.eval(probe, juliaC).de < rp.deStop {
			res.pos = probe
			res.totalDist += step
		}
		step *= 0.5
	}
}

// surfaceNormal estimates the surface normal from the DE gradient.
func surfaceNormal(pos vec3, rp renderParams, f formula) vec3 {
	var juliaC *vec3
	if rp.julia {
		juliaC = &rp.juliaC
	}
	eps := rp.deStop * 0.5
	if eps <= 0 {
		eps = 1e-5
	}

	dx := f.eval(vec3{pos.x + eps, pos.y, pos.z}, juliaC).de -
		f.eval(vec3{pos.x - eps, pos.y, pos.z}, juliaC).de
	dy := f.eval(vec3{pos.x, pos.y + eps, pos.z}, juliaC).de -
		f.eval(vec3{pos.x, pos.y - eps, pos.z}, juliaC).de
	dz := f.eval(vec3{pos.x, pos.y, pos.z + eps}, juliaC).de -
		f.eval(vec3{pos.x, pos.y, pos.z - eps}, juliaC).de

	return vec3{dx, dy, dz}.normalize()
}

// MarchRow evaluates one scanline and writes one 18-byte G-buffer record
// per pixel into row.
func (k *Kernel) MarchRow(render []float64, formulaIDs []uint32, row []byte, y, width, workerIndex int) error {
	rp, err := decodeRender(render)
	if err != nil {
		return err
	}
	if len(row) < width*marcher.GBufRecordSize {
		return fmt.Errorf("mandelbulb: row buffer too small for %d pixels", width)
	}
	f := decodeFormulas(formulaIDs, rp.maxIter, rp.bailout)

	hw := float64(rp.width) * 0.5
	hh := float64(rp.height) * 0.5

	for x := 0; x < width; x++ {
		px := (float64(x) - hw) / hw
		py := (float64(y) - hh) / hh

		dir := rp.rayBase.
			add(rp.rayDX.scale(px)).
			add(rp.rayDY.scale(py)).
			normalize()

		mr := marchRay(rp.camera, dir, rp, f)

		rec := row[x*marcher.GBufRecordSize : (x+1)*marcher.GBufRecordSize]
		if mr.hit {
			writeHitRecord(rec, mr, rp, f)
		} else {
			writeMissRecord(rec)
		}
	}
	return nil
}

// G-buffer record layout, little-endian:
//
//	[0:2] normal.x i16  [2:4] normal.y i16  [4:6] normal.z i16
//	[6:8] depth u16 (65535 = no hit)  [8:10] shadow  [10:12] ambient
//	[12:14] color gradient  [14:16] orbit trap  [16:18] roughness

func writeHitRecord(rec []byte, mr marchResult, rp renderParams, f formula) {
	n := surfaceNormal(mr.pos, rp, f)

	depth := mr.totalDist / rp.maxRayLength
	if depth < 0 {
		depth = 0
	}
	if depth > 1 {
		depth = 1
	}
	// 65534+ marks a miss, keep hits below it.
	z := uint16(depth * 65533)

	ambient := float64(mr.steps) / 200
	if ambient > 1 {
		ambient = 1
	}

	trap := 1 - math.Min(mr.orbitTrap, 1)

	binary.LittleEndian.PutUint16(rec[0:], uint16(clip15(n.x)))
	binary.LittleEndian.PutUint16(rec[2:], uint16(clip15(n.y)))
	binary.LittleEndian.PutUint16(rec[4:], uint16(clip15(n.z)))
	binary.LittleEndian.PutUint16(rec[6:], z)
	binary.LittleEndian.PutUint16(rec[8:], 0)
	binary.LittleEndian.PutUint16(rec[10:], uint16(ambient*65535))
	binary.LittleEndian.PutUint16(rec[12:], uint16(math.Mod(mr.smoothIt, 256)/256*65535))
	binary.LittleEndian.PutUint16(rec[14:], uint16(trap*65535))
	binary.LittleEndian.PutUint16(rec[16:], 0)
}

func writeMissRecord(rec []byte) {
	for i := range rec {
		rec[i] = 0
	}
	binary.LittleEndian.PutUint16(rec[6:], 65535)
}

// clip15 quantizes a [-1, 1] component to a signed 15-bit fixed point.
func clip15(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
