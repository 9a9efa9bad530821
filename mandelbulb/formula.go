package mandelbulb

import "math"

// Formula identifiers, matching the values the parameter encoder emits.
const (
	idMandelbulbPower2 uint32 = 1
	idMandelbulbPower8 uint32 = 2
	idAmazingBox       uint32 = 3
)

type slot struct {
	id    uint32
	iters uint32
}

// formula is a hybrid iteration sequence: the slots are cycled in order,
// each contributing its iteration count, until the bailout or the
// iteration budget is reached.
type formula struct {
	slots   []slot
	maxIter int
	bailout float64
}

// decodeFormulas parses the opaque formula buffer
// [slotCount, id1, iters1, ..., hybridMode]. Unknown or empty input falls
// back to a single power-8 Mandelbulb, the original default.
func decodeFormulas(ids []uint32, maxIter int, bailout float64) formula {
	f := formula{maxIter: maxIter, bailout: bailout}
	if len(ids) > 0 {
		n := int(ids[0])
		idx := 1
		for i := 0; i < n && idx+1 < len(ids); i++ {
			s := slot{id: ids[idx], iters: ids[idx+1]}
			if s.iters == 0 {
				s.iters = 1
			}
			f.slots = append(f.slots, s)
			idx += 2
		}
	}
	if len(f.slots) == 0 {
		f.slots = []slot{{id: idMandelbulbPower8, iters: 1}}
	}
	return f
}

// deResult carries the distance estimate plus the coloring channels
// sampled along the orbit.
type deResult struct {
	de        float64
	smoothIt  float64
	orbitTrap float64
}

// eval runs the iteration loop at pos and returns the distance estimate.
// In julia mode the constant c is fixed; otherwise c is the sample point.
func (f formula) eval(pos vec3, juliaC *vec3) deResult {
	c := pos
	if juliaC != nil {
		c = *juliaC
	}

	z := pos
	dr := 1.0
	r := z.length()
	trap := r

	it := 0
	power := 8.0
	slotIdx, slotUsed := 0, uint32(0)
	for it < f.maxIter && r < f.bailout {
		s := f.slots[slotIdx]
		if slotUsed == s.iters {
			slotIdx = (slotIdx + 1) % len(f.slots)
			slotUsed = 0
			s = f.slots[slotIdx]
		}
		slotUsed++
		switch s.id {
		case idMandelbulbPower2:
			z, dr = bulbStep(z, c, 2, r, dr)
			power = 2
		case idAmazingBox:
			z, dr = boxStep(z, c, dr)
			power = 2
		default:
			z, dr = bulbStep(z, c, 8, r, dr)
			power = 8
		}
		r = z.length()
		if r < trap {
			trap = r
		}
		it++
	}

	res := deResult{orbitTrap: trap}
	if r > 0 && dr != 0 {
		res.de = 0.5 * math.Log(r) * r / dr
	}
	if res.de < 0 {
		res.de = 0
	}
	if it > 0 && r > f.bailout {
		// Smooth (fractional) iteration count for banding-free coloring.
		res.smoothIt = float64(it) + 1 -
			math.Log(math.Log(r)/math.Log(f.bailout))/math.Log(power)
	} else {
		res.smoothIt = float64(it)
	}
	return res
}

// bulbStep applies one triplex power-n Mandelbulb iteration.
func bulbStep(z, c vec3, n, r, dr float64) (vec3, float64) {
	if r == 0 {
		return c, dr
	}
	theta := math.Acos(z.z / r)
	phi := math.Atan2(z.y, z.x)

	zr := math.Pow(r, n)
	dr = n*math.Pow(r, n-1)*dr + 1

	theta *= n
	phi *= n
	st := math.Sin(theta)
	z = vec3{
		x: zr * st * math.Cos(phi),
		y: zr * st * math.Sin(phi),
		z: zr * math.Cos(theta),
	}
	return z.add(c), dr
}

// boxStep applies one Mandelbox (scale 2) iteration: box fold, sphere
// fold, scale and translate.
func boxStep(z, c vec3, dr float64) (vec3, float64) {
	const (
		scale      = 2.0
		minRadius2 = 0.25
		fixRadius2 = 1.0
	)

	fold := func(v float64) float64 {
		if v > 1 {
			return 2 - v
		}
		if v < -1 {
			return -2 - v
		}
		return v
	}
	z = vec3{fold(z.x), fold(z.y), fold(z.z)}

	r2 := z.dot(z)
	switch {
	case r2 < minRadius2:
		f := fixRadius2 / minRadius2
		z = z.scale(f)
		dr *= f
	case r2 < fixRadius2:
		f := fixRadius2 / r2
		z = z.scale(f)
		dr *= f
	}

	z = z.scale(scale).add(c)
	dr = dr*math.Abs(scale) + 1
	return z, dr
}
