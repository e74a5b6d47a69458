package mathx

// FloorDiv rounds toward negative infinity for either sign of b. b must be non-zero.
func FloorDiv(a, b int) int {
	q := a / b
	if r := a % b; r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}

// Mod returns a value with the sign of b. b must be non-zero.
func Mod(a, b int) int {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PowInt computes a**b for b >= 0; the result wraps on overflow.
func PowInt(a, b int) int {
	out := 1
	for b > 0 {
		if b&1 == 1 {
			out *= a
		}
		a *= a
		b >>= 1
	}
	return out
}

// Wrap maps c onto [0, extent).
func Wrap(c, extent int) int { return Mod(c, extent) }

// TorusDist is the shorter of the two ways around a ring of the given extent.
func TorusDist(a, b, extent int) int {
	d := AbsInt(a - b)
	if alt := extent - d; alt < d {
		return alt
	}
	return d
}

// SignedTorusDelta returns to-from folded into (-extent/2, extent/2].
func SignedTorusDelta(from, to, extent int) int {
	d := to - from
	if 2*d > extent {
		d -= extent
	} else if 2*d < -extent {
		d += extent
	}
	return d
}
