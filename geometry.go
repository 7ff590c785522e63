package particlefilter

import "math"

const twoPi = 2 * math.Pi

// NormalizeAngle wraps an angle in radians into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// math.Mod of a tiny negative value plus 2π can round up to exactly 2π
	if a >= twoPi {
		a -= twoPi
	}
	return a
}

// Bearing returns the direction of the vector (dx, dy) in [0, 2π).
// It is computed from atan(dy/dx) with explicit quadrant correction so the
// dx == 0 case is a branch rather than a division.
func Bearing(dx, dy float64) float64 {
	var angle float64
	if dx != 0 {
		angle = math.Atan(dy / dx)
	} else if dy < 0 {
		angle = -math.Pi / 2
	} else {
		angle = math.Pi / 2
	}

	if dx < 0 {
		angle += math.Pi
	}
	if angle < 0 {
		angle += twoPi
	}
	return angle
}

// AngularDiff returns the unsigned misalignment, in degrees, between heading
// and the bearing of (dx, dy). The result lies in [0, 180].
func AngularDiff(dx, dy, heading float64) float64 {
	diff := math.Abs(heading - Bearing(dx, dy))
	if diff > math.Pi {
		diff = twoPi - diff
	}
	return diff * 180 / math.Pi
}

// ShortestRotation returns the magnitude in [0, π] and direction (+1 or -1)
// of the smallest turn taking heading from to heading to.
// A turn of exactly π is always taken in the positive direction.
func ShortestRotation(from, to float64) (magnitude float64, direction float64) {
	diff := NormalizeAngle(to - from)
	if diff <= math.Pi {
		return diff, 1
	}
	return twoPi - diff, -1
}
