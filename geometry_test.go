package particlefilter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"full turn", 2 * math.Pi, 0},
		{"negative quarter", -math.Pi / 2, 3 * math.Pi / 2},
		{"several turns", 7 * math.Pi, math.Pi},
		{"inside range", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, NormalizeAngle(tc.in), 1e-12)
		})
	}

	t.Run("tiny negative never reaches two pi", func(t *testing.T) {
		for _, a := range []float64{-1e-17, -1e-16, -math.SmallestNonzeroFloat64} {
			got := NormalizeAngle(a)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 2*math.Pi)
		}
	})
}

func TestBearing(t *testing.T) {
	cases := []struct {
		name   string
		dx, dy float64
		want   float64
	}{
		{"east", 1, 0, 0},
		{"north", 0, 1, math.Pi / 2},
		{"west", -1, 0, math.Pi},
		{"south", 0, -1, 3 * math.Pi / 2},
		{"first quadrant", 1, 1, math.Pi / 4},
		{"third quadrant", -1, -1, 5 * math.Pi / 4},
		{"fourth quadrant", 1, -1, 7 * math.Pi / 4},
		{"origin takes the positive branch", 0, 0, math.Pi / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bearing(tc.dx, tc.dy)
			assert.InDelta(t, tc.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 2*math.Pi)
		})
	}
}

func TestAngularDiffIsDegreesFoldedToHalfTurn(t *testing.T) {
	assert.InDelta(t, 0, AngularDiff(1, 0, 0), 1e-12)
	assert.InDelta(t, 180, AngularDiff(1, 0, math.Pi), 1e-9)
	assert.InDelta(t, 180, AngularDiff(0, 1, 3*math.Pi/2), 1e-9)
	// 315° apart folds to 45°
	assert.InDelta(t, 45, AngularDiff(1, 0, 7*math.Pi/4), 1e-9)
	assert.InDelta(t, 90, AngularDiff(0, -1, 0), 1e-9)
}

func TestShortestRotation(t *testing.T) {
	cases := []struct {
		name     string
		from, to float64
		mag, dir float64
	}{
		{"half turn from zero is positive", 0, math.Pi, math.Pi, 1},
		{"half turn from pi is positive", math.Pi, 0, math.Pi, 1},
		{"quarter left", 0, math.Pi / 2, math.Pi / 2, 1},
		{"quarter right", 0, 3 * math.Pi / 2, math.Pi / 2, -1},
		{"across zero", 3 * math.Pi / 2, math.Pi / 4, 3 * math.Pi / 4, 1},
		{"no turn", 1, 1, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mag, dir := ShortestRotation(tc.from, tc.to)
			assert.InDelta(t, tc.mag, mag, 1e-12)
			assert.Equal(t, tc.dir, dir)
		})
	}
}
