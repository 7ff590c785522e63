package particlefilter

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Pose is a position in the plane and a heading in radians, 0 along +x.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// NoiseModel holds the standard deviations shared by the simulated agent and
// the filter. The same value must be handed to both for the filter to be calibrated.
type NoiseModel struct {
	MoveStd   float64
	RotateStd float64
	SensorStd float64
}

// Validate reports negative or non-finite deviations.
func (n NoiseModel) Validate() error {
	stds := []struct {
		name string
		v    float64
	}{
		{"move_std", n.MoveStd},
		{"rotate_std", n.RotateStd},
		{"sensor_std", n.SensorStd},
	}
	for _, s := range stds {
		if s.v < 0 || math.IsNaN(s.v) || math.IsInf(s.v, 0) {
			return errors.Wrapf(ErrInvalidConfig, "noise %s must be a finite non-negative value, got %v", s.name, s.v)
		}
	}
	return nil
}

// ApplyMotion displaces p by distance along its current heading and then turns
// it by rotation, wrapping the heading into [0, 2π).
func ApplyMotion(p Pose, distance, rotation float64) Pose {
	return Pose{
		X:       p.X + math.Cos(p.Heading)*distance,
		Y:       p.Y + math.Sin(p.Heading)*distance,
		Heading: NormalizeAngle(p.Heading + rotation),
	}
}

// MotionModel perturbs commanded motion of a single body with Gaussian noise.
// Straight frames are noisy on translation only and turn frames on rotation only.
type MotionModel struct {
	noise  NoiseModel
	move   distuv.Normal
	rotate distuv.Normal
}

// NewMotionModel returns a motion model drawing from src.
func NewMotionModel(noise NoiseModel, src rand.Source) *MotionModel {
	return &MotionModel{
		noise:  noise,
		move:   distuv.Normal{Mu: 0, Sigma: noise.MoveStd, Src: src},
		rotate: distuv.Normal{Mu: 0, Sigma: noise.RotateStd, Src: src},
	}
}

// Noise returns the model's noise parameters.
func (m *MotionModel) Noise() NoiseModel {
	return m.noise
}

// Translate moves p forward by distance plus one translation noise sample.
func (m *MotionModel) Translate(p Pose, distance float64) Pose {
	return ApplyMotion(p, distance+m.move.Rand(), 0)
}

// Rotate turns p in place by rotation plus one rotation noise sample.
func (m *MotionModel) Rotate(p Pose, rotation float64) Pose {
	return ApplyMotion(p, 0, rotation+m.rotate.Rand())
}
