package particlefilter

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultLikelihoodSigma is the spread, in measurement units, of the Gaussian
// used to compare expected and observed measurements. It is a tuning constant
// independent of the sensor noise.
const DefaultLikelihoodSigma = 50.0

// Landmark is a fixed, known point of the environment.
type Landmark struct {
	X float64
	Y float64
}

// compositeMeasurement folds the offset (dx, dy) from landmark to observer and the
// observer heading into one scalar: sqrt(dx² + dy² + misalignment²), with the
// misalignment in degrees.
//
// Lengths and degrees are mixed under one root. Estimates downstream are tuned
// against exactly this value, so it must not be rescaled.
func compositeMeasurement(dx, dy, heading float64) float64 {
	diff := AngularDiff(dx, dy, heading)
	return math.Sqrt(dx*dx + dy*dy + diff*diff)
}

// ExpectedMeasurement is the noise-free measurement of lm from p.
func ExpectedMeasurement(p Pose, lm Landmark) float64 {
	return compositeMeasurement(p.X-lm.X, p.Y-lm.Y, p.Heading)
}

// Sensor synthesizes noisy measurements of landmarks from a true pose.
type Sensor struct {
	noise distuv.Normal
}

// NewSensor returns a sensor whose per-axis offset noise has the deviation noise.SensorStd.
func NewSensor(noise NoiseModel, src rand.Source) *Sensor {
	return &Sensor{
		noise: distuv.Normal{Mu: 0, Sigma: noise.SensorStd, Src: src},
	}
}

// Measure returns one noisy measurement of lm observed from p.
func (s *Sensor) Measure(p Pose, lm Landmark) float64 {
	dx := p.X - lm.X + s.noise.Rand()
	dy := p.Y - lm.Y + s.noise.Rand()
	return compositeMeasurement(dx, dy, p.Heading)
}

// Observe measures every landmark from p, in landmark order.
func (s *Sensor) Observe(p Pose, landmarks []Landmark) []float64 {
	out := make([]float64, len(landmarks))
	for i, lm := range landmarks {
		out[i] = s.Measure(p, lm)
	}
	return out
}
