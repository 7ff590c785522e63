package particlefilter

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Resampler draws len(weights) ancestor indices, each index chosen with
// probability proportional to its weight. Weights must be non-negative with a
// positive finite sum.
type Resampler interface {
	Resample(weights []float64, src rand.Source) []int
}

// MultinomialResampler draws every index independently with replacement.
// It is the default scheme.
type MultinomialResampler struct{}

// Resample implements Resampler.
func (MultinomialResampler) Resample(weights []float64, src rand.Source) []int {
	c := distuv.NewCategorical(weights, src)
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = int(c.Rand())
	}
	return idx
}

// SystematicResampler walks the cumulative weights with n evenly spaced
// pointers sharing a single random offset. It has lower variance than
// multinomial draws and is opt-in only.
type SystematicResampler struct{}

// Resample implements Resampler.
func (SystematicResampler) Resample(weights []float64, src rand.Source) []int {
	n := len(weights)
	idx := make([]int, n)
	if n == 0 {
		return idx
	}

	cum := floats.CumSum(make([]float64, n), weights)
	total := cum[n-1]
	step := total / float64(n)
	start := distuv.Uniform{Min: 0, Max: step, Src: src}.Rand()

	j := 0
	for i := 0; i < n; i++ {
		target := start + float64(i)*step
		for j < n-1 && cum[j] <= target {
			j++
		}
		idx[i] = j
	}
	return idx
}
