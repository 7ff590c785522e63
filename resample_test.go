package particlefilter

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplersPickOnlyWeightedIndices(t *testing.T) {
	for name, r := range map[string]Resampler{
		"multinomial": MultinomialResampler{},
		"systematic":  SystematicResampler{},
	} {
		t.Run(name, func(t *testing.T) {
			idx := r.Resample([]float64{0, 0, 1, 0}, rand.NewPCG(1, 2))
			assert.Equal(t, []int{2, 2, 2, 2}, idx)
		})
	}
}

func TestMultinomialFrequencies(t *testing.T) {
	src := rand.NewPCG(11, 12)
	var ones, total int
	for i := 0; i < 1000; i++ {
		for _, j := range (MultinomialResampler{}).Resample([]float64{0.1, 0.9}, src) {
			require.Contains(t, []int{0, 1}, j)
			if j == 1 {
				ones++
			}
			total++
		}
	}
	frac := float64(ones) / float64(total)
	assert.InDelta(t, 0.9, frac, 0.05)
}

func TestSystematicUniformWeightsKeepsEveryParticle(t *testing.T) {
	idx := SystematicResampler{}.Resample([]float64{0.25, 0.25, 0.25, 0.25}, rand.NewPCG(3, 3))
	assert.Equal(t, []int{0, 1, 2, 3}, idx)
}

func TestSystematicHandlesUnnormalizedWeights(t *testing.T) {
	idx := SystematicResampler{}.Resample([]float64{2, 0, 6}, rand.NewPCG(4, 4))
	require.Len(t, idx, 3)
	for _, j := range idx {
		assert.NotEqual(t, 1, j)
	}
	assert.Empty(t, SystematicResampler{}.Resample(nil, rand.NewPCG(4, 4)))
}
