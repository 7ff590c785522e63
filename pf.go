package particlefilter

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidConfig is wrapped by every construction or command precondition failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// EstimatedPose is the population's point estimate: weighted mean position and
// unweighted circular mean heading.
type EstimatedPose struct {
	X       float64
	Y       float64
	Heading float64
}

// Pose returns the estimate as a Pose.
func (e EstimatedPose) Pose() Pose {
	return Pose{X: e.X, Y: e.Y, Heading: e.Heading}
}

// ParticleSet is a fixed-size population of pose hypotheses and their weights.
// It is not safe for concurrent use.
type ParticleSet struct {
	poses   []Pose
	weights []float64

	src       rand.Source
	move      distuv.Normal
	rotate    distuv.Normal
	sigma     float64
	resampler Resampler
	logger    *zap.SugaredLogger
}

// Option configures a ParticleSet.
type Option func(*ParticleSet)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(ps *ParticleSet) {
		if logger != nil {
			ps.logger = logger
		}
	}
}

// WithLikelihoodSigma overrides DefaultLikelihoodSigma.
func WithLikelihoodSigma(sigma float64) Option {
	return func(ps *ParticleSet) {
		ps.sigma = sigma
	}
}

// WithResampler replaces the default MultinomialResampler.
func WithResampler(r Resampler) Option {
	return func(ps *ParticleSet) {
		if r != nil {
			ps.resampler = r
		}
	}
}

func newParticleSet(n int, src rand.Source, opts []Option) (*ParticleSet, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "particle count must be positive, got %d", n)
	}
	if src == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "random source is required")
	}
	ps := &ParticleSet{
		poses:     make([]Pose, n),
		weights:   make([]float64, n),
		src:       src,
		move:      distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		rotate:    distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		sigma:     DefaultLikelihoodSigma,
		resampler: MultinomialResampler{},
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ps)
	}
	if !(ps.sigma > 0) || math.IsInf(ps.sigma, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "likelihood sigma must be positive and finite, got %v", ps.sigma)
	}
	for i := range ps.weights {
		ps.weights[i] = 1
	}
	return ps, nil
}

// NewParticleSet creates n particles drawn uniformly over [0, width) x [0, height)
// with headings uniform over [0, 2π). All weights start at 1 and are first
// normalized by Reweight.
func NewParticleSet(n int, width, height float64, src rand.Source, opts ...Option) (*ParticleSet, error) {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "environment dimensions must be positive, got %vx%v", width, height)
	}
	ps, err := newParticleSet(n, src, opts)
	if err != nil {
		return nil, err
	}
	ps.createSampleList(width, height)
	return ps, nil
}

// NewParticleSetFromPoses creates a population holding a copy of poses.
// Headings are wrapped into [0, 2π).
func NewParticleSetFromPoses(poses []Pose, src rand.Source, opts ...Option) (*ParticleSet, error) {
	ps, err := newParticleSet(len(poses), src, opts)
	if err != nil {
		return nil, err
	}
	for i, p := range poses {
		p.Heading = NormalizeAngle(p.Heading)
		ps.poses[i] = p
	}
	return ps, nil
}

// createSampleList seeds every particle uniformly over the environment.
func (ps *ParticleSet) createSampleList(width, height float64) {
	xs := distuv.Uniform{Min: 0, Max: width, Src: ps.src}
	ys := distuv.Uniform{Min: 0, Max: height, Src: ps.src}
	hs := distuv.Uniform{Min: 0, Max: twoPi, Src: ps.src}
	for i := range ps.poses {
		ps.poses[i] = Pose{X: xs.Rand(), Y: ys.Rand(), Heading: NormalizeAngle(hs.Rand())}
	}
}

// Len returns the population size, fixed at construction.
func (ps *ParticleSet) Len() int {
	return len(ps.poses)
}

// Poses returns a copy of the particle poses.
func (ps *ParticleSet) Poses() []Pose {
	out := make([]Pose, len(ps.poses))
	copy(out, ps.poses)
	return out
}

// Weights returns a copy of the particle weights.
func (ps *ParticleSet) Weights() []float64 {
	out := make([]float64, len(ps.weights))
	copy(out, ps.weights)
	return out
}

// Predict moves every particle by distance along its own heading and turns it
// by rotation. Each particle draws its own translation and rotation noise.
func (ps *ParticleSet) Predict(distance, rotation float64, noise NoiseModel) {
	ps.move.Sigma = noise.MoveStd
	ps.rotate.Sigma = noise.RotateStd
	for i, p := range ps.poses {
		d := distance + ps.move.Rand()
		r := rotation + ps.rotate.Rand()
		ps.poses[i] = ApplyMotion(p, d, r)
	}
}

// Reweight replaces every weight with the product, over landmarks, of the
// Gaussian likelihood of observed[j] given the particle's expected measurement
// of landmarks[j], then normalizes. If the weights cannot be normalized they are
// reset to uniform and a warning is logged.
func (ps *ParticleSet) Reweight(landmarks []Landmark, observed []float64) error {
	if len(landmarks) == 0 {
		return errors.Wrap(ErrInvalidConfig, "reweight requires at least one landmark")
	}
	if len(observed) != len(landmarks) {
		return errors.Wrapf(ErrInvalidConfig, "got %d measurements for %d landmarks", len(observed), len(landmarks))
	}

	for i := range ps.weights {
		ps.weights[i] = 1
	}
	likelihood := distuv.Normal{Sigma: ps.sigma}
	for j, lm := range landmarks {
		for i, p := range ps.poses {
			likelihood.Mu = ExpectedMeasurement(p, lm)
			ps.weights[i] *= likelihood.Prob(observed[j])
		}
	}

	ps.normalize("reweight")
	return nil
}

// Resample replaces the population with len draws, with replacement, weighted
// by the current weights. Ancestor weights are carried over and renormalized.
func (ps *ParticleSet) Resample() {
	ps.normalize("resample")
	idx := ps.resampler.Resample(ps.weights, ps.src)

	poses := make([]Pose, len(ps.poses))
	weights := make([]float64, len(ps.weights))
	for i, j := range idx {
		poses[i] = ps.poses[j]
		weights[i] = ps.weights[j]
	}
	ps.poses = poses
	ps.weights = weights
	ps.normalize("resample")
}

// normalize scales the weights to sum to one. When the sum is not positive and
// finite it resets to uniform weights and logs a warning.
func (ps *ParticleSet) normalize(stage string) {
	sum := floats.Sum(ps.weights)
	if sum > 0 && !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		floats.Scale(1/sum, ps.weights)
		return
	}
	ps.logger.Warnw("degenerate particle weights, resetting to uniform",
		"stage", stage, "sum", sum, "particles", len(ps.weights))
	uniform := 1 / float64(len(ps.weights))
	for i := range ps.weights {
		ps.weights[i] = uniform
	}
}

// EstimatePose returns the weighted mean position and the unweighted circular
// mean heading of the population. The heading ignores the weights.
func (ps *ParticleSet) EstimatePose() EstimatedPose {
	n := len(ps.poses)
	xs := make([]float64, n)
	ys := make([]float64, n)
	hs := make([]float64, n)
	for i, p := range ps.poses {
		xs[i] = p.X
		ys[i] = p.Y
		hs[i] = p.Heading
	}
	return EstimatedPose{
		X:       stat.Mean(xs, ps.weights),
		Y:       stat.Mean(ys, ps.weights),
		Heading: NormalizeAngle(stat.CircularMean(hs, nil)),
	}
}

// EffectiveSampleSize returns 1/Σw² for the normalized weights. Resampling
// never consults it; it is reported for diagnostics only.
func (ps *ParticleSet) EffectiveSampleSize() float64 {
	sum := floats.Sum(ps.weights)
	if !(sum > 0) {
		return 0
	}
	var sq float64
	for _, w := range ps.weights {
		nw := w / sum
		sq += nw * nw
	}
	return 1 / sq
}
