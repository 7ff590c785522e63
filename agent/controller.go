// Package agent drives a simulated agent through move and rotate commands while
// keeping a particle filter in step with it.
package agent

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	pf "github.com/jhoydich/pflocalize"
)

// MaxFramesPerCommand bounds the frames a single command may be split into.
const MaxFramesPerCommand = 1 << 24

// Config holds the parameters the controller needs from the environment.
type Config struct {
	Landmarks        []pf.Landmark
	InitialPose      pf.Pose
	DistancePerFrame float64
	// RotationPerFrame is in radians.
	RotationPerFrame float64
	Noise            pf.NoiseModel
}

// Validate rejects non-positive frame steps and invalid noise.
func (c Config) Validate() error {
	if !(c.DistancePerFrame > 0) || math.IsInf(c.DistancePerFrame, 0) {
		return errors.Wrapf(pf.ErrInvalidConfig, "distance per frame must be positive, got %v", c.DistancePerFrame)
	}
	if !(c.RotationPerFrame > 0) || math.IsInf(c.RotationPerFrame, 0) {
		return errors.Wrapf(pf.ErrInvalidConfig, "rotation per frame must be positive, got %v", c.RotationPerFrame)
	}
	return c.Noise.Validate()
}

// Controller owns the true pose of the simulated agent and the particle set
// tracking it. Every frame of a command moves both; one sensor correction
// closes each command.
type Controller struct {
	cfg       Config
	particles *pf.ParticleSet
	motion    *pf.MotionModel
	sensor    *pf.Sensor
	renderer  Renderer
	logger    *zap.SugaredLogger

	goals        []r2.Vec
	truth        pf.Pose
	estimate     pf.EstimatedPose
	phase        Phase
	message      string
	goalsReached int
	seq          int
	corrections  int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRenderer sets the frame renderer. The default is NopRenderer.
func WithRenderer(r Renderer) ControllerOption {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(logger *zap.SugaredLogger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController returns a controller starting at cfg.InitialPose. Noise drawn for
// the true agent comes from src; the particle set keeps its own source.
func NewController(cfg Config, particles *pf.ParticleSet, src rand.Source, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if particles == nil {
		return nil, errors.Wrap(pf.ErrInvalidConfig, "particle set is required")
	}
	if src == nil {
		return nil, errors.Wrap(pf.ErrInvalidConfig, "random source is required")
	}

	landmarks := make([]pf.Landmark, len(cfg.Landmarks))
	copy(landmarks, cfg.Landmarks)
	cfg.Landmarks = landmarks

	truth := cfg.InitialPose
	truth.Heading = pf.NormalizeAngle(truth.Heading)

	c := &Controller{
		cfg:       cfg,
		particles: particles,
		motion:    pf.NewMotionModel(cfg.Noise, src),
		sensor:    pf.NewSensor(cfg.Noise, src),
		renderer:  NopRenderer{},
		logger:    zap.NewNop().Sugar(),
		truth:     truth,
		estimate:  particles.EstimatePose(),
		phase:     PhaseIdle,
		message:   "Waiting for commands...",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MoveForward drives the agent distance units along its true heading in
// frames of DistancePerFrame, then corrects the filter once. A distance needing
// more than MaxFramesPerCommand frames is rejected with ErrInvalidConfig.
func (c *Controller) MoveForward(distance float64) error {
	if err := c.checkCorrectable(); err != nil {
		return err
	}
	frames, err := frameCount(distance, c.cfg.DistancePerFrame)
	if err != nil {
		return errors.WithMessage(err, "move forward")
	}

	c.phase = PhaseMoving
	for i := 0; i < frames; i++ {
		c.truth = c.motion.Translate(c.truth, c.cfg.DistancePerFrame)
		c.particles.Predict(c.cfg.DistancePerFrame, 0, c.cfg.Noise)
		c.estimate = c.particles.EstimatePose()
		c.emit(false)
	}
	return c.correct()
}

// RotateTo turns the agent in place toward target, in radians, taking the
// shorter direction from the current estimated heading, then corrects the filter once.
// Like MoveForward it is bounded by MaxFramesPerCommand.
func (c *Controller) RotateTo(target float64) error {
	if err := c.checkCorrectable(); err != nil {
		return err
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return errors.Wrapf(pf.ErrInvalidConfig, "rotate to: target heading must be finite, got %v", target)
	}

	magnitude, direction := pf.ShortestRotation(c.estimate.Heading, pf.NormalizeAngle(target))
	frames, err := frameCount(magnitude, c.cfg.RotationPerFrame)
	if err != nil {
		return errors.WithMessage(err, "rotate to")
	}

	step := c.cfg.RotationPerFrame * direction
	c.phase = PhaseRotating
	for i := 0; i < frames; i++ {
		c.truth = c.motion.Rotate(c.truth, step)
		c.particles.Predict(0, step, c.cfg.Noise)
		c.estimate = c.particles.EstimatePose()
		c.emit(false)
	}
	return c.correct()
}

// correct senses every landmark from the true pose and runs the filter's
// reweight, resample and estimate steps.
func (c *Controller) correct() error {
	c.phase = PhaseSensing
	observed := c.sensor.Observe(c.truth, c.cfg.Landmarks)
	if err := c.particles.Reweight(c.cfg.Landmarks, observed); err != nil {
		return err
	}
	ess := c.particles.EffectiveSampleSize()
	c.particles.Resample()
	c.estimate = c.particles.EstimatePose()
	c.corrections++

	c.logger.Debugw("correction",
		"n", c.corrections,
		"ess", ess,
		"estimate_x", c.estimate.X, "estimate_y", c.estimate.Y, "estimate_heading", c.estimate.Heading,
		"true_x", c.truth.X, "true_y", c.truth.Y, "true_heading", c.truth.Heading)
	c.emit(true)
	c.phase = PhaseIdle
	return nil
}

func (c *Controller) checkCorrectable() error {
	if len(c.cfg.Landmarks) == 0 {
		return errors.Wrap(pf.ErrInvalidConfig, "a correction needs at least one landmark")
	}
	return nil
}

func frameCount(amount, perFrame float64) (int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, errors.Wrapf(pf.ErrInvalidConfig, "command amount must be finite and non-negative, got %v", amount)
	}
	frames := math.Floor(amount / perFrame)
	if frames > MaxFramesPerCommand {
		return 0, errors.Wrapf(pf.ErrInvalidConfig, "command of %v needs %.0f frames, more than %d", amount, frames, MaxFramesPerCommand)
	}
	return int(frames), nil
}

func (c *Controller) emit(corrected bool) {
	c.seq++
	c.renderer.Render(c.snapshot(corrected))
}

func (c *Controller) snapshot(corrected bool) Frame {
	landmarks := make([]pf.Landmark, len(c.cfg.Landmarks))
	copy(landmarks, c.cfg.Landmarks)
	var goals []r2.Vec
	if len(c.goals) > 0 {
		goals = make([]r2.Vec, len(c.goals))
		copy(goals, c.goals)
	}
	return Frame{
		Seq:          c.seq,
		Phase:        c.phase,
		Message:      c.message,
		Truth:        c.truth,
		Estimate:     c.estimate,
		Particles:    c.particles.Poses(),
		Landmarks:    landmarks,
		Goals:        goals,
		GoalsReached: c.goalsReached,
		Corrected:    corrected,
	}
}

// Render emits the current state as an idle frame.
func (c *Controller) Render() {
	c.emit(false)
}

// SetMessage sets the free-form status carried by subsequent frames.
func (c *Controller) SetMessage(msg string) {
	c.message = msg
}

// SetGoals sets the goals carried by subsequent frames.
func (c *Controller) SetGoals(goals []r2.Vec) {
	c.goals = make([]r2.Vec, len(goals))
	copy(c.goals, goals)
}

// MarkGoalReached increments the goal counter carried by frames.
func (c *Controller) MarkGoalReached() {
	c.goalsReached++
}

// TruePose returns the simulated ground truth.
func (c *Controller) TruePose() pf.Pose {
	return c.truth
}

// Estimate returns the estimate stored after the last frame or correction.
func (c *Controller) Estimate() pf.EstimatedPose {
	return c.estimate
}

// Landmarks returns a copy of the known landmarks.
func (c *Controller) Landmarks() []pf.Landmark {
	out := make([]pf.Landmark, len(c.cfg.Landmarks))
	copy(out, c.cfg.Landmarks)
	return out
}

// Particles returns a copy of the particle poses.
func (c *Controller) Particles() []pf.Pose {
	return c.particles.Poses()
}

// Corrections returns how many sensor corrections have run.
func (c *Controller) Corrections() int {
	return c.corrections
}

// Frames returns how many frames have been emitted.
func (c *Controller) Frames() int {
	return c.seq
}
