package agent

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"

	pf "github.com/jhoydich/pflocalize"
)

// Navigator defaults.
const (
	DefaultMaxStep          = 100.0
	DefaultReachTolerance   = 10.0
	DefaultAlignTolerance   = math.Pi / 50
	DefaultMaxAlignAttempts = 20
	DefaultMaxCommands      = 10000
)

// ErrCommandBudget is returned by Run when MaxCommands is exhausted before every goal is reached.
var ErrCommandBudget = errors.New("command budget exhausted")

// NavigatorConfig tunes the goal sequencing policy. Zero values take the defaults.
type NavigatorConfig struct {
	// Goals are visited in order; goal i is photographed facing landmark i.
	Goals []r2.Vec
	// MaxStep clamps the distance of a single move command.
	MaxStep float64
	// ReachTolerance is the per-axis distance under which a goal counts as reached.
	ReachTolerance float64
	// AlignTolerance is the heading error accepted when facing a landmark.
	AlignTolerance   float64
	MaxAlignAttempts int
	MaxCommands      int
}

func (c *NavigatorConfig) applyDefaults() {
	if c.MaxStep == 0 {
		c.MaxStep = DefaultMaxStep
	}
	if c.ReachTolerance == 0 {
		c.ReachTolerance = DefaultReachTolerance
	}
	if c.AlignTolerance == 0 {
		c.AlignTolerance = DefaultAlignTolerance
	}
	if c.MaxAlignAttempts == 0 {
		c.MaxAlignAttempts = DefaultMaxAlignAttempts
	}
	if c.MaxCommands == 0 {
		c.MaxCommands = DefaultMaxCommands
	}
}

// Navigator decides where the agent goes next from the controller's estimate.
// It issues commands only; all estimation stays in the controller.
type Navigator struct {
	ctrl     *Controller
	cfg      NavigatorConfig
	logger   *zap.SugaredLogger
	heading  distuv.Uniform
	step     distuv.Uniform
	current  int
	commands int
}

// NewNavigator returns a navigator steering ctrl through cfg.Goals.
func NewNavigator(ctrl *Controller, cfg NavigatorConfig, src rand.Source, logger *zap.SugaredLogger) (*Navigator, error) {
	if ctrl == nil {
		return nil, errors.Wrap(pf.ErrInvalidConfig, "controller is required")
	}
	if src == nil {
		return nil, errors.Wrap(pf.ErrInvalidConfig, "random source is required")
	}
	cfg.applyDefaults()
	if cfg.MaxStep < 0 || cfg.ReachTolerance < 0 || cfg.AlignTolerance < 0 || cfg.MaxAlignAttempts < 0 || cfg.MaxCommands < 0 {
		return nil, errors.Wrap(pf.ErrInvalidConfig, "navigator limits must not be negative")
	}
	if n := len(ctrl.Landmarks()); len(cfg.Goals) > n {
		return nil, errors.Wrapf(pf.ErrInvalidConfig, "%d goals but only %d landmarks", len(cfg.Goals), n)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctrl.SetGoals(cfg.Goals)
	return &Navigator{
		ctrl:    ctrl,
		cfg:     cfg,
		logger:  logger,
		heading: distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src},
		step:    distuv.Uniform{Min: 0, Max: cfg.MaxStep, Src: src},
	}, nil
}

// GoalsReached returns how many goals have been completed.
func (n *Navigator) GoalsReached() int {
	return n.current
}

// Commands returns how many move or rotate commands have been issued.
func (n *Navigator) Commands() int {
	return n.commands
}

// RandomMoves performs count rounds of rotating to a random heading and moving
// a random distance below MaxStep.
func (n *Navigator) RandomMoves(ctx context.Context, count int) error {
	n.ctrl.SetMessage("Taking random moves...")
	for i := 0; i < count; i++ {
		if err := n.rotate(ctx, n.heading.Rand()); err != nil {
			return err
		}
		if err := n.move(ctx, n.step.Rand()); err != nil {
			return err
		}
	}
	return nil
}

// Run steers toward every remaining goal in order. At each goal the agent turns
// to face the goal's landmark before moving on.
func (n *Navigator) Run(ctx context.Context) error {
	goals := n.cfg.Goals
	for n.current < len(goals) {
		n.ctrl.Render()

		goal := goals[n.current]
		diff := r2.Sub(goal, n.position())
		if math.Abs(diff.X) < n.cfg.ReachTolerance && math.Abs(diff.Y) < n.cfg.ReachTolerance {
			n.logger.Infow("position reached, rotating to landmark", "goal", n.current)
			if err := n.faceLandmark(ctx, n.ctrl.Landmarks()[n.current]); err != nil {
				return err
			}
			n.logger.Infow("goal reached", "goal", n.current)
			n.ctrl.SetMessage("Taking photo...")
			n.ctrl.MarkGoalReached()
			n.current++
			continue
		}

		n.logger.Debugw("moving to goal", "goal", n.current, "dx", diff.X, "dy", diff.Y)
		n.ctrl.SetMessage("Rotating to goal...")
		if err := n.rotate(ctx, pf.Bearing(diff.X, diff.Y)); err != nil {
			return err
		}
		n.ctrl.SetMessage("Moving to goal...")
		if err := n.move(ctx, math.Min(r2.Norm(diff), n.cfg.MaxStep)); err != nil {
			return err
		}
	}
	return nil
}

// Finish marks the run complete and emits idle frames.
func (n *Navigator) Finish(idleFrames int) {
	n.ctrl.SetMessage("All goals achieved!")
	for i := 0; i < idleFrames; i++ {
		n.ctrl.Render()
	}
}

func (n *Navigator) faceLandmark(ctx context.Context, lm pf.Landmark) error {
	n.ctrl.SetMessage("Rotating to landmark...")
	for attempt := 0; attempt < n.cfg.MaxAlignAttempts; attempt++ {
		pos := n.position()
		target := pf.Bearing(lm.X-pos.X, lm.Y-pos.Y)
		if err := n.rotate(ctx, target); err != nil {
			return err
		}
		if off, _ := pf.ShortestRotation(n.ctrl.Estimate().Heading, target); off < n.cfg.AlignTolerance {
			return nil
		}
	}
	n.logger.Warnw("could not align with landmark", "goal", n.current, "attempts", n.cfg.MaxAlignAttempts)
	return nil
}

func (n *Navigator) position() r2.Vec {
	est := n.ctrl.Estimate()
	return r2.Vec{X: est.X, Y: est.Y}
}

func (n *Navigator) rotate(ctx context.Context, target float64) error {
	if err := n.spend(ctx); err != nil {
		return err
	}
	return n.ctrl.RotateTo(target)
}

func (n *Navigator) move(ctx context.Context, distance float64) error {
	if err := n.spend(ctx); err != nil {
		return err
	}
	return n.ctrl.MoveForward(distance)
}

func (n *Navigator) spend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.commands >= n.cfg.MaxCommands {
		return errors.Wrapf(ErrCommandBudget, "after %d commands, %d of %d goals reached", n.commands, n.current, len(n.cfg.Goals))
	}
	n.commands++
	return nil
}
