// Package main runs a simulated landmark localization from a map file.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	pf "github.com/jhoydich/pflocalize"
	"github.com/jhoydich/pflocalize/agent"
	"github.com/jhoydich/pflocalize/internal/config"
	"github.com/jhoydich/pflocalize/internal/render"
	"github.com/jhoydich/pflocalize/internal/trace"
)

const (
	flagConfig      = "config"
	flagSeed        = "seed"
	flagPlotDir     = "plot-dir"
	flagPlotEvery   = "plot-every"
	flagTraceDB     = "trace-db"
	flagRandomMoves = "random-moves"
	flagDebug       = "debug"
	flagRealtime    = "realtime"

	finishFrames = 50
)

func main() {
	app := &cli.App{
		Name:  "localize",
		Usage: "simulate an agent localizing itself against known landmarks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "config/map.json5",
				Usage:   "map file (.json or .json5)",
			},
			&cli.Uint64Flag{
				Name:  flagSeed,
				Usage: "random seed; overrides the map file, 0 keeps the map's seed or uses the clock",
			},
			&cli.StringFlag{
				Name:  flagPlotDir,
				Usage: "write PNG snapshots into this directory",
			},
			&cli.IntFlag{
				Name:  flagPlotEvery,
				Value: 10,
				Usage: "snapshot every N frames in addition to every correction",
			},
			&cli.StringFlag{
				Name:  flagTraceDB,
				Usage: "record every frame into this SQLite database",
			},
			&cli.IntFlag{
				Name:  flagRandomMoves,
				Value: 3,
				Usage: "random rotate+move rounds before heading for the goals",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "log every frame",
			},
			&cli.BoolFlag{
				Name:  flagRealtime,
				Usage: "pace frames at the map's msec_per_frame",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	defer logger.Sync() //nolint:errcheck

	m, err := config.Load(c.String(flagConfig))
	if err != nil {
		return err
	}

	seed := m.GetSeed()
	if s := c.Uint64(flagSeed); s != 0 {
		seed = s
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Infow("starting run", "config", c.String(flagConfig), "seed", seed, "particles", m.NumParticles)

	filterSrc := rand.NewPCG(seed, 1)
	worldSrc := rand.NewPCG(seed, 2)
	navSrc := rand.NewPCG(seed, 3)

	particles, err := pf.NewParticleSet(m.NumParticles, m.Dimensions.Width, m.Dimensions.Height, filterSrc,
		pf.WithLogger(logger.Named("filter")),
		pf.WithLikelihoodSigma(m.GetLikelihoodSigma()),
		pf.WithResampler(m.ResamplerImpl()),
	)
	if err != nil {
		return err
	}

	renderers := agent.MultiRenderer{render.NewLogRenderer(logger.Named("frames"))}

	if dir := c.String(flagPlotDir); dir != "" {
		plots, err := render.NewPlotRenderer(dir, c.Int(flagPlotEvery), m.Dimensions.Width, m.Dimensions.Height, logger.Named("plot"))
		if err != nil {
			return err
		}
		renderers = append(renderers, plots)
	}

	var (
		db       *trace.DB
		recorder *trace.Recorder
	)
	if path := c.String(flagTraceDB); path != "" {
		db, err = trace.Open(path, logger.Named("trace"))
		if err != nil {
			return err
		}
		defer db.Close()

		raw, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, "failed to encode config")
		}
		recorder, err = db.StartRun(m.NumParticles, string(raw))
		if err != nil {
			return err
		}
		defer recorder.Close()
		renderers = append(renderers, recorder)
	}

	if c.Bool(flagRealtime) {
		renderers = append(renderers, render.NewPacer(m.FrameDelay()))
	}

	ctrl, err := agent.NewController(m.AgentConfig(), particles, worldSrc,
		agent.WithRenderer(renderers),
		agent.WithControllerLogger(logger.Named("agent")),
	)
	if err != nil {
		return err
	}

	nav, err := agent.NewNavigator(ctrl, m.NavigatorConfig(), navSrc, logger.Named("nav"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	if err := nav.RandomMoves(ctx, c.Int(flagRandomMoves)); err != nil {
		return err
	}
	if err := nav.Run(ctx); err != nil {
		return err
	}
	nav.Finish(finishFrames)

	est := ctrl.Estimate()
	truth := ctrl.TruePose()
	logger.Infow("finished",
		"goals", nav.GoalsReached(),
		"commands", nav.Commands(),
		"corrections", ctrl.Corrections(),
		"true_x", truth.X, "true_y", truth.Y,
		"est_x", est.X, "est_y", est.Y)

	if recorder != nil {
		summary, err := db.Summary(recorder.RunID())
		if err != nil {
			return err
		}
		fmt.Printf("run %s: %d frames, %d corrections, final error %.2f\n",
			summary.RunID, summary.Frames, summary.Corrections, summary.FinalError)
	}
	return nil
}
