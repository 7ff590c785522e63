// Package render holds agent.Renderer implementations for headless runs.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	pf "github.com/jhoydich/pflocalize"
	"github.com/jhoydich/pflocalize/agent"
)

// headingArrow is the length, in environment units, of the heading tick drawn
// for the true and estimated poses.
const headingArrow = 20.0

var (
	particleColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	landmarkColor = color.RGBA{B: 255, A: 255}
	visitedColor  = color.RGBA{G: 160, A: 255}
	goalColor     = color.RGBA{R: 255, G: 140, A: 255}
	truthColor    = color.RGBA{G: 200, A: 255}
	estimateColor = color.RGBA{R: 220, A: 255}
)

// PlotRenderer writes a PNG snapshot of the environment every N frames and
// after every correction. Write failures are logged and dropped.
type PlotRenderer struct {
	dir    string
	every  int
	width  float64
	height float64
	logger *zap.SugaredLogger

	written int
}

// NewPlotRenderer creates dir and returns a renderer drawing a width x height
// environment. every <= 0 draws correction frames only.
func NewPlotRenderer(dir string, every int, width, height float64, logger *zap.SugaredLogger) (*PlotRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create plot dir")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PlotRenderer{
		dir:    dir,
		every:  every,
		width:  width,
		height: height,
		logger: logger,
	}, nil
}

// Written returns how many snapshots have been saved.
func (r *PlotRenderer) Written() int {
	return r.written
}

// Render implements agent.Renderer.
func (r *PlotRenderer) Render(f agent.Frame) {
	if !f.Corrected && (r.every <= 0 || f.Seq%r.every != 0) {
		return
	}
	path := filepath.Join(r.dir, fmt.Sprintf("frame-%06d.png", f.Seq))
	if err := r.save(f, path); err != nil {
		r.logger.Warnw("failed to write plot", "path", path, "error", err)
		return
	}
	r.written++
}

func (r *PlotRenderer) save(f agent.Frame, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %d (%s) %s", f.Seq, f.Phase, f.Message)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.X.Min, p.X.Max = 0, r.width
	p.Y.Min, p.Y.Max = 0, r.height
	p.Add(plotter.NewGrid())

	particles := make(plotter.XYs, len(f.Particles))
	for i, pose := range f.Particles {
		particles[i] = plotter.XY{X: pose.X, Y: pose.Y}
	}
	ps, err := plotter.NewScatter(particles)
	if err != nil {
		return errors.Wrap(err, "particles")
	}
	ps.GlyphStyle.Color = particleColor
	ps.GlyphStyle.Radius = vg.Points(1)
	ps.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(ps)
	p.Legend.Add("Particle", ps)

	if len(f.Goals) > 0 {
		goals := make(plotter.XYs, len(f.Goals))
		for i, g := range f.Goals {
			goals[i] = plotter.XY{X: g.X, Y: g.Y}
		}
		gs, err := plotter.NewScatter(goals)
		if err != nil {
			return errors.Wrap(err, "goals")
		}
		gs.GlyphStyle.Color = goalColor
		gs.GlyphStyle.Radius = vg.Points(8)
		gs.GlyphStyle.Shape = draw.RingGlyph{}
		p.Add(gs)
		p.Legend.Add("Goal", gs)
	}

	var pending, visited plotter.XYs
	for i, lm := range f.Landmarks {
		if i < f.GoalsReached {
			visited = append(visited, plotter.XY{X: lm.X, Y: lm.Y})
		} else {
			pending = append(pending, plotter.XY{X: lm.X, Y: lm.Y})
		}
	}
	for _, group := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"Landmark", pending, landmarkColor},
		{"Landmark visited", visited, visitedColor},
	} {
		if len(group.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.pts)
		if err != nil {
			return errors.Wrap(err, group.name)
		}
		s.GlyphStyle.Color = group.color
		s.GlyphStyle.Radius = vg.Points(6)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(group.name, s)
	}

	if err := addPose(p, "Real position", f.Truth, truthColor); err != nil {
		return err
	}
	if err := addPose(p, "Estimated position", f.Estimate.Pose(), estimateColor); err != nil {
		return err
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// addPose draws a marker at the pose and a tick along its heading.
func addPose(p *plot.Plot, name string, pose pf.Pose, c color.Color) error {
	marker, err := plotter.NewScatter(plotter.XYs{{X: pose.X, Y: pose.Y}})
	if err != nil {
		return errors.Wrap(err, name)
	}
	marker.GlyphStyle.Color = c
	marker.GlyphStyle.Radius = vg.Points(4)
	marker.GlyphStyle.Shape = draw.TriangleGlyph{}

	tick, err := plotter.NewLine(plotter.XYs{
		{X: pose.X, Y: pose.Y},
		{X: pose.X + headingArrow*math.Cos(pose.Heading), Y: pose.Y + headingArrow*math.Sin(pose.Heading)},
	})
	if err != nil {
		return errors.Wrap(err, name)
	}
	tick.LineStyle.Color = c
	tick.LineStyle.Width = vg.Points(1.5)

	p.Add(marker, tick)
	p.Legend.Add(name, marker)
	return nil
}
