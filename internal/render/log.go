package render

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jhoydich/pflocalize/agent"
)

// LogRenderer logs every frame at debug level and every correction at info level.
type LogRenderer struct {
	logger *zap.SugaredLogger
}

// NewLogRenderer returns a renderer writing to logger.
func NewLogRenderer(logger *zap.SugaredLogger) *LogRenderer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LogRenderer{logger: logger}
}

// Render implements agent.Renderer.
func (r *LogRenderer) Render(f agent.Frame) {
	errDist := math.Hypot(f.Estimate.X-f.Truth.X, f.Estimate.Y-f.Truth.Y)
	fields := []interface{}{
		"seq", f.Seq,
		"phase", string(f.Phase),
		"message", f.Message,
		"true_x", f.Truth.X, "true_y", f.Truth.Y, "true_heading", f.Truth.Heading,
		"est_x", f.Estimate.X, "est_y", f.Estimate.Y, "est_heading", f.Estimate.Heading,
		"position_error", errDist,
	}
	if f.Corrected {
		r.logger.Infow("corrected", fields...)
		return
	}
	r.logger.Debugw("frame", fields...)
}

// Pacer sleeps between frames so a run advances at the map's frame-rate hint.
type Pacer struct {
	delay time.Duration
	sleep func(time.Duration)
}

// NewPacer returns a pacer sleeping delay per frame. A zero delay makes it a no-op.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, sleep: time.Sleep}
}

// Render implements agent.Renderer.
func (p *Pacer) Render(agent.Frame) {
	if p.delay > 0 {
		p.sleep(p.delay)
	}
}
