package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r2"

	pf "github.com/jhoydich/pflocalize"
	"github.com/jhoydich/pflocalize/agent"
)

func testFrame(seq int, corrected bool) agent.Frame {
	return agent.Frame{
		Seq:          seq,
		Phase:        agent.PhaseMoving,
		Message:      "Moving to goal...",
		Truth:        pf.Pose{X: 40, Y: 40, Heading: 1},
		Estimate:     pf.EstimatedPose{X: 43, Y: 44, Heading: 1.1},
		Particles:    []pf.Pose{{X: 10, Y: 10}, {X: 45, Y: 41, Heading: 2}},
		Landmarks:    []pf.Landmark{{X: 20, Y: 80}, {X: 80, Y: 20}},
		Goals:        []r2.Vec{{X: 25, Y: 70}, {X: 70, Y: 25}},
		GoalsReached: 1,
		Corrected:    corrected,
	}
}

func TestPlotRendererWritesSelectedFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	r, err := NewPlotRenderer(dir, 5, 100, 100, nil)
	require.NoError(t, err)

	r.Render(testFrame(3, false))
	assert.Zero(t, r.Written())
	assert.NoFileExists(t, filepath.Join(dir, "frame-000003.png"))

	r.Render(testFrame(4, true))
	r.Render(testFrame(5, false))
	assert.Equal(t, 2, r.Written())

	for _, name := range []string{"frame-000004.png", "frame-000005.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestPlotRendererWithoutGoals(t *testing.T) {
	dir := t.TempDir()
	r, err := NewPlotRenderer(dir, 1, 100, 100, nil)
	require.NoError(t, err)

	f := testFrame(1, true)
	f.Goals = nil
	r.Render(f)
	assert.Equal(t, 1, r.Written())
	assert.FileExists(t, filepath.Join(dir, "frame-000001.png"))
}

func TestPlotRendererCorrectionsOnly(t *testing.T) {
	r, err := NewPlotRenderer(t.TempDir(), 0, 100, 100, nil)
	require.NoError(t, err)

	r.Render(testFrame(10, false))
	r.Render(testFrame(11, true))
	assert.Equal(t, 1, r.Written())
}

func TestLogRendererLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewLogRenderer(zap.New(core).Sugar())

	r.Render(testFrame(1, false))
	r.Render(testFrame(2, true))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "frame", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "corrected", entries[1].Message)

	ctx := entries[1].ContextMap()
	assert.Equal(t, int64(2), ctx["seq"])
	assert.Equal(t, "moving", ctx["phase"])
	assert.InDelta(t, 5.0, ctx["position_error"], 1e-9)
}

func TestPacerSleepsPerFrame(t *testing.T) {
	var slept []time.Duration
	p := &Pacer{delay: 30 * time.Millisecond, sleep: func(d time.Duration) { slept = append(slept, d) }}

	p.Render(testFrame(1, false))
	p.Render(testFrame(2, true))
	assert.Equal(t, []time.Duration{30 * time.Millisecond, 30 * time.Millisecond}, slept)

	slept = nil
	idle := &Pacer{sleep: func(d time.Duration) { slept = append(slept, d) }}
	idle.Render(testFrame(3, false))
	assert.Empty(t, slept)
}

func TestNewPacerUsesDelay(t *testing.T) {
	assert.Equal(t, 15*time.Millisecond, NewPacer(15*time.Millisecond).delay)
}
