package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r2"

	pf "github.com/jhoydich/pflocalize"
	"github.com/jhoydich/pflocalize/agent"
)

const minimalJSON = `{
  "dimensions": {"width": 100, "height": 100},
  "landmarks": [[50, 50]],
  "goals": [{"x": 60, "y": 40}],
  "initial_position": [10, 10],
  "initial_angle": 0,
  "num_particles": 500,
  "distance_per_frame": 10,
  "rotation_per_frame": 10,
  "noise": {"move_std": 1, "rotate_std": 1, "sensor_std": 1},
  "msec_per_frame": 0
}`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	m, err := Load(writeFile(t, "map.json", minimalJSON))
	require.NoError(t, err)

	assert.Equal(t, []pf.Landmark{{X: 50, Y: 50}}, m.LandmarkList())
	assert.Equal(t, []r2.Vec{{X: 60, Y: 40}}, m.GoalList())
	assert.Equal(t, pf.Pose{X: 10, Y: 10}, m.InitialPose())
	assert.Equal(t, 500, m.NumParticles)
	assert.Equal(t, pf.NoiseModel{MoveStd: 1, RotateStd: 1, SensorStd: 1}, m.NoiseModel())
}

func TestLoadJSON5WithComments(t *testing.T) {
	m, err := Load(writeFile(t, "map.json5", `
// two landmarks, one goal
{
  dimensions: { width: 200, height: 100 },
  landmarks: [ { x: 1, y: 2 }, [3, 4], ],
  goals: [ [5, 6] ],
  initial_position: { x: 0, y: 0 },
  initial_angle: 1.5,
  num_particles: 10,
  distance_per_frame: 5,
  rotation_per_frame: 90,
  noise: { move_std: 0, rotate_std: 0, sensor_std: 0 },
  msec_per_frame: 20,
  seed: 7,
  likelihood_sigma: 25,
  resampler: "systematic",
  max_step: 40,
}`))
	require.NoError(t, err)

	assert.Equal(t, []pf.Landmark{{X: 1, Y: 2}, {X: 3, Y: 4}}, m.LandmarkList())
	assert.Equal(t, uint64(7), m.GetSeed())
	assert.Equal(t, 25.0, m.GetLikelihoodSigma())
	assert.Equal(t, ResamplerSystematic, m.GetResampler())
	assert.IsType(t, pf.SystematicResampler{}, m.ResamplerImpl())
	assert.Equal(t, 40.0, m.GetMaxStep())
	assert.InDelta(t, math.Pi/2, m.RotationPerFrameRadians(), 1e-12)
	assert.Equal(t, 20*time.Millisecond, m.FrameDelay())

	ac := m.AgentConfig()
	assert.Equal(t, 5.0, ac.DistancePerFrame)
	assert.InDelta(t, math.Pi/2, ac.RotationPerFrame, 1e-12)
	assert.Equal(t, 1.5, ac.InitialPose.Heading)
	require.NoError(t, ac.Validate())

	nc := m.NavigatorConfig()
	assert.Equal(t, 40.0, nc.MaxStep)
	assert.Len(t, nc.Goals, 1)
}

func TestPointDecodesArrayAndObject(t *testing.T) {
	var pts []Point
	require.NoError(t, json5.Unmarshal([]byte(`[[1, 2], {x: 3, y: 4}, {"x": 5, "y": 6},]`), &pts))
	assert.Equal(t, []Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}, pts)

	var p Point
	assert.Error(t, json5.Unmarshal([]byte(`[1]`), &p))
}

func TestDefaults(t *testing.T) {
	m, err := Parse([]byte(minimalJSON))
	require.NoError(t, err)

	assert.Zero(t, m.GetSeed())
	assert.Equal(t, pf.DefaultLikelihoodSigma, m.GetLikelihoodSigma())
	assert.Equal(t, ResamplerMultinomial, m.GetResampler())
	assert.IsType(t, pf.MultinomialResampler{}, m.ResamplerImpl())
	assert.Equal(t, agent.DefaultMaxStep, m.GetMaxStep())
	assert.Zero(t, m.FrameDelay())
}

func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := Load(writeFile(t, "map.yaml", minimalJSON))
	assert.ErrorContains(t, err, "extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "broken.json", "{"))
	assert.ErrorContains(t, err, "failed to parse map file")

	_, err = Parse([]byte(`{"landmarks": [[1, 2, 3]]}`))
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	sigma := -1.0
	resampler := "stratified"
	m := &Map{
		Dimensions:      Dimensions{Width: 0, Height: 10},
		Goals:           []Point{{X: 1, Y: 1}},
		Noise:           Noise{MoveStd: -1},
		LikelihoodSigma: &sigma,
		Resampler:       &resampler,
	}

	err := m.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, pf.ErrInvalidConfig)

	errs := multierr.Errors(err)
	// dimensions, landmarks, goals, particles, distance, rotation, noise, sigma, resampler
	assert.Len(t, errs, 9)
	for _, e := range errs {
		assert.ErrorIs(t, e, pf.ErrInvalidConfig)
	}
}

func TestBundledMapIsValid(t *testing.T) {
	m, err := Load(filepath.Join("..", "..", "config", "map.json5"))
	require.NoError(t, err)
	assert.Len(t, m.Landmarks, len(m.Goals))
	assert.Equal(t, uint64(1), m.GetSeed())
}
