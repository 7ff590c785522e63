// Package config loads the environment map and run parameters of a
// localization run.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r2"

	pf "github.com/jhoydich/pflocalize"
	"github.com/jhoydich/pflocalize/agent"
)

// Resampler names accepted in the map file.
const (
	ResamplerMultinomial = "multinomial"
	ResamplerSystematic  = "systematic"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Point is a 2D point. It decodes from either {"x": 1, "y": 2} or [1, 2].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json5.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("point must have 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	type plain Point
	var v plain
	if err := json5.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Point(v)
	return nil
}

// Dimensions is the size of the environment.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Noise holds the standard deviations shared by simulation and filter.
type Noise struct {
	MoveStd   float64 `json:"move_std"`
	RotateStd float64 `json:"rotate_std"`
	SensorStd float64 `json:"sensor_std"`
}

// Map is the root of a map file.
type Map struct {
	Dimensions      Dimensions `json:"dimensions"`
	Landmarks       []Point    `json:"landmarks"`
	Goals           []Point    `json:"goals"`
	InitialPosition Point      `json:"initial_position"`
	// InitialAngle is in radians.
	InitialAngle     float64 `json:"initial_angle"`
	NumParticles     int     `json:"num_particles"`
	DistancePerFrame float64 `json:"distance_per_frame"`
	// RotationPerFrame is in degrees.
	RotationPerFrame float64 `json:"rotation_per_frame"`
	Noise            Noise   `json:"noise"`
	MsecPerFrame     float64 `json:"msec_per_frame"`

	// Optional, with defaults applied by the Get* methods.
	Seed            *uint64  `json:"seed,omitempty"`
	LikelihoodSigma *float64 `json:"likelihood_sigma,omitempty"`
	Resampler       *string  `json:"resampler,omitempty"`
	MaxStep         *float64 `json:"max_step,omitempty"`
}

// Load reads and validates a map file. The file must have a .json or .json5
// extension; comments and trailing commas are accepted.
func Load(path string) (*Map, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" && ext != ".json5" {
		return nil, errors.Errorf("map file must have .json or .json5 extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat map file")
	}
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("map file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read map file")
	}
	return Parse(data)
}

// Parse decodes and validates map file contents.
func Parse(data []byte) (*Map, error) {
	m := &Map{}
	if err := json5.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "failed to parse map file")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports every invalid field at once. Each error wraps pf.ErrInvalidConfig.
func (m *Map) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(pf.ErrInvalidConfig, format, args...))
	}

	if !positive(m.Dimensions.Width) || !positive(m.Dimensions.Height) {
		add("dimensions must be positive, got %vx%v", m.Dimensions.Width, m.Dimensions.Height)
	}
	if len(m.Landmarks) == 0 {
		add("at least one landmark is required")
	}
	if len(m.Goals) > len(m.Landmarks) {
		add("%d goals but only %d landmarks", len(m.Goals), len(m.Landmarks))
	}
	if m.NumParticles <= 0 {
		add("num_particles must be positive, got %d", m.NumParticles)
	}
	if !positive(m.DistancePerFrame) {
		add("distance_per_frame must be positive, got %v", m.DistancePerFrame)
	}
	if !positive(m.RotationPerFrame) {
		add("rotation_per_frame must be positive, got %v", m.RotationPerFrame)
	}
	if err := m.NoiseModel().Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if m.MsecPerFrame < 0 {
		add("msec_per_frame must not be negative, got %v", m.MsecPerFrame)
	}
	if m.LikelihoodSigma != nil && !positive(*m.LikelihoodSigma) {
		add("likelihood_sigma must be positive, got %v", *m.LikelihoodSigma)
	}
	if m.Resampler != nil && *m.Resampler != ResamplerMultinomial && *m.Resampler != ResamplerSystematic {
		add("unknown resampler %q", *m.Resampler)
	}
	if m.MaxStep != nil && !positive(*m.MaxStep) {
		add("max_step must be positive, got %v", *m.MaxStep)
	}
	return errs
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// GetSeed returns the configured seed, or 0 when the seed should be time based.
func (m *Map) GetSeed() uint64 {
	if m.Seed == nil {
		return 0
	}
	return *m.Seed
}

// GetLikelihoodSigma returns the measurement likelihood spread.
func (m *Map) GetLikelihoodSigma() float64 {
	if m.LikelihoodSigma == nil {
		return pf.DefaultLikelihoodSigma
	}
	return *m.LikelihoodSigma
}

// GetResampler returns the resampling scheme name.
func (m *Map) GetResampler() string {
	if m.Resampler == nil {
		return ResamplerMultinomial
	}
	return *m.Resampler
}

// GetMaxStep returns the clamp applied to single move commands.
func (m *Map) GetMaxStep() float64 {
	if m.MaxStep == nil {
		return agent.DefaultMaxStep
	}
	return *m.MaxStep
}

// NoiseModel returns the shared noise parameters.
func (m *Map) NoiseModel() pf.NoiseModel {
	return pf.NoiseModel{
		MoveStd:   m.Noise.MoveStd,
		RotateStd: m.Noise.RotateStd,
		SensorStd: m.Noise.SensorStd,
	}
}

// ResamplerImpl returns the configured resampling scheme.
func (m *Map) ResamplerImpl() pf.Resampler {
	if m.GetResampler() == ResamplerSystematic {
		return pf.SystematicResampler{}
	}
	return pf.MultinomialResampler{}
}

// LandmarkList returns the landmarks in file order.
func (m *Map) LandmarkList() []pf.Landmark {
	out := make([]pf.Landmark, len(m.Landmarks))
	for i, p := range m.Landmarks {
		out[i] = pf.Landmark{X: p.X, Y: p.Y}
	}
	return out
}

// GoalList returns the goals in visiting order.
func (m *Map) GoalList() []r2.Vec {
	out := make([]r2.Vec, len(m.Goals))
	for i, p := range m.Goals {
		out[i] = r2.Vec{X: p.X, Y: p.Y}
	}
	return out
}

// InitialPose returns the agent's starting pose.
func (m *Map) InitialPose() pf.Pose {
	return pf.Pose{X: m.InitialPosition.X, Y: m.InitialPosition.Y, Heading: m.InitialAngle}
}

// RotationPerFrameRadians converts rotation_per_frame from degrees.
func (m *Map) RotationPerFrameRadians() float64 {
	return m.RotationPerFrame * math.Pi / 180
}

// FrameDelay is the pause a paced renderer inserts between frames.
func (m *Map) FrameDelay() time.Duration {
	return time.Duration(m.MsecPerFrame * float64(time.Millisecond))
}

// AgentConfig returns the controller configuration.
func (m *Map) AgentConfig() agent.Config {
	return agent.Config{
		Landmarks:        m.LandmarkList(),
		InitialPose:      m.InitialPose(),
		DistancePerFrame: m.DistancePerFrame,
		RotationPerFrame: m.RotationPerFrameRadians(),
		Noise:            m.NoiseModel(),
	}
}

// NavigatorConfig returns the goal sequencing configuration.
func (m *Map) NavigatorConfig() agent.NavigatorConfig {
	return agent.NavigatorConfig{
		Goals:   m.GoalList(),
		MaxStep: m.GetMaxStep(),
	}
}
