package agent

import (
	"gonum.org/v1/gonum/spatial/r2"

	pf "github.com/jhoydich/pflocalize"
)

// Phase names what the controller is doing when a frame is emitted.
type Phase string

// Phases reported in frames.
const (
	PhaseIdle     Phase = "idle"
	PhaseMoving   Phase = "moving"
	PhaseRotating Phase = "rotating"
	PhaseSensing  Phase = "sensing"
)

// Frame is a read-only snapshot handed to a Renderer. Slices are copies owned
// by the frame.
type Frame struct {
	Seq          int
	Phase        Phase
	Message      string
	Truth        pf.Pose
	Estimate     pf.EstimatedPose
	Particles    []pf.Pose
	Landmarks    []pf.Landmark
	Goals        []r2.Vec
	GoalsReached int
	// Corrected is set on the frame emitted right after a sensor correction.
	Corrected bool
}

// Renderer receives frames. Render must not block the caller on drawing and
// has no way to report back; implementations handle their own failures.
type Renderer interface {
	Render(Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame)

// Render implements Renderer.
func (f RendererFunc) Render(frame Frame) {
	f(frame)
}

// NopRenderer discards every frame. Use it for headless runs.
type NopRenderer struct{}

// Render implements Renderer.
func (NopRenderer) Render(Frame) {}

// MultiRenderer fans each frame out to every renderer in order.
type MultiRenderer []Renderer

// Render implements Renderer.
func (m MultiRenderer) Render(frame Frame) {
	for _, r := range m {
		if r != nil {
			r.Render(frame)
		}
	}
}
