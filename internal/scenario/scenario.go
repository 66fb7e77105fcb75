// Package scenario loads scripted hand timelines used to drive the
// processing chain without a camera. A scenario lists steps, each holding
// a set of poses for a duration, and the gesture events the run must
// produce.
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/detector"
	"github.com/ayusman/phantomhand/internal/event"
)

//go:embed testdata/*.yaml
var scenariosFS embed.FS

// DefaultInterval is the frame spacing used when a scenario sets none.
const DefaultInterval = 40 * time.Millisecond

// Scenario is one scripted run.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Interval    time.Duration `yaml:"interval"`
	Steps       []Step        `yaml:"steps"`
	Expect      []Expectation `yaml:"expect"`

	// MinHolds is the least number of hold events the run must emit.
	MinHolds int `yaml:"min_holds"`
	// Quiet scenarios must not emit any event.
	Quiet bool `yaml:"quiet"`
}

// Step shows a fixed set of hands for a duration. No hands means the
// camera sees nothing.
type Step struct {
	Duration time.Duration `yaml:"duration"`
	Hands    []Hand        `yaml:"hands"`
}

// Hand places one fixture pose. Move is added to the hand's position on
// every frame of the step, in normalized image units.
type Hand struct {
	ID   string `yaml:"id"`
	Pose string `yaml:"pose"`
	Move Offset `yaml:"move"`
}

// Offset is a planar displacement.
type Offset struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Expectation matches one emitted event.
type Expectation struct {
	Kind    string `yaml:"kind"`
	Gesture string `yaml:"gesture"`
	Hand    string `yaml:"hand"`
}

// Frame is one scripted camera frame and the hands visible in it.
type Frame struct {
	ID        uint64
	Timestamp int64 // milliseconds
	Hands     []detector.HandRecord
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("decode scenario: %w", err)
	}
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	for i := range s.Steps {
		for j := range s.Steps[i].Hands {
			if s.Steps[i].Hands[j].ID == "" {
				s.Steps[i].Hands[j].ID = "right"
			}
		}
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks poses, durations and expectations.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario has no name")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", s.Name)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("%s: no steps", s.Name)
	}
	for i, step := range s.Steps {
		if step.Duration < s.Interval {
			return fmt.Errorf("%s: step %d is shorter than one frame", s.Name, i)
		}
		for _, h := range step.Hands {
			if _, ok := detector.Poses[h.Pose]; !ok {
				return fmt.Errorf("%s: step %d: unknown pose %q", s.Name, i, h.Pose)
			}
		}
	}
	for i, e := range s.Expect {
		var k event.Kind
		if err := k.UnmarshalText([]byte(e.Kind)); err != nil {
			return fmt.Errorf("%s: expectation %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// Load reads a bundled scenario by name.
func Load(name string) (Scenario, error) {
	data, err := scenariosFS.ReadFile(path.Join("testdata", name+".yaml"))
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario %s: %w", name, err)
	}
	return Parse(data)
}

// Names lists the bundled scenarios.
func Names() []string {
	entries, _ := scenariosFS.ReadDir("testdata")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Frames expands the steps into a frame timeline starting at 0.
func (s Scenario) Frames() []Frame {
	step := s.Interval.Milliseconds()
	offsets := make(map[string]Offset)

	var frames []Frame
	var ts int64
	for _, st := range s.Steps {
		end := ts + st.Duration.Milliseconds()
		for ; ts < end; ts += step {
			f := Frame{ID: uint64(len(frames) + 1), Timestamp: ts}
			for _, h := range st.Hands {
				off := offsets[h.ID]
				off.X += h.Move.X
				off.Y += h.Move.Y
				offsets[h.ID] = off

				rec := detector.Poses[h.Pose]().Translate(off.X, off.Y, 0)
				rec.ID = h.ID
				rec.FrameID = f.ID
				rec.Timestamp = ts
				f.Hands = append(f.Hands, rec)
			}
			frames = append(frames, f)
		}
	}
	return frames
}

// Detector returns a mock detector that answers each frame with the hands
// scripted for its timestamp.
func (s Scenario) Detector() *detector.MockDetector {
	byTS := make(map[int64][]detector.HandRecord)
	for _, f := range s.Frames() {
		byTS[f.Timestamp] = f.Hands
	}
	det := detector.NewMockDetector()
	det.SetFunc(func(frame *capture.Frame) ([]detector.HandRecord, error) {
		hands := byTS[frame.Timestamp]
		out := make([]detector.HandRecord, len(hands))
		copy(out, hands)
		return out, nil
	})
	return det
}

// Check compares emitted events with the scenario's expectations. The
// expected events must appear in order, other events may be interleaved.
func (s Scenario) Check(events []event.Event) error {
	holds := 0
	for _, e := range events {
		if e.Kind == event.Hold {
			holds++
		}
	}
	if s.Quiet && len(events) > 0 {
		return fmt.Errorf("%s: want no events, got %s", s.Name, Summary(events))
	}
	if holds < s.MinHolds {
		return fmt.Errorf("%s: got %d holds, want at least %d", s.Name, holds, s.MinHolds)
	}

	next := 0
	for _, e := range events {
		if next < len(s.Expect) && s.Expect[next].matches(e) {
			next++
		}
	}
	if next < len(s.Expect) {
		want := s.Expect[next]
		return fmt.Errorf("%s: missing %s %s after matching %d of %d, got %s",
			s.Name, want.Kind, want.Gesture, next, len(s.Expect), Summary(events))
	}
	return nil
}

func (x Expectation) matches(e event.Event) bool {
	if e.Kind.String() != x.Kind {
		return false
	}
	if x.Gesture != "" && e.Gesture != x.Gesture {
		return false
	}
	return x.Hand == "" || e.HandID == x.Hand
}

// Summary renders the non-hold events as "kind:gesture" tokens.
func Summary(events []event.Event) string {
	var parts []string
	for _, e := range events {
		if e.Kind == event.Hold {
			continue
		}
		parts = append(parts, e.Kind.String()+":"+e.Gesture)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
