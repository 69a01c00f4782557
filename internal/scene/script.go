// Package scene is a scripted stand-in for the host engine. A YAML script
// describes objects, their interaction backends and how those backends
// change frame by frame, so the bridge can run without a headset.
package scene

import (
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in scripts.
const (
	BackendPoints   = "points"
	BackendGrab     = "grab"
	BackendHandGrab = "hand_grab"
)

// Script is the decoded YAML document.
type Script struct {
	// Frames is the script length; zero means run until interrupted.
	Frames  uint64         `yaml:"frames"`
	Anchors map[string]Vec `yaml:"anchors"`
	Objects []ObjectScript `yaml:"objects"`
}

// Vec is a position written as [x, y, z].
type Vec [3]float64

func (v Vec) r3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// ObjectScript describes one object and its timeline.
type ObjectScript struct {
	Name         string     `yaml:"name"`
	Mass         float64    `yaml:"mass"`
	MassOverride float64    `yaml:"mass_override"`
	Position     Vec        `yaml:"position"`
	Backends     []string   `yaml:"backends"`
	Timeline     []Keyframe `yaml:"timeline"`
}

// Keyframe changes an object's backends from Frame onwards. Unset fields
// keep their previous values; an explicit empty list clears interactors or
// faults.
type Keyframe struct {
	Frame         uint64             `yaml:"frame"`
	Points        *int               `yaml:"points"`
	GrabState     *string            `yaml:"grab_state"`
	HandGrabState *string            `yaml:"hand_grab_state"`
	Interactors   []InteractorScript `yaml:"interactors"`
	Position      *Vec               `yaml:"position"`
	Faults        []string           `yaml:"faults"`
}

// InteractorScript is an interactor selecting the object.
type InteractorScript struct {
	Name       string `yaml:"name"`
	Handedness string `yaml:"handedness"`
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script. Timelines are sorted by
// frame.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scene script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene script: %w", err)
	}
	for i := range s.Objects {
		tl := s.Objects[i].Timeline
		sort.SliceStable(tl, func(a, b int) bool { return tl[a].Frame < tl[b].Frame })
	}
	return &s, nil
}

// Validate checks object names and backend references.
func (s *Script) Validate() error {
	if len(s.Objects) == 0 {
		return fmt.Errorf("no objects")
	}
	seen := make(map[string]bool)
	for _, o := range s.Objects {
		if o.Name == "" {
			return fmt.Errorf("object without a name")
		}
		if seen[o.Name] {
			return fmt.Errorf("duplicate object %q", o.Name)
		}
		seen[o.Name] = true

		for _, b := range o.Backends {
			if !validBackend(b) {
				return fmt.Errorf("object %q: unknown backend %q", o.Name, b)
			}
		}
		for _, k := range o.Timeline {
			if k.Frame == 0 {
				return fmt.Errorf("object %q: keyframes start at frame 1", o.Name)
			}
			for _, f := range k.Faults {
				if !validBackend(f) {
					return fmt.Errorf("object %q frame %d: unknown fault backend %q", o.Name, k.Frame, f)
				}
			}
		}
	}
	return nil
}

func validBackend(name string) bool {
	switch name {
	case BackendPoints, BackendGrab, BackendHandGrab:
		return true
	}
	return false
}
