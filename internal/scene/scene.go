package scene

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/grabsend/internal/encoder"
	"github.com/banshee-data/grabsend/internal/interaction"
)

// ErrBackendFault is returned by a backend the script has marked faulty.
var ErrBackendFault = errors.New("scripted backend fault")

// Scene replays a Script. It is driven from the frame loop and is not safe
// for concurrent use.
type Scene struct {
	script  *Script
	objects []*Object
	anchors map[string]*node
	frame   uint64
}

type node struct{ pos r3.Vec }

func (n *node) Position() r3.Vec { return n.pos }

// New builds the initial scene state, before frame 1.
func New(s *Script) *Scene {
	sc := &Scene{
		script:  s,
		anchors: make(map[string]*node),
	}
	for name, v := range s.Anchors {
		sc.anchors[name] = &node{pos: v.r3()}
	}
	for i := range s.Objects {
		sc.objects = append(sc.objects, newObject(&s.Objects[i]))
	}
	return sc
}

// Advance applies every keyframe up to and including frame.
func (s *Scene) Advance(frame uint64) {
	s.frame = frame
	for _, o := range s.objects {
		o.advance(frame)
	}
}

// Frame returns the last frame applied.
func (s *Scene) Frame() uint64 { return s.frame }

// Done reports whether the script has run its full length.
func (s *Scene) Done() bool {
	return s.script.Frames > 0 && s.frame >= s.script.Frames
}

// Objects returns the scripted objects in script order.
func (s *Scene) Objects() []*Object { return s.objects }

// FindTransform implements interaction.AnchorLookup.
func (s *Scene) FindTransform(name string) (interaction.Transform, bool) {
	n, ok := s.anchors[name]
	if !ok {
		return nil, false
	}
	return n, true
}

// Object is a scripted physics body carrying zero or more backends.
type Object struct {
	script *ObjectScript
	next   int

	pos         r3.Vec
	interactors []interaction.Interactor
	faults      map[string]bool

	points   *pointsBackend
	grab     *stateBackend
	handGrab *stateBackend
}

func newObject(s *ObjectScript) *Object {
	o := &Object{script: s, pos: s.Position.r3(), faults: make(map[string]bool)}
	for _, b := range s.Backends {
		switch b {
		case BackendPoints:
			o.points = &pointsBackend{obj: o}
		case BackendGrab:
			o.grab = &stateBackend{obj: o, backend: BackendGrab, state: "Normal"}
		case BackendHandGrab:
			o.handGrab = &stateBackend{obj: o, backend: BackendHandGrab, state: "Normal"}
		}
	}
	return o
}

func (o *Object) advance(frame uint64) {
	for o.next < len(o.script.Timeline) && o.script.Timeline[o.next].Frame <= frame {
		o.apply(o.script.Timeline[o.next])
		o.next++
	}
}

func (o *Object) apply(k Keyframe) {
	if k.Points != nil && o.points != nil {
		o.points.count = *k.Points
	}
	if k.GrabState != nil && o.grab != nil {
		o.grab.state = *k.GrabState
	}
	if k.HandGrabState != nil && o.handGrab != nil {
		o.handGrab.state = *k.HandGrabState
	}
	if k.Interactors != nil {
		o.interactors = o.interactors[:0:0]
		for _, is := range k.Interactors {
			if is.Handedness == "" {
				o.interactors = append(o.interactors, namedInteractor(is.Name))
			} else {
				o.interactors = append(o.interactors, handedInteractor{is})
			}
		}
	}
	if k.Position != nil {
		o.pos = k.Position.r3()
	}
	if k.Faults != nil {
		o.faults = make(map[string]bool)
		for _, f := range k.Faults {
			o.faults[f] = true
		}
	}
}

func (o *Object) Name() string     { return o.script.Name }
func (o *Object) Mass() float64    { return o.script.Mass }
func (o *Object) Position() r3.Vec { return o.pos }

// SelectingInteractors implements interaction.InteractorSource.
func (o *Object) SelectingInteractors() ([]interaction.Interactor, error) {
	return o.interactors, nil
}

// PointCounter returns the point-count backend, or nil if the object has
// none.
func (o *Object) PointCounter() interaction.PointCounter {
	if o.points == nil {
		return nil
	}
	return o.points
}

// GrabState returns the grab-interactable state backend, or nil.
func (o *Object) GrabState() interaction.StateReporter {
	if o.grab == nil {
		return nil
	}
	return o.grab
}

// HandGrabState returns the hand-grab-interactable state backend, or nil.
func (o *Object) HandGrabState() interaction.StateReporter {
	if o.handGrab == nil {
		return nil
	}
	return o.handGrab
}

// Monitored describes the object for an encoder. massOverride applies when
// the script does not set its own.
func (o *Object) Monitored(massOverride float64) encoder.MonitoredObject {
	if o.script.MassOverride > 0 {
		massOverride = o.script.MassOverride
	}
	return encoder.MonitoredObject{
		Name:         o.Name(),
		Body:         o,
		Sources:      encoder.SourcesFor(o.PointCounter(), o.GrabState(), o.HandGrabState()),
		Interactors:  o,
		MassOverride: massOverride,
	}
}

type pointsBackend struct {
	obj   *Object
	count int
}

func (p *pointsBackend) SelectingPointsCount() (int, error) {
	if p.obj.faults[BackendPoints] {
		return 0, fmt.Errorf("%s: %w", BackendPoints, ErrBackendFault)
	}
	return p.count, nil
}

type stateName string

func (s stateName) String() string { return string(s) }

type stateBackend struct {
	obj     *Object
	backend string
	state   string
}

func (s *stateBackend) State() (fmt.Stringer, error) {
	if s.obj.faults[s.backend] {
		return nil, fmt.Errorf("%s: %w", s.backend, ErrBackendFault)
	}
	return stateName(s.state), nil
}

type namedInteractor string

func (n namedInteractor) String() string { return string(n) }

type handedInteractor struct{ InteractorScript }

func (h handedInteractor) String() string     { return h.Name }
func (h handedInteractor) Handedness() string { return h.InteractorScript.Handedness }
