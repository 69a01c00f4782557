// Package encoder turns the polled grab state of each monitored object into
// edge-triggered grab/release events and hands them to the serial sink.
package encoder

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/grabsend/internal/grab"
	"github.com/banshee-data/grabsend/internal/interaction"
	"github.com/banshee-data/grabsend/internal/monitoring"
	"github.com/banshee-data/grabsend/internal/serialbridge"
)

// RigidBody is the physics body of a monitored object. Mass is in grams.
type RigidBody interface {
	Mass() float64
	Position() r3.Vec
}

// Sender accepts formatted wire lines. *serialbridge.Channel and
// *serialbridge.DryRun implement it.
type Sender interface {
	Send(line string) serialbridge.SendResult
}

// State is the encoder's view of an object.
type State int

const (
	Idle State = iota
	Grabbed
)

func (s State) String() string {
	if s == Grabbed {
		return "grabbed"
	}
	return "idle"
}

// MonitoredObject describes one physical object being tracked. The scene
// owns every handle; the encoder only borrows them while polling.
type MonitoredObject struct {
	Name string
	Body RigidBody

	// Sources are the object's grab-capability backends in priority order.
	Sources []interaction.Source

	// Interactors lists who is selecting the object, for handedness.
	Interactors interaction.InteractorSource

	// MassOverride replaces the body's mass when > 0.
	MassOverride float64

	// Anchors are explicit fallback hand positions. When nil they are looked
	// up by name on Init.
	Anchors *interaction.Anchors
}

// SourcesFor builds the priority-ordered source list from whichever
// backends an object carries: point count first, then the grab state and
// the hand-grab state. Absent backends are skipped.
func SourcesFor(points interaction.PointCounter, grabState, handGrabState interaction.StateReporter) []interaction.Source {
	var sources []interaction.Source
	if points != nil {
		sources = append(sources, interaction.PointCountSource{Backend: points})
	}
	if grabState != nil {
		sources = append(sources, interaction.SelectStateSource{Backend: grabState})
	}
	if handGrabState != nil {
		sources = append(sources, interaction.SelectStateSource{Backend: handGrabState})
	}
	return sources
}

// Options are shared by every encoder in a scene.
type Options struct {
	AnchorLookup    interaction.AnchorLookup
	LeftAnchorName  string
	RightAnchorName string

	// Logf receives the per-transition diagnostic line. Defaults to
	// monitoring.Logf.
	Logf func(format string, v ...interface{})
}

// Encoder is the Idle/Grabbed state machine for one object.
type Encoder struct {
	id       uuid.UUID
	obj      MonitoredObject
	sender   Sender
	opts     Options
	probe    *interaction.Probe
	resolver interaction.Resolver

	mu          sync.Mutex
	initialised bool
	stopped     bool
	anchors     *interaction.Anchors
	mass        float64
	state       State
	events      uint64
	dropped     uint64
	lastEvent   *grab.Event
	lastResult  serialbridge.SendResult
	lastBasis   interaction.Basis
}

// New returns an encoder in the Idle state. sender may be nil, in which case
// transitions are detected and logged but not transmitted.
func New(obj MonitoredObject, sender Sender, opts Options) *Encoder {
	if opts.LeftAnchorName == "" {
		opts.LeftAnchorName = interaction.LeftAnchorName
	}
	if opts.RightAnchorName == "" {
		opts.RightAnchorName = interaction.RightAnchorName
	}
	return &Encoder{
		id:     uuid.New(),
		obj:    obj,
		sender: sender,
		opts:   opts,
		probe:  interaction.NewProbe(obj.Sources...),
	}
}

func (e *Encoder) ID() uuid.UUID { return e.id }
func (e *Encoder) Name() string  { return e.obj.Name }

// Init caches the mass and resolves the fallback anchors. It runs once;
// Tick calls it if the caller did not.
func (e *Encoder) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()
}

func (e *Encoder) initLocked() {
	if e.initialised {
		return
	}
	e.initialised = true
	e.mass = resolveMass(e.obj.MassOverride, e.obj.Body)

	e.anchors = e.obj.Anchors
	if e.anchors == nil {
		e.anchors = interaction.LookupAnchors(e.opts.AnchorLookup, e.opts.LeftAnchorName, e.opts.RightAnchorName)
	}

	e.logf("[GrabSend] %s (%s) monitoring: mass=%.2fg sources=%d anchors=%t",
		e.obj.Name, e.shortID(), e.mass, e.probe.Len(), e.anchors.Complete())
}

// Tick polls the object once. On a change of grabbed state it emits and
// returns the event; otherwise it returns false and has no side effects.
func (e *Encoder) Tick() (grab.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return grab.Event{}, false
	}
	e.initLocked()

	grabbed := e.probe.IsGrabbed()
	if grabbed == (e.state == Grabbed) {
		return grab.Event{}, false
	}

	ev := grab.Event{
		Hand:      e.resolveHand(),
		Action:    grab.ActionFor(grabbed),
		MassGrams: e.mass,
	}
	if grabbed {
		e.state = Grabbed
	} else {
		e.state = Idle
	}
	e.emit(ev)
	return ev, true
}

// Shutdown stops the encoder; later ticks do nothing.
func (e *Encoder) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// State returns the last-known grab state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mass returns the cached mass in grams. It is zero until Init.
func (e *Encoder) Mass() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mass
}

func (e *Encoder) emit(ev grab.Event) {
	msg := ev.Format()
	result := serialbridge.SendSkipped
	if e.sender != nil {
		result = e.sender.Send(msg)
	}

	e.events++
	if result.Dropped() {
		e.dropped++
	}
	e.lastEvent = &ev
	e.lastResult = result

	e.logf("[GrabSend] %s (%s) -> %s (%s)", e.obj.Name, e.shortID(), msg, result)
}

func (e *Encoder) resolveHand() grab.Hand {
	pos, ok := bodyPosition(e.obj.Body)
	anchors := e.anchors
	if !ok {
		anchors = nil
	}
	hand, basis := e.resolver.ResolveWithBasis(e.obj.Interactors, pos, anchors)
	e.lastBasis = basis
	return hand
}

func (e *Encoder) logf(format string, v ...interface{}) {
	if e.opts.Logf != nil {
		e.opts.Logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

func (e *Encoder) shortID() string {
	return e.id.String()[:8]
}

// resolveMass prefers a positive override, then the body's mass clamped to
// be non-negative.
func resolveMass(override float64, body RigidBody) (mass float64) {
	if override > 0 {
		return override
	}
	if body == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			mass = 0
		}
	}()
	m := body.Mass()
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return math.Max(0, m)
}

func bodyPosition(body RigidBody) (pos r3.Vec, ok bool) {
	if body == nil {
		return r3.Vec{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			pos, ok = r3.Vec{}, false
		}
	}()
	return body.Position(), true
}
