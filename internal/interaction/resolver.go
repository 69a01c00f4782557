package interaction

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/grabsend/internal/grab"
)

// Well-known names of the tracked hand transforms in the host scene.
const (
	LeftAnchorName  = "LeftHandAnchor"
	RightAnchorName = "RightHandAnchor"
)

// Interactor is anything currently selecting an object. Its String form is
// the display text used as a last resort for handedness.
type Interactor interface {
	fmt.Stringer
}

// HandednessReporter is implemented by interactors that know which hand
// drives them. The value is free text such as "Left" or "HandRight".
type HandednessReporter interface {
	Handedness() string
}

// InteractorSource lists the interactors selecting an object, in the
// backend's own enumeration order.
type InteractorSource interface {
	SelectingInteractors() ([]Interactor, error)
}

// Transform is a scene node with a world position.
type Transform interface {
	Position() r3.Vec
}

// AnchorLookup finds scene transforms by name.
type AnchorLookup interface {
	FindTransform(name string) (Transform, bool)
}

// Anchors are the fallback hand positions used when no interactor reports
// handedness.
type Anchors struct {
	Left  Transform
	Right Transform
}

// LookupAnchors resolves both anchors by name. Missing anchors are left nil;
// a nil lookup yields empty anchors.
func LookupAnchors(lookup AnchorLookup, leftName, rightName string) *Anchors {
	a := &Anchors{}
	if lookup == nil {
		return a
	}
	if t, ok := lookup.FindTransform(leftName); ok {
		a.Left = t
	}
	if t, ok := lookup.FindTransform(rightName); ok {
		a.Right = t
	}
	return a
}

// Complete reports whether both anchors are known.
func (a *Anchors) Complete() bool {
	return a != nil && a.Left != nil && a.Right != nil
}

// Basis records which step of the cascade produced a hand.
type Basis int

const (
	BasisDefault Basis = iota
	BasisHandedness
	BasisDisplayName
	BasisProximity
)

func (b Basis) String() string {
	switch b {
	case BasisHandedness:
		return "handedness"
	case BasisDisplayName:
		return "display-name"
	case BasisProximity:
		return "proximity"
	default:
		return "default"
	}
}

// Resolver decides which hand performed an interaction. It is a total
// function: every input yields a hand.
type Resolver struct{}

// Resolve returns the hand for the current interaction on an object at
// objectPos.
func (r Resolver) Resolve(src InteractorSource, objectPos r3.Vec, anchors *Anchors) grab.Hand {
	hand, _ := r.ResolveWithBasis(src, objectPos, anchors)
	return hand
}

// ResolveWithBasis is Resolve that also reports how the hand was chosen.
//
// Interactors are tried in enumeration order. For each one its handedness
// attribute is checked, then its display text, before moving to the next;
// the first match wins and "left" is checked before "right". With no match
// the nearer fallback anchor decides, then Left.
func (Resolver) ResolveWithBasis(src InteractorSource, objectPos r3.Vec, anchors *Anchors) (grab.Hand, Basis) {
	for _, it := range selecting(src) {
		if hr, ok := it.(HandednessReporter); ok {
			if hand, ok := handFromText(safeText(hr.Handedness)); ok {
				return hand, BasisHandedness
			}
		}
		if hand, ok := handFromText(safeText(it.String)); ok {
			return hand, BasisDisplayName
		}
	}

	if hand, ok := nearestAnchor(objectPos, anchors); ok {
		return hand, BasisProximity
	}

	return grab.Left, BasisDefault
}

func handFromText(s string) (grab.Hand, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "left"):
		return grab.Left, true
	case strings.Contains(s, "right"):
		return grab.Right, true
	}
	return grab.Left, false
}

// nearestAnchor picks the strictly nearer anchor; equal distances go to
// Left.
func nearestAnchor(objectPos r3.Vec, anchors *Anchors) (hand grab.Hand, ok bool) {
	if !anchors.Complete() {
		return grab.Left, false
	}
	defer func() {
		if r := recover(); r != nil {
			hand, ok = grab.Left, false
		}
	}()
	dl := r3.Norm(r3.Sub(anchors.Left.Position(), objectPos))
	dr := r3.Norm(r3.Sub(anchors.Right.Position(), objectPos))
	if dr < dl {
		return grab.Right, true
	}
	return grab.Left, true
}

// selecting lists the interactors of src, treating errors and panics as an
// empty set.
func selecting(src InteractorSource) (out []Interactor) {
	if src == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	list, err := src.SelectingInteractors()
	if err != nil {
		return nil
	}
	out = make([]Interactor, 0, len(list))
	for _, it := range list {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

func safeText(f func() string) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()
	return f()
}
