// Package interaction reduces the grab-capability backends attached to an
// object to the two questions the bridge needs answered: is the object
// grabbed, and by which hand.
//
// Backends are external and versioned independently, so each variant is
// wrapped in a small adapter implementing Source. A backend that is missing,
// returns an error or panics is treated as having no opinion.
package interaction

import (
	"fmt"
	"strings"
)

// SelectState is the canonical name a state backend reports while an
// interactor is holding the object.
const SelectState = "Select"

// Source is one grab-capability backend reduced to a single query.
type Source interface {
	// Query reports whether the backend considers the object grabbed. ok is
	// false when the backend has no decisive answer, and a lower-priority
	// source is consulted instead.
	Query() (grabbed bool, ok bool)
}

// PointCounter is implemented by backends that count the points currently
// selecting the object.
type PointCounter interface {
	SelectingPointsCount() (int, error)
}

// StateReporter is implemented by backends that expose an interactable state
// such as Normal, Hover or Select.
type StateReporter interface {
	State() (fmt.Stringer, error)
}

// PointCountSource adapts a PointCounter. The object is grabbed while at
// least one point is selecting it.
type PointCountSource struct {
	Backend PointCounter
}

func (s PointCountSource) Query() (bool, bool) {
	if s.Backend == nil {
		return false, false
	}
	n, err := s.Backend.SelectingPointsCount()
	if err != nil {
		return false, false
	}
	return n > 0, true
}

// SelectStateSource adapts a StateReporter. It only ever answers "grabbed":
// a state named Select, compared case-insensitively, is decisive, while any
// other state leaves the decision to the next source.
type SelectStateSource struct {
	Backend StateReporter
}

func (s SelectStateSource) Query() (bool, bool) {
	if s.Backend == nil {
		return false, false
	}
	state, err := s.Backend.State()
	if err != nil || state == nil {
		return false, false
	}
	if !strings.EqualFold(strings.TrimSpace(state.String()), SelectState) {
		return false, false
	}
	return true, true
}

// SourceFunc lets a plain function act as a Source.
type SourceFunc func() (bool, bool)

func (f SourceFunc) Query() (bool, bool) { return f() }
