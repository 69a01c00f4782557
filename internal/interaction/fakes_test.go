package interaction

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var errBackend = errors.New("backend unavailable")

type fakeCounter struct {
	n     int
	err   error
	panic bool
}

func (f *fakeCounter) SelectingPointsCount() (int, error) {
	if f.panic {
		panic("accessor missing")
	}
	return f.n, f.err
}

type stateName string

func (s stateName) String() string { return string(s) }

type fakeState struct {
	state fmt.Stringer
	err   error
	panic bool
}

func (f *fakeState) State() (fmt.Stringer, error) {
	if f.panic {
		panic("unexpected state type")
	}
	return f.state, f.err
}

type namedInteractor string

func (n namedInteractor) String() string { return string(n) }

type handedInteractor struct {
	name       string
	handedness string
}

func (h handedInteractor) String() string     { return h.name }
func (h handedInteractor) Handedness() string { return h.handedness }

type fakeInteractors struct {
	list  []Interactor
	err   error
	panic bool
}

func (f fakeInteractors) SelectingInteractors() ([]Interactor, error) {
	if f.panic {
		panic("enumeration failed")
	}
	return f.list, f.err
}

type point r3.Vec

func (p point) Position() r3.Vec { return r3.Vec(p) }

type fakeLookup map[string]Transform

func (f fakeLookup) FindTransform(name string) (Transform, bool) {
	t, ok := f[name]
	return t, ok
}
