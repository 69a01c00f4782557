package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointCountSource(t *testing.T) {
	tests := []struct {
		name        string
		backend     PointCounter
		wantGrabbed bool
		wantOK      bool
	}{
		{"absent backend", nil, false, false},
		{"no points", &fakeCounter{n: 0}, false, true},
		{"one point", &fakeCounter{n: 1}, true, true},
		{"two points", &fakeCounter{n: 2}, true, true},
		{"query error", &fakeCounter{n: 3, err: errBackend}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grabbed, ok := PointCountSource{Backend: tt.backend}.Query()
			assert.Equal(t, tt.wantGrabbed, grabbed)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSelectStateSource(t *testing.T) {
	tests := []struct {
		name        string
		backend     StateReporter
		wantGrabbed bool
		wantOK      bool
	}{
		{"absent backend", nil, false, false},
		{"select", &fakeState{state: stateName("Select")}, true, true},
		{"select lower case", &fakeState{state: stateName("select")}, true, true},
		{"select upper case", &fakeState{state: stateName("SELECT")}, true, true},
		{"hover is not decisive", &fakeState{state: stateName("Hover")}, false, false},
		{"idle is not decisive", &fakeState{state: stateName("Idle")}, false, false},
		{"nil state", &fakeState{}, false, false},
		{"query error", &fakeState{state: stateName("Select"), err: errBackend}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grabbed, ok := SelectStateSource{Backend: tt.backend}.Query()
			assert.Equal(t, tt.wantGrabbed, grabbed)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestProbe_IsGrabbed(t *testing.T) {
	tests := []struct {
		name    string
		sources []Source
		want    bool
	}{
		{"no sources", nil, false},
		{"only nil sources", []Source{nil, nil}, false},
		{
			"point count overrides idle state",
			[]Source{
				PointCountSource{Backend: &fakeCounter{n: 2}},
				SelectStateSource{Backend: &fakeState{state: stateName("Idle")}},
			},
			true,
		},
		{
			"zero points overrides select state",
			[]Source{
				PointCountSource{Backend: &fakeCounter{n: 0}},
				SelectStateSource{Backend: &fakeState{state: stateName("Select")}},
			},
			false,
		},
		{
			"failed point count falls through to select state",
			[]Source{
				PointCountSource{Backend: &fakeCounter{err: errBackend}},
				SelectStateSource{Backend: &fakeState{state: stateName("Select")}},
			},
			true,
		},
		{
			"hover on grab state leaves hand grab state to decide",
			[]Source{
				SelectStateSource{Backend: &fakeState{state: stateName("Hover")}},
				SelectStateSource{Backend: &fakeState{state: stateName("Select")}},
			},
			true,
		},
		{
			"second state backend answers when first is absent",
			[]Source{
				PointCountSource{},
				SelectStateSource{},
				SelectStateSource{Backend: &fakeState{state: stateName("Select")}},
			},
			true,
		},
		{
			"failing backends are skipped",
			[]Source{
				PointCountSource{Backend: &fakeCounter{err: errBackend}},
				SelectStateSource{Backend: &fakeState{panic: true}},
				SelectStateSource{Backend: &fakeState{state: stateName("select")}},
			},
			true,
		},
		{
			"all failing",
			[]Source{
				PointCountSource{Backend: &fakeCounter{panic: true}},
				SelectStateSource{Backend: &fakeState{err: errBackend}},
				SourceFunc(func() (bool, bool) { return true, false }),
			},
			false,
		},
		{
			"nobody grabbing",
			[]Source{
				PointCountSource{Backend: &fakeCounter{n: 0}},
				SelectStateSource{Backend: &fakeState{state: stateName("Hover")}},
				SelectStateSource{Backend: &fakeState{state: stateName("Normal")}},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProbe(tt.sources...)
			assert.Equal(t, tt.want, p.IsGrabbed())
			// deterministic across repeated polls
			assert.Equal(t, tt.want, p.IsGrabbed())
		})
	}
}

func TestProbe_CountsPanics(t *testing.T) {
	p := NewProbe(
		PointCountSource{Backend: &fakeCounter{panic: true}},
		SelectStateSource{Backend: &fakeState{panic: true}},
	)

	assert.NotPanics(t, func() {
		assert.False(t, p.IsGrabbed())
		assert.False(t, p.IsGrabbed())
	})
	assert.Equal(t, uint64(4), p.Faults())
	assert.Equal(t, 2, p.Len())
}

func TestProbe_TypedNilBackend(t *testing.T) {
	var counter *fakeCounter
	p := NewProbe(PointCountSource{Backend: counter})
	assert.False(t, p.IsGrabbed())
	assert.Equal(t, uint64(1), p.Faults())
}
