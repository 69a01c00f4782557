package encoder

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/grabsend/internal/httputil"
)

// Snapshot is a point-in-time view of an encoder for debugging.
type Snapshot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	State      string  `json:"state"`
	MassGrams  float64 `json:"mass_grams"`
	Events     uint64  `json:"events"`
	Dropped    uint64  `json:"dropped"`
	Faults     uint64  `json:"capability_faults"`
	LastEvent  string  `json:"last_event,omitempty"`
	LastResult string  `json:"last_result,omitempty"`
	HandBasis  string  `json:"hand_basis,omitempty"`
	Stopped    bool    `json:"stopped"`
}

// Snapshot returns the encoder's current counters and state.
func (e *Encoder) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		ID:        e.id.String(),
		Name:      e.obj.Name,
		State:     e.state.String(),
		MassGrams: e.mass,
		Events:    e.events,
		Dropped:   e.dropped,
		Faults:    e.probe.Faults(),
		Stopped:   e.stopped,
	}
	if e.lastEvent != nil {
		s.LastEvent = e.lastEvent.Format()
		s.LastResult = e.lastResult.String()
		s.HandBasis = e.lastBasis.String()
	}
	return s
}

// AttachAdminRoutes mounts /debug/objects, listing every encoder.
func (d *Driver) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Frames", func() any {
		return fmt.Sprintf("%d (%d objects)", d.Frames(), len(d.Encoders()))
	})

	debug.Handle("objects", "monitored objects and their grab state", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoders := d.Encoders()
		snaps := make([]Snapshot, 0, len(encoders))
		for _, e := range encoders {
			snaps = append(snaps, e.Snapshot())
		}
		httputil.WriteJSONOK(w, snaps)
	}))
}
