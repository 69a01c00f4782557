package serialbridge

import (
	"fmt"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/grabsend/internal/httputil"
)

// Sink is anything the encoders can send lines to and that reports delivery
// stats: the hardware Channel or a DryRun.
type Sink interface {
	Send(line string) SendResult
	Stats() Stats
}

// AttachAdminRoutes mounts serial debugging endpoints under /debug/. These
// routes are meant for localhost or tailnet access only.
func AttachAdminRoutes(mux *http.ServeMux, sink Sink) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Serial", func() any {
		s := sink.Stats()
		return fmt.Sprintf("%s open=%t sent=%d dropped=%d skipped=%d", s.Path, s.Open, s.Sent, s.Dropped(), s.Skipped)
	})

	debug.Handle("serial", "serial channel status and delivery counters", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, sink.Stats())
	}))

	// API endpoint to push a raw line to the device, e.g. to exercise an
	// actuator without a headset
	debug.HandleSilent("send-line-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}
		line := strings.TrimSpace(r.FormValue("line"))
		if line == "" {
			httputil.WriteJSONError(w, http.StatusBadRequest, "missing line")
			return
		}
		result := sink.Send(line)
		if result != SendOK {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "line not delivered: %s", result)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"line": line, "result": result.String()})
	}))
}
