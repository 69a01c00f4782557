package serialbridge

import (
	"strings"
	"sync"

	"github.com/banshee-data/grabsend/internal/monitoring"
)

// DryRun stands in for the channel when no hardware should be touched
// (--dry-run). Every line is logged and counted as sent.
type DryRun struct {
	mu    sync.Mutex
	stats Stats
	lines []string
}

func NewDryRun() *DryRun {
	return &DryRun{stats: Stats{Path: "dry-run", Open: true}}
}

func (d *DryRun) Send(line string) SendResult {
	line = strings.TrimSuffix(line, "\n")

	d.mu.Lock()
	d.stats.Sent++
	d.stats.LastLine = line
	d.lines = append(d.lines, line)
	d.mu.Unlock()

	monitoring.Logf("[Serial] dry-run: %s", line)
	return SendOK
}

// Lines returns every line sent so far.
func (d *DryRun) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

func (d *DryRun) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *DryRun) Close() error { return nil }
