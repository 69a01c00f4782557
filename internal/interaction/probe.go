package interaction

import (
	"sync/atomic"

	"github.com/banshee-data/grabsend/internal/monitoring"
)

// Probe reduces an ordered list of sources to one grabbed flag. Earlier
// sources take priority: the first source with a decisive answer wins,
// whether grabbed or not, and sources that cannot answer are skipped. A
// readable point count of zero therefore means released even when a state
// backend says Select.
type Probe struct {
	sources []Source
	faults  atomic.Uint64
	logged  atomic.Bool
}

// NewProbe returns a probe over sources in priority order. Nil entries are
// allowed and ignored.
func NewProbe(sources ...Source) *Probe {
	return &Probe{sources: sources}
}

// IsGrabbed never blocks and never fails. With no usable source it reports
// false.
func (p *Probe) IsGrabbed() bool {
	for _, src := range p.sources {
		if src == nil {
			continue
		}
		if grabbed, ok := p.query(src); ok {
			return grabbed
		}
	}
	return false
}

// Len returns the number of configured sources, including nil ones.
func (p *Probe) Len() int { return len(p.sources) }

// Faults returns how many backend queries panicked.
func (p *Probe) Faults() uint64 { return p.faults.Load() }

func (p *Probe) query(src Source) (grabbed, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.faults.Add(1)
			// only the first fault is logged, the probe runs every frame
			if p.logged.CompareAndSwap(false, true) {
				monitoring.Warnf("grab capability query failed: %v", r)
			}
			grabbed, ok = false, false
		}
	}()
	return src.Query()
}
