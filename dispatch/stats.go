package dispatch

import (
	"sync/atomic"

	"github.com/wippyai/vmcall/capability"
)

// statSlots bounds the identifiers tracked individually; the ABI tops out at 111.
const statSlots = 128

type counters struct {
	calls    [statSlots]atomic.Uint64
	total    atomic.Uint64
	unknown  atomic.Uint64
	rejected atomic.Uint64
}

func (c *counters) call(id capability.ID) {
	c.total.Add(1)
	if id >= 0 && id < statSlots {
		c.calls[id].Add(1)
	}
}

func (c *counters) unknownCall()  { c.unknown.Add(1) }
func (c *counters) rejectedCall() { c.rejected.Add(1) }

// Stats is a snapshot of dispatcher activity.
type Stats struct {
	Calls    map[capability.ID]uint64
	Total    uint64
	Unknown  uint64
	Rejected uint64
}

// Stats returns the counters accumulated since the dispatcher was created.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Calls:    make(map[capability.ID]uint64),
		Total:    d.stats.total.Load(),
		Unknown:  d.stats.unknown.Load(),
		Rejected: d.stats.rejected.Load(),
	}
	for i := range d.stats.calls {
		if n := d.stats.calls[i].Load(); n > 0 {
			s.Calls[capability.ID(i)] = n
		}
	}
	return s
}
