package realtime

import (
	"sort"

	"github.com/comalice/chartx"
)

// EventWithMeta adds routing and sequencing metadata for deterministic ordering.
type EventWithMeta struct {
	Target      string
	Event       chartx.Event
	SequenceNum uint64
	Priority    int
}

// sortEvents orders a tick batch: higher priority first, then submission order.
func sortEvents(events []EventWithMeta) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Priority != events[j].Priority {
			return events[i].Priority > events[j].Priority
		}
		return events[i].SequenceNum < events[j].SequenceNum
	})
}
