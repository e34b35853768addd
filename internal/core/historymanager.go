package core

import (
	"sort"
	"sync"

	"github.com/comalice/chartx/internal/model"
)

// HistoryManager keeps the last exited set of every history pseudostate.
// Shallow history records the active children of the parent; deep history
// records its active atomic descendants. A record is created on the first exit
// and overwritten on each later one.
// Thread-safe for concurrent access.
type HistoryManager struct {
	mu      sync.RWMutex
	records map[model.NodeID][]model.NodeID
}

// NewHistoryManager creates a new HistoryManager.
func NewHistoryManager() *HistoryManager {
	return &HistoryManager{records: make(map[model.NodeID][]model.NodeID)}
}

// Record stores the exited set for a history pseudostate.
func (h *HistoryManager) Record(history model.NodeID, states []model.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[history] = append([]model.NodeID(nil), states...)
}

// Recorded returns the stored set for a history pseudostate, if any.
func (h *HistoryManager) Recorded(history model.NodeID) ([]model.NodeID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	states, ok := h.records[history]
	if !ok {
		return nil, false
	}
	return append([]model.NodeID(nil), states...), true
}

// Clear removes the record of one history pseudostate.
func (h *HistoryManager) Clear(history model.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, history)
}

// Reset removes every record.
func (h *HistoryManager) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = make(map[model.NodeID][]model.NodeID)
}

// Export returns the records keyed by history id, with state ids.
func (h *HistoryManager) Export(doc *model.Document) map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return nil
	}
	out := make(map[string][]string, len(h.records))
	for hist, states := range h.records {
		out[doc.Node(hist).ID] = doc.IDs(states)
	}
	return out
}

// Import replaces the records from state ids. Unknown ids are reported.
func (h *HistoryManager) Import(doc *model.Document, records map[string][]string) error {
	next := make(map[model.NodeID][]model.NodeID, len(records))
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, id := range keys {
		hist, ok := doc.Lookup(id)
		if !ok || doc.Node(hist).Kind != model.History {
			return cloneError(ErrInvalidSnapshot, "unknown history state "+id, nil, map[string]any{"state": id})
		}
		for _, sid := range records[id] {
			n, ok := doc.Lookup(sid)
			if !ok {
				return cloneError(ErrInvalidSnapshot, "unknown state "+sid+" in history "+id, nil, map[string]any{"state": sid})
			}
			next[hist] = append(next[hist], n)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = next
	return nil
}
