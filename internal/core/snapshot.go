package core

import (
	"context"
	"fmt"
	"time"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

// Snapshot is the serializable runtime state of a machine.
type Snapshot struct {
	SessionID     string              `json:"sessionID" yaml:"sessionID"`
	Document      string              `json:"document,omitempty" yaml:"document,omitempty"`
	Version       string              `json:"version,omitempty" yaml:"version,omitempty"`
	Configuration []string            `json:"configuration" yaml:"configuration"`
	History       map[string][]string `json:"history,omitempty" yaml:"history,omitempty"`
	Invocations   []InvocationRecord  `json:"invocations,omitempty" yaml:"invocations,omitempty"`
	Datamodel     map[string]any      `json:"datamodel,omitempty" yaml:"datamodel,omitempty"`
	Final         bool                `json:"final,omitempty" yaml:"final,omitempty"`
	Timestamp     time.Time           `json:"timestamp" yaml:"timestamp"`
}

// InvocationRecord identifies a live invocation by its id and declaration.
type InvocationRecord struct {
	ID    string `json:"id" yaml:"id"`
	State string `json:"state" yaml:"state"`
	Index int    `json:"index" yaml:"index"`
}

// Checkpoint captures the current runtime state.
func (m *Machine) Checkpoint() Snapshot {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     m.sessionID,
		Document:      m.name,
		Version:       m.doc.Version,
		Configuration: m.doc.IDs(m.config.List()),
		History:       m.history.Export(m.doc),
		Final:         m.lifecycle() == lifecycleFinal,
		Timestamp:     time.Now().UTC(),
	}
	for _, inv := range m.invokes.all() {
		snap.Invocations = append(snap.Invocations, InvocationRecord{
			ID:    inv.id,
			State: m.doc.Node(inv.state).ID,
			Index: inv.index,
		})
	}
	if m.data != nil {
		snap.Datamodel = m.data.Snapshot()
	}
	return snap
}

// Restore stages a snapshot; the next Start resumes from it instead of taking
// the initial transition. A machine that is not running is reset first.
func (m *Machine) Restore(snap Snapshot) error {
	m.stepMu.Lock()
	defer m.stepMu.Unlock()

	if m.lifecycle() == lifecycleRunning {
		return cloneError(ErrRestoreWhileRunning, "", nil, map[string]any{"session": m.sessionID})
	}
	if err := m.validateSnapshot(snap); err != nil {
		return err
	}
	if m.lifecycle() != lifecycleIdle {
		m.resetLocked(context.Background())
	}
	m.restored = &snap
	return nil
}

func (m *Machine) validateSnapshot(snap Snapshot) error {
	if snap.Version != "" && m.doc.Version != "" && snap.Version != m.doc.Version {
		return cloneError(ErrInvalidSnapshot, fmt.Sprintf("snapshot version %s does not match document version %s", snap.Version, m.doc.Version), nil,
			map[string]any{"snapshot": snap.Version, "document": m.doc.Version})
	}
	active := make([]model.NodeID, 0, len(snap.Configuration))
	for _, id := range snap.Configuration {
		n, ok := m.doc.Lookup(id)
		if !ok || !m.doc.Node(n).IsState() {
			return cloneError(ErrInvalidSnapshot, "unknown state "+id, nil, map[string]any{"state": id})
		}
		active = append(active, n)
	}
	if len(active) == 0 && !snap.Final {
		return cloneError(ErrInvalidSnapshot, "snapshot has no active states", nil, nil)
	}
	if ok, diag := IsLegal(m.doc, active); !ok {
		return cloneError(ErrInvalidSnapshot, diag, nil, map[string]any{"configuration": snap.Configuration})
	}
	if err := NewHistoryManager().Import(m.doc, snap.History); err != nil {
		return err
	}
	for _, rec := range snap.Invocations {
		n, ok := m.doc.Lookup(rec.State)
		if !ok || rec.Index < 0 || rec.Index >= len(m.doc.Node(n).Invokes) {
			return cloneError(ErrInvalidSnapshot, fmt.Sprintf("unknown invocation %s in state %s", rec.ID, rec.State), nil,
				map[string]any{"invokeid": rec.ID})
		}
	}
	return nil
}

// applySnapshot rebuilds the runtime from a validated snapshot. Invocations
// are relaunched with their original ids at the end of the first macrostep.
func (m *Machine) applySnapshot(snap *Snapshot) error {
	if err := m.history.Import(m.doc, snap.History); err != nil {
		return err
	}
	m.config.Clear()
	for _, id := range snap.Configuration {
		m.config.Add(m.doc.MustLookup(id))
	}
	m.data.Restore(snap.Datamodel)
	m.data.SetLocal(primitives.VarSessionID, m.sessionID)
	if snap.Final {
		m.setLifecycle(lifecycleFinal)
		m.finished = true
		m.closeDone()
		return nil
	}
	for _, rec := range snap.Invocations {
		n := m.doc.MustLookup(rec.State)
		if !m.config.Has(n) {
			continue
		}
		decl := &m.doc.Node(n).Invokes[rec.Index]
		params, err := m.invokeParams(decl)
		if err != nil {
			m.executionError(err, n)
			continue
		}
		m.pending = append(m.pending, pendingInvoke{state: n, index: rec.Index, params: params, src: decl.Src, id: rec.ID})
	}
	return nil
}
