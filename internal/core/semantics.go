package core

import (
	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

// HistoryLookup returns the recorded set of a history pseudostate.
type HistoryLookup interface {
	Recorded(history model.NodeID) ([]model.NodeID, bool)
}

// GuardCheck decides whether a guarded transition is enabled.
type GuardCheck func(t *model.Transition) bool

// Engine computes transition selection and exit/entry sets. It never mutates
// the configuration; the Machine applies the Microstep it returns.
type Engine struct {
	doc     *model.Document
	history HistoryLookup
}

// NewEngine creates an engine over doc reading history from h.
func NewEngine(doc *model.Document, h HistoryLookup) *Engine {
	return &Engine{doc: doc, history: h}
}

// Microstep is the plan for one set of non-conflicting transitions.
type Microstep struct {
	Transitions []*model.Transition
	// Exit lists the states to leave in exit order.
	Exit []model.NodeID
	// History holds the sets to record, keyed by history pseudostate.
	History map[model.NodeID][]model.NodeID
	// Enter lists the states to enter in document order.
	Enter []model.NodeID
	// DefaultEntry holds the compound states whose initial transition actions run.
	DefaultEntry map[model.NodeID]bool
	// HistoryContent maps a parent state to the default transition of a history
	// pseudostate entered without a record.
	HistoryContent map[model.NodeID]*model.Transition
}

// SelectTransitions returns the enabled, non-conflicting transitions for evt,
// or for eventless selection when evt is nil. Results are in document order.
func (e *Engine) SelectTransitions(cfg *Configuration, evt *primitives.Event, guard GuardCheck) []*model.Transition {
	var enabled []*model.Transition
	seen := make(map[*model.Transition]bool)
	verdict := make(map[*model.Transition]bool)

	holds := func(t *model.Transition) bool {
		if !t.Guarded() || guard == nil {
			return true
		}
		if v, ok := verdict[t]; ok {
			return v
		}
		v := guard(t)
		verdict[t] = v
		return v
	}

	for _, atomic := range cfg.Atomic() {
		chain := append([]model.NodeID{atomic}, e.doc.ProperAncestors(atomic, model.RootID)...)
	search:
		for _, s := range chain {
			for _, t := range e.doc.Node(s).Transitions {
				if evt == nil {
					if !t.Eventless() {
						continue
					}
				} else if t.Eventless() || !t.MatchesEvent(evt.Name) {
					continue
				}
				if !holds(t) {
					continue
				}
				if !seen[t] {
					seen[t] = true
					enabled = append(enabled, t)
				}
				break search
			}
		}
	}
	return e.RemoveConflicts(cfg, enabled)
}

// RemoveConflicts drops transitions whose exit sets intersect an earlier one.
// A transition whose source is a descendant of the other's source wins;
// otherwise the earlier transition wins.
func (e *Engine) RemoveConflicts(cfg *Configuration, enabled []*model.Transition) []*model.Transition {
	var filtered []*model.Transition
	exitSets := make(map[*model.Transition]map[model.NodeID]bool)
	exitOf := func(t *model.Transition) map[model.NodeID]bool {
		if set, ok := exitSets[t]; ok {
			return set
		}
		set := make(map[model.NodeID]bool)
		for _, n := range e.ExitSet(cfg, []*model.Transition{t}) {
			set[n] = true
		}
		exitSets[t] = set
		return set
	}

	for _, t1 := range enabled {
		preempted := false
		var remove []*model.Transition
		for _, t2 := range filtered {
			if !intersects(exitOf(t1), exitOf(t2)) {
				continue
			}
			if e.doc.IsDescendant(t1.Source, t2.Source) {
				remove = append(remove, t2)
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		if len(remove) > 0 {
			kept := filtered[:0]
			for _, t := range filtered {
				if !containsTransition(remove, t) {
					kept = append(kept, t)
				}
			}
			filtered = kept
		}
		filtered = append(filtered, t1)
	}
	return filtered
}

// Domain returns the transition domain: NoNode for targetless transitions, the
// source for internal transitions of a compound source whose targets are all
// proper descendants, otherwise the least compound ancestor of source and targets.
func (e *Engine) Domain(t *model.Transition) model.NodeID {
	targets := e.EffectiveTargets(t)
	if len(targets) == 0 {
		return model.NoNode
	}
	if t.Internal && e.doc.Node(t.Source).Kind == model.Compound {
		all := true
		for _, s := range targets {
			if !e.doc.IsDescendant(s, t.Source) {
				all = false
				break
			}
		}
		if all {
			return t.Source
		}
	}
	return e.doc.LCCA(append([]model.NodeID{t.Source}, targets...))
}

// EffectiveTargets resolves history targets to their recorded or default states.
func (e *Engine) EffectiveTargets(t *model.Transition) []model.NodeID {
	var out []model.NodeID
	visited := make(map[model.NodeID]bool)
	var resolve func(targets []model.NodeID)
	resolve = func(targets []model.NodeID) {
		for _, s := range targets {
			node := e.doc.Node(s)
			if node.Kind != model.History {
				out = appendUnique(out, s)
				continue
			}
			if visited[s] {
				continue
			}
			visited[s] = true
			if rec, ok := e.recorded(s); ok {
				for _, r := range rec {
					out = appendUnique(out, r)
				}
				continue
			}
			if node.Default != nil {
				resolve(node.Default.Targets)
			}
		}
	}
	resolve(t.Targets)
	return out
}

// ExitSet returns the active states that the transitions leave, in exit order.
func (e *Engine) ExitSet(cfg *Configuration, transitions []*model.Transition) []model.NodeID {
	set := make(map[model.NodeID]bool)
	active := cfg.List()
	for _, t := range transitions {
		domain := e.Domain(t)
		if domain == model.NoNode {
			continue
		}
		for _, s := range active {
			if e.doc.IsDescendant(s, domain) {
				set[s] = true
			}
		}
	}
	out := make([]model.NodeID, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	e.doc.SortExitOrder(out)
	return out
}

// HistoryDelta computes the records to store for the history pseudostates of
// the exited states.
func (e *Engine) HistoryDelta(cfg *Configuration, exit []model.NodeID) map[model.NodeID][]model.NodeID {
	var delta map[model.NodeID][]model.NodeID
	var active []model.NodeID
	for _, s := range exit {
		node := e.doc.Node(s)
		if len(node.History) == 0 {
			continue
		}
		if active == nil {
			active = cfg.List()
		}
		for _, h := range node.History {
			var rec []model.NodeID
			for _, a := range active {
				if e.doc.Node(h).Deep {
					if e.doc.Node(a).IsAtomic() && e.doc.IsDescendant(a, s) {
						rec = append(rec, a)
					}
				} else if e.doc.Node(a).Parent == s {
					rec = append(rec, a)
				}
			}
			if delta == nil {
				delta = make(map[model.NodeID][]model.NodeID)
			}
			delta[h] = rec
		}
	}
	return delta
}

// EntrySet computes the states to enter for the transitions, in document order,
// with the default-entry set and the history default content.
func (e *Engine) EntrySet(transitions []*model.Transition) ([]model.NodeID, map[model.NodeID]bool, map[model.NodeID]*model.Transition) {
	b := &entryBuilder{
		e:              e,
		enter:          make(map[model.NodeID]bool),
		defaultEntry:   make(map[model.NodeID]bool),
		historyContent: make(map[model.NodeID]*model.Transition),
	}
	for _, t := range transitions {
		if t.Targetless() {
			continue
		}
		for _, s := range t.Targets {
			b.addDescendants(s)
		}
		domain := e.Domain(t)
		for _, s := range e.EffectiveTargets(t) {
			b.addAncestors(s, domain)
		}
	}
	out := make([]model.NodeID, 0, len(b.enter))
	for s := range b.enter {
		out = append(out, s)
	}
	e.doc.SortDocumentOrder(out)
	return out, b.defaultEntry, b.historyContent
}

// Plan builds the full Microstep for a selected transition set.
func (e *Engine) Plan(cfg *Configuration, transitions []*model.Transition) Microstep {
	exit := e.ExitSet(cfg, transitions)
	enter, defaults, content := e.EntrySet(transitions)
	return Microstep{
		Transitions:    transitions,
		Exit:           exit,
		History:        e.HistoryDelta(cfg, exit),
		Enter:          enter,
		DefaultEntry:   defaults,
		HistoryContent: content,
	}
}

func (e *Engine) recorded(h model.NodeID) ([]model.NodeID, bool) {
	if e.history == nil {
		return nil, false
	}
	rec, ok := e.history.Recorded(h)
	if !ok || len(rec) == 0 {
		return nil, false
	}
	return rec, true
}

type entryBuilder struct {
	e              *Engine
	enter          map[model.NodeID]bool
	defaultEntry   map[model.NodeID]bool
	historyContent map[model.NodeID]*model.Transition
}

func (b *entryBuilder) addDescendants(s model.NodeID) {
	doc := b.e.doc
	node := doc.Node(s)
	switch node.Kind {
	case model.History:
		targets, ok := b.e.recorded(s)
		if !ok {
			if node.Default == nil {
				return
			}
			b.historyContent[node.Parent] = node.Default
			targets = node.Default.Targets
		}
		for _, t := range targets {
			b.addDescendants(t)
		}
		for _, t := range targets {
			b.addAncestors(t, node.Parent)
		}
	case model.Compound:
		b.enter[s] = true
		b.defaultEntry[s] = true
		for _, t := range node.Initial.Targets {
			b.addDescendants(t)
		}
		for _, t := range node.Initial.Targets {
			b.addAncestors(t, s)
		}
	case model.Parallel:
		b.enter[s] = true
		b.completeRegions(node)
	case model.Basic, model.Final:
		b.enter[s] = true
	}
}

func (b *entryBuilder) addAncestors(s, upTo model.NodeID) {
	doc := b.e.doc
	for _, anc := range doc.ProperAncestors(s, upTo) {
		if anc == model.RootID {
			break
		}
		b.enter[anc] = true
		if node := doc.Node(anc); node.Kind == model.Parallel {
			b.completeRegions(node)
		}
	}
}

func (b *entryBuilder) completeRegions(node *model.Node) {
	for _, child := range node.Children {
		covered := false
		for s := range b.enter {
			if s == child || b.e.doc.IsDescendant(s, child) {
				covered = true
				break
			}
		}
		if !covered {
			b.addDescendants(child)
		}
	}
}

func intersects(a, b map[model.NodeID]bool) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for n := range a {
		if b[n] {
			return true
		}
	}
	return false
}

func containsTransition(list []*model.Transition, t *model.Transition) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func appendUnique(list []model.NodeID, n model.NodeID) []model.NodeID {
	for _, x := range list {
		if x == n {
			return list
		}
	}
	return append(list, n)
}
