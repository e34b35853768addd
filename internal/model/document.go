package model

import (
	"fmt"
	"strings"

	"github.com/comalice/chartx/internal/primitives"
)

// Document is a compiled chart.
type Document struct {
	Name      string
	Version   string
	Datamodel string
	Data      []primitives.DataConfig
	Script    string

	nodes       []Node
	byID        map[string]NodeID
	transitions []*Transition
	source      *primitives.DocumentConfig
}

// Compile validates a DocumentConfig and builds its node arena.
func Compile(cfg *primitives.DocumentConfig) (*Document, error) {
	if cfg == nil {
		return nil, primitives.CloneError(primitives.ErrEmptyDocument, "", nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Document{
		Name:      cfg.Name,
		Version:   primitives.ComputeVersion(cfg),
		Datamodel: cfg.Datamodel,
		Data:      cfg.Data,
		Script:    cfg.Script,
		byID:      make(map[string]NodeID),
		source:    cfg,
	}

	d.nodes = append(d.nodes, Node{ID: "", Index: RootID, Kind: Compound, Parent: NoNode})
	configs := []*primitives.StateConfig{nil}
	for _, s := range cfg.States {
		if err := d.add(s, RootID, &configs); err != nil {
			return nil, err
		}
	}

	root := &d.nodes[RootID]
	initial, err := d.resolveInitial(RootID, cfg.InitialTargets(), nil)
	if err != nil {
		return nil, err
	}
	root.Initial = initial

	for idx := 1; idx < len(d.nodes); idx++ {
		if err := d.resolve(NodeID(idx), configs[idx]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Document) add(s *primitives.StateConfig, parent NodeID, configs *[]*primitives.StateConfig) error {
	if _, exists := d.byID[s.ID]; exists {
		return primitives.CloneError(ErrDuplicateID, fmt.Sprintf("state id %q is declared more than once", s.ID), nil,
			map[string]any{"state": s.ID})
	}
	idx := NodeID(len(d.nodes))
	n := Node{
		ID:       s.ID,
		Index:    idx,
		Kind:     kindOf(s.Kind()),
		Parent:   parent,
		Depth:    d.nodes[parent].Depth + 1,
		Entry:    s.Entry,
		Exit:     s.Exit,
		Invokes:  s.Invokes,
		DoneData: s.DoneData,
		Deep:     s.Kind() == primitives.DeepHistory,
	}
	d.nodes = append(d.nodes, n)
	*configs = append(*configs, s)
	d.byID[s.ID] = idx

	p := &d.nodes[parent]
	if n.Kind == History {
		p.History = append(p.History, idx)
	} else {
		p.Children = append(p.Children, idx)
	}

	for _, child := range s.Children {
		if err := d.add(child, idx, configs); err != nil {
			return err
		}
	}
	return nil
}

func kindOf(t primitives.StateType) Kind {
	switch t {
	case primitives.Compound:
		return Compound
	case primitives.Parallel:
		return Parallel
	case primitives.Final:
		return Final
	case primitives.ShallowHistory, primitives.DeepHistory:
		return History
	default:
		return Basic
	}
}

func (d *Document) resolve(idx NodeID, s *primitives.StateConfig) error {
	n := &d.nodes[idx]
	switch n.Kind {
	case Compound:
		initial, err := d.resolveInitial(idx, s.InitialTargets(), s.InitialActions)
		if err != nil {
			return err
		}
		n.Initial = initial
	case History:
		def, err := d.resolveHistoryDefault(idx, s)
		if err != nil {
			return err
		}
		n.Default = def
	}

	for i := range s.Transitions {
		tc := &s.Transitions[i]
		targets, err := d.lookupTargets(s.ID, tc.Targets())
		if err != nil {
			return err
		}
		if err := d.checkTargets(s.ID, targets); err != nil {
			return err
		}
		t := &Transition{
			Source:   idx,
			Targets:  targets,
			Events:   tc.Events(),
			Cond:     tc.Cond,
			Guard:    tc.Guard,
			Internal: tc.IsInternal(),
			Actions:  tc.Actions,
			Index:    i,
			Order:    len(d.transitions),
		}
		n.Transitions = append(n.Transitions, t)
		d.transitions = append(d.transitions, t)
	}
	return nil
}

// resolveInitial builds the initial transition of a compound node (or the root).
// Targets default to the first child and must be proper descendants.
func (d *Document) resolveInitial(idx NodeID, ids []string, actions []primitives.ActionConfig) (*Transition, error) {
	n := &d.nodes[idx]
	var targets []NodeID
	if len(ids) == 0 {
		if len(n.Children) == 0 {
			return nil, primitives.CloneError(primitives.ErrEmptyDocument, "", nil, nil)
		}
		targets = []NodeID{n.Children[0]}
	} else {
		var err error
		if targets, err = d.lookupTargets(n.ID, ids); err != nil {
			return nil, err
		}
	}
	for _, t := range targets {
		if !d.IsDescendant(t, idx) {
			return nil, primitives.CloneError(ErrIllegalInitial,
				fmt.Sprintf("initial target %q is not a descendant of %q", d.nodes[t].ID, d.label(idx)), nil,
				map[string]any{"state": d.label(idx), "target": d.nodes[t].ID})
		}
	}
	if err := d.checkTargets(d.label(idx), targets); err != nil {
		return nil, err
	}
	return &Transition{Source: idx, Targets: targets, Actions: actions, Order: -1}, nil
}

// resolveHistoryDefault builds the default transition of a history node. Without
// declared targets it falls back to the parent's default entry.
func (d *Document) resolveHistoryDefault(idx NodeID, s *primitives.StateConfig) (*Transition, error) {
	parent := d.nodes[idx].Parent
	var targets []NodeID
	if ids := s.InitialTargets(); len(ids) > 0 {
		var err error
		if targets, err = d.lookupTargets(s.ID, ids); err != nil {
			return nil, err
		}
		for _, t := range targets {
			if !d.IsDescendant(t, parent) || d.nodes[t].Kind == History {
				return nil, primitives.CloneError(ErrIllegalInitial,
					fmt.Sprintf("history default %q is not a state under %q", d.nodes[t].ID, d.label(parent)), nil,
					map[string]any{"state": s.ID, "target": d.nodes[t].ID})
			}
		}
		if err := d.checkTargets(s.ID, targets); err != nil {
			return nil, err
		}
	} else if p := &d.nodes[parent]; p.Kind == Parallel {
		targets = append(targets, p.Children...)
	} else if p.Initial != nil && !containsNode(p.Initial.Targets, idx) {
		targets = append(targets, p.Initial.Targets...)
	} else {
		targets = append(targets, p.Children[0])
	}
	return &Transition{Source: idx, Targets: targets, Actions: s.InitialActions, Order: -1}, nil
}

func (d *Document) lookupTargets(source string, ids []string) ([]NodeID, error) {
	targets := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		t, ok := d.byID[id]
		if !ok {
			return nil, primitives.CloneError(ErrUnknownTarget,
				fmt.Sprintf("state %q targets unknown state %q", source, id), nil,
				map[string]any{"state": source, "target": id})
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// checkTargets enforces that multiple targets lie in distinct regions of one
// parallel ancestor.
func (d *Document) checkTargets(source string, targets []NodeID) error {
	for i := 0; i < len(targets); i++ {
		for j := i + 1; j < len(targets); j++ {
			a, b := targets[i], targets[j]
			if a == b || d.IsDescendant(a, b) || d.IsDescendant(b, a) {
				return primitives.CloneError(ErrIllegalTargets,
					fmt.Sprintf("targets %q and %q of %q overlap", d.nodes[a].ID, d.nodes[b].ID, source), nil,
					map[string]any{"state": source})
			}
			if lca := d.LCA(a, b); d.nodes[lca].Kind != Parallel {
				return primitives.CloneError(ErrIllegalTargets,
					fmt.Sprintf("targets %q and %q of %q are not in distinct parallel regions", d.nodes[a].ID, d.nodes[b].ID, source), nil,
					map[string]any{"state": source})
			}
		}
	}
	return nil
}

func (d *Document) label(idx NodeID) string {
	if idx == RootID {
		if d.Name != "" {
			return d.Name
		}
		return "<root>"
	}
	return d.nodes[idx].ID
}

// Source returns the config the document was compiled from.
func (d *Document) Source() *primitives.DocumentConfig {
	return d.source
}

// Len returns the number of nodes, the synthetic root included.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Node returns the node at idx.
func (d *Document) Node(idx NodeID) *Node {
	return &d.nodes[idx]
}

// Root returns the synthetic root node.
func (d *Document) Root() *Node {
	return &d.nodes[RootID]
}

// Lookup returns the node with the given state id.
func (d *Document) Lookup(id string) (NodeID, bool) {
	idx, ok := d.byID[id]
	return idx, ok
}

// MustLookup is Lookup that panics for unknown ids.
func (d *Document) MustLookup(id string) NodeID {
	idx, ok := d.byID[id]
	if !ok {
		panic(fmt.Sprintf("model: unknown state %q", id))
	}
	return idx
}

// Transitions returns every declared transition in document order.
func (d *Document) Transitions() []*Transition {
	return d.transitions
}

// IDs maps node indices to state ids.
func (d *Document) IDs(nodes []NodeID) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = d.nodes[n].ID
	}
	return ids
}

// IsDescendant reports whether n is a proper descendant of anc.
func (d *Document) IsDescendant(n, anc NodeID) bool {
	if n == anc {
		return false
	}
	for p := d.nodes[n].Parent; p != NoNode; p = d.nodes[p].Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// ProperAncestors returns the ancestors of n from its parent upwards, stopping
// before upTo (exclusive). Use NoNode to include the root.
func (d *Document) ProperAncestors(n, upTo NodeID) []NodeID {
	var out []NodeID
	for p := d.nodes[n].Parent; p != NoNode && p != upTo; p = d.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// LCA returns the least common ancestor of a and b that is a proper ancestor of both.
func (d *Document) LCA(a, b NodeID) NodeID {
	for _, anc := range d.ProperAncestors(a, NoNode) {
		if d.IsDescendant(b, anc) {
			return anc
		}
	}
	return RootID
}

// LCCA returns the least compound ancestor (compound or the root) that is a
// proper ancestor of every node in nodes.
func (d *Document) LCCA(nodes []NodeID) NodeID {
	if len(nodes) == 0 {
		return RootID
	}
	for _, anc := range d.ProperAncestors(nodes[0], NoNode) {
		if d.nodes[anc].Kind != Compound {
			continue
		}
		all := true
		for _, n := range nodes[1:] {
			if !d.IsDescendant(n, anc) {
				all = false
				break
			}
		}
		if all {
			return anc
		}
	}
	return RootID
}

// InFinalState reports whether the compound or parallel node n is complete in
// the given membership set: compound when an active child is Final, parallel
// when every region is complete. A Final region is complete while active;
// history children are not regions.
func (d *Document) InFinalState(n NodeID, active func(NodeID) bool) bool {
	node := &d.nodes[n]
	switch node.Kind {
	case Compound:
		for _, c := range node.Children {
			if active(c) && d.nodes[c].Kind == Final {
				return true
			}
		}
		return false
	case Parallel:
		for _, c := range node.Children {
			switch d.nodes[c].Kind {
			case History:
				continue
			case Final:
				if !active(c) {
					return false
				}
				continue
			}
			if !d.InFinalState(c, active) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the document tree, one node per line.
func (d *Document) String() string {
	var b strings.Builder
	for i := 1; i < len(d.nodes); i++ {
		n := &d.nodes[i]
		fmt.Fprintf(&b, "%s%s (%s)\n", strings.Repeat("  ", n.Depth-1), n.ID, n.Kind)
	}
	return b.String()
}
