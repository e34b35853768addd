package model

import (
	"github.com/comalice/chartx/internal/primitives"
)

// NodeID indexes a node in a Document arena.
type NodeID int

const (
	// NoNode marks an absent link, e.g. the parent of the root.
	NoNode NodeID = -1
	// RootID is the synthetic document root.
	RootID NodeID = 0
)

// Kind is the closed set of node variants.
type Kind int

const (
	Basic Kind = iota
	Compound
	Parallel
	Final
	History
)

func (k Kind) String() string {
	switch k {
	case Basic:
		return "basic"
	case Compound:
		return "compound"
	case Parallel:
		return "parallel"
	case Final:
		return "final"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

// Node is one state or pseudostate of a compiled chart.
type Node struct {
	ID     string
	Index  NodeID
	Kind   Kind
	Parent NodeID
	Depth  int

	// Children are the child states in document order, history pseudostates excluded.
	Children []NodeID
	// History lists the history pseudostates declared directly under this node.
	History []NodeID

	Entry    []primitives.ActionConfig
	Exit     []primitives.ActionConfig
	Invokes  []primitives.InvokeConfig
	DoneData []primitives.ParamConfig

	// Transitions are the outgoing transitions in document order.
	Transitions []*Transition
	// Initial is the initial transition of a compound node.
	Initial *Transition
	// Default is the default transition of a history node.
	Default *Transition
	// Deep is set on deep history nodes.
	Deep bool
}

// IsAtomic reports whether the node has no child states.
func (n *Node) IsAtomic() bool {
	return n.Kind == Basic || n.Kind == Final
}

// IsState reports whether the node can be part of a configuration.
func (n *Node) IsState() bool {
	return n.Kind != History && n.Index != RootID
}

// TransitionType mirrors primitives.TransitionType on compiled transitions.
type TransitionType = primitives.TransitionType

// Transition is a compiled transition. Initial and history default
// transitions are Transitions too, with no events and no guard.
type Transition struct {
	Source   NodeID
	Targets  []NodeID
	Events   []string
	Cond     string
	Guard    primitives.GuardFunc
	Internal bool
	Actions  []primitives.ActionConfig
	// Index is the position within the source's transition list.
	Index int
	// Order is the document-wide transition order.
	Order int
}

// Eventless reports whether the transition has no event descriptors.
func (t *Transition) Eventless() bool {
	return len(t.Events) == 0
}

// Targetless reports whether the transition has no targets.
func (t *Transition) Targetless() bool {
	return len(t.Targets) == 0
}

// Guarded reports whether the transition has a condition or a Go guard.
func (t *Transition) Guarded() bool {
	return t.Cond != "" || t.Guard != nil
}

// MatchesEvent reports whether any descriptor matches the event name.
func (t *Transition) MatchesEvent(name string) bool {
	for _, d := range t.Events {
		if primitives.MatchesDescriptor(d, name) {
			return true
		}
	}
	return false
}
