package model

import "sort"

// Compare orders nodes by document position: ancestors precede descendants and
// earlier siblings precede later ones. Returns -1, 0 or 1.
func (d *Document) Compare(a, b NodeID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortDocumentOrder sorts nodes in place in document order.
func (d *Document) SortDocumentOrder(nodes []NodeID) {
	sort.Slice(nodes, func(i, j int) bool { return d.Compare(nodes[i], nodes[j]) < 0 })
}

// SortExitOrder sorts nodes in place in reverse document order, descendants first.
func (d *Document) SortExitOrder(nodes []NodeID) {
	sort.Slice(nodes, func(i, j int) bool { return d.Compare(nodes[i], nodes[j]) > 0 })
}

// CompareTransitions orders transitions by source document position, then by
// their index within the source.
func (d *Document) CompareTransitions(a, b *Transition) int {
	if c := d.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	default:
		return 0
	}
}

func containsNode(nodes []NodeID, n NodeID) bool {
	for _, x := range nodes {
		if x == n {
			return true
		}
	}
	return false
}
