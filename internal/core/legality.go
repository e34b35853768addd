package core

import (
	"fmt"

	"github.com/comalice/chartx/internal/model"
)

// IsLegal checks a candidate configuration against the structural invariants:
// every region of an active parallel is active, an active compound has exactly
// one active child, every active state has an active parent, and at most one
// top-level state is active. The empty configuration is legal.
func IsLegal(doc *model.Document, active []model.NodeID) (bool, string) {
	if len(active) == 0 {
		return true, ""
	}
	set := make(map[model.NodeID]bool, len(active))
	for _, n := range active {
		set[n] = true
	}

	sorted := append([]model.NodeID(nil), active...)
	doc.SortExitOrder(sorted)

	topLevel := 0
	for _, n := range sorted {
		node := doc.Node(n)
		if !node.IsState() {
			return false, fmt.Sprintf("pseudostate %q cannot be active", node.ID)
		}
		if node.Parent == model.RootID {
			topLevel++
		} else if !set[node.Parent] {
			return false, fmt.Sprintf("orphaned active state %s", node.ID)
		}

		switch node.Kind {
		case model.Parallel:
			for _, c := range node.Children {
				if !set[c] {
					return false, fmt.Sprintf("not all regions active for parallel %s", node.ID)
				}
			}
		case model.Compound:
			count := 0
			for _, c := range node.Children {
				if set[c] {
					count++
				}
			}
			switch {
			case count == 0:
				return false, fmt.Sprintf("no active child for compound %s", node.ID)
			case count > 1:
				return false, fmt.Sprintf("multiple exclusive states active for %s", node.ID)
			}
		case model.Basic, model.Final:
		case model.History:
		}
	}
	if topLevel > 1 {
		return false, "multiple top-level states active"
	}
	return true, ""
}
