package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

func legalityDoc(t *testing.T) *model.Document {
	return compile(t, primitives.NewDocumentBuilder("legality").
		Compound("s").
		History("s.h", false).
		Atomic("s1").
		Atomic("s2").
		Up().
		Parallel("p").
		Compound("r1").Atomic("a1").Atomic("a2").Up().
		Compound("r2").Atomic("b1").Up().
		Up())
}

func TestIsLegal(t *testing.T) {
	doc := legalityDoc(t)
	ids := func(names ...string) []model.NodeID {
		out := make([]model.NodeID, 0, len(names))
		for _, n := range names {
			out = append(out, doc.MustLookup(n))
		}
		return out
	}

	tests := []struct {
		name   string
		active []model.NodeID
		legal  bool
		diag   string
	}{
		{name: "empty", active: nil, legal: true},
		{name: "compound leaf", active: ids("s", "s1"), legal: true},
		{name: "full parallel", active: ids("p", "r1", "a2", "r2", "b1"), legal: true},
		{name: "history active", active: ids("s", "s.h"), diag: `pseudostate "s.h" cannot be active`},
		{name: "orphan", active: ids("s1"), diag: "orphaned active state s1"},
		{name: "missing region", active: ids("p", "r1", "a1"), diag: "not all regions active for parallel p"},
		{name: "empty compound", active: ids("p", "r1", "r2", "b1"), diag: "no active child for compound r1"},
		{name: "two children", active: ids("s", "s1", "s2"), diag: "multiple exclusive states active for s"},
		{name: "two top-level", active: ids("s", "s1", "p", "r1", "a1", "r2", "b1"), diag: "multiple top-level states active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, diag := IsLegal(doc, tt.active)
			assert.Equal(t, tt.legal, ok)
			assert.Equal(t, tt.diag, diag)
		})
	}
}
