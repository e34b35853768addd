package model

import (
	"testing"

	"github.com/comalice/chartx/internal/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc(t *testing.T) *Document {
	t.Helper()
	cfg := primitives.NewDocumentBuilder("sample").
		Compound("s1").
		History("s1.h", false).
		Atomic("s1.1").On("foo", "s1.2").
		Atomic("s1.2").On("bar", "p").
		Up().
		Parallel("p").
		Compound("r1").Atomic("a1").On("go", "a2").Final("a2").Up().
		Compound("r2").Atomic("b1").Up().
		Up().
		Final("done").
		MustBuild()
	doc, err := Compile(cfg)
	require.NoError(t, err)
	return doc
}

func TestCompileArena(t *testing.T) {
	doc := sampleDoc(t)

	root := doc.Root()
	assert.Equal(t, Compound, root.Kind)
	assert.Equal(t, NoNode, root.Parent)
	assert.Equal(t, []string{"s1", "p", "done"}, doc.IDs(root.Children))
	assert.Equal(t, []string{"s1"}, doc.IDs(root.Initial.Targets))

	s1 := doc.Node(doc.MustLookup("s1"))
	assert.Equal(t, Compound, s1.Kind)
	assert.Equal(t, []string{"s1.1", "s1.2"}, doc.IDs(s1.Children))
	assert.Equal(t, []string{"s1.h"}, doc.IDs(s1.History))
	assert.Equal(t, []string{"s1.1"}, doc.IDs(s1.Initial.Targets))

	h := doc.Node(doc.MustLookup("s1.h"))
	assert.Equal(t, History, h.Kind)
	assert.False(t, h.Deep)
	assert.Equal(t, []string{"s1.1"}, doc.IDs(h.Default.Targets))

	p := doc.Node(doc.MustLookup("p"))
	assert.Equal(t, Parallel, p.Kind)
	assert.Nil(t, p.Initial)
	assert.Equal(t, 1, p.Depth)
	assert.Equal(t, 3, doc.Node(doc.MustLookup("a1")).Depth)

	assert.True(t, doc.Node(doc.MustLookup("a2")).IsAtomic())
	assert.False(t, s1.IsAtomic())
}

func TestCompileTransitions(t *testing.T) {
	doc := sampleDoc(t)

	all := doc.Transitions()
	require.Len(t, all, 3)
	for i, tr := range all {
		assert.Equal(t, i, tr.Order)
	}
	foo := all[0]
	assert.Equal(t, "s1.1", doc.Node(foo.Source).ID)
	assert.Equal(t, []string{"s1.2"}, doc.IDs(foo.Targets))
	assert.True(t, foo.MatchesEvent("foo"))
	assert.True(t, foo.MatchesEvent("foo.bar"))
	assert.False(t, foo.MatchesEvent("food"))
	assert.False(t, foo.Eventless())
	assert.False(t, foo.Guarded())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() *primitives.DocumentConfig
		code string
	}{
		{
			name: "duplicate id",
			cfg: func() *primitives.DocumentConfig {
				return primitives.NewDocumentBuilder("d").Atomic("a").Atomic("a").MustBuild()
			},
			code: ErrCodeDuplicateID,
		},
		{
			name: "unknown target",
			cfg: func() *primitives.DocumentConfig {
				return primitives.NewDocumentBuilder("d").Atomic("a").On("e", "nowhere").MustBuild()
			},
			code: ErrCodeUnknownTarget,
		},
		{
			name: "initial outside compound",
			cfg: func() *primitives.DocumentConfig {
				return primitives.NewDocumentBuilder("d").
					Compound("c").Initial("b").Atomic("a").Up().
					Atomic("b").
					MustBuild()
			},
			code: ErrCodeIllegalInitial,
		},
		{
			name: "targets in one region",
			cfg: func() *primitives.DocumentConfig {
				return primitives.NewDocumentBuilder("d").
					Compound("c").Atomic("a").On("e", "a b").Atomic("b").Up().
					MustBuild()
			},
			code: ErrCodeIllegalTargets,
		},
		{
			name: "overlapping targets",
			cfg: func() *primitives.DocumentConfig {
				return primitives.NewDocumentBuilder("d").
					Parallel("p").
					Compound("r1").Atomic("a").On("e", "r1 a").Up().
					Compound("r2").Atomic("b").Up().
					Up().
					MustBuild()
			},
			code: ErrCodeIllegalTargets,
		},
		{
			name: "empty document",
			cfg: func() *primitives.DocumentConfig {
				return &primitives.DocumentConfig{Name: "empty"}
			},
			code: primitives.ErrCodeEmptyDocument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Compile(tt.cfg())
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.Equal(t, tt.code, primitives.ErrorCode(err))
		})
	}
}

func TestCompileParallelTargets(t *testing.T) {
	cfg := primitives.NewDocumentBuilder("d").
		Atomic("start").On("split", "a b").
		Parallel("p").
		Compound("r1").Atomic("a").Up().
		Compound("r2").Atomic("b").Up().
		Up().
		MustBuild()
	doc, err := Compile(cfg)
	require.NoError(t, err)
	tr := doc.Node(doc.MustLookup("start")).Transitions[0]
	assert.Equal(t, []string{"a", "b"}, doc.IDs(tr.Targets))
}

func TestAncestry(t *testing.T) {
	doc := sampleDoc(t)
	a1 := doc.MustLookup("a1")
	b1 := doc.MustLookup("b1")
	p := doc.MustLookup("p")
	s11 := doc.MustLookup("s1.1")

	assert.True(t, doc.IsDescendant(a1, p))
	assert.True(t, doc.IsDescendant(a1, RootID))
	assert.False(t, doc.IsDescendant(p, p))
	assert.False(t, doc.IsDescendant(p, a1))

	assert.Equal(t, []string{"r1", "p"}, doc.IDs(doc.ProperAncestors(a1, RootID)))
	assert.Equal(t, p, doc.LCA(a1, b1))
	assert.Equal(t, RootID, doc.LCCA([]NodeID{a1, b1}))
	assert.Equal(t, RootID, doc.LCCA([]NodeID{a1, s11}))
	assert.Equal(t, doc.MustLookup("s1"), doc.LCCA([]NodeID{s11, doc.MustLookup("s1.2")}))
}

func TestInFinalState(t *testing.T) {
	doc := sampleDoc(t)
	active := map[NodeID]bool{}
	isActive := func(n NodeID) bool { return active[n] }
	p := doc.MustLookup("p")

	active[doc.MustLookup("a2")] = true
	active[doc.MustLookup("b1")] = true
	assert.True(t, doc.InFinalState(doc.MustLookup("r1"), isActive))
	assert.False(t, doc.InFinalState(doc.MustLookup("r2"), isActive))
	assert.False(t, doc.InFinalState(p, isActive))
}

func TestInFinalStateWithFinalRegion(t *testing.T) {
	cfg := primitives.NewDocumentBuilder("final-region").
		Parallel("p").
		Compound("r1").Atomic("a").On("go", "af").Final("af").Up().
		Final("pf").
		Up().
		MustBuild()
	doc, err := Compile(cfg)
	require.NoError(t, err)
	active := map[NodeID]bool{
		doc.MustLookup("p"):  true,
		doc.MustLookup("r1"): true,
		doc.MustLookup("a"):  true,
		doc.MustLookup("pf"): true,
	}
	isActive := func(n NodeID) bool { return active[n] }
	p := doc.MustLookup("p")

	assert.False(t, doc.InFinalState(p, isActive))

	delete(active, doc.MustLookup("a"))
	active[doc.MustLookup("af")] = true
	assert.True(t, doc.InFinalState(p, isActive))
}
