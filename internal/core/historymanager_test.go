package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

func historyDoc(t *testing.T) *model.Document {
	return compile(t, primitives.NewDocumentBuilder("history").
		Compound("s").
		History("s.deep", true).
		History("s.shallow", false).
		Compound("a").Atomic("a1").On("next", "a2").Atomic("a2").Up().
		Atomic("b").
		Up().
		On("out", "o").
		Atomic("o").On("back", "s.deep").On("shallow", "s.shallow"))
}

func TestHistoryManager_RecordAndClear(t *testing.T) {
	doc := historyDoc(t)
	h := NewHistoryManager()
	deep := doc.MustLookup("s.deep")

	_, ok := h.Recorded(deep)
	assert.False(t, ok)

	h.Record(deep, []model.NodeID{doc.MustLookup("a2")})
	rec, ok := h.Recorded(deep)
	require.True(t, ok)
	assert.Equal(t, []string{"a2"}, doc.IDs(rec))

	rec[0] = doc.MustLookup("b")
	again, _ := h.Recorded(deep)
	assert.Equal(t, []string{"a2"}, doc.IDs(again), "Recorded must return a copy")

	h.Clear(deep)
	_, ok = h.Recorded(deep)
	assert.False(t, ok)
}

func TestHistoryManager_ExportImport(t *testing.T) {
	doc := historyDoc(t)
	h := NewHistoryManager()
	h.Record(doc.MustLookup("s.shallow"), []model.NodeID{doc.MustLookup("a")})

	exported := h.Export(doc)
	assert.Equal(t, map[string][]string{"s.shallow": {"a"}}, exported)

	other := NewHistoryManager()
	require.NoError(t, other.Import(doc, exported))
	rec, ok := other.Recorded(doc.MustLookup("s.shallow"))
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, doc.IDs(rec))

	err := other.Import(doc, map[string][]string{"a": {"a1"}})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidSnapshot, ErrorCode(err))

	err = other.Import(doc, map[string][]string{"s.deep": {"missing"}})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidSnapshot, ErrorCode(err))
}

func TestHistoryManager_Concurrent(t *testing.T) {
	doc := historyDoc(t)
	h := NewHistoryManager()
	deep := doc.MustLookup("s.deep")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Record(deep, []model.NodeID{doc.MustLookup("a1")})
			h.Recorded(deep)
		}()
	}
	wg.Wait()
	rec, ok := h.Recorded(deep)
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, doc.IDs(rec))
}

func TestHistoryRoundTrip(t *testing.T) {
	doc := historyDoc(t)
	m := started(t, doc)
	assert.Equal(t, []string{"s", "a", "a1"}, m.Status().Active)

	trigger(t, m, "next")
	trigger(t, m, "out")
	assert.Equal(t, []string{"o"}, m.Status().Active)

	trigger(t, m, "back")
	assert.Equal(t, []string{"s", "a", "a2"}, m.Status().Active)

	trigger(t, m, "out")
	trigger(t, m, "shallow")
	// shallow history restores a, whose initial state is a1
	assert.Equal(t, []string{"s", "a", "a1"}, m.Status().Active)
}

func TestHistoryDefaultWithoutRecord(t *testing.T) {
	doc := compile(t, primitives.NewDocumentBuilder("default").
		Atomic("o").On("enter", "s.h").
		Compound("s").
		History("s.h", false, "y").
		Atomic("x").
		Atomic("y").
		Up())
	m := started(t, doc)
	trigger(t, m, "enter")
	assert.Equal(t, []string{"s", "y"}, m.Status().Active)
}
