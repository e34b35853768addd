package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/model"
	"github.com/comalice/chartx/internal/primitives"
)

func trafficDoc(t *testing.T) *model.Document {
	t.Helper()
	cfg, err := primitives.NewDocumentBuilder("traffic").
		Compound("light").
		History("light.h", false).
		Atomic("green").On("timer", "yellow").
		Atomic("yellow").On("timer", "red").
		Atomic("red").On("timer", "green").
		Up().
		On("outage", "off").
		Atomic("off").On("restore", "light.h").
		Build()
	require.NoError(t, err)
	return compileDoc(t, cfg)
}

func compileDoc(t *testing.T, cfg *primitives.DocumentConfig) *model.Document {
	t.Helper()
	doc, err := model.Compile(cfg)
	require.NoError(t, err)
	return doc
}

func sampleSnapshot() core.Snapshot {
	return core.Snapshot{
		SessionID:     "session-1",
		Document:      "traffic",
		Version:       "v1",
		Configuration: []string{"light", "yellow"},
		History:       map[string][]string{"light.h": {"yellow"}},
		Invocations:   []core.InvocationRecord{{ID: "light.worker", State: "light", Index: 0}},
		Datamodel:     map[string]any{"label": "north"},
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPersistersRoundTrip(t *testing.T) {
	t.Parallel()
	persisters := map[string]func(dir string) (core.Persister, error){
		"json": func(dir string) (core.Persister, error) { return NewJSONPersister(dir) },
		"yaml": func(dir string) (core.Persister, error) { return NewYAMLPersister(dir) },
	}
	for name, create := range persisters {
		t.Run(name, func(t *testing.T) {
			p, err := create(t.TempDir())
			require.NoError(t, err)

			want := sampleSnapshot()
			require.NoError(t, p.Save(context.Background(), want))

			got, err := p.Load(context.Background(), want.SessionID)
			require.NoError(t, err)
			assert.Equal(t, want.Configuration, got.Configuration)
			assert.Equal(t, want.History, got.History)
			assert.Equal(t, want.Invocations, got.Invocations)
			assert.Equal(t, want.Datamodel, got.Datamodel)
			assert.True(t, want.Timestamp.Equal(got.Timestamp))
		})
	}
}

func TestPersisterErrors(t *testing.T) {
	t.Parallel()
	p, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)

	_, err = p.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, ErrCodeSnapshotNotFound, primitives.ErrorCode(err))

	_, err = p.Load(context.Background(), "../escape")
	assert.Equal(t, ErrCodePersistence, primitives.ErrorCode(err))

	snap := sampleSnapshot()
	snap.SessionID = ""
	assert.Equal(t, ErrCodePersistence, primitives.ErrorCode(p.Save(context.Background(), snap)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Save(ctx, sampleSnapshot()), context.Canceled)
}

func TestPersisterRestoresMachine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)
	doc := trafficDoc(t)

	m := core.NewMachine(doc, core.WithPersister(p), core.WithSessionID("crossing-7"))
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.TriggerEvent(ctx, primitives.NewEvent("timer", nil)))
	require.NoError(t, m.TriggerEvent(ctx, primitives.NewEvent("outage", nil)))

	snap, err := p.Load(ctx, "crossing-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"off"}, snap.Configuration)

	restored := core.NewMachine(doc, core.WithSessionID("crossing-7"))
	require.NoError(t, restored.Restore(snap))
	require.NoError(t, restored.Start(ctx))
	assert.Equal(t, []string{"off"}, restored.Status().Active)

	require.NoError(t, restored.TriggerEvent(ctx, primitives.NewEvent("restore", nil)))
	assert.Equal(t, []string{"light", "yellow"}, restored.Status().Active)
}
