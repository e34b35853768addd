// Package production provides integrations for running charts as services:
// snapshot persistence, step publishing, visualisation, logging and error
// reporting.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/comalice/chartx/internal/core"
	"github.com/comalice/chartx/internal/primitives"
)

const (
	ErrCodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	ErrCodePersistence      = "PERSISTENCE_ERROR"
)

var (
	ErrSnapshotNotFound = goerrors.New("snapshot not found", goerrors.CategoryBadInput).
				WithTextCode(ErrCodeSnapshotNotFound)
	ErrPersistence = goerrors.New("snapshot persistence failed", goerrors.CategoryExternal).
			WithTextCode(ErrCodePersistence)
)

var (
	_ core.Persister = (*JSONPersister)(nil)
	_ core.Persister = (*YAMLPersister)(nil)
)

// codec encodes snapshots for a fileStore.
type codec struct {
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// fileStore keeps one file per session under dir.
type fileStore struct {
	dir   string
	codec codec
}

func newFileStore(dir string, c codec) (fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileStore{}, primitives.CloneError(ErrPersistence, fmt.Sprintf("mkdir %s: %s", dir, err), err,
			map[string]any{"dir": dir})
	}
	return fileStore{dir: dir, codec: c}, nil
}

func (s fileStore) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", primitives.CloneError(ErrPersistence, fmt.Sprintf("invalid session id %q", sessionID), nil, nil)
	}
	return filepath.Join(s.dir, sessionID+s.codec.ext), nil
}

func (s fileStore) save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := s.path(snap.SessionID)
	if err != nil {
		return err
	}
	data, err := s.codec.marshal(snap)
	if err != nil {
		return primitives.CloneError(ErrPersistence, fmt.Sprintf("encode %s: %s", snap.SessionID, err), err, nil)
	}
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return primitives.CloneError(ErrPersistence, fmt.Sprintf("write %s: %s", tmp, err), err, nil)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return primitives.CloneError(ErrPersistence, fmt.Sprintf("rename %s: %s", fn, err), err, nil)
	}
	return nil
}

func (s fileStore) load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	fn, err := s.path(sessionID)
	if err != nil {
		return core.Snapshot{}, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, primitives.CloneError(ErrSnapshotNotFound, fmt.Sprintf("session %q", sessionID), err,
				map[string]any{"session": sessionID})
		}
		return core.Snapshot{}, primitives.CloneError(ErrPersistence, fmt.Sprintf("read %s: %s", fn, err), err, nil)
	}
	var snap core.Snapshot
	if err := s.codec.unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, primitives.CloneError(ErrPersistence, fmt.Sprintf("decode %s: %s", fn, err), err, nil)
	}
	snap.SessionID = sessionID
	return snap, nil
}

// JSONPersister stores snapshots as <dir>/<session>.json.
type JSONPersister struct {
	store fileStore
}

// NewJSONPersister creates the directory if needed.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	store, err := newFileStore(dir, codec{
		ext:       ".json",
		marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
		unmarshal: json.Unmarshal,
	})
	if err != nil {
		return nil, err
	}
	return &JSONPersister{store: store}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	return p.store.save(ctx, snapshot)
}

func (p *JSONPersister) Load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	return p.store.load(ctx, sessionID)
}

// YAMLPersister stores snapshots as <dir>/<session>.yaml.
type YAMLPersister struct {
	store fileStore
}

// NewYAMLPersister creates the directory if needed.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	store, err := newFileStore(dir, codec{ext: ".yaml", marshal: yaml.Marshal, unmarshal: yaml.Unmarshal})
	if err != nil {
		return nil, err
	}
	return &YAMLPersister{store: store}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	return p.store.save(ctx, snapshot)
}

func (p *YAMLPersister) Load(ctx context.Context, sessionID string) (core.Snapshot, error) {
	return p.store.load(ctx, sessionID)
}
