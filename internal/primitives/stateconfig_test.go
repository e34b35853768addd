package primitives

import (
	stderrors "errors"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func errMessage(err error) string {
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}

func TestStateConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		newConfig   func() *StateConfig
		wantErr     bool
		errContains string
	}{
		{
			name: "valid atomic",
			newConfig: func() *StateConfig {
				return NewStateConfig("atomic", Atomic)
			},
		},
		{
			name: "missing ID",
			newConfig: func() *StateConfig {
				return NewStateConfig("", Atomic)
			},
			wantErr:     true,
			errContains: "ID is required",
		},
		{
			name: "invalid type",
			newConfig: func() *StateConfig {
				return NewStateConfig("bad", StateType("invalid"))
			},
			wantErr:     true,
			errContains: "invalid state type",
		},
		{
			name: "atomic with initial",
			newConfig: func() *StateConfig {
				return NewStateConfig("atomic", Atomic).WithInitial("foo")
			},
			wantErr:     true,
			errContains: "cannot have Initial",
		},
		{
			name: "atomic with children",
			newConfig: func() *StateConfig {
				s := NewStateConfig("atomic", Atomic)
				s.State("child")
				return s
			},
			wantErr:     true,
			errContains: "cannot have Children",
		},
		{
			name: "compound without initial defaults to first child",
			newConfig: func() *StateConfig {
				s := NewStateConfig("compound", Compound)
				s.State("child")
				return s
			},
		},
		{
			name: "compound with only history",
			newConfig: func() *StateConfig {
				s := NewStateConfig("compound", Compound)
				s.State("h", ShallowHistory)
				return s
			},
			wantErr:     true,
			errContains: "requires Children",
		},
		{
			name: "parallel with initial",
			newConfig: func() *StateConfig {
				s := NewStateConfig("p", Parallel).WithInitial("a")
				s.State("a")
				return s
			},
			wantErr:     true,
			errContains: "cannot have Initial",
		},
		{
			name: "final with transition",
			newConfig: func() *StateConfig {
				return NewStateConfig("done", Final).Transition("e", "x")
			},
			wantErr:     true,
			errContains: "cannot have transitions",
		},
		{
			name: "history with entry",
			newConfig: func() *StateConfig {
				return NewStateConfig("h", DeepHistory).AddEntry(Raise("x"))
			},
			wantErr:     true,
			errContains: "only declare a default transition",
		},
		{
			name: "donedata outside final",
			newConfig: func() *StateConfig {
				s := NewStateConfig("a", Atomic)
				s.DoneData = []ParamConfig{{Name: "x", Value: 1}}
				return s
			},
			wantErr:     true,
			errContains: "donedata",
		},
		{
			name: "invalid child",
			newConfig: func() *StateConfig {
				s := NewStateConfig("compound", Compound)
				s.State("")
				return s
			},
			wantErr:     true,
			errContains: "ID is required",
		},
		{
			name: "invalid transition",
			newConfig: func() *StateConfig {
				return NewStateConfig("a", Atomic).Transition("a..b", "x")
			},
			wantErr:     true,
			errContains: "transition 0 of a",
		},
		{
			name: "invalid entry action",
			newConfig: func() *StateConfig {
				return NewStateConfig("a", Atomic).AddEntry(ActionConfig{})
			},
			wantErr:     true,
			errContains: "invalid action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.newConfig().Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && tt.errContains != "" && !strings.Contains(errMessage(err), tt.errContains) {
				t.Errorf("Validate() error = %q, want containing %q", errMessage(err), tt.errContains)
			}
		})
	}
}

func TestStateConfigKind(t *testing.T) {
	s := &StateConfig{ID: "s"}
	if s.Kind() != Atomic {
		t.Errorf("empty state should infer atomic, got %s", s.Kind())
	}
	s.AddChild(NewStateConfig("h", ShallowHistory))
	if s.Kind() != Atomic {
		t.Errorf("history-only children should still infer atomic, got %s", s.Kind())
	}
	s.AddChild(&StateConfig{ID: "c"})
	if s.Kind() != Compound {
		t.Errorf("state with children should infer compound, got %s", s.Kind())
	}
}

func TestStateConfigWalkDocumentOrder(t *testing.T) {
	root := NewStateConfig("root", Compound)
	a := root.State("a", Compound)
	a.State("a1")
	a.State("a2")
	root.State("b")

	var ids []string
	root.Walk(func(s *StateConfig) { ids = append(ids, s.ID) })

	want := "root a a1 a2 b"
	if got := strings.Join(ids, " "); got != want {
		t.Errorf("Walk order = %q, want %q", got, want)
	}
}

func TestStateConfigErrorCode(t *testing.T) {
	err := NewStateConfig("bad", StateType("nope")).Validate()
	if code := ErrorCode(err); code != ErrCodeInvalidKind {
		t.Errorf("ErrorCode = %q, want %q", code, ErrCodeInvalidKind)
	}
}
