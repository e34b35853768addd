package primitives

import (
	"strings"
	"testing"
	"time"
)

func TestActionConfigKind(t *testing.T) {
	tests := []struct {
		name   string
		action ActionConfig
		want   ActionKind
	}{
		{"raise", Raise("e"), ActionRaise},
		{"assign", Assign("x", "1"), ActionAssign},
		{"assign value", AssignValue("x", 1), ActionAssign},
		{"log", Log("label", "x"), ActionLog},
		{"script", Script("x = 1"), ActionScript},
		{"send", Send("e", TargetParent), ActionSend},
		{"delayed send", SendAfter("e", "", time.Second), ActionSend},
		{"cancel", Cancel("s"), ActionCancel},
		{"foreach", Foreach("items", "item", "i", Raise("e")), ActionForeach},
		{"if", If(When("x > 1", Raise("big")), Otherwise(Raise("small"))), ActionIf},
		{"func", Do("noop", func(ActionContext) error { return nil }), ActionFunc},
		{"empty", ActionConfig{}, ""},
		{"two variants", ActionConfig{Raise: &RaiseAction{Event: "e"}, Log: &LogAction{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		action      ActionConfig
		wantErr     bool
		errContains string
	}{
		{name: "raise", action: Raise("go")},
		{name: "raise without event", action: ActionConfig{Raise: &RaiseAction{}}, wantErr: true, errContains: "raise requires"},
		{name: "assign without location", action: Assign("", "1"), wantErr: true, errContains: "location"},
		{name: "send without event", action: Send("", ""), wantErr: true, errContains: "send requires"},
		{
			name:        "send with target and targetexpr",
			action:      ActionConfig{Send: &SendAction{Event: "e", Target: "#_parent", TargetExpr: "t"}},
			wantErr:     true,
			errContains: "both target",
		},
		{name: "cancel", action: ActionConfig{Cancel: &CancelAction{SendID: "s"}}},
		{name: "cancel without id", action: ActionConfig{Cancel: &CancelAction{}}, wantErr: true, errContains: "sendid"},
		{name: "delayed send", action: SendAfter("e", "", 500*time.Millisecond)},
		{
			name:        "send with delay and delayexpr",
			action:      ActionConfig{Send: &SendAction{Event: "e", Delay: "1s", DelayExpr: "d"}},
			wantErr:     true,
			errContains: "both delay",
		},
		{
			name:        "send with bad delay",
			action:      ActionConfig{Send: &SendAction{Event: "e", Delay: "soon"}},
			wantErr:     true,
			errContains: "not a duration",
		},
		{
			name:        "delayed internal send",
			action:      SendAfter("e", TargetInternal, time.Second),
			wantErr:     true,
			errContains: "cannot be delayed",
		},
		{name: "foreach", action: Foreach("items", "item", "", Raise("e"))},
		{name: "foreach without item", action: Foreach("items", "", "i"), wantErr: true, errContains: "array and item"},
		{name: "foreach nested invalid", action: Foreach("items", "item", "", ActionConfig{}), wantErr: true, errContains: "action 0"},
		{name: "if without cond", action: If(Otherwise(Raise("x"))), wantErr: true, errContains: "first branch"},
		{
			name:        "else not last",
			action:      If(When("a", Raise("x")), Otherwise(Raise("y")), When("b", Raise("z"))),
			wantErr:     true,
			errContains: "else branch must be last",
		},
		{name: "nested invalid", action: If(When("a", ActionConfig{})), wantErr: true, errContains: "action 0"},
		{name: "none", action: ActionConfig{}, wantErr: true, errContains: "exactly one variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(errMessage(err), tt.errContains) {
				t.Errorf("Validate() error = %q, want containing %q", errMessage(err), tt.errContains)
			}
		})
	}
}

func TestActionLabel(t *testing.T) {
	if got := Do("notify", func(ActionContext) error { return nil }).Label(); got != "notify" {
		t.Errorf("Label() = %q, want notify", got)
	}
	if got := Raise("x").Label(); got != "raise" {
		t.Errorf("Label() = %q, want raise", got)
	}
}
