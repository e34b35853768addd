package primitives

import (
	"context"
	"fmt"
	"time"
)

// ActionKind names an executable content variant.
type ActionKind string

const (
	ActionRaise   ActionKind = "raise"
	ActionAssign  ActionKind = "assign"
	ActionLog     ActionKind = "log"
	ActionScript  ActionKind = "script"
	ActionSend    ActionKind = "send"
	ActionCancel  ActionKind = "cancel"
	ActionIf      ActionKind = "if"
	ActionForeach ActionKind = "foreach"
	ActionFunc    ActionKind = "func"
)

// Send targets with special meaning.
const (
	TargetInternal = "#_internal"
	TargetParent   = "#_parent"
	// TargetInvokePrefix followed by an invoke id addresses a child invocation.
	TargetInvokePrefix = "#_"
)

// ActionContext is the handle a Go action receives. Events raised or sent
// through it go to the executor that runs the action.
type ActionContext interface {
	Context() context.Context
	Data() *Context
	Event() Event
	StateID() string
	Raise(name string, data any)
	Send(evt Event, target string) error
}

// ActionFn is a Go action.
type ActionFn func(ActionContext) error

// ActionConfig is one executable content element. Exactly one variant field is set.
type ActionConfig struct {
	Raise  *RaiseAction  `json:"raise,omitempty" yaml:"raise,omitempty"`
	Assign *AssignAction `json:"assign,omitempty" yaml:"assign,omitempty"`
	Log    *LogAction    `json:"log,omitempty" yaml:"log,omitempty"`
	Script *ScriptAction `json:"script,omitempty" yaml:"script,omitempty"`
	Send   *SendAction   `json:"send,omitempty" yaml:"send,omitempty"`
	Cancel *CancelAction `json:"cancel,omitempty" yaml:"cancel,omitempty"`
	If     *IfAction     `json:"if,omitempty" yaml:"if,omitempty"`

	Foreach *ForeachAction `json:"foreach,omitempty" yaml:"foreach,omitempty"`

	Func ActionFn `json:"-" yaml:"-"`
	// Name labels a Func action in logs and reports.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

type RaiseAction struct {
	Event string `json:"event" yaml:"event"`
}

type AssignAction struct {
	Location string `json:"location" yaml:"location"`
	Expr     string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

type LogAction struct {
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Expr  string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

type ScriptAction struct {
	Source string `json:"source" yaml:"source"`
}

// SendAction delivers an event. An empty target is the executor's own
// external queue. A delayed send is held by the executor until it is due and
// can be cancelled by its send id until then.
type SendAction struct {
	Event      string        `json:"event,omitempty" yaml:"event,omitempty"`
	EventExpr  string        `json:"eventexpr,omitempty" yaml:"eventexpr,omitempty"`
	Target     string        `json:"target,omitempty" yaml:"target,omitempty"`
	TargetExpr string        `json:"targetexpr,omitempty" yaml:"targetexpr,omitempty"`
	ID         string        `json:"id,omitempty" yaml:"id,omitempty"`
	IDLocation string        `json:"idlocation,omitempty" yaml:"idlocation,omitempty"`
	Params     []ParamConfig `json:"params,omitempty" yaml:"params,omitempty"`
	Namelist   []string      `json:"namelist,omitempty" yaml:"namelist,omitempty"`
	Content    any           `json:"content,omitempty" yaml:"content,omitempty"`

	// Delay is a Go duration such as "500ms". DelayExpr may evaluate to a
	// duration string, a time.Duration or a number of milliseconds.
	Delay     string `json:"delay,omitempty" yaml:"delay,omitempty"`
	DelayExpr string `json:"delayexpr,omitempty" yaml:"delayexpr,omitempty"`
}

type CancelAction struct {
	SendID     string `json:"sendid,omitempty" yaml:"sendid,omitempty"`
	SendIDExpr string `json:"sendidexpr,omitempty" yaml:"sendidexpr,omitempty"`
}

// IfAction runs the actions of the first branch whose Cond holds. A branch
// with an empty Cond is the else branch and must come last.
type IfAction struct {
	Branches []IfBranch `json:"branches" yaml:"branches"`
}

type IfBranch struct {
	Cond    string         `json:"cond,omitempty" yaml:"cond,omitempty"`
	Actions []ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ForeachAction runs Actions once per element of the array or slice Array
// evaluates to, assigning the element to Item and its position to Index.
type ForeachAction struct {
	Array   string         `json:"array" yaml:"array"`
	Item    string         `json:"item" yaml:"item"`
	Index   string         `json:"index,omitempty" yaml:"index,omitempty"`
	Actions []ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Raise builds a raise action.
func Raise(event string) ActionConfig {
	return ActionConfig{Raise: &RaiseAction{Event: event}}
}

// Assign builds an assign action evaluating expr.
func Assign(location, expr string) ActionConfig {
	return ActionConfig{Assign: &AssignAction{Location: location, Expr: expr}}
}

// AssignValue builds an assign action with a literal value.
func AssignValue(location string, value any) ActionConfig {
	return ActionConfig{Assign: &AssignAction{Location: location, Value: value}}
}

// Log builds a log action.
func Log(label, expr string) ActionConfig {
	return ActionConfig{Log: &LogAction{Label: label, Expr: expr}}
}

// Script builds a script action.
func Script(source string) ActionConfig {
	return ActionConfig{Script: &ScriptAction{Source: source}}
}

// Send builds a send action for a static event and target.
func Send(event, target string) ActionConfig {
	return ActionConfig{Send: &SendAction{Event: event, Target: target}}
}

// SendAfter builds a send action delivered after delay.
func SendAfter(event, target string, delay time.Duration) ActionConfig {
	return ActionConfig{Send: &SendAction{Event: event, Target: target, Delay: delay.String()}}
}

// Cancel builds a cancel action for a static send id.
func Cancel(sendID string) ActionConfig {
	return ActionConfig{Cancel: &CancelAction{SendID: sendID}}
}

// Foreach builds a foreach action. index may be empty.
func Foreach(array, item, index string, actions ...ActionConfig) ActionConfig {
	return ActionConfig{Foreach: &ForeachAction{Array: array, Item: item, Index: index, Actions: actions}}
}

// If builds a conditional block.
func If(branches ...IfBranch) ActionConfig {
	return ActionConfig{If: &IfAction{Branches: branches}}
}

// When is a conditional branch.
func When(cond string, actions ...ActionConfig) IfBranch {
	return IfBranch{Cond: cond, Actions: actions}
}

// Otherwise is the else branch.
func Otherwise(actions ...ActionConfig) IfBranch {
	return IfBranch{Actions: actions}
}

// Do wraps a Go function as an action.
func Do(name string, fn ActionFn) ActionConfig {
	return ActionConfig{Func: fn, Name: name}
}

// Kind returns the variant that is set, or "" when none or several are.
func (a ActionConfig) Kind() ActionKind {
	var kind ActionKind
	n := 0
	set := func(ok bool, k ActionKind) {
		if ok {
			kind = k
			n++
		}
	}
	set(a.Raise != nil, ActionRaise)
	set(a.Assign != nil, ActionAssign)
	set(a.Log != nil, ActionLog)
	set(a.Script != nil, ActionScript)
	set(a.Send != nil, ActionSend)
	set(a.Cancel != nil, ActionCancel)
	set(a.If != nil, ActionIf)
	set(a.Foreach != nil, ActionForeach)
	set(a.Func != nil, ActionFunc)
	if n != 1 {
		return ""
	}
	return kind
}

// Label names the action for logs.
func (a ActionConfig) Label() string {
	if a.Func != nil && a.Name != "" {
		return a.Name
	}
	return string(a.Kind())
}

// Validate checks that exactly one variant is set and its required fields.
func (a ActionConfig) Validate() error {
	switch a.Kind() {
	case ActionRaise:
		if a.Raise.Event == "" {
			return CloneError(ErrInvalidAction, "raise requires an event", nil, nil)
		}
	case ActionAssign:
		if a.Assign.Location == "" {
			return CloneError(ErrInvalidAction, "assign requires a location", nil, nil)
		}
	case ActionScript:
		if a.Script.Source == "" {
			return CloneError(ErrInvalidAction, "script requires a source", nil, nil)
		}
	case ActionSend:
		if a.Send.Event == "" && a.Send.EventExpr == "" {
			return CloneError(ErrInvalidAction, "send requires event or eventexpr", nil, nil)
		}
		if a.Send.Target != "" && a.Send.TargetExpr != "" {
			return CloneError(ErrInvalidAction, "send cannot declare both target and targetexpr", nil, nil)
		}
		if a.Send.ID != "" && a.Send.IDLocation != "" {
			return CloneError(ErrInvalidAction, "send cannot declare both id and idlocation", nil, nil)
		}
		if a.Send.Delay != "" && a.Send.DelayExpr != "" {
			return CloneError(ErrInvalidAction, "send cannot declare both delay and delayexpr", nil, nil)
		}
		if a.Send.Delay != "" {
			d, err := time.ParseDuration(a.Send.Delay)
			if err != nil || d < 0 {
				return CloneError(ErrInvalidAction, fmt.Sprintf("send delay %q is not a duration", a.Send.Delay), err, nil)
			}
		}
		if (a.Send.Delay != "" || a.Send.DelayExpr != "") && a.Send.Target == TargetInternal {
			return CloneError(ErrInvalidAction, "send to #_internal cannot be delayed", nil, nil)
		}
	case ActionCancel:
		if a.Cancel.SendID == "" && a.Cancel.SendIDExpr == "" {
			return CloneError(ErrInvalidAction, "cancel requires sendid or sendidexpr", nil, nil)
		}
	case ActionIf:
		if len(a.If.Branches) == 0 {
			return CloneError(ErrInvalidAction, "if requires at least one branch", nil, nil)
		}
		if a.If.Branches[0].Cond == "" {
			return CloneError(ErrInvalidAction, "if requires a condition on its first branch", nil, nil)
		}
		for i, branch := range a.If.Branches {
			if branch.Cond == "" && i != len(a.If.Branches)-1 {
				return CloneError(ErrInvalidAction, "else branch must be last", nil, nil)
			}
			if err := ValidateActions(branch.Actions); err != nil {
				return err
			}
		}
	case ActionForeach:
		if a.Foreach.Array == "" || a.Foreach.Item == "" {
			return CloneError(ErrInvalidAction, "foreach requires array and item", nil, nil)
		}
		if err := ValidateActions(a.Foreach.Actions); err != nil {
			return err
		}
	case ActionLog, ActionFunc:
	default:
		return CloneError(ErrInvalidAction, "action must set exactly one variant", nil, nil)
	}
	return nil
}

// ValidateActions validates every action in a block.
func ValidateActions(actions []ActionConfig) error {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return CloneError(ErrInvalidAction, fmt.Sprintf("action %d (%s) is invalid", i, a.Label()), err, nil)
		}
	}
	return nil
}
