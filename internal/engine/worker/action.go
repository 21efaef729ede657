package worker

import "go.trai.ch/kiln/internal/core/domain"

// Action is a composable hook applied to a work item before dispatch.
// Actions let callers attach cross-cutting behavior (logging, payload
// transformation, marking no-op items) without the pool knowing about it.
type Action interface {
	Execute(item *domain.WorkItem)
}

type nullAction struct{}

func (nullAction) Execute(*domain.WorkItem) {}

// doNothing is the shared no-op singleton. No-op detection is a value-level
// identity comparison against it, so an empty composite costs nothing at
// execution time.
var doNothing Action = nullAction{}

// DoNothing returns the shared action that does nothing.
func DoNothing() Action {
	return doNothing
}

// IsNoOp reports whether the action is the shared no-op.
func IsNoOp(a Action) bool {
	return a == nil || a == doNothing
}

// Composite creates an action that calls each given action in order. No-op
// entries are dropped at composition time; an empty result collapses to the
// shared no-op and a single survivor is returned unwrapped.
func Composite(actions ...Action) Action {
	filtered := make([]Action, 0, len(actions))
	for _, a := range actions {
		if !IsNoOp(a) {
			filtered = append(filtered, a)
		}
	}
	switch len(filtered) {
	case 0:
		return doNothing
	case 1:
		return filtered[0]
	default:
		return &compositeAction{actions: filtered}
	}
}

type compositeAction struct {
	actions []Action
}

func (c *compositeAction) Execute(item *domain.WorkItem) {
	for _, a := range c.actions {
		a.Execute(item)
	}
}

// Filter creates an action that forwards the item to the given action only
// when the predicate is satisfied.
func Filter(action Action, pred func(*domain.WorkItem) bool) Action {
	if IsNoOp(action) {
		return doNothing
	}
	return &filteredAction{action: action, pred: pred}
}

type filteredAction struct {
	action Action
	pred   func(*domain.WorkItem) bool
}

func (f *filteredAction) Execute(item *domain.WorkItem) {
	if f.pred(item) {
		f.action.Execute(item)
	}
}

// ToAction wraps a function in an Action that ignores the item. A nil
// function yields the shared no-op.
func ToAction(fn func()) Action {
	if fn == nil {
		return doNothing
	}
	return &funcAction{fn: fn}
}

type funcAction struct {
	fn func()
}

func (f *funcAction) Execute(*domain.WorkItem) {
	f.fn()
}

// With applies the action to the item and returns the item.
func With(item *domain.WorkItem, action Action) *domain.WorkItem {
	action.Execute(item)
	return item
}
