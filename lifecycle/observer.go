package lifecycle

import "context"

// TransitionKind classifies a registry state change.
type TransitionKind string

const (
	// TransitionInit: a filter was initialized and entered the registry.
	TransitionInit TransitionKind = "init"
	// TransitionDestroy: a filter left the registry and was destroyed.
	TransitionDestroy TransitionKind = "destroy"
	// TransitionAcquire: a pre-add incremented the reference count.
	TransitionAcquire TransitionKind = "acquire"
	// TransitionCommit: a post-add succeeded.
	TransitionCommit TransitionKind = "commit"
	// TransitionRelease: a post-remove decremented the reference count.
	TransitionRelease TransitionKind = "release"
	// TransitionRollback: a failed hook was compensated.
	TransitionRollback TransitionKind = "rollback"
	// TransitionFailure: a hook returned an error.
	TransitionFailure TransitionKind = "failure"
)

// Transition describes one registry state change.
type Transition struct {
	Kind      TransitionKind
	Operation string
	Filter    string
	SessionID string
	Name      string
	// Count is the reference count after the change; -1 once the entry is gone.
	Count int
	Err   error
}

// Observer is notified of every transition. Observers run with the registry
// lock held and must be quick and must not call back into the registry.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

// OnTransition calls fn(ctx, t).
func (fn ObserverFunc) OnTransition(ctx context.Context, t Transition) { fn(ctx, t) }
