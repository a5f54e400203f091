package filter

import (
	"context"
	"fmt"
	"reflect"
)

// Filter is a reusable processing unit with install/uninstall lifecycle
// hooks. Init and Destroy run at most once per registration; the four
// add/remove hooks run once per chain the filter joins or leaves.
//
// Hooks run while the lifecycle registry holds its lock and must not call
// back into the registry.
type Filter interface {
	// Init performs one-time setup before the first installation.
	Init(ctx context.Context) error
	// Destroy releases resources after the last uninstallation.
	Destroy(ctx context.Context) error

	// OnPreAdd is called before the filter is linked into chain under name.
	OnPreAdd(ctx context.Context, chain Chain, name string, next NextFilter) error
	// OnPostAdd is called after the filter is linked into chain.
	OnPostAdd(ctx context.Context, chain Chain, name string, next NextFilter) error
	// OnPreRemove is called before the filter is unlinked from chain.
	OnPreRemove(ctx context.Context, chain Chain, name string, next NextFilter) error
	// OnPostRemove is called after the filter is unlinked from chain.
	OnPostRemove(ctx context.Context, chain Chain, name string, next NextFilter) error
}

// Chain identifies the chain a filter is installed into. The lifecycle
// registry only reads it for error reporting and logging.
type Chain interface {
	// SessionID returns the identity of the session the chain is attached to.
	SessionID() string
	// Name returns a human-readable chain name; may be empty.
	Name() string
}

// NextFilter is an opaque handle to the filter following an installation.
type NextFilter interface {
	Name() string
}

// Adapter implements every Filter hook as a no-op. Embed it and override
// the hooks a filter cares about.
type Adapter struct{}

func (Adapter) Init(context.Context) error { return nil }
func (Adapter) Destroy(context.Context) error { return nil }

func (Adapter) OnPreAdd(context.Context, Chain, string, NextFilter) error { return nil }
func (Adapter) OnPostAdd(context.Context, Chain, string, NextFilter) error { return nil }
func (Adapter) OnPreRemove(context.Context, Chain, string, NextFilter) error { return nil }
func (Adapter) OnPostRemove(context.Context, Chain, string, NextFilter) error { return nil }

// Describe returns a description of the filter instance for logs and
// errors: its String() if it implements fmt.Stringer, else type and address.
func Describe(f Filter) string {
	if f == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(f)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Sprintf("%T(nil)", f)
	}
	if s, ok := f.(fmt.Stringer); ok {
		return s.String()
	}
	if v.Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%#x", f, v.Pointer())
	}
	return fmt.Sprintf("%T", f)
}

// HasIdentity reports whether f can be tracked by identity: a non-nil
// pointer to a type with a non-zero size. Value-typed filters compare by
// value, and pointers to distinct zero-size values may compare equal, so in
// both cases two distinct instances could collide.
func HasIdentity(f Filter) bool {
	if f == nil {
		return false
	}
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	return v.Type().Elem().Size() > 0
}

// NameOf returns next.Name(), tolerating a nil handle.
func NameOf(next NextFilter) string {
	if next == nil {
		return ""
	}
	return next.Name()
}
