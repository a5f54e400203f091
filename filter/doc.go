// Package filter defines the contracts between filterkit's lifecycle
// registry and the code around it: the Filter whose setup and teardown
// are managed, the Chain it is installed into, and the NextFilter handle
// handed to every add/remove notification.
//
// A single Filter instance is commonly shared by many chains. Filters are
// identified by pointer, so concrete filters must be pointer types to a
// struct with at least one non-zero-size field. Pointers to zero-size
// values are not guaranteed to be distinct and are rejected.
//
// # Usage
//
//	type auditFilter struct {
//	    filter.Adapter
//	    sink io.Writer
//	}
//
//	func (a *auditFilter) Init(ctx context.Context) error { ... }
package filter
