package chain

import (
	"context"
	stderrors "errors"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/filterkit/errors"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/logger"
	"github.com/kbukum/filterkit/validation"
)

// TailName is the NextFilter name handed to the last filter of a chain.
const TailName = "tail"

const maxNameLength = 128

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// Lifecycle is the registry protocol a chain drives. *lifecycle.Registry
// implements it.
type Lifecycle interface {
	InitIfNecessary(ctx context.Context, f filter.Filter) error
	OnPreAdd(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error
	OnPostAdd(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error
	OnPreRemove(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error
	OnPostRemove(ctx context.Context, chain filter.Chain, name string, f filter.Filter, next filter.NextFilter) error
	DestroyIfNecessary(ctx context.Context, f filter.Filter) error
}

type entry struct {
	name   string
	filter filter.Filter
}

// Name implements filter.NextFilter.
func (e *entry) Name() string { return e.name }

type tail struct{}

func (tail) Name() string { return TailName }

// Chain is an ordered list of named filters bound to one session.
// It implements filter.Chain.
type Chain struct {
	mu        sync.Mutex
	lifecycle Lifecycle
	sessionID string
	name      string
	entries   []*entry
	log       *logger.Logger
}

var _ filter.Chain = (*Chain)(nil)

// Option configures a Chain.
type Option func(*Chain)

// WithName sets the chain's display name.
func WithName(name string) Option {
	return func(c *Chain) { c.name = name }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(c *Chain) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// WithLogger sets the chain logger. Defaults to logger.Get("chain").
func WithLogger(l *logger.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates an empty chain bound to a fresh session ID.
func New(lc Lifecycle, opts ...Option) *Chain {
	c := &Chain{
		lifecycle: lc,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get("chain")
	}
	c.log = c.log.WithFields(logger.Fields(logger.FieldSessionID, c.sessionID))
	return c
}

// SessionID implements filter.Chain.
func (c *Chain) SessionID() string { return c.sessionID }

// Name implements filter.Chain.
func (c *Chain) Name() string { return c.name }

// AddFirst installs f under name at the head of the chain.
func (c *Chain) AddFirst(ctx context.Context, name string, f filter.Filter) error {
	return c.add(ctx, name, f, func() (int, error) { return 0, nil })
}

// AddLast installs f under name at the tail of the chain.
func (c *Chain) AddLast(ctx context.Context, name string, f filter.Filter) error {
	return c.add(ctx, name, f, func() (int, error) { return len(c.entries), nil })
}

// AddBefore installs f under name right before the filter named base.
func (c *Chain) AddBefore(ctx context.Context, base, name string, f filter.Filter) error {
	return c.add(ctx, name, f, func() (int, error) { return c.position(base) })
}

// AddAfter installs f under name right after the filter named base.
func (c *Chain) AddAfter(ctx context.Context, base, name string, f filter.Filter) error {
	return c.add(ctx, name, f, func() (int, error) {
		i, err := c.position(base)
		return i + 1, err
	})
}

// Remove uninstalls the filter registered under name. A failed OnPreRemove
// leaves the filter in place. Once it is unlinked the filter stays out of
// the chain even if a later hook fails.
func (c *Chain) Remove(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, err := c.position(name)
	if err != nil {
		return err
	}
	return c.remove(ctx, i)
}

// Clear removes every filter, last to first, and returns the joined errors
// of the removals that failed.
func (c *Chain) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.entries) - 1; i >= 0; i-- {
		if err := c.remove(ctx, i); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Names returns the filter names in chain order.
func (c *Chain) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Get returns the filter installed under name.
func (c *Chain) Get(name string) (filter.Filter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.name == name {
			return e.filter, true
		}
	}
	return nil, false
}

// Contains reports whether this exact filter instance is in the chain.
func (c *Chain) Contains(f filter.Filter) bool {
	if !filter.HasIdentity(f) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.filter == f {
			return true
		}
	}
	return false
}

// Len returns the number of installed filters.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// add runs the attach protocol, inserting at the index returned by at.
func (c *Chain) add(ctx context.Context, name string, f filter.Filter, at func() (int, error)) error {
	if err := validation.New().
		Required("name", name).
		MaxLength("name", name, maxNameLength).
		Pattern("name", name, namePattern).
		Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.position(name); err == nil {
		return errors.AlreadyExists("filter").WithDetail(logger.FieldName, name)
	}
	i, err := at()
	if err != nil {
		return err
	}
	next := c.nextOf(i)

	if err := c.lifecycle.InitIfNecessary(ctx, f); err != nil {
		return err
	}
	// Chains lock only themselves, so another chain may destroy f between
	// init and pre-add. Initialize once more in that case.
	err = c.lifecycle.OnPreAdd(ctx, c, name, f, next)
	if notInitialized(err) {
		if err = c.lifecycle.InitIfNecessary(ctx, f); err != nil {
			return err
		}
		err = c.lifecycle.OnPreAdd(ctx, c, name, f, next)
	}
	if err != nil {
		return c.abandon(ctx, f, err)
	}

	e := &entry{name: name, filter: f}
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e

	if err := c.lifecycle.OnPostAdd(ctx, c, name, f, next); err != nil {
		c.unlink(i)
		return c.abandon(ctx, f, err)
	}

	c.log.Debug("Filter added", logger.Fields(
		logger.FieldName, name,
		logger.FieldFilter, filter.Describe(f),
		"position", i,
	))
	return nil
}

// abandon destroys a filter whose installation failed, if no other chain
// holds it, and returns cause joined with any destroy failure.
func (c *Chain) abandon(ctx context.Context, f filter.Filter, cause error) error {
	if err := c.lifecycle.DestroyIfNecessary(ctx, f); err != nil {
		return stderrors.Join(cause, err)
	}
	return cause
}

func (c *Chain) remove(ctx context.Context, i int) error {
	e := c.entries[i]
	next := c.nextOf(i + 1)

	if err := c.lifecycle.OnPreRemove(ctx, c, e.name, e.filter, next); err != nil {
		return err
	}
	c.unlink(i)

	var errs []error
	if err := c.lifecycle.OnPostRemove(ctx, c, e.name, e.filter, next); err != nil {
		errs = append(errs, err)
	}
	if err := c.lifecycle.DestroyIfNecessary(ctx, e.filter); err != nil {
		errs = append(errs, err)
	}

	c.log.Debug("Filter removed", logger.Fields(
		logger.FieldName, e.name,
		logger.FieldFilter, filter.Describe(e.filter),
	))
	return stderrors.Join(errs...)
}

// notInitialized reports whether the registry itself refused an operation
// because the filter has no entry, as opposed to a hook failure.
func notInitialized(err error) bool {
	appErr, ok := errors.AsAppError(err)
	return ok && appErr.Code == errors.ErrCodeIllegalState
}

func (c *Chain) unlink(i int) {
	copy(c.entries[i:], c.entries[i+1:])
	c.entries[len(c.entries)-1] = nil
	c.entries = c.entries[:len(c.entries)-1]
}

// nextOf returns the handle of the entry at i, or the tail past the end.
func (c *Chain) nextOf(i int) filter.NextFilter {
	if i < len(c.entries) {
		return c.entries[i]
	}
	return tail{}
}

func (c *Chain) position(name string) (int, error) {
	for i, e := range c.entries {
		if e.name == name {
			return i, nil
		}
	}
	return -1, errors.NotFound("filter", name)
}
