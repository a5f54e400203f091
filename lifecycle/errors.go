package lifecycle

import (
	"fmt"
	"strings"

	apperrors "github.com/kbukum/filterkit/errors"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/logger"
)

// Operation names used in errors, logs, spans and transitions.
const (
	OpInit       = "init"
	OpDestroy    = "destroy"
	OpPreAdd     = "onPreAdd"
	OpPostAdd    = "onPostAdd"
	OpPreRemove  = "onPreRemove"
	OpPostRemove = "onPostRemove"
)

// installation is the chain context of an add/remove notification.
type installation struct {
	chain filter.Chain
	name  string
	next  filter.NextFilter
}

func (in *installation) sessionID() string {
	if in == nil || in.chain == nil {
		return ""
	}
	return in.chain.SessionID()
}

func (in *installation) chainName() string {
	if in == nil || in.chain == nil {
		return ""
	}
	return in.chain.Name()
}

func (in *installation) filterName() string {
	if in == nil {
		return ""
	}
	return in.name
}

// fields returns log fields for op on f.
func (in *installation) fields(op string, f filter.Filter) map[string]interface{} {
	fields := logger.Fields(logger.FieldOperation, op, logger.FieldFilter, filter.Describe(f))
	if in != nil {
		fields[logger.FieldSessionID] = in.sessionID()
		fields[logger.FieldName] = in.name
		if c := in.chainName(); c != "" {
			fields[logger.FieldChain] = c
		}
	}
	return fields
}

// describe renders the installation for error messages.
func (in *installation) describe(f filter.Filter) string {
	var b strings.Builder
	b.WriteString("filter=")
	b.WriteString(filter.Describe(f))
	if in != nil {
		fmt.Fprintf(&b, " name=%s session=%s", in.name, in.sessionID())
		if c := in.chainName(); c != "" {
			fmt.Fprintf(&b, " chain=%s", c)
		}
	}
	return b.String()
}

func details(op string, f filter.Filter, in *installation) map[string]any {
	d := map[string]any{
		logger.FieldOperation: op,
		logger.FieldFilter:    filter.Describe(f),
	}
	if in != nil {
		d[logger.FieldSessionID] = in.sessionID()
		d[logger.FieldName] = in.name
		if c := in.chainName(); c != "" {
			d[logger.FieldChain] = c
		}
		if n := filter.NameOf(in.next); n != "" {
			d["next"] = n
		}
	}
	return d
}

// hookError wraps a failed hook into the single lifecycle error kind.
func hookError(op string, f filter.Filter, in *installation, cause error) *apperrors.AppError {
	e := apperrors.LifecycleFailed(op, cause).WithDetails(details(op, f, in))
	e.Message = fmt.Sprintf("%s failed: %s", op, in.describe(f))
	return e
}

func notInitialized(op string, f filter.Filter, in *installation) *apperrors.AppError {
	e := apperrors.IllegalState(op, fmt.Sprintf("%s called for a filter that was never initialized: %s", op, in.describe(f)))
	return e.WithDetails(details(op, f, in))
}

func invalidFilter(op string, f filter.Filter) *apperrors.AppError {
	e := apperrors.InvalidInput("filter", fmt.Sprintf("%s requires a non-nil pointer to a non-zero-size filter, got %s", op, filter.Describe(f)))
	return e.WithDetail(logger.FieldOperation, op)
}

// IsHookFailure reports whether err is a wrapped filter hook failure.
func IsHookFailure(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeLifecycleFailed)
}

// IsIllegalState reports whether err reports a protocol violation by the
// caller, such as an add notification for an uninitialized filter.
func IsIllegalState(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeIllegalState)
}

// IsInvalidFilter reports whether err rejects a filter without identity.
func IsInvalidFilter(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeInvalidInput)
}
