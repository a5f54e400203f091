// Package lifecycle implements the filter lifecycle registry: the single
// authority deciding when a shared filter is initialized, when it is
// destroyed, and how many chains currently hold it.
//
// A Registry is constructed once by the application's composition root and
// passed by pointer to every chain. Every lifecycle operation is
// serialized by one mutex that stays held while filter hooks run, so the
// reference count and the init/destroy decision are always evaluated
// atomically with respect to every other transition in the process.
//
// Chain management must follow this protocol per filter instance:
//
//	InitIfNecessary -> OnPreAdd -> OnPostAdd      (attach)
//	OnPreRemove -> OnPostRemove -> DestroyIfNecessary (detach)
//
// Every failure is returned as a *errors.AppError carrying the operation,
// the chain's session, the filter's name in the chain and the filter
// description. Compensating count changes happen before the error is
// returned:
//
//   - a failed Init removes the entry again, so the next InitIfNecessary retries;
//   - a failed OnPreAdd reverts its own increment;
//   - a failed OnPostAdd releases the increment taken by OnPreAdd;
//   - OnPostRemove releases exactly once whether or not its hook fails.
//
// Hook panics are recovered and reported as hook failures.
//
// Hooks and observers run with the lock held. They must not call back into
// the same Registry; doing so deadlocks.
package lifecycle
