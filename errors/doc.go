// Package errors defines AppError, the error type returned across filterkit.
//
// Every AppError carries a machine-readable code, an HTTP status for the
// admin API and a retryable flag. Lifecycle registry failures use two codes:
//
//	FILTER_LIFECYCLE_FAILED  a filter hook returned an error or panicked
//	ILLEGAL_STATE            a lifecycle call arrived out of protocol order
//
// Use HasCode to classify an error anywhere in a wrapped chain, and
// ToResponse to render one as the admin API's JSON error envelope.
package errors
