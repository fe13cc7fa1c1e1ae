package cachebay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/plan"
)

// ErrStaleResponse is the sentinel StaleResponseError.Is matches
// against — a response arrived after its epoch was superseded. It is
// always dropped silently by the coordinator and never reaches
// onError; it is exported only so callers instrumenting transports can
// recognize it in logs.
var ErrStaleResponse = errors.New("cachebay: response superseded by a later fetch")

// CacheMissError is returned by executeQuery under the cache-only
// policy when no cached data satisfies the plan.
type CacheMissError struct {
	Signature string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("cachebay: cache-only miss for signature %s", e.Signature)
}

// IsCacheMiss reports whether err is a *CacheMissError.
func IsCacheMiss(err error) bool {
	var e *CacheMissError
	return errors.As(err, &e)
}

// StaleResponseError marks a transport response discarded because its
// epoch was superseded (spec §4.6). The coordinator never surfaces
// this to onData/onError and never constructs it — it exists as a typed
// value for callers instrumenting transports and for tests.
type StaleResponseError struct {
	Signature string
	Epoch     int64
	Current   int64
}

func (e *StaleResponseError) Error() string {
	return fmt.Sprintf("cachebay: stale response for %s (epoch %d, current %d)", e.Signature, e.Epoch, e.Current)
}

func (e *StaleResponseError) Is(err error) bool { return err == ErrStaleResponse }

// IsStale reports whether err is a *StaleResponseError.
func IsStale(err error) bool {
	var e *StaleResponseError
	return errors.As(err, &e)
}

// CombinedError is any mix of a transport-level network error and a
// non-empty GraphQL errors list, per spec §6.2.
type CombinedError struct {
	NetworkError  error
	GraphQLErrors []GraphQLError
}

// GraphQLError is one entry of a GraphQL response's "errors" array, as
// surfaced through CombinedError.
type GraphQLError struct {
	Message string
	Path    []any
}

func (e *CombinedError) Error() string {
	if e.NetworkError != nil {
		return "[Network] " + e.NetworkError.Error()
	}
	var sb strings.Builder
	sb.WriteString("[GraphQL] ")
	for i, ge := range e.GraphQLErrors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(ge.Message)
	}
	return sb.String()
}

func (e *CombinedError) Unwrap() error { return e.NetworkError }

// IsCombined reports whether err is a *CombinedError.
func IsCombined(err error) bool {
	var e *CombinedError
	return errors.As(err, &e)
}

// MaterializeFailure elevates a materialize call that unexpectedly
// returned source="none" after a write that should have satisfied the
// plan (spec §4.6, "ok.* = false after a write the coordinator just
// performed").
type MaterializeFailure struct {
	Signature string
	Err       error
}

func (e *MaterializeFailure) Error() string {
	return fmt.Sprintf("cachebay: materialize failed to satisfy %s after write: %v", e.Signature, e.Err)
}

func (e *MaterializeFailure) Unwrap() error { return e.Err }

// IsMaterializeFailure reports whether err is a *MaterializeFailure.
func IsMaterializeFailure(err error) bool {
	var e *MaterializeFailure
	return errors.As(err, &e)
}

// IsNormalizeError reports whether err is a *document.Error of the
// given kind, re-exported so callers need not import the document
// package directly to test for it.
func IsNormalizeError(err error, kind document.Kind) bool {
	return document.IsKind(err, kind)
}

// IsPlanError reports whether err is a *plan.Error of the given kind.
func IsPlanError(err error, kind plan.ErrorKind) bool {
	return plan.IsKind(err, kind)
}
