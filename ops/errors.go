package ops

import (
	"fmt"

	"github.com/lockvoid/cachebay/transport"
)

// combineTransportError adapts a transport.ResponseError into the
// ops-local CombinedError shape.
func combineTransportError(re *transport.ResponseError) error {
	if re == nil {
		return nil
	}
	out := &CombinedError{NetworkError: re.NetworkError}
	for _, ge := range re.GraphQLErrors {
		out.GraphQLErrors = append(out.GraphQLErrors, GraphQLError{Message: ge.Message, Path: ge.Path})
	}
	return out
}

// CacheMissError is returned when a cache-only policy can't be
// satisfied from the graph.
type CacheMissError struct {
	Signature string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("cachebay/ops: cache-only miss for signature %s", e.Signature)
}

// MaterializeFailure marks materialize unexpectedly failing to
// satisfy a plan right after a write that should have covered it.
type MaterializeFailure struct {
	Signature string
}

func (e *MaterializeFailure) Error() string {
	return fmt.Sprintf("cachebay/ops: materialize did not satisfy %s after write", e.Signature)
}

// CombinedError mirrors the root package's CombinedError shape so
// fetch can surface both network and GraphQL-level errors without
// ops importing the root package (which would cycle).
type CombinedError struct {
	NetworkError  error
	GraphQLErrors []GraphQLError
}

// GraphQLError is one entry of a GraphQL response's "errors" array.
type GraphQLError struct {
	Message string
	Path    []any
}

func (e *CombinedError) Error() string {
	if e.NetworkError != nil {
		return "[Network] " + e.NetworkError.Error()
	}
	if len(e.GraphQLErrors) > 0 {
		return "[GraphQL] " + e.GraphQLErrors[0].Message
	}
	return "[GraphQL] unknown error"
}

func (e *CombinedError) Unwrap() error { return e.NetworkError }
