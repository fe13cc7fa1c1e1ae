// Package transport defines the two-function contract the operations
// coordinator consumes to reach the network (spec §6.1): a
// request/response `HTTPFunc` for queries and mutations, and a
// subscribe-style `WSFunc` for subscriptions. Callers provide their own
// implementation (e.g. over net/http, a WebSocket client, or an
// in-memory fake for tests); this package only describes the shape.
package transport

import "context"

// RequestContext carries everything a transport implementation needs
// to perform one operation.
type RequestContext struct {
	Query         string
	Variables     map[string]any
	OperationType string // "query", "mutation", or "subscription"
	OperationName string
}

// GraphQLError is one entry of a GraphQL response's top-level "errors"
// array.
type GraphQLError struct {
	Message    string
	Path       []any
	Extensions map[string]any
}

// ResponseError is the structured failure a transport call can report
// alongside (or instead of) data: a network-level failure, a non-empty
// GraphQL errors array, or both (partial data with errors is valid —
// spec §10, "partial data is still normalized").
type ResponseError struct {
	NetworkError  error
	GraphQLErrors []GraphQLError
}

func (e *ResponseError) Error() string {
	if e == nil {
		return ""
	}
	if e.NetworkError != nil {
		return "[Network] " + e.NetworkError.Error()
	}
	msg := ""
	for i, ge := range e.GraphQLErrors {
		if i > 0 {
			msg += "; "
		}
		msg += ge.Message
	}
	return "[GraphQL] " + msg
}

// Response is one transport reply: Data may be non-nil even when Err
// is also non-nil (partial response).
type Response struct {
	Data map[string]any
	Err  *ResponseError
}

// HTTPFunc performs one query or mutation. The returned error is
// reserved for the transport call itself failing to complete (context
// cancellation, panic recovery upstream); ordinary network/GraphQL
// failures are reported via Response.Err so the coordinator can still
// see any partial Data.
type HTTPFunc func(ctx context.Context, rc RequestContext) (Response, error)

// Subscription is an open subscription: C delivers each Response in
// order and is closed when the subscription ends; Unsubscribe tears it
// down early.
type Subscription struct {
	C           <-chan Response
	Unsubscribe func()
}

// WSFunc opens one subscription.
type WSFunc func(ctx context.Context, rc RequestContext) (*Subscription, error)

// Transport is the full contract; WS is nil for clients that never
// subscribe.
type Transport struct {
	HTTP HTTPFunc
	WS   WSFunc
}
