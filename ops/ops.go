// Package ops implements the operations coordinator (spec §4.6):
// cache-policy evaluation, the epoch guard against stale responses,
// the suspension window, and mutation/subscription root allocation.
// It composes document (normalize/materialize) with a transport and a
// watcher registry.
package ops

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
	"github.com/lockvoid/cachebay/transport"
	"github.com/lockvoid/cachebay/watch"
)

// Policy mirrors the cache policies of spec §4.6. Declared locally
// (rather than imported from the root package) to keep ops free of a
// dependency on the package that depends on it.
type Policy string

const (
	PolicyCacheOnly       Policy = "cache-only"
	PolicyCacheFirst      Policy = "cache-first"
	PolicyCacheAndNetwork Policy = "cache-and-network"
	PolicyNetworkOnly     Policy = "network-only"
)

// Logger is the minimal diagnostics sink the coordinator reports
// non-fatal conditions through (a dropped stale response). Declared
// locally, mirroring Policy, to avoid an import
// cycle with the root package.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// Coordinator is the operations coordinator.
type Coordinator struct {
	Store    *graph.Store
	Identity *document.Identity
	Cache    *document.ResultCache
	Watchers *watch.Registry
	Transport transport.Transport
	Logger    Logger

	SuspensionTimeout time.Duration
	HydrationTimeout  time.Duration
	Hydrating         bool

	epochs      map[string]int64
	suspendedAt map[string]time.Time

	mutationCounter     int64
	subscriptionCounter int64

	group singleflight.Group
}

// New returns a ready Coordinator. logger may be nil, in which case
// diagnostics are discarded.
func New(store *graph.Store, identity *document.Identity, cache *document.ResultCache, watchers *watch.Registry, t transport.Transport, logger Logger, suspensionTimeout, hydrationTimeout time.Duration) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{
		Store:             store,
		Identity:          identity,
		Cache:             cache,
		Watchers:          watchers,
		Transport:         t,
		Logger:            logger,
		SuspensionTimeout: suspensionTimeout,
		HydrationTimeout:  hydrationTimeout,
		epochs:            map[string]int64{},
		suspendedAt:       map[string]time.Time{},
	}
}

// QueryResult is the outcome of ExecuteQuery.
type QueryResult struct {
	document.Result
	FromNetwork bool
	Err         error
}

// ExecuteQuery runs the cache-policy decision table for one query
// (spec §4.6). onCacheData, if non-nil, is invoked synchronously with
// the cached result before a network fetch begins under
// cache-and-network.
func (c *Coordinator) ExecuteQuery(ctx context.Context, p *plan.Plan, vars map[string]any, policy Policy, onCacheData func(document.Result)) QueryResult {
	strictSig := p.MakeSignature("strict", vars)
	cached := document.Materialize(c.Store, c.Identity, p, vars, "@", document.Options{Canonical: true, Fingerprint: true}, c.Cache)
	hasCache := cached.OkStrict && cached.StrictSignature == strictSig

	switch policy {
	case PolicyCacheOnly:
		if hasCache {
			return QueryResult{Result: cached}
		}
		return QueryResult{Err: &CacheMissError{Signature: strictSig}}

	case PolicyCacheFirst:
		if hasCache {
			return QueryResult{Result: cached}
		}
		return c.fetch(ctx, p, vars, strictSig)

	case PolicyCacheAndNetwork:
		if hasCache && onCacheData != nil {
			onCacheData(cached)
		}
		return c.fetch(ctx, p, vars, strictSig)

	case PolicyNetworkOnly:
		if c.Hydrating || c.withinSuspension(strictSig) {
			if hasCache {
				return QueryResult{Result: cached}
			}
		}
		return c.fetch(ctx, p, vars, strictSig)

	default:
		return c.fetch(ctx, p, vars, strictSig)
	}
}

func (c *Coordinator) withinSuspension(strictSig string) bool {
	t, ok := c.suspendedAt[strictSig]
	if !ok {
		return false
	}
	return time.Since(t) < c.SuspensionTimeout
}

// fetch performs the network round trip for a query, applying the
// epoch guard and singleflight coalescing keyed by the canonical
// signature.
func (c *Coordinator) fetch(ctx context.Context, p *plan.Plan, vars map[string]any, strictSig string) QueryResult {
	canonicalSig := p.MakeSignature("canonical", vars)
	epoch := c.epochs[canonicalSig] + 1
	c.epochs[canonicalSig] = epoch

	v, err, _ := c.group.Do(canonicalSig, func() (any, error) {
		resp, transportErr := c.Transport.HTTP(ctx, transport.RequestContext{
			Query:         p.NetworkQuery,
			Variables:     vars,
			OperationType: "query",
			OperationName: p.OperationName,
		})
		return resp, transportErr
	})
	if err != nil {
		return QueryResult{Err: err}
	}
	resp := v.(transport.Response)

	if c.epochs[canonicalSig] != epoch {
		// Spec §7: a superseded response is dropped silently — never
		// surfaced to onData or onError. The Logger is the only trace of
		// it.
		c.Logger.Debugf("cachebay: dropping stale response for %s (epoch %d, current %d)", canonicalSig, epoch, c.epochs[canonicalSig])
		return QueryResult{}
	}

	var normErr error
	if resp.Data != nil {
		normErr = document.Normalize(c.Store, c.Identity, p.Root, vars, resp.Data, "@")
	}

	c.suspendedAt[strictSig] = time.Now()

	if normErr != nil {
		return QueryResult{Err: normErr}
	}
	if resp.Err != nil {
		// Partial data is still normalized above; the combined error is
		// still surfaced to the caller (spec §10, error taxonomy).
		result := document.Materialize(c.Store, c.Identity, p, vars, "@", document.Options{Canonical: true, Fingerprint: true, Force: true}, c.Cache)
		return QueryResult{Result: result, FromNetwork: true, Err: combineTransportError(resp.Err)}
	}

	result := document.Materialize(c.Store, c.Identity, p, vars, "@", document.Options{Canonical: true, Fingerprint: true, Force: true}, c.Cache)
	if result.Data == nil {
		return QueryResult{Err: &MaterializeFailure{Signature: strictSig}}
	}

	// Normalize above already ran inside store.Batch, which delivered the
	// touched-record set to the Store's onChange callback (wired by the
	// caller to invalidate the result cache and notify watchers) before
	// this call returns.
	return QueryResult{Result: result, FromNetwork: true}
}

// NextMutationRoot allocates the next "@mutation.N" id, starting at
// "@mutation.0" (spec §4.6, "Mutation root allocation"; §8 Scenario F).
func (c *Coordinator) NextMutationRoot() string {
	n := atomic.AddInt64(&c.mutationCounter, 1) - 1
	return fmt.Sprintf("@mutation.%d", n)
}

// NextSubscriptionRoot allocates the next "@subscription.N" id,
// starting at "@subscription.0".
func (c *Coordinator) NextSubscriptionRoot() string {
	n := atomic.AddInt64(&c.subscriptionCounter, 1) - 1
	return fmt.Sprintf("@subscription.%d", n)
}

// SubscriptionHandle lets a caller tear down a live subscription opened
// by ExecuteSubscription.
type SubscriptionHandle struct {
	Unsubscribe func()
}

// ExecuteSubscription opens a transport-level subscription and
// normalizes every delivered response under a fresh "@subscription.N"
// root, materializing and forwarding the result to onData after each
// one (spec §4.6, §6.1). Delivery is sequential: a response is fully
// normalized and materialized before the next is read off the
// transport's channel.
func (c *Coordinator) ExecuteSubscription(ctx context.Context, p *plan.Plan, vars map[string]any, onData func(document.Result), onError func(error)) (*SubscriptionHandle, error) {
	sub, err := c.Transport.WS(ctx, transport.RequestContext{
		Query:         p.NetworkQuery,
		Variables:     vars,
		OperationType: "subscription",
		OperationName: p.OperationName,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for resp := range sub.C {
			rootID := c.NextSubscriptionRoot()
			if resp.Data != nil {
				if err := document.Normalize(c.Store, c.Identity, p.Root, vars, resp.Data, rootID); err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
			}
			if resp.Err != nil {
				if onError != nil {
					onError(combineTransportError(resp.Err))
				}
				continue
			}
			if onData != nil {
				result := document.Materialize(c.Store, c.Identity, p, vars, rootID, document.Options{Canonical: true, Fingerprint: true, Force: true}, c.Cache)
				onData(result)
			}
		}
	}()

	return &SubscriptionHandle{Unsubscribe: sub.Unsubscribe}, nil
}

// ExecuteMutation normalizes a mutation's network response under a
// fresh "@mutation.N" root, never collapsing repeated identical-arg
// mutations into the same record. Watchers depending on any touched
// entity are notified through the Store's onChange wiring as part of
// Normalize's batch.
func (c *Coordinator) ExecuteMutation(ctx context.Context, p *plan.Plan, vars map[string]any) (document.Result, error) {
	rootID := c.NextMutationRoot()
	resp, err := c.Transport.HTTP(ctx, transport.RequestContext{
		Query: p.NetworkQuery, Variables: vars, OperationType: "mutation", OperationName: p.OperationName,
	})
	if err != nil {
		return document.Result{}, err
	}
	if resp.Data != nil {
		if err := document.Normalize(c.Store, c.Identity, p.Root, vars, resp.Data, rootID); err != nil {
			return document.Result{}, err
		}
	}
	result := document.Materialize(c.Store, c.Identity, p, vars, rootID, document.Options{Canonical: true, Fingerprint: true, Force: true}, c.Cache)
	if resp.Err != nil {
		return result, combineTransportError(resp.Err)
	}
	return result, nil
}
