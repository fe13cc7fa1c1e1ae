package cachebay

import (
	"context"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/ops"
	"github.com/lockvoid/cachebay/plan"
	"github.com/lockvoid/cachebay/watch"
)

// Client is the cache: a compiled-plan registry over a single entity
// graph, with the operations coordinator and watcher registry wired on
// top. Construct with New; a Client is not safe for concurrent use
// from multiple goroutines without external synchronization, matching
// the single-threaded cooperative model the cache is designed for
// (spec §5).
type Client struct {
	config   *Config
	store    *graph.Store
	identity *document.Identity
	cache    *document.ResultCache
	compiler *plan.Compiler
	watchers *watch.Registry
	ops      *ops.Coordinator
}

// New builds a Client from Options.
func New(opts ...Option) (*Client, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	identity := &document.Identity{Keys: cfg.Keys, Interfaces: cfg.Interfaces}
	cache := document.NewResultCache()
	watchers := watch.NewRegistry()

	// Every graph write reaches this callback: normalize (and so
	// writeQuery/writeFragment) runs inside Store.Batch and delivers one
	// combined touch set, and optimistic rollback delivers the overlay's
	// ids as one set. For each set, the result cache drops any entry that
	// read a touched record, then watchers re-materialize and compare
	// __version before emitting (spec §4.7).
	store := graph.NewStore(func(touched map[string]struct{}) {
		cache.Invalidate(touched)
		watchers.OnChange(touched)
	})

	coordinator := ops.New(store, identity, cache, watchers, cfg.Transport, cfg.Logger, cfg.SuspensionTimeout, cfg.HydrationTimeout)

	return &Client{
		config:   cfg,
		store:    store,
		identity: identity,
		cache:    cache,
		compiler: plan.NewCompiler(),
		watchers: watchers,
		ops:      coordinator,
	}, nil
}

// Compile compiles a GraphQL document into a reusable Plan. Callers
// typically compile once per operation/fragment at program startup and
// reuse the *plan.Plan across calls.
func (c *Client) Compile(doc string, fragmentOrOperationName string) (*plan.Plan, error) {
	return c.compiler.Compile(doc, fragmentOrOperationName)
}

func translateOpsErr(err error) error {
	switch e := err.(type) {
	case *ops.CacheMissError:
		return &CacheMissError{Signature: e.Signature}
	case *ops.MaterializeFailure:
		return &MaterializeFailure{Signature: e.Signature}
	case *ops.CombinedError:
		out := &CombinedError{NetworkError: e.NetworkError}
		for _, ge := range e.GraphQLErrors {
			out.GraphQLErrors = append(out.GraphQLErrors, GraphQLError{Message: ge.Message, Path: ge.Path})
		}
		return out
	default:
		return err
	}
}

// ReadQuery reads a query's current materialized value directly from
// the graph, with no network involvement. ok is false if the graph
// does not yet satisfy the plan.
func (c *Client) ReadQuery(p *plan.Plan, vars map[string]any) (map[string]any, bool) {
	result := document.Materialize(c.store, c.identity, p, vars, "@", document.Options{Canonical: true}, c.cache)
	ok := result.OkStrict || result.OkCanonical
	return result.Data, ok
}

// WriteQuery normalizes data directly into the graph under the query
// root, as if it had arrived from the network. The store's change
// notification (wired in New) invalidates affected result-cache
// entries and re-materializes watchers automatically.
func (c *Client) WriteQuery(p *plan.Plan, vars map[string]any, data map[string]any) error {
	return document.Normalize(c.store, c.identity, p.Root, vars, data, "@")
}

// WatchQuery registers a live subscription to a query's materialized
// result. onData fires immediately with the current state (or once the
// network satisfies it, depending on cachePolicy) and again on every
// subsequent graph touch that changes the result.
func (c *Client) WatchQuery(ctx context.Context, p *plan.Plan, vars map[string]any, policy CachePolicy, onData func(map[string]any), onError func(error)) *watch.QueryWatcher {
	if policy == "" {
		policy = c.config.CachePolicy
	}

	w := watch.NewQueryWatcher(c.watchers, c.store, c.identity, c.cache, p, vars, "@",
		document.Options{Canonical: true, Fingerprint: true},
		func(r document.Result) { onData(r.Data) },
		onError,
	)

	result := c.ops.ExecuteQuery(ctx, p, vars, ops.Policy(policy), func(document.Result) {})
	if result.Err != nil {
		if onError != nil {
			onError(translateOpsErr(result.Err))
		}
		return w
	}
	if result.FromNetwork {
		w.Update(watch.UpdateOptions{Immediate: true})
	}
	return w
}

// ExecuteQuery runs the query exactly once under the given (or
// config-default) cache policy, without registering a watcher.
func (c *Client) ExecuteQuery(ctx context.Context, p *plan.Plan, vars map[string]any, policy CachePolicy) (map[string]any, error) {
	if policy == "" {
		policy = c.config.CachePolicy
	}
	result := c.ops.ExecuteQuery(ctx, p, vars, ops.Policy(policy), nil)
	if result.Err != nil {
		return result.Data, translateOpsErr(result.Err)
	}
	return result.Data, nil
}

// ExecuteMutation sends a mutation, normalizes its response under a
// fresh anonymous root, and notifies watchers.
func (c *Client) ExecuteMutation(ctx context.Context, p *plan.Plan, vars map[string]any) (map[string]any, error) {
	result, err := c.ops.ExecuteMutation(ctx, p, vars)
	if err != nil {
		return result.Data, translateOpsErr(err)
	}
	return result.Data, nil
}

// ExecuteSubscription opens a live subscription and normalizes each
// delivered response under a fresh subscription root, invoking onData
// after every successful materialization. The returned handle's
// Unsubscribe tears the subscription down.
func (c *Client) ExecuteSubscription(ctx context.Context, p *plan.Plan, vars map[string]any, onData func(map[string]any), onError func(error)) (*ops.SubscriptionHandle, error) {
	handle, err := c.ops.ExecuteSubscription(ctx, p, vars,
		func(r document.Result) {
			if onData != nil {
				onData(r.Data)
			}
		},
		func(err error) {
			if onError != nil {
				onError(translateOpsErr(err))
			}
		},
	)
	if err != nil {
		return nil, translateOpsErr(err)
	}
	return handle, nil
}

// ReadFragment reads an entity's materialized value directly by id.
func (c *Client) ReadFragment(p *plan.Plan, vars map[string]any, id string) (map[string]any, bool) {
	result := document.Materialize(c.store, c.identity, p, vars, id, document.Options{Canonical: true}, c.cache)
	ok := result.OkStrict || result.OkCanonical
	return result.Data, ok
}

// WriteFragment normalizes data directly into the graph under an
// existing entity id.
func (c *Client) WriteFragment(p *plan.Plan, vars map[string]any, id string, data map[string]any) error {
	return document.Normalize(c.store, c.identity, p.Root, vars, data, id)
}

// WatchFragment registers a live subscription to one entity's
// materialized fragment.
func (c *Client) WatchFragment(p *plan.Plan, vars map[string]any, id string, onData func(map[string]any), onError func(error)) *watch.FragmentWatcher {
	return watch.NewFragmentWatcher(c.watchers, c.store, c.identity, c.cache, p, vars, id,
		document.Options{Canonical: true, Fingerprint: true},
		func(r document.Result) { onData(r.Data) },
		onError,
	)
}

// Identify returns the entity id obj would be stored under, and
// whether it is keyable at all (spec §6.2).
func (c *Client) Identify(obj map[string]any) (string, bool) {
	return c.identity.Identify(obj)
}

// OptimisticHandle lets a caller commit or roll back a speculative
// write applied ahead of a mutation's network response (spec §6.2
// modifyOptimistic).
type OptimisticHandle struct {
	overlay *graph.Overlay
	logger  Logger
}

// Commit discards the overlay without emitting touches: the caller is
// expected to have already (or about to) write the authoritative data
// into the base graph, whose own write emits the touches instead.
func (h *OptimisticHandle) Commit() {
	h.logger.Debugf("cachebay: committing overlay %s", h.overlay)
	h.overlay.Commit()
}

// Rollback discards the overlay and re-notifies every watcher that had
// been shadowed by it, falling through to whatever is now topmost.
func (h *OptimisticHandle) Rollback() {
	h.logger.Debugf("cachebay: rolling back overlay %s", h.overlay)
	h.overlay.Rollback()
}

// ModifyOptimistic opens a new overlay, lets fn write speculative
// patches into it via the returned *graph.Overlay, and returns a
// handle to commit or roll the overlay back.
func (c *Client) ModifyOptimistic(fn func(overlay *graph.Overlay)) *OptimisticHandle {
	overlay := c.store.OpenOptimistic("")
	fn(overlay)
	return &OptimisticHandle{overlay: overlay, logger: c.config.Logger}
}

// Dehydrate serializes the entire base graph (spec §6.4).
func (c *Client) Dehydrate() Snapshot {
	return Dehydrate(c.store)
}

// Hydrate loads a previously dehydrated snapshot into the base graph,
// replacing each record whose id the snapshot holds; records absent
// from the snapshot are left in place. LoadBase bypasses change notification by design (it predates
// any watcher registration during startup hydration), so watchers are
// notified explicitly here for the case where Hydrate runs after
// watchers already exist.
func (c *Client) Hydrate(snap Snapshot) error {
	if err := Hydrate(c.store, snap); err != nil {
		return err
	}
	touched := make(map[string]struct{}, len(snap.Records))
	for id := range snap.Records {
		touched[id] = struct{}{}
	}
	c.cache.Invalidate(touched)
	c.watchers.OnChange(touched)
	return nil
}
