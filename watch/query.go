package watch

import (
	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// QueryWatcher tracks one compiled query's materialized result,
// re-emitting to onData whenever a graph touch changes it (spec
// §4.7). Construct via NewQueryWatcher and keep it registered for the
// lifetime of the subscription; call Stop when done.
type QueryWatcher struct {
	base
}

// NewQueryWatcher materializes once (always emitting, per "immediate"
// first emit) and registers the watcher with registry.
func NewQueryWatcher(registry *Registry, store *graph.Store, identity *document.Identity, cache *document.ResultCache, p *plan.Plan, vars map[string]any, rootID string, opts document.Options, onData OnDataFunc, onError OnErrorFunc) *QueryWatcher {
	w := &QueryWatcher{base{
		registry: registry,
		store:    store,
		identity: identity,
		cache:    cache,
		plan:     p,
		vars:     vars,
		rootID:   rootID,
		opts:     opts,
		onData:   onData,
		onError:  onError,
		id:       registry.NextID(),
	}}
	w.reconcile(true)
	registry.Register(w)
	return w
}

// UpdateOptions parametrizes QueryWatcher.Update.
type UpdateOptions struct {
	Variables map[string]any
	Immediate bool
}

// Update rebinds the watcher's variables and re-materializes. If the
// plan's signature under the new variables differs from before, this
// always re-materializes against the graph (the result cache key
// already changes with it); Immediate forces an emit even when the
// resulting data is unchanged.
func (w *QueryWatcher) Update(opts UpdateOptions) {
	if opts.Variables != nil {
		w.vars = opts.Variables
	}
	w.reconcile(opts.Immediate)
	w.registry.Register(w)
}

// Stop removes the watcher from its registry; it receives no further
// notifications.
func (w *QueryWatcher) Stop() { w.registry.Unregister(w) }

// Last returns the most recently materialized result and whether one
// has been produced yet.
func (w *QueryWatcher) Last() (document.Result, bool) { return w.lastResult, w.hasLast }
