package watch

import (
	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// FragmentWatcher tracks one compiled fragment bound to a specific
// entity id, re-emitting whenever that entity's (or a referenced
// entity's) dependency set changes. Materialize differs from a query
// watcher only in that the root record is the entity id rather than
// "@" (spec §4.5, "Fragment materialize").
type FragmentWatcher struct {
	base
}

// NewFragmentWatcher materializes once against entityID and registers
// the watcher with registry.
func NewFragmentWatcher(registry *Registry, store *graph.Store, identity *document.Identity, cache *document.ResultCache, p *plan.Plan, vars map[string]any, entityID string, opts document.Options, onData OnDataFunc, onError OnErrorFunc) *FragmentWatcher {
	w := &FragmentWatcher{base{
		registry: registry,
		store:    store,
		identity: identity,
		cache:    cache,
		plan:     p,
		vars:     vars,
		rootID:   entityID,
		opts:     opts,
		onData:   onData,
		onError:  onError,
		id:       registry.NextID(),
	}}
	w.reconcile(true)
	registry.Register(w)
	return w
}

// FragmentUpdateOptions parametrizes FragmentWatcher.Update.
type FragmentUpdateOptions struct {
	ID        string
	Variables map[string]any
}

// Update rebinds the watcher's entity target and/or variables and
// re-materializes, always emitting (a rebind target changes the
// dependency set outright, so "unchanged" rarely applies).
func (w *FragmentWatcher) Update(opts FragmentUpdateOptions) {
	if opts.ID != "" {
		w.rootID = opts.ID
	}
	if opts.Variables != nil {
		w.vars = opts.Variables
	}
	w.reconcile(true)
	w.registry.Register(w)
}

// Stop removes the watcher from its registry.
func (w *FragmentWatcher) Stop() { w.registry.Unregister(w) }

// Last returns the most recently materialized result and whether one
// has been produced yet.
func (w *FragmentWatcher) Last() (document.Result, bool) { return w.lastResult, w.hasLast }
