package watch

import (
	"reflect"

	"github.com/lockvoid/cachebay/document"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// OnDataFunc receives a materialized result whenever it changes.
type OnDataFunc func(document.Result)

// OnErrorFunc is the error callback stored on a watcher. reconcile
// never calls it: Materialize reports gaps through its Result rather
// than as an error.
type OnErrorFunc func(error)

// base holds everything shared between QueryWatcher and
// FragmentWatcher: the materialize inputs, last-seen result for
// change detection, and registry bookkeeping.
type base struct {
	registry *Registry
	store    *graph.Store
	identity *document.Identity
	cache    *document.ResultCache

	plan   *plan.Plan
	vars   map[string]any
	rootID string
	opts   document.Options

	onData  OnDataFunc
	onError OnErrorFunc

	id         int64
	hasLast    bool
	lastResult document.Result
}

func (b *base) ID() int64 { return b.id }

func (b *base) Dependencies() map[string]struct{} {
	if !b.hasLast {
		return nil
	}
	return b.lastResult.Dependencies
}

// reconcile re-materializes and emits onData if the root
// __version changed (or, with fingerprinting disabled, if the data is
// structurally different) — spec §4.7 step 3. immediate forces an
// emit even when nothing changed.
func (b *base) reconcile(immediate bool) {
	result := document.Materialize(b.store, b.identity, b.plan, b.vars, b.rootID, b.opts, b.cache)

	emit := immediate || !b.hasLast
	if !emit {
		if b.opts.Fingerprint {
			emit = rootVersion(result) != rootVersion(b.lastResult)
		} else {
			emit = !reflect.DeepEqual(result.Data, b.lastResult.Data)
		}
	}

	b.lastResult = result
	b.hasLast = true

	if emit && b.onData != nil {
		b.onData(result)
	}
}

func (b *base) Reconcile() { b.reconcile(false) }

func rootVersion(r document.Result) int64 {
	if r.Data == nil {
		return 0
	}
	v, _ := r.Data["__version"].(int64)
	return v
}
