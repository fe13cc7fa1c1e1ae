// Package watch implements the dependency-indexed watcher registry
// (spec §4.7): QueryWatcher and FragmentWatcher re-materialize and
// compare __version on every graph touch that intersects their
// dependency set, emitting in registration order.
package watch

// Watcher is anything the Registry can notify: a QueryWatcher or a
// FragmentWatcher.
type Watcher interface {
	// ID is a stable identity for this watcher within one Registry.
	ID() int64
	// Dependencies is the watcher's current dependency set, read after
	// every materialize.
	Dependencies() map[string]struct{}
	// Reconcile re-materializes and emits onData if the result
	// changed. Called by the registry; never called concurrently with
	// another Reconcile (single-threaded cooperative model, spec §5).
	Reconcile()
}

// Registry is the reverse index {recordId -> set of watchers} plus the
// registration-order list used to deliver notifications deterministically.
type Registry struct {
	order    []Watcher
	byID     map[int64]int // watcher id -> index into order
	byRecord map[string]map[int64]Watcher
	nextID   int64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     map[int64]int{},
		byRecord: map[string]map[int64]Watcher{},
	}
}

// NextID allocates a stable watcher id for a new QueryWatcher/FragmentWatcher.
func (r *Registry) NextID() int64 {
	r.nextID++
	return r.nextID
}

// Register adds w to the registry and indexes its current
// dependencies. Call again after any materialize that changes w's
// dependency set (Reindex does this without re-appending to order).
func (r *Registry) Register(w Watcher) {
	if _, ok := r.byID[w.ID()]; !ok {
		r.byID[w.ID()] = len(r.order)
		r.order = append(r.order, w)
	}
	r.Reindex(w)
}

// Reindex drops w's old dependency entries and re-adds its current
// ones. Call after every Reconcile/update, since materialize may touch
// a different record set than the previous call.
func (r *Registry) Reindex(w Watcher) {
	for id, set := range r.byRecord {
		delete(set, w.ID())
		if len(set) == 0 {
			delete(r.byRecord, id)
		}
	}
	for id := range w.Dependencies() {
		set, ok := r.byRecord[id]
		if !ok {
			set = map[int64]Watcher{}
			r.byRecord[id] = set
		}
		set[w.ID()] = w
	}
}

// Unregister removes w entirely.
func (r *Registry) Unregister(w Watcher) {
	idx, ok := r.byID[w.ID()]
	if !ok {
		return
	}
	r.order = append(r.order[:idx], r.order[idx+1:]...)
	delete(r.byID, w.ID())
	for i := idx; i < len(r.order); i++ {
		r.byID[r.order[i].ID()] = i
	}
	for id, set := range r.byRecord {
		delete(set, w.ID())
		if len(set) == 0 {
			delete(r.byRecord, id)
		}
	}
}

// OnChange is the graph.ChangeFunc: every watcher whose dependency set
// intersects touched is reconciled, in registration order (spec §5
// "Watcher emissions in response to one batch are delivered in
// registration order").
func (r *Registry) OnChange(touched map[string]struct{}) {
	affected := map[int64]struct{}{}
	for id := range touched {
		for wid := range r.byRecord[id] {
			affected[wid] = struct{}{}
		}
	}
	if len(affected) == 0 {
		return
	}
	for _, w := range r.order {
		if _, ok := affected[w.ID()]; ok {
			w.Reconcile()
			r.Reindex(w)
		}
	}
}
