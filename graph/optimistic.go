package graph

import "github.com/google/uuid"

// Overlay is a named, stacked shadow over the base graph. Reads consult
// overlays top-down (most recently opened first); a hit returns a
// complete record copy, never a field-level merge of overlay and base.
type Overlay struct {
	store    *Store
	name     string
	records  map[string]Record
	versions map[string]int64
}

func (o *Overlay) get(id string) (Record, int64, bool) {
	rec, ok := o.records[id]
	if !ok {
		return nil, 0, false
	}
	return rec, o.versions[id], true
}

// OpenOptimistic pushes a new named overlay onto the stack and returns
// it. If name is empty a uuid is generated, mirroring how
// modifyOptimistic mints anonymous handles.
func (s *Store) OpenOptimistic(name string) *Overlay {
	s.guardReentrancy()
	if name == "" {
		name = uuid.NewString()
	}
	o := &Overlay{
		store:    s,
		name:     name,
		records:  make(map[string]Record),
		versions: make(map[string]int64),
	}
	s.overlays = append(s.overlays, o)
	return o
}

// Name returns the overlay's identifying name.
func (o *Overlay) Name() string { return o.name }

// String renders a debug-friendly description, for Logger call sites
// that report on optimistic commit/rollback.
func (o *Overlay) String() string { return o.store.describeOverlay(o.name) }

// PutRecord merge-writes patch onto the record as visible beneath this
// overlay (lower overlays, then base), storing the resulting complete
// record into this overlay. It does not touch the underlying base
// graph or bump base versions.
func (o *Overlay) PutRecord(id string, patch Record) {
	o.store.guardReentrancy()
	base, ok := o.records[id]
	if !ok {
		if below, _, found := o.readBelow(id); found {
			base = below.Clone()
		} else {
			base = make(Record, len(patch))
		}
	}
	merge(base, patch)
	o.records[id] = base
	o.versions[id]++
}

// readBelow resolves id through the overlay stack strictly below this
// overlay, then the base graph.
func (o *Overlay) readBelow(id string) (Record, int64, bool) {
	idx := -1
	for i, ov := range o.store.overlays {
		if ov == o {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if rec, ver, ok := o.store.overlays[i].get(id); ok {
			return rec, ver, true
		}
	}
	rec, ok := o.store.records[id]
	return rec, o.store.versions[id], ok
}

// Commit removes the overlay from the stack without emitting touches.
// The caller is expected to have already written (or be about to
// write) the authoritative data into the base graph, which will emit
// its own touches.
func (o *Overlay) Commit() {
	o.store.guardReentrancy()
	o.store.removeOverlay(o)
}

// Rollback removes the overlay from the stack and emits a touch for
// every record it shadowed, so that subsequent reads fall through to
// whatever is now the topmost layer (another overlay, or base) and
// watchers re-materialize against it.
func (o *Overlay) Rollback() {
	o.store.guardReentrancy()
	o.store.removeOverlay(o)
	touched := make(map[string]struct{}, len(o.records))
	for id := range o.records {
		touched[id] = struct{}{}
	}
	if o.store.batchDepth > 0 {
		for id := range touched {
			o.store.pending[id] = struct{}{}
		}
		return
	}
	o.store.deliver(touched)
}

func (s *Store) removeOverlay(o *Overlay) {
	for i, ov := range s.overlays {
		if ov == o {
			s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
			return
		}
	}
}
