// Package graph implements the flat entity record store: stable
// identities, per-record version numbers, batched change notification,
// and optimistic overlays. It is the substrate the canonical, document,
// watch and ops packages read and write through; the plan package does
// not use it.
package graph

import (
	"fmt"
	"sort"
)

// ChangeFunc is invoked once per batch with the set of record ids that
// were touched (created, field-changed, or explicitly Touch'd) during
// that batch. It must not write back into the Store — see Store docs.
type ChangeFunc func(touched map[string]struct{})

// Store is the flat entity graph: a map from entity id to record, plus
// per-record versions and a stack of optimistic overlays.
//
// Store is not safe for concurrent use from multiple goroutines; the
// module's concurrency model (spec §5) is single-threaded cooperative
// scheduling, mirroring a single event loop.
type Store struct {
	records  map[string]Record
	versions map[string]int64

	overlays []*Overlay

	onChange ChangeFunc

	batchDepth int
	pending    map[string]struct{}

	inCallback bool
}

// NewStore creates an empty Store. onChange may be nil, in which case
// touches are tracked internally but never delivered.
func NewStore(onChange ChangeFunc) *Store {
	return &Store{
		records:  make(map[string]Record),
		versions: make(map[string]int64),
		onChange: onChange,
	}
}

func (s *Store) guardReentrancy() {
	if s.inCallback {
		panic("graph: onChange callback must not write back into the store")
	}
}

// Batch runs fn, collecting every touch performed inside it (directly,
// or via nested Batch calls) into a single change set delivered to
// onChange once fn returns. Batches nest: only the outermost call
// delivers the notification.
func (s *Store) Batch(fn func()) {
	s.guardReentrancy()
	top := s.batchDepth == 0
	if top {
		s.pending = make(map[string]struct{})
	}
	s.batchDepth++
	fn()
	s.batchDepth--
	if top {
		pending := s.pending
		s.pending = nil
		s.deliver(pending)
	}
}

func (s *Store) deliver(touched map[string]struct{}) {
	if len(touched) == 0 || s.onChange == nil {
		return
	}
	s.inCallback = true
	defer func() { s.inCallback = false }()
	s.onChange(touched)
}

func (s *Store) recordTouch(id string) {
	if s.batchDepth > 0 {
		s.pending[id] = struct{}{}
		return
	}
	s.deliver(map[string]struct{}{id: {}})
}

// Touch publishes id into the current change batch without altering
// any field.
func (s *Store) Touch(id string) {
	s.guardReentrancy()
	s.recordTouch(id)
}

// PutRecord merge-writes patch's fields onto the record at id (creating
// it if absent) and bumps its version if any field's value changed by
// deep equality. It returns the resulting version and whether it grew.
func (s *Store) PutRecord(id string, patch Record) (version int64, changed bool) {
	s.guardReentrancy()
	rec, ok := s.records[id]
	if !ok {
		rec = make(Record, len(patch))
		s.records[id] = rec
	}
	diff := merge(rec, patch)
	if len(diff) == 0 && ok {
		return s.versions[id], false
	}
	s.versions[id]++
	s.recordTouch(id)
	return s.versions[id], true
}

// GetRecord returns the record visible at id, consulting optimistic
// overlays in stack order (most recently opened first) before falling
// back to the base graph. The returned record is never a partial merge
// of an overlay and the base — invariant per spec §4.2.
func (s *Store) GetRecord(id string) (Record, int64, bool) {
	for i := len(s.overlays) - 1; i >= 0; i-- {
		if rec, ver, ok := s.overlays[i].get(id); ok {
			return rec, ver, true
		}
	}
	rec, ok := s.records[id]
	return rec, s.versions[id], ok
}

// Version returns the current version of id (consulting overlays),
// or 0 if the record does not exist anywhere.
func (s *Store) Version(id string) int64 {
	_, ver, _ := s.GetRecord(id)
	return ver
}

// Ids returns every entity id currently present in the base graph, for
// dehydration. Overlay-only ids are intentionally excluded: snapshots
// persist committed state.
func (s *Store) Ids() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BaseRecord returns the record exactly as stored in the base graph,
// bypassing overlays. Used by dehydrate.
func (s *Store) BaseRecord(id string) (Record, int64, bool) {
	rec, ok := s.records[id]
	return rec, s.versions[id], ok
}

// LoadBase installs a record directly into the base graph at a given
// version, bypassing merge/version-bump semantics. Used by hydrate.
func (s *Store) LoadBase(id string, rec Record, version int64) {
	s.records[id] = rec
	s.versions[id] = version
}

// Overlay returns the named overlay if it is currently open, for
// debugging/introspection.
func (s *Store) Overlay(name string) (*Overlay, bool) {
	for _, o := range s.overlays {
		if o.name == name {
			return o, true
		}
	}
	return nil, false
}

func (s *Store) describeOverlay(name string) string {
	return fmt.Sprintf("optimistic overlay %q", name)
}
