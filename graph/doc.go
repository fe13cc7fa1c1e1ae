// Package graph provides the flat entity record store underlying the
// cache: stable string identities, per-record version numbers, batched
// change notification, and optimistic overlays.
//
// # Records and links
//
// A Record is a map from field key to value. A value is a scalar, a
// Link (pointer to another record), a LinkList (ordered pointers), or a
// nested scalar/list structure. There are no pointers between records —
// all cross-references are by string id, so the graph has no ownership
// cycles and can be walked, serialized, and garbage-collected trivially.
//
// # Versions and batching
//
//	store := graph.NewStore(func(touched map[string]struct{}) {
//	    // notify watchers
//	})
//	store.Batch(func() {
//	    store.PutRecord("User:u1", graph.Record{"name": "Ada"})
//	    store.PutRecord("User:u2", graph.Record{"name": "Grace"})
//	})
//	// onChange is invoked exactly once, with {"User:u1", "User:u2"}.
//
// # Optimistic overlays
//
//	ov := store.OpenOptimistic("")
//	ov.PutRecord("User:u1", graph.Record{"name": "pending..."})
//	// reads of "User:u1" now see the overlay's copy.
//	ov.Rollback() // or ov.Commit()
package graph
