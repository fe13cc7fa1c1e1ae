package cachebay

import (
	"fmt"

	"github.com/lockvoid/cachebay/graph"
)

// SnapshotFormatVersion is the integer format tag carried by every
// Snapshot (spec §6.4). It identifies the shape of Snapshot itself,
// not any individual record's version.
const SnapshotFormatVersion = 1

// Snapshot is the serializable form of an entire graph: entity id ->
// record, plus a format version tag. Embedded refs become {"__ref":
// id}; link lists become {"__refs": [ids...]} (spec §6.4).
type Snapshot struct {
	Records map[string]map[string]any `json:"records" msgpack:"records"`
	Version int                       `json:"version" msgpack:"version"`
}

// Dehydrate serializes every base-graph record in store (overlays are
// intentionally excluded — spec graph.Store.Ids doc).
func Dehydrate(store *graph.Store) Snapshot {
	ids := store.Ids()
	records := make(map[string]map[string]any, len(ids))
	for _, id := range ids {
		rec, _, ok := store.BaseRecord(id)
		if !ok {
			continue
		}
		records[id] = encodeRecord(rec)
	}
	return Snapshot{Records: records, Version: SnapshotFormatVersion}
}

// Hydrate loads a Snapshot into store's base graph, replacing each
// record whose id the snapshot holds; records absent from the snapshot
// are left in place.
// Per-record versions are not part of the serialized format (only the
// overall format tag is); every hydrated record starts at version 1,
// which is sufficient since watchers only ever compare versions within
// one process lifetime, never across a dehydrate/hydrate boundary.
func Hydrate(store *graph.Store, snap Snapshot) error {
	if snap.Version != SnapshotFormatVersion {
		return fmt.Errorf("cachebay: unsupported snapshot format version %d", snap.Version)
	}
	for id, rec := range snap.Records {
		store.LoadBase(id, decodeRecord(rec), 1)
	}
	return nil
}

func encodeRecord(rec graph.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch vv := v.(type) {
	case graph.Link:
		return map[string]any{"__ref": vv.Ref}
	case graph.LinkList:
		return map[string]any{"__refs": vv.Refs}
	default:
		return v
	}
}

func decodeRecord(rec map[string]any) graph.Record {
	out := make(graph.Record, len(rec))
	for k, v := range rec {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	if ref, ok := m["__ref"].(string); ok {
		return graph.Link{Ref: ref}
	}
	if refs, ok := m["__refs"]; ok {
		switch rv := refs.(type) {
		case []string:
			return graph.LinkList{Refs: rv}
		case []any:
			out := make([]string, len(rv))
			for i, r := range rv {
				out[i], _ = r.(string)
			}
			return graph.LinkList{Refs: out}
		}
	}
	return v
}
