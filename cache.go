package cachebay

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotStore is the interface for persisting dehydrated snapshots.
// Users implement this with their preferred backend (a file, Redis, a
// browser-style key/value store); cachebay ships no implementation.
type SnapshotStore interface {
	// Get retrieves a snapshot blob. Returns nil, nil if the key
	// doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a snapshot blob with an optional TTL. ttl == 0 means
	// no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a snapshot.
	Delete(ctx context.Context, key string) error
}

// EncodeSnapshot serializes a Snapshot (spec §6.4's {records, version}
// shape) to msgpack, the compact binary encoding used when persisting
// through a SnapshotStore. The canonical wire format for dehydrate's
// direct return value stays JSON; this is only for the optional
// persisted-store round trip.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return msgpack.Marshal(s)
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	err := msgpack.Unmarshal(data, &s)
	return s, err
}
