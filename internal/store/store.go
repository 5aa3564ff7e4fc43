// Package store defines the narrow key-value contract the seat ledger
// depends on.  Records live in named buckets; within a bucket every key
// holds at most one value.  The two conditional primitives are the only
// mutations the ledger uses for seat records: PutIfAbsent succeeds only
// when the key is vacant, and DeleteIfMatch only when the stored value
// is byte-identical to the expected one.  Per-key linearizability of
// those two calls is the entire correctness foundation of the engine.
package store

import "context"
import "errors"

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// ErrUnavailable wraps any transport fault, timeout or quorum failure.
// Callers must treat the outcome of the attempted mutation as unknown.
var ErrUnavailable = errors.New("store: unavailable")

// KV is the durable store contract.  Put and Delete are blind writes;
// they exist only for the reservation-id index, whose keys have a
// single writer by construction (ids are never reused).
type KV interface {
    // PutIfAbsent stores value under (bucket, key) only when the key is
    // vacant.  It reports true when the insert won and false when a
    // value already exists.
    PutIfAbsent(ctx context.Context, bucket, key string, value []byte) (bool, error)

    // DeleteIfMatch removes (bucket, key) only when the stored value is
    // byte-identical to expected.  It reports true when the record was
    // deleted and false when the key is absent or holds different bytes.
    DeleteIfMatch(ctx context.Context, bucket, key string, expected []byte) (bool, error)

    // Get returns the value stored under (bucket, key) or ErrNotFound.
    Get(ctx context.Context, bucket, key string) ([]byte, error)

    // Put stores value unconditionally.
    Put(ctx context.Context, bucket, key string, value []byte) error

    // Delete removes the key unconditionally; absent keys are a no-op.
    Delete(ctx context.Context, bucket, key string) error

    // List returns a snapshot of every key/value pair in the bucket.
    // The snapshot is not linearized with concurrent writes.
    List(ctx context.Context, bucket string) (map[string][]byte, error)
}
