package kvom

import (
	"context"
	"fmt"
)

// Conn is a backend connection capable of opening native command batches.
// Commands enqueued on one native batch stay strictly ordered; parallelism
// only ever happens across distinct connections.
type Conn interface {
	// ID identifies the connection; Batch groups commands by it.
	ID() string
	// NewBatch opens a native command batch exclusively owned by its caller.
	NewBatch() NativeBatch
}

// NativeBatch buffers commands for one connection and plays them in a single
// round trip. Execute returns one raw reply per enqueued command, in enqueue
// order. A NativeBatch is used once and discarded.
type NativeBatch interface {
	Enqueue(cmd string, args ...any)
	Execute(ctx context.Context) ([]any, error)
	Len() int
}

// ColdStore is the secondary, higher-latency store archived records are
// demoted to. Values are opaque byte payloads keyed by record primary key.
// GetMulti returns an entry per requested key, nil valued when absent.
type ColdStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMulti(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	DeleteMulti(ctx context.Context, keys []string) error
}

// HotKeyPolicy marks keys that must never be demoted to cold storage.
type HotKeyPolicy interface {
	IsExcluded(key string) bool
}

// Attachable is a record-like object that knows how to enqueue the commands
// needed to populate itself onto a Batch. Loaded reports whether a read was
// already attempted (or the object was locally initialized), in which case
// attaching is a no-op.
type Attachable interface {
	Loaded() bool
	Attach(ctx context.Context, b *Batch) error
}

// DBKey formats the physical backend key for a logical key under a keyspace.
// The braces make all of a record's data hash to one cluster slot.
func DBKey(keyspace string, key string) string {
	return fmt.Sprintf("%s{%s}", keyspace, key)
}
