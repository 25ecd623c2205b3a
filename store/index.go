package store

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/sharedcode/kvom"
)

// ShardCountDefault is the index shard count used when none is given.
// Changing the count of an existing index is a breaking change: keys would
// hash to different homes.
const ShardCountDefault = 64

// Index maps arbitrary keys to one of N fixed physical hash-table shards,
// bounding per-key contention and per-table size. The home shard of a key is
// deterministic and stable for the index's lifetime.
type Index struct {
	conn       kvom.Conn
	keyspace   string
	shardCount int64
}

func NewIndex(conn kvom.Conn, keyspace string, shardCount int) *Index {
	if shardCount <= 0 {
		shardCount = ShardCountDefault
	}
	return &Index{
		conn:       conn,
		keyspace:   keyspace,
		shardCount: int64(shardCount),
	}
}

// Shard returns the physical hash-table key owning the given logical key.
func (ix *Index) Shard(key string) string {
	sum := md5.Sum([]byte(key))
	n := new(big.Int).SetBytes(sum[:])
	shard := n.Mod(n, big.NewInt(ix.shardCount)).Int64()
	return fmt.Sprintf("%s:%d:u:", ix.keyspace, shard)
}

// Get returns the value of key; found is false when unset.
func (ix *Index) Get(ctx context.Context, key string) (value string, found bool, err error) {
	b := kvom.NewBatch()
	f := b.Enqueue(ix.conn, "hget", ix.Shard(key), key)
	if err := b.Execute(ctx); err != nil {
		return "", false, err
	}
	v, err := f.Result()
	if err != nil || v == nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// MGet fetches many keys, fanning out across however many shards they land
// on within one batch. Only keys that resolved to a value are returned.
func (ix *Index) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	b := kvom.NewBatch()
	futures := make(map[string]*kvom.Future, len(keys))
	for _, k := range keys {
		futures[k] = b.Enqueue(ix.conn, "hget", ix.Shard(k), k)
	}
	if err := b.Execute(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for k, f := range futures {
		v, err := f.Result()
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[k] = v.(string)
		}
	}
	return out, nil
}

// Set assigns key on its home shard.
func (ix *Index) Set(ctx context.Context, key, value string) error {
	b := kvom.NewBatch()
	b.Enqueue(ix.conn, "hset", ix.Shard(key), key, value)
	return b.Execute(ctx)
}

// SetNX assigns key only when unset; reports whether the write happened.
func (ix *Index) SetNX(ctx context.Context, key, value string) (bool, error) {
	b := kvom.NewBatch()
	f := b.Enqueue(ix.conn, "hsetnx", ix.Shard(key), key, value)
	if err := b.Execute(ctx); err != nil {
		return false, err
	}
	n, err := kvom.FutureValue[int64](f)
	return n == 1, err
}

// Remove deletes key from its home shard. Idempotent.
func (ix *Index) Remove(ctx context.Context, key string) error {
	b := kvom.NewBatch()
	b.Enqueue(ix.conn, "hdel", ix.Shard(key), key)
	return b.Execute(ctx)
}
