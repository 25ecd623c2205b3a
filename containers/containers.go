// Package containers wraps the individual store primitives (string, hash,
// set, sorted set, list) as thin typed layers over the batching engine.
// Every operation enqueues onto the caller's batch and returns a Future that
// resolves when the batch executes.
package containers

import (
	"github.com/sharedcode/kvom"
)

// base carries what every container shares: its connection and the physical
// key derived from keyspace and logical key.
type base struct {
	conn kvom.Conn
	key  string
	// DBKey is the physical backend key.
	DBKey string
}

func newBase(conn kvom.Conn, keyspace, key string) base {
	return base{
		conn:  conn,
		key:   key,
		DBKey: kvom.DBKey(keyspace, key),
	}
}

// Key returns the container's logical key.
func (c base) Key() string {
	return c.key
}

// Delete removes the whole container key.
func (c base) Delete(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "del", c.DBKey)
}

// ExpireDefaultSeconds is applied by Expire when no positive TTL is given.
const ExpireDefaultSeconds = 60

// Expire sets a TTL in seconds on the container key.
func (c base) Expire(b *kvom.Batch, seconds int64) *kvom.Future {
	if seconds <= 0 {
		seconds = ExpireDefaultSeconds
	}
	return b.Enqueue(c.conn, "expire", c.DBKey, seconds)
}

// Persist clears any TTL on the container key.
func (c base) Persist(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "persist", c.DBKey)
}

// TTL queries the remaining TTL in seconds (-1 no expiry, -2 missing key).
func (c base) TTL(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "ttl", c.DBKey)
}

// Exists reports (as 0/1) whether the container key exists.
func (c base) Exists(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "exists", c.DBKey)
}

// Dump serializes the container key for archival or transfer.
func (c base) Dump(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "dump", c.DBKey)
}

// RestoreNX recreates the key from a dump payload unless it already exists.
// pttl is milliseconds, 0 meaning no expiry.
func (c base) RestoreNX(b *kvom.Batch, data []byte, pttl int64) *kvom.Future {
	return b.Enqueue(c.conn, "restorenx", c.DBKey, pttl, string(data))
}

// String is a plain string value.
type String struct {
	base
}

func NewString(conn kvom.Conn, keyspace, key string) String {
	return String{base: newBase(conn, keyspace, key)}
}

func (c String) Get(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "get", c.DBKey)
}

func (c String) Set(b *kvom.Batch, value string) *kvom.Future {
	return b.Enqueue(c.conn, "set", c.DBKey, value)
}

func (c String) SetNX(b *kvom.Batch, value string) *kvom.Future {
	return b.Enqueue(c.conn, "setnx", c.DBKey, value)
}

func (c String) Incr(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "incr", c.DBKey)
}

func (c String) IncrBy(b *kvom.Batch, n int64) *kvom.Future {
	return b.Enqueue(c.conn, "incrby", c.DBKey, n)
}

// Hash is a field/value map under one key.
type Hash struct {
	base
}

func NewHash(conn kvom.Conn, keyspace, key string) Hash {
	return Hash{base: newBase(conn, keyspace, key)}
}

func (c Hash) HSet(b *kvom.Batch, pairs ...kvom.KeyValuePair[string, string]) *kvom.Future {
	args := make([]any, 0, len(pairs)*2+1)
	args = append(args, c.DBKey)
	for _, p := range pairs {
		args = append(args, p.Key, p.Value)
	}
	return b.Enqueue(c.conn, "hset", args...)
}

func (c Hash) HSetNX(b *kvom.Batch, field, value string) *kvom.Future {
	return b.Enqueue(c.conn, "hsetnx", c.DBKey, field, value)
}

func (c Hash) HDel(b *kvom.Batch, fields ...string) *kvom.Future {
	return b.Enqueue(c.conn, "hdel", fieldArgs(c.DBKey, fields)...)
}

func (c Hash) HGet(b *kvom.Batch, field string) *kvom.Future {
	return b.Enqueue(c.conn, "hget", c.DBKey, field)
}

func (c Hash) HMGet(b *kvom.Batch, fields ...string) *kvom.Future {
	return b.Enqueue(c.conn, "hmget", fieldArgs(c.DBKey, fields)...)
}

func (c Hash) HGetAll(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "hgetall", c.DBKey)
}

func (c Hash) HLen(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "hlen", c.DBKey)
}

func (c Hash) HExists(b *kvom.Batch, field string) *kvom.Future {
	return b.Enqueue(c.conn, "hexists", c.DBKey, field)
}

func (c Hash) HIncrBy(b *kvom.Batch, field string, n int64) *kvom.Future {
	return b.Enqueue(c.conn, "hincrby", c.DBKey, field, n)
}

// Set is an unordered member set.
type Set struct {
	base
}

func NewSet(conn kvom.Conn, keyspace, key string) Set {
	return Set{base: newBase(conn, keyspace, key)}
}

func (c Set) SAdd(b *kvom.Batch, members ...string) *kvom.Future {
	return b.Enqueue(c.conn, "sadd", fieldArgs(c.DBKey, members)...)
}

func (c Set) SRem(b *kvom.Batch, members ...string) *kvom.Future {
	return b.Enqueue(c.conn, "srem", fieldArgs(c.DBKey, members)...)
}

func (c Set) SMembers(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "smembers", c.DBKey)
}

func (c Set) SCard(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "scard", c.DBKey)
}

func (c Set) SIsMember(b *kvom.Batch, member string) *kvom.Future {
	return b.Enqueue(c.conn, "sismember", c.DBKey, member)
}

// SortedSet orders members by score.
type SortedSet struct {
	base
}

func NewSortedSet(conn kvom.Conn, keyspace, key string) SortedSet {
	return SortedSet{base: newBase(conn, keyspace, key)}
}

// ZAdd upserts members with their scores.
func (c SortedSet) ZAdd(b *kvom.Batch, members ...kvom.KeyValuePair[string, float64]) *kvom.Future {
	args := make([]any, 0, len(members)*2+1)
	args = append(args, c.DBKey)
	for _, m := range members {
		args = append(args, m.Value, m.Key)
	}
	return b.Enqueue(c.conn, "zadd", args...)
}

func (c SortedSet) ZRem(b *kvom.Batch, members ...string) *kvom.Future {
	return b.Enqueue(c.conn, "zrem", fieldArgs(c.DBKey, members)...)
}

func (c SortedSet) ZRange(b *kvom.Batch, start, stop int64) *kvom.Future {
	return b.Enqueue(c.conn, "zrange", c.DBKey, start, stop)
}

func (c SortedSet) ZRangeByScore(b *kvom.Batch, min, max string) *kvom.Future {
	return b.Enqueue(c.conn, "zrangebyscore", c.DBKey, min, max)
}

func (c SortedSet) ZScore(b *kvom.Batch, member string) *kvom.Future {
	return b.Enqueue(c.conn, "zscore", c.DBKey, member)
}

func (c SortedSet) ZCard(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "zcard", c.DBKey)
}

func (c SortedSet) ZIncrBy(b *kvom.Batch, member string, by float64) *kvom.Future {
	return b.Enqueue(c.conn, "zincrby", c.DBKey, by, member)
}

func (c SortedSet) ZRank(b *kvom.Batch, member string) *kvom.Future {
	return b.Enqueue(c.conn, "zrank", c.DBKey, member)
}

func (c SortedSet) ZCount(b *kvom.Batch, min, max string) *kvom.Future {
	return b.Enqueue(c.conn, "zcount", c.DBKey, min, max)
}

// List is an ordered sequence of string values.
type List struct {
	base
}

func NewList(conn kvom.Conn, keyspace, key string) List {
	return List{base: newBase(conn, keyspace, key)}
}

func (c List) LPush(b *kvom.Batch, values ...string) *kvom.Future {
	return b.Enqueue(c.conn, "lpush", fieldArgs(c.DBKey, values)...)
}

func (c List) RPush(b *kvom.Batch, values ...string) *kvom.Future {
	return b.Enqueue(c.conn, "rpush", fieldArgs(c.DBKey, values)...)
}

func (c List) LRange(b *kvom.Batch, start, stop int64) *kvom.Future {
	return b.Enqueue(c.conn, "lrange", c.DBKey, start, stop)
}

func (c List) LLen(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "llen", c.DBKey)
}

func (c List) LPop(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "lpop", c.DBKey)
}

func (c List) RPop(b *kvom.Batch) *kvom.Future {
	return b.Enqueue(c.conn, "rpop", c.DBKey)
}

// LRem removes count occurrences of value (0 removes all).
func (c List) LRem(b *kvom.Batch, count int64, value string) *kvom.Future {
	return b.Enqueue(c.conn, "lrem", c.DBKey, count, value)
}

func (c List) LTrim(b *kvom.Batch, start, stop int64) *kvom.Future {
	return b.Enqueue(c.conn, "ltrim", c.DBKey, start, stop)
}

func (c List) LIndex(b *kvom.Batch, index int64) *kvom.Future {
	return b.Enqueue(c.conn, "lindex", c.DBKey, index)
}

func (c List) LSet(b *kvom.Batch, index int64, value string) *kvom.Future {
	return b.Enqueue(c.conn, "lset", c.DBKey, index, value)
}

func fieldArgs(key string, rest []string) []any {
	args := make([]any, 0, len(rest)+1)
	args = append(args, key)
	for _, r := range rest {
		args = append(args, r)
	}
	return args
}
