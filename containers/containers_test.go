package containers

import (
	"context"
	"testing"

	"github.com/sharedcode/kvom"
	"github.com/sharedcode/kvom/mem"
)

func exec(t *testing.T, b *kvom.Batch) {
	t.Helper()
	if err := b.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStringContainer(t *testing.T) {
	conn := mem.NewConn("hot")
	s := NewString(conn, "app", "counter")
	if s.DBKey != "app{counter}" || s.Key() != "counter" {
		t.Fatalf("keys: %s / %s", s.DBKey, s.Key())
	}

	b := kvom.NewBatch()
	s.Set(b, "10")
	incr := s.Incr(b)
	incrBy := s.IncrBy(b, 5)
	get := s.Get(b)
	exec(t, b)

	if n, _ := kvom.FutureValue[int64](incr); n != 11 {
		t.Fatalf("incr %d", n)
	}
	if n, _ := kvom.FutureValue[int64](incrBy); n != 16 {
		t.Fatalf("incrby %d", n)
	}
	if v, _ := kvom.FutureValue[string](get); v != "16" {
		t.Fatalf("get %q", v)
	}

	b = kvom.NewBatch()
	nx := s.SetNX(b, "other")
	exec(t, b)
	if n, _ := kvom.FutureValue[int64](nx); n != 0 {
		t.Fatal("setnx overwrote an existing value")
	}
}

func TestHashContainer(t *testing.T) {
	conn := mem.NewConn("hot")
	h := NewHash(conn, "app", "profile")

	b := kvom.NewBatch()
	h.HSet(b,
		kvom.KeyValuePair[string, string]{Key: "name", Value: "ann"},
		kvom.KeyValuePair[string, string]{Key: "city", Value: "oslo"},
	)
	length := h.HLen(b)
	one := h.HGet(b, "name")
	many := h.HMGet(b, "name", "missing", "city")
	exec(t, b)

	if n, _ := kvom.FutureValue[int64](length); n != 2 {
		t.Fatalf("hlen %d", n)
	}
	if v, _ := kvom.FutureValue[string](one); v != "ann" {
		t.Fatalf("hget %q", v)
	}
	raw, _ := kvom.FutureValue[[]any](many)
	if len(raw) != 3 || raw[0] != "ann" || raw[1] != nil || raw[2] != "oslo" {
		t.Fatalf("hmget %v", raw)
	}

	b = kvom.NewBatch()
	h.HDel(b, "city")
	exists := h.HExists(b, "city")
	exec(t, b)
	if n, _ := kvom.FutureValue[int64](exists); n != 0 {
		t.Fatal("field survived hdel")
	}
}

func TestSetContainer(t *testing.T) {
	conn := mem.NewConn("hot")
	s := NewSet(conn, "app", "tags")

	b := kvom.NewBatch()
	s.SAdd(b, "go", "redis", "go")
	card := s.SCard(b)
	member := s.SIsMember(b, "redis")
	exec(t, b)

	if n, _ := kvom.FutureValue[int64](card); n != 2 {
		t.Fatalf("scard %d", n)
	}
	if n, _ := kvom.FutureValue[int64](member); n != 1 {
		t.Fatal("member missing")
	}

	b = kvom.NewBatch()
	s.SRem(b, "go")
	members := s.SMembers(b)
	exec(t, b)
	raw, _ := kvom.FutureValue[[]any](members)
	if len(raw) != 1 || raw[0] != "redis" {
		t.Fatalf("members %v", raw)
	}
}

func TestSortedSetContainer(t *testing.T) {
	conn := mem.NewConn("hot")
	z := NewSortedSet(conn, "app", "board")

	b := kvom.NewBatch()
	z.ZAdd(b,
		kvom.KeyValuePair[string, float64]{Key: "carol", Value: 30},
		kvom.KeyValuePair[string, float64]{Key: "alice", Value: 10},
		kvom.KeyValuePair[string, float64]{Key: "bob", Value: 20},
	)
	ranked := z.ZRange(b, 0, -1)
	score := z.ZScore(b, "bob")
	card := z.ZCard(b)
	exec(t, b)

	raw, _ := kvom.FutureValue[[]any](ranked)
	if len(raw) != 3 || raw[0] != "alice" || raw[1] != "bob" || raw[2] != "carol" {
		t.Fatalf("zrange %v", raw)
	}
	if v, _ := kvom.FutureValue[string](score); v != "20" {
		t.Fatalf("zscore %q", v)
	}
	if n, _ := kvom.FutureValue[int64](card); n != 3 {
		t.Fatalf("zcard %d", n)
	}

	b = kvom.NewBatch()
	byScore := z.ZRangeByScore(b, "15", "+inf")
	exec(t, b)
	raw, _ = kvom.FutureValue[[]any](byScore)
	if len(raw) != 2 || raw[0] != "bob" || raw[1] != "carol" {
		t.Fatalf("zrangebyscore %v", raw)
	}
}

func TestListContainer(t *testing.T) {
	conn := mem.NewConn("hot")
	l := NewList(conn, "app", "queue")

	b := kvom.NewBatch()
	l.RPush(b, "one", "two")
	l.LPush(b, "zero")
	length := l.LLen(b)
	all := l.LRange(b, 0, -1)
	exec(t, b)

	if n, _ := kvom.FutureValue[int64](length); n != 3 {
		t.Fatalf("llen %d", n)
	}
	raw, _ := kvom.FutureValue[[]any](all)
	if len(raw) != 3 || raw[0] != "zero" || raw[2] != "two" {
		t.Fatalf("lrange %v", raw)
	}

	b = kvom.NewBatch()
	head := l.LPop(b)
	tail := l.RPop(b)
	exec(t, b)
	if v, _ := kvom.FutureValue[string](head); v != "zero" {
		t.Fatalf("lpop %q", v)
	}
	if v, _ := kvom.FutureValue[string](tail); v != "two" {
		t.Fatalf("rpop %q", v)
	}
}

func TestContainerLifecycleOps(t *testing.T) {
	conn := mem.NewConn("hot")
	h := NewHash(conn, "app", "h")

	b := kvom.NewBatch()
	h.HSet(b, kvom.KeyValuePair[string, string]{Key: "a", Value: "1"})
	h.Expire(b, 120)
	ttl := h.TTL(b)
	exec(t, b)
	if n, _ := kvom.FutureValue[int64](ttl); n != 120 {
		t.Fatalf("ttl %d", n)
	}

	b = kvom.NewBatch()
	h.Persist(b)
	ttl = h.TTL(b)
	dump := h.Dump(b)
	exec(t, b)
	if n, _ := kvom.FutureValue[int64](ttl); n != -1 {
		t.Fatalf("ttl after persist %d", n)
	}
	payload, _ := kvom.FutureValue[string](dump)
	if payload == "" {
		t.Fatal("empty dump")
	}

	b = kvom.NewBatch()
	h.Delete(b)
	restored := h.RestoreNX(b, []byte(payload), 0)
	val := h.HGet(b, "a")
	exec(t, b)
	if n, _ := kvom.FutureValue[int64](restored); n != 1 {
		t.Fatalf("restore %d", n)
	}
	if v, _ := kvom.FutureValue[string](val); v != "1" {
		t.Fatalf("restored value %q", v)
	}
}
