package redis

import (
	"context"
	"os"
	"testing"

	"github.com/sharedcode/kvom"
)

// liveConn opens a connection to the server named by KVOM_REDIS_ADDR, or
// skips the test when unset.
func liveConn(t *testing.T) *Connection {
	t.Helper()
	addr := os.Getenv("KVOM_REDIS_ADDR")
	if addr == "" {
		t.Skip("KVOM_REDIS_ADDR not set")
	}
	conn := Open(Options{Address: addr})
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLivePipelineRoundTrip(t *testing.T) {
	conn := liveConn(t)
	ctx := context.Background()

	b := kvom.NewBatch()
	b.Enqueue(conn, "del", "kvomtest{h}")
	b.Enqueue(conn, "hset", "kvomtest{h}", "a", "1", "b", "2")
	fields := b.Enqueue(conn, "hmget", "kvomtest{h}", "a", "missing", "b")
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}

	raw, err := kvom.FutureValue[[]any](fields)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 || raw[0] != "1" || raw[1] != nil || raw[2] != "2" {
		t.Fatalf("hmget %v", raw)
	}

	b = kvom.NewBatch()
	b.Enqueue(conn, "del", "kvomtest{h}")
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestLiveDumpRestoreNX(t *testing.T) {
	conn := liveConn(t)
	ctx := context.Background()

	b := kvom.NewBatch()
	b.Enqueue(conn, "del", "kvomtest{d}")
	b.Enqueue(conn, "hset", "kvomtest{d}", "a", "1")
	dump := b.Enqueue(conn, "dump", "kvomtest{d}")
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	payload, err := kvom.FutureValue[string](dump)
	if err != nil || payload == "" {
		t.Fatalf("dump: %q, %v", payload, err)
	}

	b = kvom.NewBatch()
	b.Enqueue(conn, "del", "kvomtest{d}")
	restored := b.Enqueue(conn, "restorenx", "kvomtest{d}", 0, payload)
	again := b.Enqueue(conn, "restorenx", "kvomtest{d}", 0, payload)
	value := b.Enqueue(conn, "hget", "kvomtest{d}", "a")
	b.Enqueue(conn, "del", "kvomtest{d}")
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := kvom.FutureValue[int64](restored); n != 1 {
		t.Fatalf("restore %d", n)
	}
	if n, _ := kvom.FutureValue[int64](again); n != 0 {
		t.Fatalf("restore onto existing %d", n)
	}
	if v, _ := kvom.FutureValue[string](value); v != "1" {
		t.Fatalf("restored value %q", v)
	}
}

func TestConnectionName(t *testing.T) {
	conn := Open(Options{Address: "localhost:6379", DB: 2})
	defer conn.Close()
	if conn.ID() != "redis://localhost:6379/2" {
		t.Fatalf("default name: %s", conn.ID())
	}
	named := Open(Options{Address: "localhost:6379", Name: "primary"})
	defer named.Close()
	if named.ID() != "primary" {
		t.Fatalf("explicit name lost: %s", named.ID())
	}
}
