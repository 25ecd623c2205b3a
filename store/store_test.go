package store

import (
	"context"
	"testing"

	"github.com/sharedcode/kvom"
	"github.com/sharedcode/kvom/mem"
	"github.com/sharedcode/kvom/model"
)

var userSchema = model.MustSchema("users",
	model.PrimaryField("id"),
	model.Field{Name: "name", Kind: model.String, Required: true},
	model.Field{Name: "age", Kind: model.Int},
)

func TestSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	if s.DBKey("u1") != "users{u1}" {
		t.Fatalf("keyspace should default to schema name: %s", s.DBKey("u1"))
	}

	rec, err := s.New(map[string]any{"id": "u1", "name": "ann", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	n, err := s.Save(ctx, rec, false, nil)
	if err != nil || n != 3 {
		t.Fatalf("save: %d, %v", n, err)
	}
	if rec.Dirty() {
		t.Fatal("record dirty after save")
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Exists() || got.Get("name") != "ann" || got.Get("age") != int64(30) {
		t.Fatalf("round trip: %v %v", got.Get("name"), got.Get("age"))
	}
}

func TestSaveNothingDirtyIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	rec, err := s.New(map[string]any{"id": "u1", "name": "ann"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, rec, false, nil); err != nil {
		t.Fatal(err)
	}
	n, err := s.Save(ctx, rec, false, nil)
	if err != nil || n != 0 {
		t.Fatalf("clean save: %d, %v", n, err)
	}
}

func TestSavePartialUpdate(t *testing.T) {
	ctx := context.Background()
	conn := mem.NewConn("hot")
	s := NewObjectStore(conn, "", userSchema)
	rec, _ := s.New(map[string]any{"id": "u1", "name": "ann", "age": 30})
	if _, err := s.Save(ctx, rec, false, nil); err != nil {
		t.Fatal(err)
	}

	// Only the dirty attribute travels; a cleared one becomes a removal.
	rec.Set("name", "anne")
	rec.Set("age", nil)
	n, err := s.Save(ctx, rec, false, nil)
	if err != nil || n != 2 {
		t.Fatalf("partial save: %d, %v", n, err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Get("name") != "anne" || got.Get("age") != nil {
		t.Fatalf("after update: %v %v", got.Get("name"), got.Get("age"))
	}
}

func TestGetAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	rec, err := s.Get(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Loaded() || rec.Exists() {
		t.Fatal("absent record must be loaded and not exist")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	rec, _ := s.New(map[string]any{"id": "u1", "name": "ann"})
	if _, err := s.Save(ctx, rec, false, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "u1", nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Exists() {
		t.Fatal("record survived delete")
	}
	// Idempotent.
	if err := s.Delete(ctx, "u1", nil); err != nil {
		t.Fatal(err)
	}
}

func TestGetMultiSharedBatch(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	for _, id := range []string{"a", "b"} {
		rec, _ := s.New(map[string]any{"id": id, "name": "n-" + id})
		if _, err := s.Save(ctx, rec, false, nil); err != nil {
			t.Fatal(err)
		}
	}

	b := kvom.NewBatch()
	recs, err := s.GetMulti(ctx, []string{"a", "missing", "b"}, b)
	if err != nil {
		t.Fatal(err)
	}
	// Deferred: nothing resolved until the caller executes.
	if recs[0].Loaded() {
		t.Fatal("record loaded before batch executed")
	}
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if !recs[0].Exists() || recs[0].Get("name") != "n-a" {
		t.Fatalf("rec a: %v", recs[0].Get("name"))
	}
	if recs[1].Exists() {
		t.Fatal("missing record reported present")
	}
	if !recs[2].Exists() || recs[2].Get("name") != "n-b" {
		t.Fatalf("rec b: %v", recs[2].Get("name"))
	}
}

func TestSaveDeferredOnCallerBatch(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore(mem.NewConn("hot"), "", userSchema)
	rec, _ := s.New(map[string]any{"id": "u1", "name": "ann"})

	b := kvom.NewBatch()
	n, err := s.Save(ctx, rec, false, b)
	if err != nil || n != 2 {
		t.Fatalf("save: %d, %v", n, err)
	}
	// Not written yet.
	if got, _ := s.Get(ctx, "u1"); got.Exists() {
		t.Fatal("write escaped the batch")
	}
	if err := b.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(ctx, "u1"); !got.Exists() {
		t.Fatal("write lost")
	}
	if rec.Dirty() {
		t.Fatal("dirty state must clear on the batch's completion")
	}
}

func TestSaveFailedBatchKeepsDirty(t *testing.T) {
	ctx := context.Background()
	conn := mem.NewConn("hot")
	s := NewObjectStore(conn, "", userSchema)
	rec, _ := s.New(map[string]any{"id": "u1", "name": "ann"})

	conn.FailNextExecute(kvom.Error{Code: kvom.BackendProtocol})
	if _, err := s.Save(ctx, rec, false, nil); err == nil {
		t.Fatal("expected failure")
	}
	if !rec.Dirty() {
		t.Fatal("failed save must leave the record dirty for retry")
	}
	if _, err := s.Save(ctx, rec, false, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(ctx, "u1"); !got.Exists() {
		t.Fatal("retry lost")
	}
}
