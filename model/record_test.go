package model

import (
	"sort"
	"testing"

	"github.com/sharedcode/kvom"
)

var userSchema = MustSchema("users",
	PrimaryField("id"),
	Field{Name: "name", Kind: String, Required: true},
	Field{Name: "age", Kind: Int},
	Field{Name: "active", Kind: Bool},
)

func TestNewRecordStartsDirty(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "name": "ann", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Loaded() {
		t.Fatal("locally initialized record must count as loaded")
	}
	if !r.Dirty() {
		t.Fatal("fresh record must be dirty")
	}
	pk, err := r.PrimaryKey()
	if err != nil || pk != "u1" {
		t.Fatalf("pk: %q, %v", pk, err)
	}
}

func TestNewRecordRejectsBadValues(t *testing.T) {
	if _, err := NewRecord(userSchema, map[string]any{"id": "u1", "bogus": 1}); err == nil {
		t.Fatal("unknown field accepted")
	}
	if _, err := NewRecord(userSchema, map[string]any{"id": "u1", "age": "thirty"}); err == nil {
		t.Fatal("mistyped value accepted")
	}
}

func TestPrimaryKeyMissing(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"name": "ann"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.PrimaryKey(); !kvom.Is(err, kvom.MissingPrimaryKey) {
		t.Fatalf("expected MissingPrimaryKey, got %v", err)
	}
}

func TestChangesDirtyOnly(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "name": "ann", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	r.Persisted()
	if r.Dirty() {
		t.Fatal("persisted record still dirty")
	}

	if err := r.Set("age", 31); err != nil {
		t.Fatal(err)
	}
	cs, err := r.Changes(false)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Count != 1 || cs.Add["age"] != "31" || len(cs.Remove) != 0 {
		t.Fatalf("changeset %+v", cs)
	}
}

func TestChangesFull(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "name": "ann", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	r.Persisted()

	cs, err := r.Changes(true)
	if err != nil {
		t.Fatal(err)
	}
	// Full rewrites every attribute: assigned ones added, absent ones removed.
	if cs.Count != 4 {
		t.Fatalf("count %d", cs.Count)
	}
	if cs.Add["id"] != "u1" || cs.Add["name"] != "ann" || cs.Add["age"] != "30" {
		t.Fatalf("adds %v", cs.Add)
	}
	if len(cs.Remove) != 1 || cs.Remove[0] != "active" {
		t.Fatalf("removes %v", cs.Remove)
	}
}

func TestChangesClearedFieldBecomesRemove(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "name": "ann", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	r.Persisted()
	if err := r.Set("age", nil); err != nil {
		t.Fatal(err)
	}
	cs, err := r.Changes(false)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Count != 1 || len(cs.Remove) != 1 || cs.Remove[0] != "age" {
		t.Fatalf("changeset %+v", cs)
	}
}

func TestChangesEnforcesRequired(t *testing.T) {
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "age": 30})
	if err != nil {
		t.Fatal(err)
	}
	// name is required and was never assigned; even a dirty-only save fails.
	if _, err := r.Changes(false); !kvom.Is(err, kvom.MissingRequiredField) {
		t.Fatalf("expected MissingRequiredField, got %v", err)
	}
}

func TestLoadAlignsWithSchemaOrder(t *testing.T) {
	r := Ref(userSchema, "u1", nil)
	if r.Loaded() || r.Exists() {
		t.Fatal("fresh ref should be unloaded")
	}
	if err := r.Load([]any{"u1", "ann", "30", nil}); err != nil {
		t.Fatal(err)
	}
	if !r.Loaded() || !r.Exists() {
		t.Fatal("load flags")
	}
	if r.Get("name") != "ann" || r.Get("age") != int64(30) || r.Get("active") != nil {
		t.Fatalf("values: %v %v %v", r.Get("name"), r.Get("age"), r.Get("active"))
	}
	if r.Dirty() {
		t.Fatal("loaded record should be clean")
	}
}

func TestLoadAllNilMeansAbsent(t *testing.T) {
	r := Ref(userSchema, "u1", nil)
	if err := r.Load([]any{nil, nil, nil, nil}); err != nil {
		t.Fatal(err)
	}
	if !r.Loaded() || r.Exists() {
		t.Fatal("absent record flags")
	}
}

func TestLoadLengthMismatch(t *testing.T) {
	r := Ref(userSchema, "u1", nil)
	if err := r.Load([]any{"u1"}); err == nil {
		t.Fatal("short reply accepted")
	}
}

func TestChangesRemovalsSorted(t *testing.T) {
	// Remove order follows schema declaration order for reproducible batches.
	r, err := NewRecord(userSchema, map[string]any{"id": "u1", "name": "ann"})
	if err != nil {
		t.Fatal(err)
	}
	r.Persisted()
	r.Set("active", nil)
	r.Set("age", nil)
	cs, err := r.Changes(false)
	if err != nil {
		t.Fatal(err)
	}
	if !sort.SliceIsSorted(cs.Remove, func(i, j int) bool {
		return fieldIndex(cs.Remove[i]) < fieldIndex(cs.Remove[j])
	}) {
		t.Fatalf("removes out of declaration order: %v", cs.Remove)
	}
}

func fieldIndex(name string) int {
	for i, n := range userSchema.FieldNames() {
		if n == name {
			return i
		}
	}
	return -1
}
