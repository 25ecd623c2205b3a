package model

import (
	"context"
	"fmt"

	"github.com/sharedcode/kvom"
)

// Source is the collaborator owning a record's persistence: it knows how to
// enqueue the commands that populate the record. Implemented by the stores.
type Source interface {
	Prepare(ctx context.Context, b *kvom.Batch, rec *Record) error
}

// Record holds one value per declared attribute of its schema, identified by
// an immutable primary-key value. Lifecycle flags: init (locally constructed
// with values), loaded (a read was attempted), present (the read found hot
// fields), dirty (attributes changed since last save). loaded with nothing
// present means the record is absent.
type Record struct {
	schema  *Schema
	source  Source
	data    map[string]any
	dirty   map[string]bool
	init    bool
	loaded  bool
	present bool
}

// NewRecord constructs a locally initialized record from attribute values.
// Every assigned attribute starts dirty.
func NewRecord(schema *Schema, values map[string]any) (*Record, error) {
	r := &Record{
		schema: schema,
		data:   make(map[string]any, len(values)),
		dirty:  make(map[string]bool, len(values)),
		init:   true,
	}
	for name, v := range values {
		if err := r.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Ref constructs an unloaded reference carrying only the primary key. It can
// be attached to a batch for deferred hydration by its source.
func Ref(schema *Schema, pk string, source Source) *Record {
	return &Record{
		schema: schema,
		source: source,
		data:   map[string]any{schema.PrimaryKeyField(): pk},
		dirty:  make(map[string]bool),
	}
}

func (r *Record) Schema() *Schema {
	return r.schema
}

// Set assigns an attribute value (nil clears it) and marks it dirty.
func (r *Record) Set(name string, v any) error {
	f, ok := r.schema.Field(name)
	if !ok {
		return fmt.Errorf("schema %s has no field %s", r.schema.Name(), name)
	}
	if v != nil {
		// Validate eagerly so a bad assignment fails here, not at save time.
		if _, err := f.Encode(v); err != nil {
			return err
		}
	}
	if v == nil {
		delete(r.data, name)
	} else {
		r.data[name] = v
	}
	r.dirty[name] = true
	return nil
}

// Get returns the attribute value, nil when unset.
func (r *Record) Get(name string) any {
	return r.data[name]
}

// PrimaryKey returns the record's identifying value as its wire string.
func (r *Record) PrimaryKey() (string, error) {
	f, _ := r.schema.Field(r.schema.PrimaryKeyField())
	v, ok := r.data[f.Name]
	if !ok || v == nil {
		return "", kvom.Error{Code: kvom.MissingPrimaryKey, Err: fmt.Errorf("missing primary key value"), UserData: r.schema.Name()}
	}
	return f.Encode(v)
}

// Loaded reports whether attaching this record to a batch would be a no-op:
// either a read was already attempted or the record was locally initialized.
func (r *Record) Loaded() bool {
	return r.init || r.loaded
}

// Exists reports whether a read found the record in the hot store.
func (r *Record) Exists() bool {
	return r.loaded && r.present
}

// Dirty reports whether unsaved attribute changes exist.
func (r *Record) Dirty() bool {
	return len(r.dirty) > 0
}

// Attach asks the record's source to enqueue the commands needed to populate
// it. Records without a source (plain locally-built ones) attach as a no-op.
func (r *Record) Attach(ctx context.Context, b *kvom.Batch) error {
	if r.source == nil {
		return nil
	}
	return r.source.Prepare(ctx, b, r)
}

// Load populates the record from raw multi-field read replies aligned with
// the schema's declaration order; each element is a wire string or nil. An
// all-nil reply marks the record loaded and absent.
func (r *Record) Load(raw []any) error {
	fields := r.schema.Fields()
	if len(raw) != len(fields) {
		return fmt.Errorf("%d values for %d fields of %s", len(raw), len(fields), r.schema.Name())
	}
	r.loaded = true
	found := false
	for i, f := range fields {
		if raw[i] == nil {
			continue
		}
		s, ok := raw[i].(string)
		if !ok {
			return fmt.Errorf("field %s reply is %T, want string", f.Name, raw[i])
		}
		v, err := f.Decode(s)
		if err != nil {
			return err
		}
		r.data[f.Name] = v
		found = true
	}
	if !found {
		return nil
	}
	r.present = true
	r.dirty = make(map[string]bool)
	return nil
}

// LoadAbsent marks the record as read and confirmed absent.
func (r *Record) LoadAbsent() {
	r.loaded = true
}

// Persisted clears dirty state after a successful save; the record now has a
// hot-store representation.
func (r *Record) Persisted() {
	r.loaded = true
	r.present = true
	r.dirty = make(map[string]bool)
}

// ChangeSet is the minimal write-set computed from a record's dirty state.
type ChangeSet struct {
	// PrimaryKey is the identifying value, wire-encoded.
	PrimaryKey string
	// Add maps attributes to their wire values to write.
	Add map[string]string
	// Remove lists attributes whose value is now absent.
	Remove []string
	// Count is the number of changed attributes.
	Count int
}

// Changes computes the record's write-set. With full set, every assigned or
// absent attribute is included regardless of dirtiness. Required fields are
// validated over the whole record, not just the dirty part.
func (r *Record) Changes(full bool) (*ChangeSet, error) {
	pk, err := r.PrimaryKey()
	if err != nil {
		return nil, err
	}
	cs := &ChangeSet{
		PrimaryKey: pk,
		Add:        make(map[string]string),
	}
	for _, f := range r.schema.Fields() {
		v, assigned := r.data[f.Name]
		if f.Required && (!assigned || v == nil) {
			return nil, kvom.Error{
				Code:     kvom.MissingRequiredField,
				Err:      fmt.Errorf("%s.%s cannot be missing", r.schema.Name(), f.Name),
				UserData: r.schema.Name(),
			}
		}
		if !full && !r.dirty[f.Name] {
			continue
		}
		if !assigned || v == nil {
			cs.Remove = append(cs.Remove, f.Name)
			continue
		}
		s, err := f.Encode(v)
		if err != nil {
			return nil, err
		}
		cs.Add[f.Name] = s
	}
	cs.Count = len(cs.Add) + len(cs.Remove)
	return cs, nil
}
