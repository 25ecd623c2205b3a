// Package store implements the object stores over a hash-oriented backend:
// ObjectStore persists records in the hot store only, TieredStore adds the
// freeze/thaw protocol demoting records to a cold store, and Index is a
// sharded hash index bounding per-key contention.
package store

import (
	"context"
	"fmt"

	"github.com/sharedcode/kvom"
	"github.com/sharedcode/kvom/model"
)

// ObjectStore saves, fetches and deletes whole records of one schema against
// a hot-store connection, going through the deferred batching layer.
type ObjectStore struct {
	schema   *model.Schema
	conn     kvom.Conn
	keyspace string
}

// NewObjectStore returns a hot-only record store. An empty keyspace defaults
// to the schema name.
func NewObjectStore(conn kvom.Conn, keyspace string, schema *model.Schema) *ObjectStore {
	if keyspace == "" {
		keyspace = schema.Name()
	}
	return &ObjectStore{
		schema:   schema,
		conn:     conn,
		keyspace: keyspace,
	}
}

func (s *ObjectStore) Schema() *model.Schema {
	return s.schema
}

func (s *ObjectStore) Conn() kvom.Conn {
	return s.conn
}

// DBKey returns the physical hot-store key for a primary key value.
func (s *ObjectStore) DBKey(pk string) string {
	return kvom.DBKey(s.keyspace, pk)
}

// New constructs a locally initialized record of this store's schema.
func (s *ObjectStore) New(values map[string]any) (*model.Record, error) {
	return model.NewRecord(s.schema, values)
}

// Ref returns an unloaded reference to pk, attachable to a batch for
// deferred hydration.
func (s *ObjectStore) Ref(pk string) *model.Record {
	return model.Ref(s.schema, pk, s)
}

// Save computes the record's write-set and, if non-empty, enqueues the hot
// store add/remove commands. With a nil batch the write executes immediately;
// otherwise it is deferred to the caller's Execute. Dirty state clears on
// success. Returns the changed-attribute count, 0 meaning no-op.
func (s *ObjectStore) Save(ctx context.Context, rec *model.Record, full bool, b *kvom.Batch) (int, error) {
	cs, err := rec.Changes(full)
	if err != nil {
		return 0, err
	}
	if cs.Count == 0 {
		return 0, nil
	}
	own := b == nil
	if own {
		b = kvom.NewBatch()
	}
	key := s.DBKey(cs.PrimaryKey)
	if len(cs.Remove) > 0 {
		args := make([]any, 0, len(cs.Remove)+1)
		args = append(args, key)
		for _, f := range cs.Remove {
			args = append(args, f)
		}
		b.Enqueue(s.conn, "hdel", args...)
	}
	if len(cs.Add) > 0 {
		args := make([]any, 0, len(cs.Add)*2+1)
		args = append(args, key)
		for _, f := range s.schema.FieldNames() {
			if v, ok := cs.Add[f]; ok {
				args = append(args, f, v)
			}
		}
		b.Enqueue(s.conn, "hset", args...)
	}
	b.OnExecute(func(ctx context.Context) error {
		rec.Persisted()
		return nil
	})
	if own {
		if err := b.Execute(ctx); err != nil {
			return 0, err
		}
	}
	return cs.Count, nil
}

// Get fetches one record; absent records satisfy Exists() == false.
func (s *ObjectStore) Get(ctx context.Context, pk string) (*model.Record, error) {
	recs, err := s.GetMulti(ctx, []string{pk}, nil)
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

// GetMulti fetches records in pk order. With a nil batch the reads execute
// immediately; otherwise returned records stay unloaded until the caller's
// Execute resolves them.
func (s *ObjectStore) GetMulti(ctx context.Context, pks []string, b *kvom.Batch) ([]*model.Record, error) {
	own := b == nil
	if own {
		b = kvom.NewBatch()
	}
	recs := make([]*model.Record, len(pks))
	for i, pk := range pks {
		recs[i] = s.Ref(pk)
		if err := s.Prepare(ctx, b, recs[i]); err != nil {
			return nil, err
		}
	}
	if own {
		if err := b.Execute(ctx); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Prepare enqueues the multi-field hot read populating rec and registers the
// completion callback loading it. Satisfies model.Source.
func (s *ObjectStore) Prepare(ctx context.Context, b *kvom.Batch, rec *model.Record) error {
	pk, err := rec.PrimaryKey()
	if err != nil {
		return err
	}
	f := b.Enqueue(s.conn, "hmget", s.fieldArgs(s.DBKey(pk))...)
	b.OnExecute(func(ctx context.Context) error {
		return loadReply(rec, f)
	})
	return nil
}

// Delete removes every declared field of the record's hot hash. Idempotent.
func (s *ObjectStore) Delete(ctx context.Context, pk string, b *kvom.Batch) error {
	own := b == nil
	if own {
		b = kvom.NewBatch()
	}
	args := make([]any, 0, len(s.schema.FieldNames())+1)
	args = append(args, s.DBKey(pk))
	for _, f := range s.schema.FieldNames() {
		args = append(args, f)
	}
	b.Enqueue(s.conn, "hdel", args...)
	if own {
		return b.Execute(ctx)
	}
	return nil
}

// fieldArgs builds the hmget argument list: key followed by every declared
// field in schema order.
func (s *ObjectStore) fieldArgs(key string) []any {
	names := s.schema.FieldNames()
	args := make([]any, 0, len(names)+1)
	args = append(args, key)
	for _, n := range names {
		args = append(args, n)
	}
	return args
}

// loadReply feeds a resolved hmget reply into the record.
func loadReply(rec *model.Record, f *kvom.Future) error {
	v, err := f.Result()
	if err != nil {
		return err
	}
	raw, ok := v.([]any)
	if !ok {
		return kvom.Error{Code: kvom.BackendProtocol, Err: fmt.Errorf("multi-field read reply is %T, want array", v)}
	}
	return rec.Load(raw)
}
