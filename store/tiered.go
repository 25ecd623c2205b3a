package store

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/sharedcode/kvom"
	"github.com/sharedcode/kvom/model"
)

const (
	// FreezeTTLDefault is the hot-store expiry applied to records being
	// demoted; it doubles (minus one second) as the negative-cache window.
	FreezeTTLDefault = 300 * time.Second

	// legacyColdEntrySizeLimit guards against cold entries written in the era
	// when they lived in a 64KB blob column that silently truncated longer
	// payloads. Those entries are corrupt and lost; a checksum failure on a
	// dump at or past this size is discarded instead of raised.
	legacyColdEntrySizeLimit = 65535
)

// negativeMarkerSuffix flags hot keys confirmed absent and already checked
// against cold storage this epoch.
const negativeMarkerSuffix = "__xx"

type noExclusions struct{}

func (noExclusions) IsExcluded(string) bool { return false }

// TieredOptions tune the tiered store. Zero values select the defaults: the
// default freeze TTL and a policy excluding nothing.
type TieredOptions struct {
	FreezeTTL time.Duration
	Policy    kvom.HotKeyPolicy
}

// TieredStore is an ObjectStore that transparently demotes records to a cold
// store (Freeze) and rehydrates them on demand: a Get missing the hot store
// falls back to the cold store, restores the record into hot and frees the
// cold entry. Keys matched by the hot-key policy never participate.
type TieredStore struct {
	*ObjectStore
	cold      kvom.ColdStore
	freezeTTL time.Duration
	policy    kvom.HotKeyPolicy
}

func NewTieredStore(conn kvom.Conn, keyspace string, schema *model.Schema, cold kvom.ColdStore, opts TieredOptions) *TieredStore {
	if opts.FreezeTTL <= 0 {
		opts.FreezeTTL = FreezeTTLDefault
	}
	if opts.Policy == nil {
		opts.Policy = noExclusions{}
	}
	return &TieredStore{
		ObjectStore: NewObjectStore(conn, keyspace, schema),
		cold:        cold,
		freezeTTL:   opts.FreezeTTL,
		policy:      opts.Policy,
	}
}

func (t *TieredStore) markerKey(pk string) string {
	return t.DBKey(pk) + negativeMarkerSuffix
}

func (t *TieredStore) markerTTLSeconds() int64 {
	return int64((t.freezeTTL - time.Second) / time.Second)
}

// Ref returns an unloaded reference hydrated through the tiered read path.
func (t *TieredStore) Ref(pk string) *model.Record {
	return model.Ref(t.schema, pk, t)
}

// Save persists the record's write-set to the hot store and clears any
// negative-cache marker for its key; a successful save always yields a hot
// record. Returns the changed-attribute count, 0 meaning nothing enqueued.
func (t *TieredStore) Save(ctx context.Context, rec *model.Record, full bool, b *kvom.Batch) (int, error) {
	own := b == nil
	if own {
		b = kvom.NewBatch()
	}
	n, err := t.ObjectStore.Save(ctx, rec, full, b)
	if err != nil || n == 0 {
		return n, err
	}
	pk, err := rec.PrimaryKey()
	if err != nil {
		return 0, err
	}
	b.Enqueue(t.conn, "del", t.markerKey(pk))
	if own {
		if err := b.Execute(ctx); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Get fetches one record, falling back to the cold store when the hot store
// misses.
func (t *TieredStore) Get(ctx context.Context, pk string) (*model.Record, error) {
	recs, err := t.GetMulti(ctx, []string{pk}, nil)
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

// GetMulti fetches records in pk order through the tiered read path.
func (t *TieredStore) GetMulti(ctx context.Context, pks []string, b *kvom.Batch) ([]*model.Record, error) {
	own := b == nil
	if own {
		b = kvom.NewBatch()
	}
	recs := make([]*model.Record, len(pks))
	for i, pk := range pks {
		recs[i] = t.Ref(pk)
		if err := t.Prepare(ctx, b, recs[i]); err != nil {
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

// Prepare enqueues the tiered hot read for rec and registers the per-key
// completion callback deciding between Hot, Absent, NegativelyCached and the
// cold-store fallback. Reading a key also clears any pending freeze expiry on
// it. Satisfies model.Source.
func (t *TieredStore) Prepare(ctx context.Context, b *kvom.Batch, rec *model.Record) error {
	pk, err := rec.PrimaryKey()
	if err != nil {
		return err
	}
	key := t.DBKey(pk)
	excluded := t.policy.IsExcluded(pk)
	var marker *kvom.Future
	if !excluded {
		// A read races an in-flight freeze: clearing the expiry keeps the
		// record hot, the freeze's compensation tolerates it.
		b.Enqueue(t.conn, "persist", key)
		marker = b.Enqueue(t.conn, "exists", t.markerKey(pk))
	}
	fields := b.Enqueue(t.conn, "hmget", t.fieldArgs(key)...)
	b.OnExecute(func(ctx context.Context) error {
		return t.resolveGet(ctx, pk, rec, excluded, marker, fields)
	})
	return nil
}

// resolveGet runs after the triggering batch's round trip. The cold-store
// fallback opens independent batches so cold traffic never blocks, nor is
// blocked by, in-flight hot traffic; it stays synchronous relative to this
// key's own resolution.
func (t *TieredStore) resolveGet(ctx context.Context, pk string, rec *model.Record, excluded bool, marker, fields *kvom.Future) error {
	v, err := fields.Result()
	if err != nil {
		return err
	}
	raw, ok := v.([]any)
	if !ok {
		return kvom.Error{Code: kvom.BackendProtocol, Err: fmt.Errorf("multi-field read reply is %T, want array", v)}
	}
	for _, rv := range raw {
		if rv != nil {
			// Hot.
			return rec.Load(raw)
		}
	}
	if excluded {
		rec.LoadAbsent()
		return nil
	}
	if n, err := kvom.FutureValue[int64](marker); err != nil {
		return err
	} else if n > 0 {
		// Negatively cached: already checked against cold storage this epoch.
		rec.LoadAbsent()
		return nil
	}

	frozen, err := t.cold.Get(ctx, pk)
	if err != nil {
		return err
	}
	if frozen == nil {
		rec.LoadAbsent()
		return t.writeNegativeMarker(ctx, pk)
	}
	return t.thawIntoHot(ctx, pk, frozen, rec)
}

func (t *TieredStore) writeNegativeMarker(ctx context.Context, pk string) error {
	mk := t.markerKey(pk)
	b := kvom.NewBatch()
	b.Enqueue(t.conn, "set", mk, "1")
	b.Enqueue(t.conn, "expire", mk, t.markerTTLSeconds())
	return b.Execute(ctx)
}

// thawIntoHot migrates a cold entry back into the hot store and frees it.
// The restore is conditional (no-op if the hot key reappeared under a
// concurrent writer); the re-read afterwards loads whatever won.
func (t *TieredStore) thawIntoHot(ctx context.Context, pk string, frozen []byte, rec *model.Record) error {
	key := t.DBKey(pk)
	b := kvom.NewBatch()
	b.Enqueue(t.conn, "persist", key)
	b.Enqueue(t.conn, "restorenx", key, 0, string(frozen))
	fields := b.Enqueue(t.conn, "hmget", t.fieldArgs(key)...)
	if err := b.Execute(ctx); err != nil {
		if !isCorruptDump(err) {
			return err
		}
		if len(frozen) >= legacyColdEntrySizeLimit {
			// Truncated legacy entry: the content is lost either way, so
			// discard it and report the record absent.
			log.Warn("discarding corrupt oversize cold entry", "key", pk, "size", len(frozen))
			rec.LoadAbsent()
			return t.cold.Delete(ctx, pk)
		}
		return kvom.Error{Code: kvom.CorruptColdEntry, Err: err, UserData: pk}
	}
	if err := loadReply(rec, fields); err != nil {
		return err
	}
	return t.cold.Delete(ctx, pk)
}

// Delete removes the record's hot fields and unconditionally removes any cold
// entry. Idempotent on both sides.
func (t *TieredStore) Delete(ctx context.Context, pk string, b *kvom.Batch) error {
	if err := t.ObjectStore.Delete(ctx, pk, b); err != nil {
		return err
	}
	return t.cold.Delete(ctx, pk)
}

// Freeze demotes records to the cold store: each non-excluded key gets a hot
// expiry and a dump in one batch, then the non-empty dumps are multi-written
// to cold storage. The underlying store has no multi-key transaction spanning
// dump+expire+cold-write, so on any failure past the expiries a compensating
// pass unconditionally clears the expiry on every requested key - a freeze
// never leaves a dangling expiry. Returns the number of keys processed.
func (t *TieredStore) Freeze(ctx context.Context, pks ...string) (int, error) {
	keys := make([]string, 0, len(pks))
	for _, pk := range pks {
		if !t.policy.IsExcluded(pk) {
			keys = append(keys, pk)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	b := kvom.NewBatch()
	ttl := int64(t.freezeTTL / time.Second)
	dumps := make(map[string]*kvom.Future, len(keys))
	for _, pk := range keys {
		key := t.DBKey(pk)
		b.Enqueue(t.conn, "expire", key, ttl)
		dumps[pk] = b.Enqueue(t.conn, "dump", key)
	}
	if err := b.Execute(ctx); err != nil {
		t.unfreeze(ctx, keys)
		return 0, err
	}

	entries := make(map[string][]byte, len(dumps))
	for pk, f := range dumps {
		v, err := f.Result()
		if err != nil {
			t.unfreeze(ctx, keys)
			return 0, err
		}
		if s, ok := v.(string); ok && s != "" {
			entries[pk] = []byte(s)
		}
	}
	if len(entries) > 0 {
		if err := t.cold.SetMulti(ctx, entries); err != nil {
			t.unfreeze(ctx, keys)
			return 0, err
		}
	}
	return len(keys), nil
}

// unfreeze is Freeze's compensating pass: clear the expiry on every key the
// freeze touched. PERSIST is idempotent, so the pass retries with backoff
// before giving up; the freeze's original error is surfaced regardless.
func (t *TieredStore) unfreeze(ctx context.Context, pks []string) {
	err := kvom.Retry(ctx, func(ctx context.Context) error {
		b := kvom.NewBatch()
		for _, pk := range pks {
			b.Enqueue(t.conn, "persist", t.DBKey(pk))
		}
		return b.Execute(ctx)
	}, nil)
	if err != nil {
		log.Error("freeze compensation failed, expiries may dangle", "keys", len(pks), "error", err.Error())
	}
}

// Thaw restores the cold entry of each key back into the hot store (clearing
// any expiry) and removes the entries; keys without one are silently skipped.
func (t *TieredStore) Thaw(ctx context.Context, pks ...string) error {
	found, err := t.cold.GetMulti(ctx, pks)
	if err != nil {
		return err
	}
	restored := make([]string, 0, len(found))
	b := kvom.NewBatch()
	for _, pk := range pks {
		frozen := found[pk]
		if frozen == nil {
			continue
		}
		key := t.DBKey(pk)
		b.Enqueue(t.conn, "persist", key)
		b.Enqueue(t.conn, "restorenx", key, 0, string(frozen))
		restored = append(restored, pk)
	}
	if len(restored) == 0 {
		return nil
	}
	if err := b.Execute(ctx); err != nil {
		return err
	}
	return t.cold.DeleteMulti(ctx, restored)
}

// isCorruptDump matches the backend's RESTORE checksum failure.
func isCorruptDump(err error) bool {
	s := err.Error()
	return strings.Contains(s, "DUMP") && strings.Contains(s, "checksum")
}
