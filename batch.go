package kvom

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// group is the per-connection command buffer of a Batch. The future at index
// i corresponds to the i-th enqueued command on that connection.
type group struct {
	conn    Conn
	native  NativeBatch
	futures []*Future
}

// Batch collects logical reads/writes destined for one or more backend
// connections and executes them together. Commands for one connection stay
// strictly ordered; when more than one connection participates, the groups
// run concurrently. A Batch is cheap and not safe for concurrent use.
type Batch struct {
	id        uuid.UUID
	order     []string
	groups    map[string]*group
	callbacks []func(ctx context.Context) error
}

func NewBatch() *Batch {
	return &Batch{
		id:     uuid.New(),
		groups: make(map[string]*group),
	}
}

// Enqueue appends a command to conn's group, opening the group lazily, and
// returns the Future that will carry the command's raw reply.
func (b *Batch) Enqueue(conn Conn, cmd string, args ...any) *Future {
	g, ok := b.groups[conn.ID()]
	if !ok {
		g = &group{
			conn:   conn,
			native: conn.NewBatch(),
		}
		b.groups[conn.ID()] = g
		b.order = append(b.order, conn.ID())
	}
	g.native.Enqueue(cmd, args...)
	f := NewFuture()
	g.futures = append(g.futures, f)
	return f
}

// OnExecute registers a completion callback, run in registration order after
// every group's round trip succeeded. Callbacks may enqueue new commands;
// those belong to a fresh batch generation and are never executed within the
// same call.
func (b *Batch) OnExecute(fn func(ctx context.Context) error) {
	b.callbacks = append(b.callbacks, fn)
}

// Attach asks the record's owning store to enqueue the commands needed to
// populate it. Reports false without enqueuing when the record was already
// loaded.
func (b *Batch) Attach(ctx context.Context, rec Attachable) (bool, error) {
	if rec.Loaded() {
		return false, nil
	}
	if err := rec.Attach(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// Hydrate attaches every record (skipping already-loaded ones unless force)
// and executes only if something was attached. Reports whether execution
// occurred.
func (b *Batch) Hydrate(ctx context.Context, records []Attachable, force bool) (bool, error) {
	attached := false
	for _, rec := range records {
		if force && rec.Loaded() {
			if err := rec.Attach(ctx, b); err != nil {
				return false, err
			}
			attached = true
			continue
		}
		did, err := b.Attach(ctx, rec)
		if err != nil {
			return false, err
		}
		attached = attached || did
	}
	if !attached {
		return false, nil
	}
	return true, b.Execute(ctx)
}

// Len returns the number of commands buffered across all groups.
func (b *Batch) Len() int {
	n := 0
	for _, g := range b.groups {
		n += g.native.Len()
	}
	return n
}

// Execute plays every group against its connection, resolves futures in
// enqueue order, then runs completion callbacks. A single group runs
// synchronously on the caller; multiple groups run one worker per connection
// and the caller blocks until all join. When one or more groups fail the
// error of the first failing group in enqueue order is returned; groups that
// succeeded have already had their futures resolved and those results remain
// readable despite the returned error.
//
// Internal state is swapped out and cleared before anything resolves, so work
// enqueued by a callback lands in a new batch generation instead of
// corrupting the just-finished one.
func (b *Batch) Execute(ctx context.Context) error {
	order := b.order
	groups := b.groups
	callbacks := b.callbacks
	b.order = nil
	b.groups = make(map[string]*group)
	b.callbacks = nil

	if len(order) == 0 {
		return b.runCallbacks(ctx, callbacks)
	}

	log.Debug("executing batch", "batch", b.id.String(), "groups", len(order))

	if len(order) == 1 {
		if err := runGroup(ctx, groups[order[0]]); err != nil {
			return err
		}
		return b.runCallbacks(ctx, callbacks)
	}

	// One worker per connection. Every group runs to completion or failure;
	// outcomes are collected before choosing, by enqueue order, which error
	// to surface so attribution stays reproducible.
	outcomes := make([]error, len(order))
	eg := errgroup.Group{}
	for i, id := range order {
		i, id := i, id
		eg.Go(func() error {
			outcomes[i] = runGroup(ctx, groups[id])
			return outcomes[i]
		})
	}
	if err := eg.Wait(); err != nil {
		for _, outcome := range outcomes {
			if outcome != nil {
				return outcome
			}
		}
	}
	return b.runCallbacks(ctx, callbacks)
}

func (b *Batch) runCallbacks(ctx context.Context, callbacks []func(ctx context.Context) error) error {
	for _, fn := range callbacks {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runGroup plays one connection group's round trip and resolves its futures
// in enqueue order against the reply list.
func runGroup(ctx context.Context, g *group) error {
	results, err := g.native.Execute(ctx)
	if err != nil {
		return Error{Code: BackendProtocol, Err: err, UserData: g.conn.ID()}
	}
	if len(results) != len(g.futures) {
		return Error{
			Code:     BackendProtocol,
			Err:      fmt.Errorf("%d replies for %d enqueued commands", len(results), len(g.futures)),
			UserData: g.conn.ID(),
		}
	}
	for i, f := range g.futures {
		if err := f.Resolve(results[i]); err != nil {
			return err
		}
	}
	return nil
}

// Hydrate attaches records onto a fresh batch and executes it if anything was
// attached. Convenience for callers without a batch of their own.
func Hydrate(ctx context.Context, records []Attachable, force bool) (bool, error) {
	return NewBatch().Hydrate(ctx, records, force)
}
