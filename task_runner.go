package kvom

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner fans tasks out across a bounded number of goroutines. Cold store
// backends without a native multi-key API use it to parallelize per-key calls.
type TaskRunner struct {
	eg      *errgroup.Group
	context context.Context
}

// NewTaskRunner creates a new TaskRunner. maxThreadCount > 0 limits the number
// of concurrent goroutines.
func NewTaskRunner(ctx context.Context, maxThreadCount int) *TaskRunner {
	eg, ctx2 := errgroup.WithContext(ctx)
	if maxThreadCount > 0 {
		eg.SetLimit(maxThreadCount)
	}
	return &TaskRunner{
		eg:      eg,
		context: ctx2,
	}
}

func (tr *TaskRunner) GetContext() context.Context {
	return tr.context
}

// Go runs the task in a goroutine managed by the underlying errgroup,
// blocking if the concurrency limit is reached.
func (tr *TaskRunner) Go(task func() error) {
	tr.eg.Go(task)
}

// Wrapper to errgroup.Wait.
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}
