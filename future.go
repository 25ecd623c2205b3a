package kvom

import "fmt"

// Future is a single-assignment cell for a value not yet known. It is created
// pending, resolved exactly once when its batch executes, and freely
// re-readable afterwards. Reading a pending Future is a caller bug (its batch
// has not executed), never a wait condition.
type Future struct {
	resolved bool
	value    any
}

func NewFuture() *Future {
	return &Future{}
}

// Resolve assigns the eventual value, exactly once.
func (f *Future) Resolve(value any) error {
	if f.resolved {
		return Error{Code: FutureReuse, Err: fmt.Errorf("future is already resolved")}
	}
	f.value = value
	f.resolved = true
	return nil
}

// Resolved reports whether the value has been assigned.
func (f *Future) Resolved() bool {
	return f.resolved
}

// Result returns the resolved raw backend reply.
func (f *Future) Result() (any, error) {
	if !f.resolved {
		return nil, Error{Code: FutureNotReady, Err: fmt.Errorf("future read before its batch executed")}
	}
	return f.value, nil
}

// FutureValue reads a Future and asserts the raw reply to T. A nil reply
// yields T's zero value, matching the backend's "no value" convention.
func FutureValue[T any](f *Future) (T, error) {
	var zero T
	v, err := f.Result()
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("future holds %T, not %T", v, zero)
	}
	return t, nil
}
