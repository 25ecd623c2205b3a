package kvom

import (
	"context"
	"errors"
	"testing"
)

func TestShouldRetryClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"future reuse", Error{Code: FutureReuse, Err: errors.New("x")}, false},
		{"missing pk", Error{Code: MissingPrimaryKey, Err: errors.New("x")}, false},
		{"corrupt cold entry", Error{Code: CorruptColdEntry, Err: errors.New("x")}, false},
		{"backend protocol", Error{Code: BackendProtocol, Err: errors.New("x")}, true},
		{"plain", errors.New("transient"), true},
	}
	for _, c := range cases {
		if got := ShouldRetry(c.err); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRetryAbortsOnPermanentError(t *testing.T) {
	attempts := 0
	gaveUp := false
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return Error{Code: MissingRequiredField, Err: errors.New("no name")}
	}, func(ctx context.Context) { gaveUp = true })
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("permanent error was attempted %d times", attempts)
	}
	if !gaveUp {
		t.Fatal("gaveUpTask not invoked")
	}
}

func TestRetrySucceedsAfterTransientError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}
