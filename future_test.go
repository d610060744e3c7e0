package webcrypto

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureSettlesOnce(t *testing.T) {
	f, complete := newFuture[int]()
	complete(1, nil)
	complete(2, errors.New("late"))

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("first completion must win: got=%d want=1", v)
	}
}

func TestFutureAwaitAbandonsOnContext(t *testing.T) {
	f, complete := newFuture[string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Abandoning the wait must not consume the settlement.
	complete("ok", nil)
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Fatalf("settlement lost: got=%q want=%q", v, "ok")
	}
}

func TestFutureDoneChannel(t *testing.T) {
	f := resolvedFuture(42)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("resolved future's Done channel is not closed")
	}
}

func TestRejectedFuture(t *testing.T) {
	want := newValidationError("bad input")
	f := rejectedFuture[[]byte](want)
	out, err := f.Await(context.Background())
	if out != nil {
		t.Fatalf("rejected future must carry the zero value, got %v", out)
	}
	if !errors.Is(err, want) {
		t.Fatalf("error not preserved: got=%v want=%v", err, want)
	}
}

func TestGoFutureRunsOffCaller(t *testing.T) {
	f := goFuture(func(ctx context.Context) (int, error) {
		return 7, nil
	})
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Fatalf("got=%d want=7", v)
	}
}
