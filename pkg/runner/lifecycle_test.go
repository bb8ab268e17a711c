package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeDrainer struct {
	drained bool
	err     error
	delay   time.Duration
}

func (f *fakeDrainer) Drain() error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.drained = true
	return f.err
}

func newRunner(d Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	r := NewLifecycleRunner(d, hooks, timeout)
	r.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r
}

func TestRunDrainsOnCancel(t *testing.T) {
	d := &fakeDrainer{}
	started := false
	r := newRunner(d, Hooks{OnStart: func() { started = true }}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitForState(t, r, StateRunning)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !started || !d.drained {
		t.Fatalf("started = %v, drained = %v", started, d.drained)
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %v", r.State())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d := &fakeDrainer{err: errors.New("drain failed")}
	r := newRunner(d, Hooks{}, time.Second)

	go r.Run(context.Background())
	waitForState(t, r, StateRunning)

	if err := r.Stop(); err == nil || err.Error() != "drain failed" {
		t.Fatalf("first stop: %v", err)
	}
	if err := r.Stop(); err == nil || err.Error() != "drain failed" {
		t.Fatalf("second stop: %v", err)
	}
}

func TestDrainTimeout(t *testing.T) {
	d := &fakeDrainer{delay: 200 * time.Millisecond}
	r := newRunner(d, Hooks{}, 10*time.Millisecond)

	go r.Run(context.Background())
	waitForState(t, r, StateRunning)

	if err := r.Stop(); err == nil || err.Error() != "drain timeout" {
		t.Fatalf("stop: %v", err)
	}
}

func TestDoubleRunRejected(t *testing.T) {
	r := newRunner(&fakeDrainer{}, Hooks{}, time.Second)
	go r.Run(context.Background())
	waitForState(t, r, StateRunning)
	defer r.Stop()

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected second run rejected")
	}
}

func waitForState(t *testing.T, r *LifecycleRunner, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %v, at %v", want, r.State())
}
