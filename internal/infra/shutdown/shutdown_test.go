package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitAsync(h *Handler) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	return errCh
}

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(5*time.Second, quiet())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "maintain", "http"} {
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	errCh := waitAsync(h)
	h.Trigger()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
	}

	want := []string{"http", "maintain", "store"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait returns")
	}
}

func TestHandler_HookErrorsAreJoined(t *testing.T) {
	h := NewHandler(5*time.Second, quiet())
	errStore := errors.New("flush failed")
	errHTTP := errors.New("listener stuck")

	ran := 0
	h.OnShutdown("store", func(context.Context) error { ran++; return errStore })
	h.OnShutdown("cache", func(context.Context) error { ran++; return nil })
	h.OnShutdown("http", func(context.Context) error { ran++; return errHTTP })

	errCh := waitAsync(h)
	h.Trigger()
	err := <-errCh

	if !errors.Is(err, errStore) || !errors.Is(err, errHTTP) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
	if ran != 3 {
		t.Errorf("ran %d hooks, want 3 even after a failure", ran)
	}
}

func TestHandler_TimeoutReachesHooks(t *testing.T) {
	h := NewHandler(20*time.Millisecond, quiet())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	errCh := waitAsync(h)
	h.Trigger()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hook context was not cancelled by the timeout")
	}
}

func TestHandler_TriggerTwice(t *testing.T) {
	h := NewHandler(time.Second, quiet())
	h.Trigger()
	h.Trigger()

	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(5*time.Second, quiet())
	h.signals = []os.Signal{syscall.SIGUSR1}

	called := make(chan struct{}, 1)
	h.OnShutdown("recorder", func(context.Context) error {
		called <- struct{}{}
		return nil
	})

	errCh := waitAsync(h)
	// Give Wait time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the signal")
	}
	select {
	case <-called:
	default:
		t.Error("hook did not run")
	}
}
