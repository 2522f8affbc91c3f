package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook releases one resource. It should return once ctx ends.
type Hook func(ctx context.Context) error

// Handler runs shutdown hooks in reverse registration order under a
// shared deadline.
type Handler struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []namedHook

	once sync.Once
	err  error
	done chan struct{}
}

type namedHook struct {
	name string
	fn   Hook
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a hook. Hooks run in reverse order of
// registration, so resources close before what they depend on.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// Shutdown runs every hook once and returns their joined errors. Later
// calls wait for the first and return its result.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.once.Do(func() {
		defer close(h.done)

		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}

		h.mu.Lock()
		hooks := append([]namedHook(nil), h.hooks...)
		h.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i].fn(ctx); err != nil {
				errs = append(errs, &HookError{Name: hooks[i].name, Err: err})
			}
		}
		h.err = errors.Join(errs...)
	})
	<-h.done
	return h.err
}

// Wait blocks until SIGINT or SIGTERM, then runs Shutdown.
func (h *Handler) Wait() error {
	ctx, stop := WithSignals(context.Background())
	<-ctx.Done()
	stop()
	return h.Shutdown(context.Background())
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// HookError reports the hook that failed.
type HookError struct {
	Name string
	Err  error
}

func (e *HookError) Error() string { return "shutdown " + e.Name + ": " + e.Err.Error() }

func (e *HookError) Unwrap() error { return e.Err }
