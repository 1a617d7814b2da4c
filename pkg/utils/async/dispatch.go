package async

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

// Registry tracks dispatched background tasks so callers can wait for them
// to drain during shutdown or in tests. The zero value is ready to use.
type Registry struct {
	wg sync.WaitGroup

	mu     sync.Mutex
	errs   []error
	panics int
}

// Dispatch executes a handler asynchronously under a fresh background
// context that preserves the caller's logger. Panics are recovered and
// recorded, never propagated.
func (r *Registry) Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.mu.Lock()
				r.panics++
				r.mu.Unlock()
				logging.From(bgCtx).Error("panic in async task", "task", name, "panic", rec)
			}
		}()

		if err := handler(bgCtx); err != nil {
			r.mu.Lock()
			r.errs = append(r.errs, goerr.Wrap(err, "async task failed", goerr.V("task", name)))
			r.mu.Unlock()
			logging.From(bgCtx).Error("async task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until all dispatched tasks have finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Errors returns a copy of the recorded task errors.
func (r *Registry) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

var defaultRegistry = &Registry{}

// Dispatch runs the handler on the process-wide registry.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	defaultRegistry.Dispatch(ctx, name, handler)
}
