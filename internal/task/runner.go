package task

import (
	"context"
	"log/slog"
	"sync"

	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
)

// Runner executes tasks on their own goroutines and hands the caller a
// cancellable handle. It holds no state of its own beyond a logger.
type Runner struct {
	Logger *slog.Logger
}

// NewRunner returns a Runner logging through logger, or slog.Default()
// when nil.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Logger: logger}
}

// Handle tracks one submitted task. Progress events stream through
// Progress(); Wait blocks until the task resolves to exactly one of a
// result or an error (ErrCancelled after Cancel).
type Handle[T any] struct {
	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc
	stats    *metrics.Stats

	mu     sync.Mutex
	result T
	err    error
}

// Progress returns the event stream. The channel closes when the task
// finishes. Events are dropped, never blocked on, when the consumer
// falls behind; counts in later events are still monotonic.
func (h *Handle[T]) Progress() <-chan Progress { return h.progress }

// Done closes when the task has resolved.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Cancel requests cooperative cancellation. Workers stop picking up new
// files; completed per-file work already reported via progress stands.
func (h *Handle[T]) Cancel() { h.cancel() }

// Stats snapshots the live counters, usable while the task still runs.
func (h *Handle[T]) Stats() metrics.Snapshot { return h.stats.Snapshot() }

// Wait blocks until the task resolves and returns its result or error.
func (h *Handle[T]) Wait() (T, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

func (h *Handle[T]) notify(p Progress) {
	select {
	case h.progress <- p:
	default:
	}
}

func start[T any](ctx context.Context, logger *slog.Logger, name string, fn func(context.Context, *metrics.Stats, ProgressFunc) (T, error)) *Handle[T] {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{
		progress: make(chan Progress, 4096),
		done:     make(chan struct{}),
		cancel:   cancel,
		stats:    &metrics.Stats{},
	}
	h.stats.Start()

	go func() {
		defer cancel()
		res, err := fn(ctx, h.stats, h.notify)
		h.stats.Stop()

		h.mu.Lock()
		h.result, h.err = res, err
		h.mu.Unlock()

		if err != nil {
			logger.Error("task failed", "task", name, "error", err)
		} else {
			snap := h.stats.Snapshot()
			logger.Info("task finished", "task", name,
				"processed", snap.Processed, "duration_ms", snap.DurationMs)
		}

		close(h.progress)
		close(h.done)
	}()
	return h
}

// Generate submits a manifest generation task.
func (r *Runner) Generate(ctx context.Context, paths []string, opts GenerateOptions) *Handle[*GenerateResult] {
	return start(ctx, r.Logger, "generate", func(ctx context.Context, stats *metrics.Stats, notify ProgressFunc) (*GenerateResult, error) {
		return Generate(ctx, paths, opts, stats, notify)
	})
}

// Verify submits a verification task for an in-memory manifest.
func (r *Runner) Verify(ctx context.Context, m *manifest.Manifest, opts VerifyOptions) *Handle[*VerifyResult] {
	return start(ctx, r.Logger, "verify", func(ctx context.Context, stats *metrics.Stats, notify ProgressFunc) (*VerifyResult, error) {
		return Verify(ctx, m, opts, stats, notify)
	})
}

// VerifyFile submits a verification task for a manifest on disk.
func (r *Runner) VerifyFile(ctx context.Context, path string, mopts manifest.Options, opts VerifyOptions) *Handle[*VerifyResult] {
	return start(ctx, r.Logger, "verify", func(ctx context.Context, stats *metrics.Stats, notify ProgressFunc) (*VerifyResult, error) {
		return VerifyFile(ctx, path, mopts, opts, stats, notify)
	})
}

// Compare submits a comparison task for two paths.
func (r *Runner) Compare(ctx context.Context, pathA, pathB string, opts CompareOptions) *Handle[*CompareResult] {
	return start(ctx, r.Logger, "compare", func(ctx context.Context, stats *metrics.Stats, notify ProgressFunc) (*CompareResult, error) {
		return Compare(ctx, pathA, pathB, opts, stats, notify)
	})
}
