// ABOUTME: Registry holding the latest snapshot of active flow definitions.
// ABOUTME: Refreshes wholesale on a fixed interval, retaining the prior snapshot on failure.

package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Source supplies flow definitions from the external authoring service.
type Source interface {
	Fetch(ctx context.Context) ([]Flow, error)
}

// Registry caches active flow definitions. The whole snapshot is replaced
// atomically on each successful refresh, so a conversation step never
// observes a half-updated graph. Fetch failures keep the previous snapshot.
type Registry struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	flows []Flow

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a Registry that pulls from source every interval once
// Run is started.
func NewRegistry(source Source, interval time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:   source,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Refresh pulls once from the source and swaps in the new snapshot. On
// failure the previous snapshot is retained and the error returned.
func (r *Registry) Refresh(ctx context.Context) error {
	fetched, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.Warn("flow refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	active := make([]Flow, 0, len(fetched))
	for _, f := range fetched {
		if f.IsActive {
			active = append(active, f)
		}
	}

	r.mu.Lock()
	r.flows = active
	r.mu.Unlock()

	r.logger.Debug("flow snapshot refreshed", "active_flows", len(active))
	return nil
}

// Run refreshes immediately and then on every tick until the context is
// canceled or Close is called.
func (r *Registry) Run(ctx context.Context) {
	// Initial fetch failure is not fatal; the ticker retries.
	_ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

// Close stops a running refresh loop. Safe to call multiple times.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// ActiveFlows returns the current snapshot in source order. The returned
// slice is a copy; callers may not mutate registry state through it.
func (r *Registry) ActiveFlows() []Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Flow, len(r.flows))
	copy(out, r.flows)
	return out
}

// GetByID returns the active flow with the given id.
func (r *Registry) GetByID(id string) (Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.flows {
		if f.ID == id {
			return f, true
		}
	}
	return Flow{}, false
}
