package stats

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives periodic snapshots.
type Sink interface {
	Publish(ctx context.Context, tenantID string, s Stats) error
}

// Source produces the snapshot to publish.
type Source func() Stats

// Reporter pushes a tenant's snapshot to a Sink on a fixed period. It runs
// on its own goroutine and never touches the dispatcher.
type Reporter struct {
	tenantID string
	source   Source
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
}

// NewReporter creates a Reporter. A nil logger uses slog.Default().
func NewReporter(tenantID string, source Source, sink Sink, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reporter{tenantID: tenantID, source: source, sink: sink, interval: interval, logger: logger}
}

// Run publishes until ctx is done, with a final publish on the way out.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			r.publish(flushCtx)
			cancel()
			return
		case <-ticker.C:
			r.publish(ctx)
		}
	}
}

func (r *Reporter) publish(ctx context.Context) {
	if err := r.sink.Publish(ctx, r.tenantID, r.source()); err != nil {
		r.logger.Warn("stats publish failed", "tenant_id", r.tenantID, "err", err)
	}
}
