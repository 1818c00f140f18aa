package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flotta/internal/storage"
)

// Publisher is the queue side of the sync processor. *amqp.Client
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// SyncProcessorConfig tunes the outbox drain loop.
type SyncProcessorConfig struct {
	// PollInterval is the pause between drain cycles.
	PollInterval time.Duration

	// BatchSize caps how many rows one cycle publishes.
	BatchSize int

	// MaxRetries is how many publish attempts a row gets before it is
	// parked as permanently failed.
	MaxRetries int

	// CleanupInterval and CleanupAge control pruning of processed rows:
	// every CleanupInterval, rows finished more than CleanupAge ago go.
	CleanupInterval time.Duration
	CleanupAge      time.Duration
}

// DefaultSyncProcessorConfig returns the defaults used when no overrides
// are configured: 10s polls of 10 rows, 3 attempts, hourly pruning of rows
// older than a day.
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the outbox to the message queue. Rows stay pending
// until a publish succeeds, so missed polls and crashes are recovered on
// the next cycle.
type SyncProcessor struct {
	store  *storage.SQLiteRepository
	queue  Publisher
	config SyncProcessorConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSyncProcessor(store *storage.SQLiteRepository, queue Publisher, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		store:  store,
		queue:  queue,
		config: config,
	}
}

// Start launches the drain loop. Starting a running processor is an error.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("sync processor is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop cancels the drain loop and waits for it to wind down, or for ctx to
// expire. Stopping a processor that never started is a no-op.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *SyncProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()
	prune := time.NewTicker(p.config.CleanupInterval)
	defer prune.Stop()

	// Drain whatever accumulated while the processor was down.
	p.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.processBatch(ctx)
		case <-prune.C:
			p.pruneProcessed(ctx)
		}
	}
}

// processBatch publishes one batch of pending outbox rows in queue order.
func (p *SyncProcessor) processBatch(ctx context.Context) {
	entries, err := p.store.ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending sync entries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	slog.DebugContext(ctx, "Draining sync batch", "count", len(entries))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		if err := p.queue.Publish(ctx, entry.Payload); err != nil {
			p.recordFailure(ctx, entry, err)
			continue
		}

		if err := p.store.MarkSyncDone(ctx, entry.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync entry done",
				"id", entry.ID, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Published sync entry",
			"id", entry.ID,
			"message_id", entry.MessageID,
			"op", entry.Op,
			"vehicle_id", entry.VehicleID)
	}
}

// recordFailure bumps the attempt count and parks the row once it has used
// up its retries. Parked rows stay in the table for inspection.
func (p *SyncProcessor) recordFailure(ctx context.Context, entry storage.SyncEntry, cause error) {
	attempts, err := p.store.MarkSyncFailed(ctx, entry.ID, cause.Error())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record sync failure",
			"id", entry.ID, "error", err)
		return
	}

	if attempts < int64(p.config.MaxRetries) {
		slog.WarnContext(ctx, "Sync publish failed, will retry",
			"id", entry.ID,
			"op", entry.Op,
			"attempt", attempts,
			"error", cause)
		return
	}

	if err := p.store.MarkSyncError(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync entry as errored",
			"id", entry.ID, "error", err)
		return
	}
	slog.ErrorContext(ctx, "Sync entry failed permanently",
		"id", entry.ID,
		"message_id", entry.MessageID,
		"attempts", attempts)
}

func (p *SyncProcessor) pruneProcessed(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	removed, err := p.store.DeleteProcessedSyncBefore(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to prune processed sync entries", "error", err)
		return
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Pruned processed sync entries", "removed", removed)
	}
}
