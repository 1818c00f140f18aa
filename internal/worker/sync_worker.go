package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flotta/internal/adapters"
	"flotta/internal/amqp"
	"flotta/internal/backend"
)

// SyncWorker consumes maintenance sync messages and applies them to the
// configured mirror backend. It never touches the database; every message
// carries the full log payload.
type SyncWorker struct {
	client  *amqp.Client
	backend backend.Backend
	applier *adapters.MirrorApplier
}

func NewSyncWorker(client *amqp.Client, b backend.Backend) *SyncWorker {
	return &SyncWorker{
		client:  client,
		backend: b,
		applier: adapters.NewMirrorApplier(b),
	}
}

// VerifyBackend checks mirror connectivity when the backend supports it.
// Backends without a verification hook are assumed healthy.
func (w *SyncWorker) VerifyBackend(ctx context.Context) error {
	if v, ok := w.backend.(interface {
		Verify(ctx context.Context) error
	}); ok {
		if err := v.Verify(ctx); err != nil {
			return fmt.Errorf("verify mirror backend: %w", err)
		}
		slog.InfoContext(ctx, "Mirror backend verified")
		return nil
	}
	slog.InfoContext(ctx, "Mirror backend has no verification hook, skipping check")
	return nil
}

// Run verifies the backend and then consumes sync messages until ctx is
// cancelled. Cancellation is a clean shutdown, not an error.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.VerifyBackend(ctx); err != nil {
		return err
	}

	err := w.client.Consume(ctx, w.HandleSyncMessage)
	if errors.Is(err, context.Canceled) {
		slog.InfoContext(ctx, "Sync worker stopped")
		return nil
	}
	return err
}

// HandleSyncMessage applies one sync message to the mirror. Returning an
// error makes the consumer nack and requeue the delivery.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"message_id", msg.MessageID,
		"op", msg.Op,
		"vehicle_id", msg.VehicleID,
		"log_id", msg.LogID)

	return w.applier.Apply(ctx, msg)
}
