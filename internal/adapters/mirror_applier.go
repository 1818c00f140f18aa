// Package adapters bridges queue messages to mirror backends.
package adapters

import (
	"context"
	"fmt"
	"log/slog"

	"flotta/internal/amqp"
	"flotta/internal/backend"
	"flotta/internal/sheets"
)

// MirrorApplier translates sync messages into operations on a mirror
// backend. The database row may already be gone by the time a delete
// arrives, so the applier works entirely from the message payload.
type MirrorApplier struct {
	backend backend.Backend
}

// NewMirrorApplier creates an applier targeting the given backend.
func NewMirrorApplier(b backend.Backend) *MirrorApplier {
	return &MirrorApplier{backend: b}
}

// Apply performs the mirror operation described by msg.
func (a *MirrorApplier) Apply(ctx context.Context, msg *amqp.SyncMessage) error {
	l, err := msg.Log()
	if err != nil {
		return fmt.Errorf("decode log from message %s: %w", msg.MessageID, err)
	}
	row := sheets.RowFromLog(l, msg.PlateReg)

	switch msg.Op {
	case amqp.OpLogCreated:
		ref, err := a.backend.Append(ctx, row)
		if err != nil {
			return fmt.Errorf("append log %d to mirror: %w", l.ID, err)
		}
		slog.InfoContext(ctx, "Mirrored log append",
			"log_id", l.ID,
			"vehicle_id", l.VehicleID,
			"row_ref", ref)
		return nil
	case amqp.OpLogDeleted:
		if err := a.backend.Delete(ctx, row); err != nil {
			return fmt.Errorf("delete log %d from mirror: %w", l.ID, err)
		}
		slog.InfoContext(ctx, "Mirrored log delete",
			"log_id", l.ID,
			"vehicle_id", l.VehicleID)
		return nil
	default:
		return fmt.Errorf("unknown sync op %q", msg.Op)
	}
}
