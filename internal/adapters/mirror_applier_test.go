package adapters

import (
	"context"
	"testing"

	"flotta/internal/amqp"
	"flotta/internal/core"
	"flotta/internal/sheets/memory"
)

func syncMessage(t *testing.T, op string) *amqp.SyncMessage {
	t.Helper()
	d, err := core.ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return amqp.NewSyncMessage(op, "FLT012", core.MaintenanceLog{
		ID:           42,
		VehicleID:    7,
		Date:         d,
		Description:  "Oil & Filter Change",
		Odometer:     41260,
		MaterialCost: core.Money{Cents: 6250},
		LaborCost:    core.Money{Cents: 2749},
		TotalCost:    core.Money{Cents: 8999},
	})
}

func TestApplyCreate(t *testing.T) {
	store := memory.New()
	applier := NewMirrorApplier(store)

	if err := applier.Apply(context.Background(), syncMessage(t, amqp.OpLogCreated)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.LogID != 42 {
		t.Errorf("LogID = %d, want 42", row.LogID)
	}
	if row.PlateReg != "FLT012" {
		t.Errorf("PlateReg = %q, want FLT012", row.PlateReg)
	}
	if row.TotalCost.Cents != 8999 {
		t.Errorf("TotalCost = %d cents, want 8999", row.TotalCost.Cents)
	}
}

func TestApplyDelete(t *testing.T) {
	store := memory.New()
	applier := NewMirrorApplier(store)
	ctx := context.Background()

	if err := applier.Apply(ctx, syncMessage(t, amqp.OpLogCreated)); err != nil {
		t.Fatalf("Apply create: %v", err)
	}
	if err := applier.Apply(ctx, syncMessage(t, amqp.OpLogDeleted)); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if rows := store.Rows(); len(rows) != 0 {
		t.Errorf("got %d rows after delete, want 0", len(rows))
	}

	// Deleting a log that never reached the mirror is not an error.
	if err := applier.Apply(ctx, syncMessage(t, amqp.OpLogDeleted)); err != nil {
		t.Errorf("Apply delete of absent row: %v", err)
	}
}

func TestApplyUnknownOp(t *testing.T) {
	applier := NewMirrorApplier(memory.New())
	if err := applier.Apply(context.Background(), syncMessage(t, "log_rotated")); err == nil {
		t.Error("expected error for unknown op")
	}
}

func TestApplyBadDate(t *testing.T) {
	applier := NewMirrorApplier(memory.New())
	msg := syncMessage(t, amqp.OpLogCreated)
	msg.Date = "garbage"
	if err := applier.Apply(context.Background(), msg); err == nil {
		t.Error("expected error for unparseable date")
	}
}
