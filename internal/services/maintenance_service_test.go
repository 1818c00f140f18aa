package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"flotta/internal/amqp"
	"flotta/internal/core"
	"flotta/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "flotta_test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedVehicle(t *testing.T, repo *storage.SQLiteRepository, plate string) core.Vehicle {
	t.Helper()
	v, err := repo.CreateVehicle(context.Background(), core.Vehicle{
		Make:     "Ford",
		Model:    "Transit-350 Cargo",
		Year:     2021,
		PlateReg: plate,
		Status:   core.StatusActive,
		GasType:  core.GasRegular,
		Operator: "John Smith",
		Mileage:  41000,
	})
	if err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}

func addTestLog(t *testing.T, svc *MaintenanceService, vehicleID int64, date, desc string, materialCents int64) core.MaintenanceLog {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	created, err := svc.AddLog(context.Background(), core.MaintenanceLog{
		VehicleID:    vehicleID,
		Date:         d,
		Description:  desc,
		Odometer:     41000,
		MaterialCost: core.Money{Cents: materialCents},
	})
	if err != nil {
		t.Fatalf("add log: %v", err)
	}
	return created
}

func putTestMileage(t *testing.T, svc *MaintenanceService, vehicleID int64, month string, start, end int64) core.MonthlyMileage {
	t.Helper()
	d, err := core.ParseDate(month)
	if err != nil {
		t.Fatalf("parse month %q: %v", month, err)
	}
	saved, err := svc.PutMileage(context.Background(), core.MonthlyMileage{
		VehicleID:       vehicleID,
		Month:           d,
		StartingMileage: start,
		EndingMileage:   end,
	})
	if err != nil {
		t.Fatalf("put mileage: %v", err)
	}
	return saved
}

func TestAddLogQueuesSyncEvent(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT001")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	created := addTestLog(t, svc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)
	if created.ID == 0 {
		t.Fatal("created log has no ID")
	}
	if created.TotalCost.Cents != 4000 {
		t.Errorf("TotalCost = %d cents, want recomputed 4000", created.TotalCost.Cents)
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("found %d pending sync entries, want 1", len(pending))
	}
	entry := pending[0]
	if entry.Op != amqp.OpLogCreated {
		t.Errorf("entry.Op = %q, want %q", entry.Op, amqp.OpLogCreated)
	}
	if entry.LogID != created.ID {
		t.Errorf("entry.LogID = %d, want %d", entry.LogID, created.ID)
	}

	msg, err := amqp.SyncMessageFromJSON(entry.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.PlateReg != "FLT001" {
		t.Errorf("payload PlateReg = %q, want FLT001", msg.PlateReg)
	}
	if msg.TotalCostCents != 4000 {
		t.Errorf("payload TotalCostCents = %d, want 4000", msg.TotalCostCents)
	}
}

func TestAddLogValidation(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT002")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	d, _ := core.ParseDate("2024-01-15")
	_, err := svc.AddLog(ctx, core.MaintenanceLog{
		VehicleID:    v.ID,
		Date:         d,
		Description:  "   ",
		MaterialCost: core.Money{Cents: 100},
	})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("error = %v, want ErrEmptyDescription", err)
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("rejected log still queued %d sync entries", len(pending))
	}
}

func TestDeleteLogQueuesDeleteEvent(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT003")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	created := addTestLog(t, svc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)

	if err := svc.DeleteLog(ctx, v.ID, created.ID); err != nil {
		t.Fatalf("DeleteLog: %v", err)
	}
	if _, err := repo.GetMaintenanceLog(ctx, created.ID); !errors.Is(err, core.ErrLogNotFound) {
		t.Errorf("log still readable after delete, err = %v", err)
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("found %d pending sync entries, want create + delete", len(pending))
	}

	// The delete event still carries the full log so the mirror can find
	// the row after the database copy is gone.
	msg, err := amqp.SyncMessageFromJSON(pending[1].Payload)
	if err != nil {
		t.Fatalf("decode delete payload: %v", err)
	}
	if msg.Op != amqp.OpLogDeleted {
		t.Errorf("second entry op = %q, want %q", msg.Op, amqp.OpLogDeleted)
	}
	if msg.Description != "Oil & Filter Change" || msg.TotalCostCents != 4000 {
		t.Errorf("delete payload lost log data: %+v", msg)
	}
}

func TestDeleteLogWrongVehicle(t *testing.T) {
	repo := newTestRepo(t)
	v1 := seedVehicle(t, repo, "FLT004")
	v2 := seedVehicle(t, repo, "FLT005")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())

	created := addTestLog(t, svc, v1.ID, "2024-01-15", "Oil & Filter Change", 4000)

	err := svc.DeleteLog(context.Background(), v2.ID, created.ID)
	if !errors.Is(err, core.ErrLogNotFound) {
		t.Fatalf("error = %v, want ErrLogNotFound for foreign log", err)
	}
}

func TestSummaryWorkedExample(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT006")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	putTestMileage(t, svc, v.ID, "2024-01-01", 1000, 1500)
	putTestMileage(t, svc, v.ID, "2024-02-01", 1500, 2200)
	addTestLog(t, svc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)
	addTestLog(t, svc, v.ID, "2024-02-01", "Tire Rotation / Balance", 6000)

	view, err := svc.Summary(ctx, v.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("got %d summary rows, want 2", len(view.Rows))
	}

	jan := view.Rows[0]
	if jan.Month.ISO() != "2024-01-01" || jan.Mileage != 500 || jan.Cost.Cents != 4000 {
		t.Errorf("January row = %+v, want mileage 500 cost 4000", jan)
	}
	feb := view.Rows[1]
	if feb.Month.ISO() != "2024-02-01" || feb.Mileage != 700 || feb.Cost.Cents != 6000 {
		t.Errorf("February row = %+v, want mileage 700 cost 6000", feb)
	}

	if view.Annual.Mileage != 1200 {
		t.Errorf("annual mileage = %d, want 1200", view.Annual.Mileage)
	}
	if view.Annual.TotalCost.Cents != 10000 {
		t.Errorf("annual cost = %d cents, want 10000", view.Annual.TotalCost.Cents)
	}
	wantRate := 100.0 / 1200.0
	if math.Abs(view.Annual.CostPerMile-wantRate) > 1e-9 {
		t.Errorf("cost per mile = %v, want %v", view.Annual.CostPerMile, wantRate)
	}
}

func TestSummaryCacheInvalidatedByWrite(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT007")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	putTestMileage(t, svc, v.ID, "2024-01-01", 1000, 1500)
	addTestLog(t, svc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)

	view, err := svc.Summary(ctx, v.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if view.Rows[0].Cost.Cents != 4000 {
		t.Fatalf("first read cost = %d, want 4000", view.Rows[0].Cost.Cents)
	}

	// A second write to the same vehicle must evict the cached view.
	addTestLog(t, svc, v.ID, "2024-01-20", "Bulb Replacement", 1000)

	view, err = svc.Summary(ctx, v.ID)
	if err != nil {
		t.Fatalf("Summary after write: %v", err)
	}
	if view.Rows[0].Cost.Cents != 5000 {
		t.Errorf("cost after write = %d, want 5000 (stale cache?)", view.Rows[0].Cost.Cents)
	}
}

func TestBreakdownExcludesUnknownDescriptions(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT008")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	putTestMileage(t, svc, v.ID, "2024-01-01", 1000, 1500)
	putTestMileage(t, svc, v.ID, "2024-02-01", 1500, 2200)
	addTestLog(t, svc, v.ID, "2024-02-01", "Tire Rotation / Balance", 6000)
	addTestLog(t, svc, v.ID, "2024-02-10", "Custom Weld Work", 2500)

	view, err := svc.Breakdown(ctx, v.ID)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if !view.OK {
		t.Fatal("breakdown skipped despite mileage entries")
	}

	// The off-vocabulary log contributes nothing to the matrix or totals.
	if got := view.Breakdown.Totals[1].Cents; got != 6000 {
		t.Errorf("February total = %d cents, want 6000", got)
	}
	for _, row := range view.Breakdown.Rows {
		if row.Description == "Custom Weld Work" {
			t.Error("unknown description gained a breakdown row")
		}
	}

	// It still counts in the plain monthly summary.
	summary, err := svc.Summary(ctx, v.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Rows[1].Cost.Cents != 8500 {
		t.Errorf("February summary cost = %d cents, want 8500", summary.Rows[1].Cost.Cents)
	}
}

func TestBreakdownEmptyLedger(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT009")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())

	view, err := svc.Breakdown(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if view.OK {
		t.Error("breakdown should be skipped for a vehicle with no mileage")
	}
}

func TestPutMileageNormalizesMonth(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT010")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())

	saved := putTestMileage(t, svc, v.ID, "2024-03-15", 2200, 2900)
	if saved.Month.ISO() != "2024-03-01" {
		t.Errorf("saved month = %s, want normalized 2024-03-01", saved.Month.ISO())
	}
}

func TestDeleteMileageOwnership(t *testing.T) {
	repo := newTestRepo(t)
	v1 := seedVehicle(t, repo, "FLT011")
	v2 := seedVehicle(t, repo, "FLT012")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	saved := putTestMileage(t, svc, v1.ID, "2024-01-01", 1000, 1500)

	if err := svc.DeleteMileage(ctx, v2.ID, saved.ID); !errors.Is(err, core.ErrMileageNotFound) {
		t.Fatalf("error = %v, want ErrMileageNotFound for foreign row", err)
	}
	if err := svc.DeleteMileage(ctx, v1.ID, saved.ID); err != nil {
		t.Fatalf("DeleteMileage: %v", err)
	}
}

func TestDisableSyncSkipsOutbox(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT014")
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())
	svc.DisableSync()

	addTestLog(t, svc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)

	pending, err := repo.ListPendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("found %d pending sync entries with sync disabled, want 0", len(pending))
	}
}

func TestScheduleView(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVehicle(t, repo, "FLT013") // odometer 41000
	svc := NewMaintenanceService(repo, core.DefaultVocabulary())

	view, err := svc.Schedule(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(view.Entries) != 7 {
		t.Errorf("schedule has %d rungs, want 7", len(view.Entries))
	}
	if !view.HasNext || view.Next.Mileage != 45000 {
		t.Errorf("next rung = %+v (hasNext=%v), want 45000", view.Next, view.HasNext)
	}
	if view.Odometer != 41000 {
		t.Errorf("odometer = %d, want 41000", view.Odometer)
	}
}
