package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flotta/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testVehicle() core.Vehicle {
	return core.Vehicle{
		Make:         "Ford",
		Model:        "Transit-350 Cargo",
		Year:         2021,
		PlateReg:     "FLT012",
		VIN:          "2T1BR18E8XC165041",
		Status:       core.StatusActive,
		GasType:      core.GasRegular,
		TankCapacity: "25.1 gal",
		Operator:     "John Smith",
		Location:     "Atlanta",
		PurchaseDate: core.NewDate(2021, 3, 15),
		Mileage:      41000,
	}
}

func TestVehicleCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateVehicle(ctx, testVehicle())
	if err != nil {
		t.Fatalf("CreateVehicle() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateVehicle() returned zero ID")
	}

	got, err := repo.GetVehicle(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetVehicle() error = %v", err)
	}
	if got.PlateReg != "FLT012" || got.Operator != "John Smith" {
		t.Errorf("GetVehicle() = %+v, want seeded fields", got)
	}
	if got.PurchaseDate.ISO() != "2021-03-15" {
		t.Errorf("PurchaseDate = %q, want 2021-03-15", got.PurchaseDate.ISO())
	}
	if !got.ExpDate.IsEmpty() {
		t.Errorf("ExpDate = %v, want empty", got.ExpDate)
	}

	got.Location = "Savannah"
	got.Mileage = 43000
	if err := repo.UpdateVehicle(ctx, got); err != nil {
		t.Fatalf("UpdateVehicle() error = %v", err)
	}
	updated, err := repo.GetVehicle(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetVehicle() after update error = %v", err)
	}
	if updated.Location != "Savannah" || updated.Mileage != 43000 {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := repo.DeleteVehicle(ctx, created.ID); err != nil {
		t.Fatalf("DeleteVehicle() error = %v", err)
	}
	if _, err := repo.GetVehicle(ctx, created.ID); !errors.Is(err, core.ErrVehicleNotFound) {
		t.Errorf("GetVehicle() after delete error = %v, want ErrVehicleNotFound", err)
	}
	if err := repo.DeleteVehicle(ctx, created.ID); !errors.Is(err, core.ErrVehicleNotFound) {
		t.Errorf("DeleteVehicle() twice error = %v, want ErrVehicleNotFound", err)
	}
}

func TestSearchVehicles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fleet := []core.Vehicle{
		{Make: "Ford", Model: "Transit-350", PlateReg: "FLT030", Operator: "Maria Lopez", Status: core.StatusActive, GasType: core.GasRegular, Year: 2021},
		{Make: "Chevrolet", Model: "Express 2500", PlateReg: "FLT012", Operator: "John Smith", Status: core.StatusActive, GasType: core.GasDiesel, Year: 2019},
		{Make: "Ford", Model: "F-150", PlateReg: "FLT021", Operator: "Dana Wu", Status: core.StatusInactive, GasType: core.GasRegular, Year: 2020},
	}
	for _, v := range fleet {
		if _, err := repo.CreateVehicle(ctx, v); err != nil {
			t.Fatalf("CreateVehicle() error = %v", err)
		}
	}

	cases := []struct {
		query      string
		wantPlates []string
	}{
		{"", []string{"FLT012", "FLT021", "FLT030"}},
		{"ford", []string{"FLT021", "FLT030"}},
		{"SMITH", []string{"FLT012"}},
		{"transit", []string{"FLT030"}},
		{"lt02", []string{"FLT021"}},
		{"nothing matches this", nil},
	}
	for i, tc := range cases {
		got, err := repo.SearchVehicles(ctx, tc.query)
		if err != nil {
			t.Fatalf("case %d: SearchVehicles(%q) error = %v", i, tc.query, err)
		}
		var plates []string
		for _, v := range got {
			plates = append(plates, v.PlateReg)
		}
		if len(plates) != len(tc.wantPlates) {
			t.Errorf("case %d: SearchVehicles(%q) = %v, want %v", i, tc.query, plates, tc.wantPlates)
			continue
		}
		for j := range plates {
			if plates[j] != tc.wantPlates[j] {
				t.Errorf("case %d: SearchVehicles(%q) = %v, want %v", i, tc.query, plates, tc.wantPlates)
				break
			}
		}
	}
}

func TestCreateMaintenanceLogBumpsMileage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.CreateVehicle(ctx, testVehicle())
	if err != nil {
		t.Fatalf("CreateVehicle() error = %v", err)
	}

	ahead := core.MaintenanceLog{
		VehicleID:    v.ID,
		Date:         core.NewDate(2024, 1, 15),
		Description:  "Oil & Filter Change",
		Odometer:     41500,
		MaterialCost: core.Money{Cents: 2500},
		LaborCost:    core.Money{Cents: 1500},
		TotalCost:    core.Money{Cents: 4000},
	}
	if _, err := repo.CreateMaintenanceLog(ctx, ahead); err != nil {
		t.Fatalf("CreateMaintenanceLog() error = %v", err)
	}

	got, err := repo.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVehicle() error = %v", err)
	}
	if got.Mileage != 41500 {
		t.Errorf("vehicle mileage = %d, want bump to 41500", got.Mileage)
	}

	behind := ahead
	behind.Date = core.NewDate(2024, 2, 1)
	behind.Description = "Tire Rotation / Balance"
	behind.Odometer = 41200
	if _, err := repo.CreateMaintenanceLog(ctx, behind); err != nil {
		t.Fatalf("CreateMaintenanceLog() error = %v", err)
	}

	got, err = repo.GetVehicle(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVehicle() error = %v", err)
	}
	if got.Mileage != 41500 {
		t.Errorf("vehicle mileage = %d, want unchanged 41500", got.Mileage)
	}

	logs, err := repo.ListMaintenanceLogs(ctx, v.ID)
	if err != nil {
		t.Fatalf("ListMaintenanceLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("ListMaintenanceLogs() returned %d logs, want 2", len(logs))
	}
	if logs[0].Description != "Tire Rotation / Balance" {
		t.Errorf("logs not newest first: %q", logs[0].Description)
	}

	missing := ahead
	missing.VehicleID = v.ID + 100
	if _, err := repo.CreateMaintenanceLog(ctx, missing); !errors.Is(err, core.ErrVehicleNotFound) {
		t.Errorf("CreateMaintenanceLog() for missing vehicle error = %v, want ErrVehicleNotFound", err)
	}
}

func TestUpsertMonthlyMileage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.CreateVehicle(ctx, testVehicle())
	if err != nil {
		t.Fatalf("CreateVehicle() error = %v", err)
	}

	first, err := repo.UpsertMonthlyMileage(ctx, core.MonthlyMileage{
		VehicleID:       v.ID,
		Month:           core.NewDate(2024, 2, 1),
		StartingMileage: 1500,
		EndingMileage:   2200,
	})
	if err != nil {
		t.Fatalf("UpsertMonthlyMileage() error = %v", err)
	}

	second, err := repo.UpsertMonthlyMileage(ctx, core.MonthlyMileage{
		VehicleID:       v.ID,
		Month:           core.NewDate(2024, 2, 1),
		StartingMileage: 1500,
		EndingMileage:   2300,
	})
	if err != nil {
		t.Fatalf("UpsertMonthlyMileage() overwrite error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("overwrite created new row: id %d, want %d", second.ID, first.ID)
	}

	if _, err := repo.UpsertMonthlyMileage(ctx, core.MonthlyMileage{
		VehicleID:       v.ID,
		Month:           core.NewDate(2024, 1, 1),
		StartingMileage: 1000,
		EndingMileage:   1500,
	}); err != nil {
		t.Fatalf("UpsertMonthlyMileage() January error = %v", err)
	}

	entries, err := repo.ListMonthlyMileages(ctx, v.ID)
	if err != nil {
		t.Fatalf("ListMonthlyMileages() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListMonthlyMileages() returned %d entries, want 2", len(entries))
	}
	if entries[0].Month.ISO() != "2024-01-01" || entries[1].Month.ISO() != "2024-02-01" {
		t.Errorf("entries not in month order: %s, %s", entries[0].Month.ISO(), entries[1].Month.ISO())
	}
	if entries[1].EndingMileage != 2300 {
		t.Errorf("February ending = %d, want overwritten 2300", entries[1].EndingMileage)
	}

	if err := repo.DeleteMonthlyMileage(ctx, first.ID); err != nil {
		t.Fatalf("DeleteMonthlyMileage() error = %v", err)
	}
	if err := repo.DeleteMonthlyMileage(ctx, first.ID); !errors.Is(err, core.ErrMileageNotFound) {
		t.Errorf("DeleteMonthlyMileage() twice error = %v, want ErrMileageNotFound", err)
	}
}

func TestDeleteVehicleCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.CreateVehicle(ctx, testVehicle())
	if err != nil {
		t.Fatalf("CreateVehicle() error = %v", err)
	}
	l, err := repo.CreateMaintenanceLog(ctx, core.MaintenanceLog{
		VehicleID:   v.ID,
		Date:        core.NewDate(2024, 1, 15),
		Description: "Battery Replacement",
		TotalCost:   core.Money{Cents: 18000},
		LaborCost:   core.Money{Cents: 18000},
	})
	if err != nil {
		t.Fatalf("CreateMaintenanceLog() error = %v", err)
	}
	if _, err := repo.UpsertMonthlyMileage(ctx, core.MonthlyMileage{
		VehicleID: v.ID,
		Month:     core.NewDate(2024, 1, 1),
	}); err != nil {
		t.Fatalf("UpsertMonthlyMileage() error = %v", err)
	}

	if err := repo.DeleteVehicle(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVehicle() error = %v", err)
	}

	if _, err := repo.GetMaintenanceLog(ctx, l.ID); !errors.Is(err, core.ErrLogNotFound) {
		t.Errorf("GetMaintenanceLog() after cascade error = %v, want ErrLogNotFound", err)
	}
	entries, err := repo.ListMonthlyMileages(ctx, v.ID)
	if err != nil {
		t.Fatalf("ListMonthlyMileages() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListMonthlyMileages() after cascade returned %d entries, want 0", len(entries))
	}
}

func TestSyncQueueLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, id := range []string{"01HMSGQ0000000000000000001", "01HMSGQ0000000000000000002"} {
		err := repo.EnqueueSync(ctx, SyncEntry{
			MessageID: id,
			Op:        "log_created",
			VehicleID: 1,
			LogID:     int64(i + 1),
			Payload:   []byte(`{"op":"log_created"}`),
		})
		if err != nil {
			t.Fatalf("EnqueueSync() error = %v", err)
		}
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPendingSync() returned %d entries, want 2", len(pending))
	}
	if pending[0].MessageID != "01HMSGQ0000000000000000001" {
		t.Errorf("pending not in enqueue order: %s first", pending[0].MessageID)
	}

	if err := repo.MarkSyncDone(ctx, pending[0].ID); err != nil {
		t.Fatalf("MarkSyncDone() error = %v", err)
	}

	attempts, err := repo.MarkSyncFailed(ctx, pending[1].ID, "publish: connection refused")
	if err != nil {
		t.Fatalf("MarkSyncFailed() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	attempts, err = repo.MarkSyncFailed(ctx, pending[1].ID, "publish: connection refused")
	if err != nil {
		t.Fatalf("MarkSyncFailed() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}

	if err := repo.MarkSyncError(ctx, pending[1].ID); err != nil {
		t.Fatalf("MarkSyncError() error = %v", err)
	}

	pending, err = repo.ListPendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingSync() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPendingSync() after done/error returned %d entries, want 0", len(pending))
	}

	deleted, err := repo.DeleteProcessedSyncBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteProcessedSyncBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteProcessedSyncBefore() deleted %d rows, want the done row only", deleted)
	}
}

func TestFleetDashboardReads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	// Second call must be a no-op once the fleet has vehicles.
	if err := repo.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo() rerun error = %v", err)
	}

	stats, err := repo.FleetStats(ctx)
	if err != nil {
		t.Fatalf("FleetStats() error = %v", err)
	}
	if stats.Total != 1 || stats.Active != 1 || stats.Inactive != 0 {
		t.Errorf("FleetStats() = %+v, want one active vehicle", stats)
	}

	jan, err := repo.MonthCostTotal(ctx, core.NewDate(2024, 1, 20))
	if err != nil {
		t.Fatalf("MonthCostTotal() error = %v", err)
	}
	if jan.Cents != 8999 {
		t.Errorf("January total = %d cents, want 8999", jan.Cents)
	}

	recent, err := repo.RecentMaintenanceLogs(ctx, 5)
	if err != nil {
		t.Fatalf("RecentMaintenanceLogs() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentMaintenanceLogs() returned %d logs, want 2", len(recent))
	}
	if recent[0].PlateReg != "FLT012" {
		t.Errorf("recent log plate = %q, want FLT012", recent[0].PlateReg)
	}
	if recent[0].Log.Date.Before(recent[1].Log.Date.Time) {
		t.Error("recent logs not newest first")
	}
}

func TestListPreventativeSchedule(t *testing.T) {
	repo := newTestRepo(t)

	entries, err := repo.ListPreventativeSchedule(context.Background())
	if err != nil {
		t.Fatalf("ListPreventativeSchedule() error = %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("ListPreventativeSchedule() returned %d entries, want 7", len(entries))
	}
	if entries[0].Mileage != 10000 || entries[6].Mileage != 60000 {
		t.Errorf("schedule bounds = %d..%d, want 10000..60000", entries[0].Mileage, entries[6].Mileage)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Mileage <= entries[i-1].Mileage {
			t.Errorf("schedule not ascending at index %d", i)
		}
	}
}
