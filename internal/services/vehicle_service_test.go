package services

import (
	"context"
	"errors"
	"testing"

	"flotta/internal/core"
)

func TestVehicleCreateAppliesDefaults(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewVehicleService(repo)

	created, err := svc.Create(context.Background(), core.Vehicle{
		Make:     "Ford",
		Model:    "Transit-350 Cargo",
		Year:     2021,
		PlateReg: "FLT020",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Error("created vehicle has no ID")
	}
	if created.Status != core.StatusActive {
		t.Errorf("Status = %q, want default Active", created.Status)
	}
	if created.GasType != core.GasRegular {
		t.Errorf("GasType = %q, want default Regular", created.GasType)
	}
}

func TestVehicleCreateValidation(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewVehicleService(repo)

	tests := []struct {
		name    string
		vehicle core.Vehicle
		wantErr error
	}{
		{
			name:    "missing make",
			vehicle: core.Vehicle{Model: "Transit", Year: 2021, PlateReg: "FLT021"},
			wantErr: core.ErrEmptyMake,
		},
		{
			name:    "missing plate",
			vehicle: core.Vehicle{Make: "Ford", Model: "Transit", Year: 2021},
			wantErr: core.ErrEmptyPlate,
		},
		{
			name: "bad gas type",
			vehicle: core.Vehicle{
				Make: "Ford", Model: "Transit", Year: 2021,
				PlateReg: "FLT022", GasType: core.GasType("Hydrogen"),
			},
			wantErr: core.ErrInvalidGasType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.vehicle)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVehicleUpdate(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewVehicleService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, core.Vehicle{
		Make: "Ford", Model: "Transit-350 Cargo", Year: 2021, PlateReg: "FLT023",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.Operator = "Dana Lee"
	created.Status = core.StatusInactive
	if err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Operator != "Dana Lee" || got.Status != core.StatusInactive {
		t.Errorf("updated vehicle = %+v", got)
	}

	// Updating a vehicle that was never saved is refused.
	if err := svc.Update(ctx, core.Vehicle{Make: "Ford", Model: "T", Year: 2021, PlateReg: "X", Status: core.StatusActive, GasType: core.GasRegular}); !errors.Is(err, core.ErrVehicleNotFound) {
		t.Errorf("Update without ID error = %v, want ErrVehicleNotFound", err)
	}
}

func TestVehicleDeleteReportsCascade(t *testing.T) {
	repo := newTestRepo(t)
	vsvc := NewVehicleService(repo)
	msvc := NewMaintenanceService(repo, core.DefaultVocabulary())
	ctx := context.Background()

	v := seedVehicle(t, repo, "FLT024")
	addTestLog(t, msvc, v.ID, "2024-01-15", "Oil & Filter Change", 4000)
	addTestLog(t, msvc, v.ID, "2024-02-01", "Tire Rotation / Balance", 6000)
	putTestMileage(t, msvc, v.ID, "2024-01-01", 1000, 1500)

	counts, err := vsvc.Delete(ctx, v.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if counts.Logs != 2 || counts.Mileage != 1 {
		t.Errorf("cascade counts = %+v, want 2 logs and 1 mileage row", counts)
	}

	if _, err := vsvc.Get(ctx, v.ID); !errors.Is(err, core.ErrVehicleNotFound) {
		t.Errorf("vehicle still readable after delete, err = %v", err)
	}
}

func TestVehicleSearch(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewVehicleService(repo)
	ctx := context.Background()

	seedVehicle(t, repo, "FLT025")
	seedVehicle(t, repo, "VAN900")

	hits, err := svc.Search(ctx, "flt")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].PlateReg != "FLT025" {
		t.Errorf("search hits = %+v, want only FLT025", hits)
	}

	all, err := svc.Search(ctx, "")
	if err != nil {
		t.Fatalf("Search empty: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("empty query returned %d vehicles, want 2", len(all))
	}
}
