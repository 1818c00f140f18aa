package services

import (
	"context"
	"fmt"
	"log/slog"

	"flotta/internal/core"
	"flotta/internal/storage"
)

// VehicleService validates and orchestrates vehicle operations over the
// repository.
type VehicleService struct {
	storage *storage.SQLiteRepository
}

func NewVehicleService(storage *storage.SQLiteRepository) *VehicleService {
	return &VehicleService{storage: storage}
}

// Create validates and saves a new vehicle. Status and gas type default to
// Active and Regular when left empty.
func (s *VehicleService) Create(ctx context.Context, v core.Vehicle) (core.Vehicle, error) {
	if v.Status == "" {
		v.Status = core.StatusActive
	}
	if v.GasType == "" {
		v.GasType = core.GasRegular
	}
	if err := v.Validate(); err != nil {
		return core.Vehicle{}, fmt.Errorf("validate vehicle: %w", err)
	}

	created, err := s.storage.CreateVehicle(ctx, v)
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}
	return created, nil
}

func (s *VehicleService) Get(ctx context.Context, id int64) (core.Vehicle, error) {
	return s.storage.GetVehicle(ctx, id)
}

// Update validates and saves changes to an existing vehicle.
func (s *VehicleService) Update(ctx context.Context, v core.Vehicle) error {
	if v.ID <= 0 {
		return core.ErrVehicleNotFound
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("validate vehicle: %w", err)
	}
	return s.storage.UpdateVehicle(ctx, v)
}

// CascadeCounts reports what a vehicle deletion removed alongside the
// vehicle itself.
type CascadeCounts struct {
	Logs    int
	Mileage int
}

// Delete removes a vehicle with its logs and mileage ledger, returning the
// cascaded row counts for the UI notification.
func (s *VehicleService) Delete(ctx context.Context, id int64) (CascadeCounts, error) {
	logs, err := s.storage.ListMaintenanceLogs(ctx, id)
	if err != nil {
		return CascadeCounts{}, fmt.Errorf("count logs before delete: %w", err)
	}
	mileage, err := s.storage.ListMonthlyMileages(ctx, id)
	if err != nil {
		return CascadeCounts{}, fmt.Errorf("count mileage before delete: %w", err)
	}

	if err := s.storage.DeleteVehicle(ctx, id); err != nil {
		return CascadeCounts{}, err
	}

	counts := CascadeCounts{Logs: len(logs), Mileage: len(mileage)}
	slog.InfoContext(ctx, "Vehicle deleted with cascade",
		"vehicle_id", id,
		"logs", counts.Logs,
		"mileage_rows", counts.Mileage)
	return counts, nil
}

func (s *VehicleService) List(ctx context.Context) ([]core.Vehicle, error) {
	return s.storage.ListVehicles(ctx)
}

// Search finds vehicles by case-insensitive substring over plate, make,
// model and operator. An empty query lists the whole fleet.
func (s *VehicleService) Search(ctx context.Context, query string) ([]core.Vehicle, error) {
	return s.storage.SearchVehicles(ctx, query)
}

// Stats returns fleet counts by status for the dashboard.
func (s *VehicleService) Stats(ctx context.Context) (storage.FleetStats, error) {
	return s.storage.FleetStats(ctx)
}
