package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"flotta/internal/amqp"
	"flotta/internal/cache"
	"flotta/internal/core"
	"flotta/internal/storage"
)

const (
	readCacheSize = 256
	readCacheTTL  = 5 * time.Minute
)

// SummaryView is the monthly summary read model: per-month rows plus the
// annualized metrics derived from them.
type SummaryView struct {
	Rows   []core.MonthlySummary
	Annual core.AnnualMetrics
}

// BreakdownView is the category matrix read model. OK is false when the
// vehicle has no mileage ledger and the matrix was skipped entirely.
type BreakdownView struct {
	Breakdown core.CategoryBreakdown
	OK        bool
}

// ScheduleView pairs the preventative ladder with the vehicle's position
// on it.
type ScheduleView struct {
	Entries  []core.ScheduleEntry
	Odometer int64
	Next     core.ScheduleEntry
	HasNext  bool
}

// MaintenanceService orchestrates maintenance logs, the mileage ledger and
// the derived cost reports. Writes enqueue mirror sync events on the outbox;
// summary and breakdown reads are deduplicated with singleflight and cached
// per vehicle.
type MaintenanceService struct {
	storage      *storage.SQLiteRepository
	vocab        core.Vocabulary
	syncDisabled bool

	group          singleflight.Group
	summaryCache   *cache.LRUCache[SummaryView]
	breakdownCache *cache.LRUCache[BreakdownView]
}

func NewMaintenanceService(storage *storage.SQLiteRepository, vocab core.Vocabulary) *MaintenanceService {
	return &MaintenanceService{
		storage:        storage,
		vocab:          vocab,
		summaryCache:   cache.NewLRUCache[SummaryView](readCacheSize, readCacheTTL),
		breakdownCache: cache.NewLRUCache[BreakdownView](readCacheSize, readCacheTTL),
	}
}

// RegisterCaches adds the read-model caches to the cleanup manager.
func (s *MaintenanceService) RegisterCaches(m *cache.Manager) {
	m.Register(s.summaryCache)
	m.Register(s.breakdownCache)
}

// DisableSync stops queueing mirror events. Used when no mirror backend is
// configured, so the outbox does not accumulate rows nobody will drain.
func (s *MaintenanceService) DisableSync() {
	s.syncDisabled = true
}

// Vocabulary returns the description vocabulary the breakdown recognizes.
func (s *MaintenanceService) Vocabulary() core.Vocabulary {
	return s.vocab
}

// AddLog validates and stores a maintenance log, then queues a mirror sync
// event. The total is recomputed from material and labor before validation;
// the odometer bump on the vehicle happens inside the storage transaction.
func (s *MaintenanceService) AddLog(ctx context.Context, l core.MaintenanceLog) (core.MaintenanceLog, error) {
	l.RecomputeTotal()
	if err := l.Validate(); err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("validate log: %w", err)
	}

	vehicle, err := s.storage.GetVehicle(ctx, l.VehicleID)
	if err != nil {
		return core.MaintenanceLog{}, err
	}

	created, err := s.storage.CreateMaintenanceLog(ctx, l)
	if err != nil {
		return core.MaintenanceLog{}, err
	}

	s.enqueueSync(ctx, amqp.OpLogCreated, vehicle.PlateReg, created)
	s.invalidate(l.VehicleID)
	return created, nil
}

func (s *MaintenanceService) GetLog(ctx context.Context, logID int64) (core.MaintenanceLog, error) {
	return s.storage.GetMaintenanceLog(ctx, logID)
}

// DeleteLog removes a log belonging to the given vehicle and queues a
// mirror delete event carrying the full log payload.
func (s *MaintenanceService) DeleteLog(ctx context.Context, vehicleID, logID int64) error {
	l, err := s.storage.GetMaintenanceLog(ctx, logID)
	if err != nil {
		return err
	}
	if l.VehicleID != vehicleID {
		return core.ErrLogNotFound
	}

	if err := s.storage.DeleteMaintenanceLog(ctx, logID); err != nil {
		return err
	}

	plate := ""
	if vehicle, err := s.storage.GetVehicle(ctx, vehicleID); err == nil {
		plate = vehicle.PlateReg
	}
	s.enqueueSync(ctx, amqp.OpLogDeleted, plate, l)
	s.invalidate(vehicleID)
	return nil
}

func (s *MaintenanceService) Logs(ctx context.Context, vehicleID int64) ([]core.MaintenanceLog, error) {
	return s.storage.ListMaintenanceLogs(ctx, vehicleID)
}

// PutMileage upserts the odometer pair for one calendar month. The month is
// normalized to its first day before validation, so any date within the
// month addresses the same row.
func (s *MaintenanceService) PutMileage(ctx context.Context, m core.MonthlyMileage) (core.MonthlyMileage, error) {
	m.Month = m.Month.MonthStart()
	if err := m.Validate(); err != nil {
		return core.MonthlyMileage{}, fmt.Errorf("validate mileage: %w", err)
	}

	saved, err := s.storage.UpsertMonthlyMileage(ctx, m)
	if err != nil {
		return core.MonthlyMileage{}, err
	}

	s.invalidate(m.VehicleID)
	return saved, nil
}

// DeleteMileage removes one month's entry, refusing ids that belong to a
// different vehicle.
func (s *MaintenanceService) DeleteMileage(ctx context.Context, vehicleID, mileageID int64) error {
	entries, err := s.storage.ListMonthlyMileages(ctx, vehicleID)
	if err != nil {
		return err
	}
	owned := false
	for _, e := range entries {
		if e.ID == mileageID {
			owned = true
			break
		}
	}
	if !owned {
		return core.ErrMileageNotFound
	}

	if err := s.storage.DeleteMonthlyMileage(ctx, mileageID); err != nil {
		return err
	}

	s.invalidate(vehicleID)
	return nil
}

func (s *MaintenanceService) Mileage(ctx context.Context, vehicleID int64) ([]core.MonthlyMileage, error) {
	return s.storage.ListMonthlyMileages(ctx, vehicleID)
}

// Summary returns the per-month mileage and cost table with annual metrics
// for one vehicle. Results are cached per vehicle until the next write.
func (s *MaintenanceService) Summary(ctx context.Context, vehicleID int64) (SummaryView, error) {
	key := summaryKey(vehicleID)
	if view, ok := s.summaryCache.Get(key); ok {
		return view, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		mileage, logs, err := s.loadLedger(ctx, vehicleID)
		if err != nil {
			return nil, err
		}
		rows := core.ComputeMonthlySummary(mileage, logs)
		view := SummaryView{Rows: rows, Annual: core.ComputeAnnualMetrics(rows)}
		s.summaryCache.Set(key, view)
		return view, nil
	})
	if err != nil {
		return SummaryView{}, err
	}
	return v.(SummaryView), nil
}

// Breakdown returns the description-by-month cost matrix for one vehicle.
// OK is false when the vehicle has no mileage ledger.
func (s *MaintenanceService) Breakdown(ctx context.Context, vehicleID int64) (BreakdownView, error) {
	key := breakdownKey(vehicleID)
	if view, ok := s.breakdownCache.Get(key); ok {
		return view, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		mileage, logs, err := s.loadLedger(ctx, vehicleID)
		if err != nil {
			return nil, err
		}
		bd, ok := core.ComputeCategoryBreakdown(mileage, logs, s.vocab)
		view := BreakdownView{Breakdown: bd, OK: ok}
		s.breakdownCache.Set(key, view)
		return view, nil
	})
	if err != nil {
		return BreakdownView{}, err
	}
	return v.(BreakdownView), nil
}

// Schedule returns the preventative ladder with the vehicle's next rung.
func (s *MaintenanceService) Schedule(ctx context.Context, vehicleID int64) (ScheduleView, error) {
	vehicle, err := s.storage.GetVehicle(ctx, vehicleID)
	if err != nil {
		return ScheduleView{}, err
	}
	entries, err := s.storage.ListPreventativeSchedule(ctx)
	if err != nil {
		return ScheduleView{}, err
	}

	next, hasNext := core.NextService(entries, vehicle.Mileage)
	return ScheduleView{
		Entries:  entries,
		Odometer: vehicle.Mileage,
		Next:     next,
		HasNext:  hasNext,
	}, nil
}

// MonthCost returns fleet-wide maintenance spend for the month containing
// the given date.
func (s *MaintenanceService) MonthCost(ctx context.Context, month core.Date) (core.Money, error) {
	return s.storage.MonthCostTotal(ctx, month)
}

// RecentLogs returns the newest logs across the fleet for the dashboard.
func (s *MaintenanceService) RecentLogs(ctx context.Context, limit int) ([]storage.LogWithVehicle, error) {
	return s.storage.RecentMaintenanceLogs(ctx, limit)
}

func (s *MaintenanceService) loadLedger(ctx context.Context, vehicleID int64) ([]core.MonthlyMileage, []core.MaintenanceLog, error) {
	mileage, err := s.storage.ListMonthlyMileages(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.storage.ListMaintenanceLogs(ctx, vehicleID)
	if err != nil {
		return nil, nil, err
	}
	return mileage, logs, nil
}

// enqueueSync queues a mirror event on the outbox. Failures are logged and
// swallowed: the local write already succeeded and the mirror is
// best-effort.
func (s *MaintenanceService) enqueueSync(ctx context.Context, op, plateReg string, l core.MaintenanceLog) {
	if s.syncDisabled {
		return
	}

	msg := amqp.NewSyncMessage(op, plateReg, l)
	payload, err := msg.ToJSON()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal sync message",
			"op", op, "log_id", l.ID, "error", err)
		return
	}

	entry := storage.SyncEntry{
		MessageID: msg.MessageID,
		Op:        op,
		VehicleID: l.VehicleID,
		LogID:     l.ID,
		Payload:   payload,
	}
	if err := s.storage.EnqueueSync(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to enqueue sync event",
			"op", op, "log_id", l.ID, "error", err)
		return
	}

	slog.DebugContext(ctx, "Sync event queued",
		"message_id", msg.MessageID,
		"op", op,
		"log_id", l.ID)
}

func (s *MaintenanceService) invalidate(vehicleID int64) {
	s.summaryCache.Delete(summaryKey(vehicleID))
	s.breakdownCache.Delete(breakdownKey(vehicleID))
}

func summaryKey(vehicleID int64) string {
	return "summary:" + strconv.FormatInt(vehicleID, 10)
}

func breakdownKey(vehicleID int64) string {
	return "breakdown:" + strconv.FormatInt(vehicleID, 10)
}
