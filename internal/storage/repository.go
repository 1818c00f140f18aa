package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flotta/internal/core"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs pending migrations. Pragmas ride on the DSN so every pooled connection
// gets foreign keys and the busy timeout, not just the first one.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Schema up to date", "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const vehicleCols = `id, make, model, year, plate_reg, vin, status, gas_type,
	tank_capacity, operator, location, purchase_date, exp_date,
	next_service_due, mileage`

func (r *SQLiteRepository) CreateVehicle(ctx context.Context, v core.Vehicle) (core.Vehicle, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO vehicles (make, model, year, plate_reg, vin, status,
			gas_type, tank_capacity, operator, location, purchase_date,
			exp_date, next_service_due, mileage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Make, v.Model, v.Year, v.PlateReg, v.VIN, string(v.Status),
		string(v.GasType), v.TankCapacity, v.Operator, v.Location,
		nullDate(v.PurchaseDate), nullDate(v.ExpDate),
		nullDate(v.NextServiceDue), v.Mileage)
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("create vehicle: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("create vehicle id: %w", err)
	}
	v.ID = id

	slog.InfoContext(ctx, "Vehicle saved",
		"id", v.ID,
		"plate", v.PlateReg,
		"make", v.Make,
		"model", v.Model)

	return v, nil
}

func (r *SQLiteRepository) GetVehicle(ctx context.Context, id int64) (core.Vehicle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Vehicle{}, core.ErrVehicleNotFound
	}
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle %d: %w", id, err)
	}
	return v, nil
}

func (r *SQLiteRepository) UpdateVehicle(ctx context.Context, v core.Vehicle) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET make = ?, model = ?, year = ?, plate_reg = ?,
			vin = ?, status = ?, gas_type = ?, tank_capacity = ?,
			operator = ?, location = ?, purchase_date = ?, exp_date = ?,
			next_service_due = ?, mileage = ?
		WHERE id = ?`,
		v.Make, v.Model, v.Year, v.PlateReg, v.VIN, string(v.Status),
		string(v.GasType), v.TankCapacity, v.Operator, v.Location,
		nullDate(v.PurchaseDate), nullDate(v.ExpDate),
		nullDate(v.NextServiceDue), v.Mileage, v.ID)
	if err != nil {
		return fmt.Errorf("update vehicle %d: %w", v.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vehicle %d: %w", v.ID, err)
	}
	if affected == 0 {
		return core.ErrVehicleNotFound
	}

	slog.InfoContext(ctx, "Vehicle updated", "id", v.ID, "plate", v.PlateReg)
	return nil
}

// DeleteVehicle removes a vehicle and all of its maintenance logs and monthly
// mileage rows in one transaction.
func (r *SQLiteRepository) DeleteVehicle(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete vehicle %d: %w", id, err)
	}
	defer tx.Rollback()

	logsRes, err := tx.ExecContext(ctx, `DELETE FROM maintenance_logs WHERE vehicle_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete logs for vehicle %d: %w", id, err)
	}
	mileageRes, err := tx.ExecContext(ctx, `DELETE FROM monthly_mileages WHERE vehicle_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mileages for vehicle %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vehicle %d: %w", id, err)
	}
	if affected == 0 {
		return core.ErrVehicleNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete vehicle %d: %w", id, err)
	}

	logsDeleted, _ := logsRes.RowsAffected()
	mileagesDeleted, _ := mileageRes.RowsAffected()
	slog.InfoContext(ctx, "Vehicle deleted",
		"id", id,
		"logs_deleted", logsDeleted,
		"mileages_deleted", mileagesDeleted)

	return nil
}

func (r *SQLiteRepository) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+vehicleCols+` FROM vehicles ORDER BY plate_reg`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()
	return collectVehicles(rows)
}

// SearchVehicles returns vehicles whose plate, make, model or operator
// contains the query as a case-insensitive substring, ordered by plate. An
// empty query returns the whole fleet.
func (r *SQLiteRepository) SearchVehicles(ctx context.Context, query string) ([]core.Vehicle, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return r.ListVehicles(ctx)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+vehicleCols+` FROM vehicles
		WHERE instr(lower(plate_reg), ?) > 0
		   OR instr(lower(make), ?) > 0
		   OR instr(lower(model), ?) > 0
		   OR instr(lower(operator), ?) > 0
		ORDER BY plate_reg`,
		needle, needle, needle, needle)
	if err != nil {
		return nil, fmt.Errorf("search vehicles: %w", err)
	}
	defer rows.Close()
	return collectVehicles(rows)
}

const logCols = `id, vehicle_id, date, description, odometer, service_provider,
	mechanic, part_no, next_service_due, material_cost_cents,
	labor_cost_cents, total_cost_cents, warranty`

// CreateMaintenanceLog inserts the log and, when its odometer reading is
// ahead of the vehicle's recorded mileage, bumps the vehicle in the same
// transaction.
func (r *SQLiteRepository) CreateMaintenanceLog(ctx context.Context, l core.MaintenanceLog) (core.MaintenanceLog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("begin create log: %w", err)
	}
	defer tx.Rollback()

	var vehicleMileage int64
	err = tx.QueryRowContext(ctx, `SELECT mileage FROM vehicles WHERE id = ?`, l.VehicleID).Scan(&vehicleMileage)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MaintenanceLog{}, core.ErrVehicleNotFound
	}
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("read vehicle %d mileage: %w", l.VehicleID, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO maintenance_logs (vehicle_id, date, description, odometer,
			service_provider, mechanic, part_no, next_service_due,
			material_cost_cents, labor_cost_cents, total_cost_cents, warranty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.VehicleID, l.Date.ISO(), l.Description, l.Odometer,
		l.ServiceProvider, l.Mechanic, l.PartNo, nullDate(l.NextServiceDue),
		l.MaterialCost.Cents, l.LaborCost.Cents, l.TotalCost.Cents,
		boolToInt(l.Warranty))
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("create maintenance log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("create maintenance log id: %w", err)
	}
	l.ID = id

	bumped := l.Odometer > vehicleMileage
	if bumped {
		if _, err := tx.ExecContext(ctx, `UPDATE vehicles SET mileage = ? WHERE id = ?`, l.Odometer, l.VehicleID); err != nil {
			return core.MaintenanceLog{}, fmt.Errorf("bump vehicle %d mileage: %w", l.VehicleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("commit create log: %w", err)
	}

	slog.InfoContext(ctx, "Maintenance log saved",
		"id", l.ID,
		"vehicle_id", l.VehicleID,
		"description", l.Description,
		"total_cents", l.TotalCost.Cents,
		"odometer_bumped", bumped)

	return l, nil
}

func (r *SQLiteRepository) GetMaintenanceLog(ctx context.Context, id int64) (core.MaintenanceLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+logCols+` FROM maintenance_logs WHERE id = ?`, id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MaintenanceLog{}, core.ErrLogNotFound
	}
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("get maintenance log %d: %w", id, err)
	}
	return l, nil
}

func (r *SQLiteRepository) DeleteMaintenanceLog(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM maintenance_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete maintenance log %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete maintenance log %d: %w", id, err)
	}
	if affected == 0 {
		return core.ErrLogNotFound
	}

	slog.InfoContext(ctx, "Maintenance log deleted", "id", id)
	return nil
}

// ListMaintenanceLogs returns a vehicle's logs newest first.
func (r *SQLiteRepository) ListMaintenanceLogs(ctx context.Context, vehicleID int64) ([]core.MaintenanceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logCols+` FROM maintenance_logs
		WHERE vehicle_id = ?
		ORDER BY date DESC, id DESC`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list maintenance logs: %w", err)
	}
	defer rows.Close()

	var logs []core.MaintenanceLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan maintenance log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UpsertMonthlyMileage inserts the ledger row, or overwrites the readings when
// the vehicle already has a row for that month.
func (r *SQLiteRepository) UpsertMonthlyMileage(ctx context.Context, m core.MonthlyMileage) (core.MonthlyMileage, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO monthly_mileages (vehicle_id, month, starting_mileage, ending_mileage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (vehicle_id, month) DO UPDATE SET
			starting_mileage = excluded.starting_mileage,
			ending_mileage = excluded.ending_mileage
		RETURNING id`,
		m.VehicleID, m.Month.ISO(), m.StartingMileage, m.EndingMileage).Scan(&m.ID)
	if err != nil {
		return core.MonthlyMileage{}, fmt.Errorf("upsert monthly mileage: %w", err)
	}

	slog.InfoContext(ctx, "Monthly mileage saved",
		"id", m.ID,
		"vehicle_id", m.VehicleID,
		"month", m.Month.ISO(),
		"starting", m.StartingMileage,
		"ending", m.EndingMileage)

	return m, nil
}

// ListMonthlyMileages returns a vehicle's ledger in ascending month order.
func (r *SQLiteRepository) ListMonthlyMileages(ctx context.Context, vehicleID int64) ([]core.MonthlyMileage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vehicle_id, month, starting_mileage, ending_mileage
		FROM monthly_mileages
		WHERE vehicle_id = ?
		ORDER BY month`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list monthly mileages: %w", err)
	}
	defer rows.Close()

	var entries []core.MonthlyMileage
	for rows.Next() {
		var m core.MonthlyMileage
		var month string
		if err := rows.Scan(&m.ID, &m.VehicleID, &month, &m.StartingMileage, &m.EndingMileage); err != nil {
			return nil, fmt.Errorf("scan monthly mileage: %w", err)
		}
		d, err := core.ParseDate(month)
		if err != nil {
			return nil, fmt.Errorf("parse mileage month %q: %w", month, err)
		}
		m.Month = d
		entries = append(entries, m)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) DeleteMonthlyMileage(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_mileages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete monthly mileage %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete monthly mileage %d: %w", id, err)
	}
	if affected == 0 {
		return core.ErrMileageNotFound
	}

	slog.InfoContext(ctx, "Monthly mileage deleted", "id", id)
	return nil
}

type FleetStats struct {
	Total    int64
	Active   int64
	Inactive int64
}

func (r *SQLiteRepository) FleetStats(ctx context.Context) (FleetStats, error) {
	var s FleetStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'Active' THEN 1 ELSE 0 END), 0)
		FROM vehicles`).Scan(&s.Total, &s.Active)
	if err != nil {
		return FleetStats{}, fmt.Errorf("fleet stats: %w", err)
	}
	s.Inactive = s.Total - s.Active
	return s, nil
}

// MonthCostTotal sums maintenance spend across the fleet for the calendar
// month containing the given date.
func (r *SQLiteRepository) MonthCostTotal(ctx context.Context, month core.Date) (core.Money, error) {
	start := month.MonthStart()
	end := start.AddMonths(1)

	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cost_cents), 0)
		FROM maintenance_logs
		WHERE date >= ? AND date < ?`,
		start.ISO(), end.ISO()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month cost total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// LogWithVehicle pairs a maintenance log with its vehicle's identity for
// fleet-wide listings.
type LogWithVehicle struct {
	Log      core.MaintenanceLog
	PlateReg string
	Make     string
	Model    string
}

func (r *SQLiteRepository) RecentMaintenanceLogs(ctx context.Context, limit int) ([]LogWithVehicle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.vehicle_id, l.date, l.description, l.odometer,
		       l.service_provider, l.mechanic, l.part_no, l.next_service_due,
		       l.material_cost_cents, l.labor_cost_cents, l.total_cost_cents,
		       l.warranty, v.plate_reg, v.make, v.model
		FROM maintenance_logs l
		JOIN vehicles v ON v.id = l.vehicle_id
		ORDER BY l.date DESC, l.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent maintenance logs: %w", err)
	}
	defer rows.Close()

	var out []LogWithVehicle
	for rows.Next() {
		var e LogWithVehicle
		var date string
		var nextDue sql.NullString
		var warranty int64
		err := rows.Scan(&e.Log.ID, &e.Log.VehicleID, &date, &e.Log.Description,
			&e.Log.Odometer, &e.Log.ServiceProvider, &e.Log.Mechanic,
			&e.Log.PartNo, &nextDue, &e.Log.MaterialCost.Cents,
			&e.Log.LaborCost.Cents, &e.Log.TotalCost.Cents, &warranty,
			&e.PlateReg, &e.Make, &e.Model)
		if err != nil {
			return nil, fmt.Errorf("scan recent log: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse recent log date %q: %w", date, err)
		}
		e.Log.Date = d
		e.Log.NextServiceDue = parseNullDate(nextDue)
		e.Log.Warranty = warranty != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPreventativeSchedule returns the service ladder in ascending mileage
// order.
func (r *SQLiteRepository) ListPreventativeSchedule(ctx context.Context) ([]core.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mileage, recommended FROM preventative_schedules ORDER BY mileage`)
	if err != nil {
		return nil, fmt.Errorf("list preventative schedule: %w", err)
	}
	defer rows.Close()

	var entries []core.ScheduleEntry
	for rows.Next() {
		var e core.ScheduleEntry
		if err := rows.Scan(&e.Mileage, &e.Recommended); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SyncEntry is one queued mirror operation waiting to be published.
type SyncEntry struct {
	ID        int64
	MessageID string
	Op        string
	VehicleID int64
	LogID     int64
	Payload   []byte
	Attempts  int64
}

func (r *SQLiteRepository) EnqueueSync(ctx context.Context, e SyncEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (message_id, op, vehicle_id, log_id, payload)
		VALUES (?, ?, ?, ?, ?)`,
		e.MessageID, e.Op, e.VehicleID, e.LogID, string(e.Payload))
	if err != nil {
		return fmt.Errorf("enqueue sync %s: %w", e.MessageID, err)
	}

	slog.InfoContext(ctx, "Sync operation queued",
		"message_id", e.MessageID,
		"op", e.Op,
		"vehicle_id", e.VehicleID,
		"log_id", e.LogID)

	return nil
}

func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]SyncEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, op, vehicle_id, log_id, payload, attempts
		FROM sync_queue
		WHERE status = 'pending'
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var entries []SyncEntry
	for rows.Next() {
		var e SyncEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.MessageID, &e.Op, &e.VehicleID, &e.LogID, &payload, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan sync entry: %w", err)
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) MarkSyncDone(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = 'done', processed_at = datetime('now')
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark sync done %d: %w", id, err)
	}
	return nil
}

// MarkSyncFailed records the error and returns the new attempt count so the
// caller can decide when to give up.
func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, lastError string) (int64, error) {
	var attempts int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
		RETURNING attempts`, lastError, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("mark sync failed %d: %w", id, err)
	}
	return attempts, nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = 'error', processed_at = datetime('now')
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark sync error %d: %w", id, err)
	}

	slog.WarnContext(ctx, "Sync operation gave up", "id", id)
	return nil
}

// DeleteProcessedSyncBefore prunes completed queue rows processed before the
// cutoff and reports how many were removed.
func (r *SQLiteRepository) DeleteProcessedSyncBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sync_queue
		WHERE status = 'done' AND processed_at < ?`,
		cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete processed sync: %w", err)
	}
	return res.RowsAffected()
}

// SeedDemo inserts a sample vehicle with a maintenance history when the fleet
// is empty, so a fresh install has something to show.
func (r *SQLiteRepository) SeedDemo(ctx context.Context) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&count); err != nil {
		return fmt.Errorf("count vehicles: %w", err)
	}
	if count > 0 {
		return nil
	}

	v, err := r.CreateVehicle(ctx, core.Vehicle{
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
	})
	if err != nil {
		return fmt.Errorf("seed demo vehicle: %w", err)
	}

	mileages := []core.MonthlyMileage{
		{VehicleID: v.ID, Month: core.NewDate(2024, 1, 1), StartingMileage: 41000, EndingMileage: 41500},
		{VehicleID: v.ID, Month: core.NewDate(2024, 2, 1), StartingMileage: 41500, EndingMileage: 42200},
	}
	for _, m := range mileages {
		if _, err := r.UpsertMonthlyMileage(ctx, m); err != nil {
			return fmt.Errorf("seed demo mileage: %w", err)
		}
	}

	logs := []core.MaintenanceLog{
		{
			VehicleID:       v.ID,
			Date:            core.NewDate(2024, 1, 15),
			Description:     "Oil & Filter Change",
			Odometer:        41260,
			ServiceProvider: "Peach State Truck Center",
			Mechanic:        "D. Alvarez",
			MaterialCost:    core.Money{Cents: 6250},
			LaborCost:       core.Money{Cents: 2749},
			TotalCost:       core.Money{Cents: 8999},
		},
		{
			VehicleID:       v.ID,
			Date:            core.NewDate(2024, 2, 1),
			Description:     "Tire Rotation / Balance",
			Odometer:        41520,
			ServiceProvider: "Peach State Truck Center",
			Mechanic:        "D. Alvarez",
			LaborCost:       core.Money{Cents: 6000},
			TotalCost:       core.Money{Cents: 6000},
		},
	}
	for _, l := range logs {
		if _, err := r.CreateMaintenanceLog(ctx, l); err != nil {
			return fmt.Errorf("seed demo log: %w", err)
		}
	}

	slog.InfoContext(ctx, "Demo fleet seeded", "vehicle_id", v.ID, "plate", v.PlateReg)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(s rowScanner) (core.Vehicle, error) {
	var v core.Vehicle
	var purchase, exp, nextDue sql.NullString
	err := s.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.PlateReg, &v.VIN,
		&v.Status, &v.GasType, &v.TankCapacity, &v.Operator, &v.Location,
		&purchase, &exp, &nextDue, &v.Mileage)
	if err != nil {
		return core.Vehicle{}, err
	}
	v.PurchaseDate = parseNullDate(purchase)
	v.ExpDate = parseNullDate(exp)
	v.NextServiceDue = parseNullDate(nextDue)
	return v, nil
}

func collectVehicles(rows *sql.Rows) ([]core.Vehicle, error) {
	var vehicles []core.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func scanLog(s rowScanner) (core.MaintenanceLog, error) {
	var l core.MaintenanceLog
	var date string
	var nextDue sql.NullString
	var warranty int64
	err := s.Scan(&l.ID, &l.VehicleID, &date, &l.Description, &l.Odometer,
		&l.ServiceProvider, &l.Mechanic, &l.PartNo, &nextDue,
		&l.MaterialCost.Cents, &l.LaborCost.Cents, &l.TotalCost.Cents,
		&warranty)
	if err != nil {
		return core.MaintenanceLog{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("parse log date %q: %w", date, err)
	}
	l.Date = d
	l.NextServiceDue = parseNullDate(nextDue)
	l.Warranty = warranty != 0
	return l, nil
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.ISO(), Valid: true}
}

func parseNullDate(ns sql.NullString) core.Date {
	if !ns.Valid || ns.String == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(ns.String)
	if err != nil {
		return core.Date{}
	}
	return d
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
