package sheets

import (
	"context"

	"flotta/internal/core"
)

// MirrorRow is the flattened form of a maintenance log bound for one
// spreadsheet row.
type MirrorRow struct {
	LogID           int64
	VehicleID       int64
	PlateReg        string
	Date            core.Date
	Description     string
	Odometer        int64
	ServiceProvider string
	Mechanic        string
	PartNo          string
	MaterialCost    core.Money
	LaborCost       core.Money
	TotalCost       core.Money
	Warranty        bool
}

// RowFromLog flattens a maintenance log and its vehicle's plate into a mirror
// row.
func RowFromLog(l core.MaintenanceLog, plateReg string) MirrorRow {
	return MirrorRow{
		LogID:           l.ID,
		VehicleID:       l.VehicleID,
		PlateReg:        plateReg,
		Date:            l.Date,
		Description:     l.Description,
		Odometer:        l.Odometer,
		ServiceProvider: l.ServiceProvider,
		Mechanic:        l.Mechanic,
		PartNo:          l.PartNo,
		MaterialCost:    l.MaterialCost,
		LaborCost:       l.LaborCost,
		TotalCost:       l.TotalCost,
		Warranty:        l.Warranty,
	}
}

// Ports for outbound mirror adapters.
type (
	LogWriter interface {
		Append(ctx context.Context, row MirrorRow) (rowRef string, err error)
	}

	LogDeleter interface {
		Delete(ctx context.Context, row MirrorRow) error
	}
)
