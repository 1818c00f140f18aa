package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusActive   VehicleStatus = "Active"
	StatusInactive VehicleStatus = "Inactive"

	GasRegular  GasType = "Regular"
	GasPremium  GasType = "Premium"
	GasDiesel   GasType = "Diesel"
	GasElectric GasType = "Electric"
	GasOther    GasType = "Other"
)

// DateLayout is the canonical wire/storage format for dates.
const DateLayout = "2006-01-02"

type (
	VehicleStatus string

	GasType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Vehicle is a tracked fleet asset. Mileage is the current odometer
	// reading in whole miles; it is raised when a maintenance log records a
	// higher odometer value.
	Vehicle struct {
		ID             int64
		Make           string
		Model          string
		Year           int
		PlateReg       string
		VIN            string
		Status         VehicleStatus
		GasType        GasType
		TankCapacity   string
		Operator       string
		Location       string
		PurchaseDate   Date // optional
		ExpDate        Date // optional
		NextServiceDue Date // optional
		Mileage        int64
	}

	// MaintenanceLog is a dated, costed service record attached to one
	// vehicle. TotalCost is always MaterialCost + LaborCost and is never
	// authoritative on its own.
	MaintenanceLog struct {
		ID              int64
		VehicleID       int64
		Date            Date
		Description     string
		Odometer        int64
		ServiceProvider string
		Mechanic        string
		PartNo          string
		NextServiceDue  Date // optional
		MaterialCost    Money
		LaborCost       Money
		TotalCost       Money
		Warranty        bool
	}

	// MonthlyMileage is a per-calendar-month odometer start/end pair for one
	// vehicle. Month is normalized to the first day of the month.
	MonthlyMileage struct {
		ID              int64
		VehicleID       int64
		Month           Date
		StartingMileage int64
		EndingMileage   int64
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyMake        = errors.New("empty make")
	ErrEmptyModel       = errors.New("empty model")
	ErrEmptyPlate       = errors.New("empty plate registration")
	ErrInvalidStatus    = errors.New("invalid vehicle status")
	ErrInvalidGasType   = errors.New("invalid gas type")
	ErrCostMismatch     = errors.New("total cost must equal material plus labor cost")
	ErrMileageRange     = errors.New("ending mileage must be at least starting mileage")
	ErrNegativeMileage  = errors.New("mileage cannot be negative")
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrLogNotFound      = errors.New("maintenance log not found")
	ErrMileageNotFound  = errors.New("monthly mileage not found")
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in the canonical YYYY-MM-DD layout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (optional dates use the zero value)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// MonthStart truncates the date to the first day of its month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// AddMonths moves the date by n calendar months.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.Time.AddDate(0, n, 0)}
}

// ISO renders the date in the canonical layout, or "" for the zero value.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (s VehicleStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

func (g GasType) Valid() bool {
	switch g {
	case GasRegular, GasPremium, GasDiesel, GasElectric, GasOther:
		return true
	}
	return false
}

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.Make) == "" {
		return ErrEmptyMake
	}
	if strings.TrimSpace(v.Model) == "" {
		return ErrEmptyModel
	}
	if strings.TrimSpace(v.PlateReg) == "" {
		return ErrEmptyPlate
	}
	if v.Year < 1900 || v.Year > 2100 {
		return fmt.Errorf("implausible model year: %d", v.Year)
	}
	if !v.Status.Valid() {
		return ErrInvalidStatus
	}
	if !v.GasType.Valid() {
		return ErrInvalidGasType
	}
	if v.Mileage < 0 {
		return ErrNegativeMileage
	}
	return nil
}

// RecomputeTotal derives TotalCost from its operands. Callers must invoke it
// whenever MaterialCost or LaborCost changes.
func (l *MaintenanceLog) RecomputeTotal() {
	l.TotalCost = l.MaterialCost.Add(l.LaborCost)
}

func (l MaintenanceLog) Validate() error {
	if l.VehicleID <= 0 {
		return errors.New("log must belong to a vehicle")
	}
	if err := l.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(l.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(l.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if l.Odometer < 0 {
		return ErrNegativeMileage
	}
	if err := l.MaterialCost.Validate(); err != nil {
		return err
	}
	if err := l.LaborCost.Validate(); err != nil {
		return err
	}
	if l.TotalCost.Cents != l.MaterialCost.Cents+l.LaborCost.Cents {
		return ErrCostMismatch
	}
	return nil
}

func (m MonthlyMileage) Validate() error {
	if m.VehicleID <= 0 {
		return errors.New("mileage entry must belong to a vehicle")
	}
	if err := m.Month.Validate(); err != nil {
		return err
	}
	if m.Month.Day() != 1 {
		return errors.New("month must be the first day of a calendar month")
	}
	if m.StartingMileage < 0 {
		return ErrNegativeMileage
	}
	if m.EndingMileage < m.StartingMileage {
		return ErrMileageRange
	}
	return nil
}
