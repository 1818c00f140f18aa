package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"flotta/internal/core"
)

// Operations carried by sync messages.
const (
	OpLogCreated = "log_created"
	OpLogDeleted = "log_deleted"
)

// SyncMessage carries one mirror operation. It holds the full log so the
// worker can apply deletes after the row is already gone from the database.
type SyncMessage struct {
	MessageID string `json:"message_id"`
	Op        string `json:"op"`
	VehicleID int64  `json:"vehicle_id"`
	PlateReg  string `json:"plate_reg"`

	LogID             int64  `json:"log_id"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	Odometer          int64  `json:"odometer"`
	ServiceProvider   string `json:"service_provider,omitempty"`
	Mechanic          string `json:"mechanic,omitempty"`
	PartNo            string `json:"part_no,omitempty"`
	MaterialCostCents int64  `json:"material_cost_cents"`
	LaborCostCents    int64  `json:"labor_cost_cents"`
	TotalCostCents    int64  `json:"total_cost_cents"`
	Warranty          bool   `json:"warranty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewSyncMessage flattens the log into a sync message with a fresh ULID.
func NewSyncMessage(op, plateReg string, l core.MaintenanceLog) *SyncMessage {
	return &SyncMessage{
		MessageID:         ulid.Make().String(),
		Op:                op,
		VehicleID:         l.VehicleID,
		PlateReg:          plateReg,
		LogID:             l.ID,
		Date:              l.Date.ISO(),
		Description:       l.Description,
		Odometer:          l.Odometer,
		ServiceProvider:   l.ServiceProvider,
		Mechanic:          l.Mechanic,
		PartNo:            l.PartNo,
		MaterialCostCents: l.MaterialCost.Cents,
		LaborCostCents:    l.LaborCost.Cents,
		TotalCostCents:    l.TotalCost.Cents,
		Warranty:          l.Warranty,
		EnqueuedAt:        time.Now().UTC(),
	}
}

// Log reconstructs the maintenance log carried by the message.
func (m *SyncMessage) Log() (core.MaintenanceLog, error) {
	d, err := core.ParseDate(m.Date)
	if err != nil {
		return core.MaintenanceLog{}, fmt.Errorf("parse message date %q: %w", m.Date, err)
	}
	return core.MaintenanceLog{
		ID:              m.LogID,
		VehicleID:       m.VehicleID,
		Date:            d,
		Description:     m.Description,
		Odometer:        m.Odometer,
		ServiceProvider: m.ServiceProvider,
		Mechanic:        m.Mechanic,
		PartNo:          m.PartNo,
		MaterialCost:    core.Money{Cents: m.MaterialCostCents},
		LaborCost:       core.Money{Cents: m.LaborCostCents},
		TotalCost:       core.Money{Cents: m.TotalCostCents},
		Warranty:        m.Warranty,
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON creates a message from JSON bytes
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage announces a vehicle coming due for service.
type ReminderMessage struct {
	MessageID  string    `json:"message_id"`
	VehicleID  int64     `json:"vehicle_id"`
	PlateReg   string    `json:"plate_reg"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason"`
	DueDate    string    `json:"due_date,omitempty"`
	DueMileage int64     `json:"due_mileage,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewReminderMessage creates a reminder message with a fresh ULID.
func NewReminderMessage(vehicleID int64, plateReg, strategy, reason string) *ReminderMessage {
	return &ReminderMessage{
		MessageID: ulid.Make().String(),
		VehicleID: vehicleID,
		PlateReg:  plateReg,
		Strategy:  strategy,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON creates a message from JSON bytes
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
