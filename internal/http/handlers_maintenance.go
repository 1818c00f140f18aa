package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flotta/internal/core"
	"flotta/internal/log"
)

// parseCostField parses an optional money form value into cents. Blank means
// zero so parts-only or labor-only entries stay easy to type.
func parseCostField(raw, label string) (int64, *HTMXResponse) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		return 0, UnprocessableEntityError("Invalid " + label)
	}
	return cents, nil
}

// parseMileageField parses a required odometer form value.
func parseMileageField(raw, label string) (int64, *HTMXResponse) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, UnprocessableEntityError("Missing " + label)
	}
	miles, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, UnprocessableEntityError("Invalid " + label)
	}
	return miles, nil
}

// handleVehicleLogs serves a vehicle's maintenance history partial and the
// log form submission.
func (s *Server) handleVehicleLogs(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	switch r.Method {
	case http.MethodGet:
		s.renderLogs(w, r, vehicleID)
	case http.MethodPost:
		s.addLog(w, r, vehicleID)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderLogs(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	logs, err := s.maint.Logs(ctx, vehicleID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Maintenance logs error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading maintenance history</div>`))
		return
	}

	type logRow struct {
		ID       int64
		Date     string
		Desc     string
		Odometer string
		Provider string
		Mechanic string
		PartNo   string
		NextDue  string
		Material string
		Labor    string
		Total    string
		Warranty bool
	}
	data := struct {
		VehicleID int64
		Rows      []logRow
	}{VehicleID: vehicleID}
	for _, l := range logs {
		data.Rows = append(data.Rows, logRow{
			ID:       l.ID,
			Date:     l.Date.ISO(),
			Desc:     l.Description,
			Odometer: formatMiles(l.Odometer),
			Provider: l.ServiceProvider,
			Mechanic: l.Mechanic,
			PartNo:   l.PartNo,
			NextDue:  l.NextServiceDue.ISO(),
			Material: formatDollars(l.MaterialCost.Cents),
			Labor:    formatDollars(l.LaborCost.Cents),
			Total:    formatDollars(l.TotalCost.Cents),
			Warranty: l.Warranty,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + strconv.Itoa(len(data.Rows)) + ` log entries</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "logs.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Logs template execution failed",
			log.FieldError, err.Error(), "template", "logs.html", log.FieldVehicleID, vehicleID)
	}
}

func (s *Server) addLog(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	date, err := core.ParseDate(r.Form.Get("date"))
	if err != nil {
		UnprocessableEntityError("Invalid service date").Write(w)
		return
	}

	l := core.MaintenanceLog{
		VehicleID:       vehicleID,
		Date:            date,
		Description:     sanitizeInput(r.Form.Get("description")),
		ServiceProvider: sanitizeInput(r.Form.Get("service_provider")),
		Mechanic:        sanitizeInput(r.Form.Get("mechanic")),
		PartNo:          sanitizeInput(r.Form.Get("part_no")),
		Warranty:        r.Form.Get("warranty") != "",
	}

	if raw := strings.TrimSpace(r.Form.Get("odometer")); raw != "" {
		odo, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			UnprocessableEntityError("Invalid odometer reading").Write(w)
			return
		}
		l.Odometer = odo
	}
	if l.NextServiceDue, err = parseOptionalDate(r.Form.Get("next_service_due")); err != nil {
		UnprocessableEntityError("Invalid next service date").Write(w)
		return
	}

	material, errResp := parseCostField(r.Form.Get("material_cost"), "material cost")
	if errResp != nil {
		errResp.Write(w)
		return
	}
	labor, errResp := parseCostField(r.Form.Get("labor_cost"), "labor cost")
	if errResp != nil {
		errResp.Write(w)
		return
	}
	l.MaterialCost = core.Money{Cents: material}
	l.LaborCost = core.Money{Cents: labor}
	l.RecomputeTotal()

	if err := l.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	created, err := s.maint.AddLog(r.Context(), l)
	if err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			NotFoundError("Vehicle not found").Write(w)
			return
		}
		s.structLog.LogError(r.Context(), "Failed to record maintenance log", err,
			log.ComponentMaintenance, log.OpCreate,
			log.NewFields().WithVehicle(vehicleID, "").WithMaintenanceLog(l.Description, l.TotalCost.Cents))
		InternalServerError("Error saving maintenance log").Write(w)
		return
	}

	s.appMetrics.totalLogs.Add(1)

	plate := ""
	if v, err := s.vehicles.Get(r.Context(), vehicleID); err == nil {
		plate = v.PlateReg
	}
	s.structLog.LogMaintenanceRecorded(r.Context(), vehicleID, plate, created.Description, created.TotalCost.Cents)

	NewHTMXResponse().
		TriggerLogSaved(vehicleID).
		TriggerReportsRefresh(vehicleID).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Logged %s: %s", created.Description, formatDollars(created.TotalCost.Cents))).
		BodyHTML(`<div class="success">Logged ` + template.HTMLEscapeString(created.Description) +
			` on ` + created.Date.ISO() + `: ` + formatDollars(created.TotalCost.Cents) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request, vehicleID, logID int64) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := s.maint.DeleteLog(r.Context(), vehicleID, logID); err != nil {
		if errors.Is(err, core.ErrLogNotFound) {
			NotFoundError("Maintenance log not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete maintenance log",
			log.FieldError, err.Error(),
			log.FieldVehicleID, vehicleID,
			"log_id", logID,
			log.FieldOperation, log.OpDelete)
		InternalServerError("Error deleting maintenance log").
			TriggerErrorNotification("Could not delete the maintenance log").
			Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Maintenance log deleted",
		log.FieldVehicleID, vehicleID,
		"log_id", logID,
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerLogDeleted(vehicleID).
		TriggerReportsRefresh(vehicleID).
		TriggerSuccessNotification("Maintenance log deleted").
		Write(w)
}

// handleVehicleMileage serves a vehicle's monthly mileage ledger partial and
// the ledger form submission.
func (s *Server) handleVehicleMileage(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	switch r.Method {
	case http.MethodGet:
		s.renderMileage(w, r, vehicleID)
	case http.MethodPost:
		s.putMileage(w, r, vehicleID)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderMileage(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	entries, err := s.maint.Mileage(ctx, vehicleID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Mileage ledger error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading mileage ledger</div>`))
		return
	}

	type mileageRow struct {
		ID    int64
		Month string
		Start string
		End   string
		Miles string
	}
	data := struct {
		VehicleID int64
		Rows      []mileageRow
	}{VehicleID: vehicleID}
	for _, m := range entries {
		data.Rows = append(data.Rows, mileageRow{
			ID:    m.ID,
			Month: monthLabel(m.Month),
			Start: formatMiles(m.StartingMileage),
			End:   formatMiles(m.EndingMileage),
			Miles: formatMiles(m.EndingMileage - m.StartingMileage),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + strconv.Itoa(len(data.Rows)) + ` ledger entries</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "mileage.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Mileage template execution failed",
			log.FieldError, err.Error(), "template", "mileage.html", log.FieldVehicleID, vehicleID)
	}
}

func (s *Server) putMileage(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	month, err := parseMonthValue(r.Form.Get("month"))
	if err != nil {
		UnprocessableEntityError("Invalid month").Write(w)
		return
	}

	start, errResp := parseMileageField(r.Form.Get("starting_mileage"), "starting mileage")
	if errResp != nil {
		errResp.Write(w)
		return
	}
	end, errResp := parseMileageField(r.Form.Get("ending_mileage"), "ending mileage")
	if errResp != nil {
		errResp.Write(w)
		return
	}

	m := core.MonthlyMileage{
		VehicleID:       vehicleID,
		Month:           month,
		StartingMileage: start,
		EndingMileage:   end,
	}
	if err := m.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	saved, err := s.maint.PutMileage(r.Context(), m)
	if err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			NotFoundError("Vehicle not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to save monthly mileage",
			log.FieldError, err.Error(),
			log.FieldVehicleID, vehicleID,
			log.FieldMonth, m.Month.ISO(),
			log.FieldOperation, log.OpUpdate)
		InternalServerError("Error saving mileage").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Monthly mileage saved",
		log.FieldVehicleID, vehicleID,
		log.FieldMonth, saved.Month.ISO(),
		"miles", saved.EndingMileage-saved.StartingMileage)

	NewHTMXResponse().
		TriggerMileageSaved(vehicleID).
		TriggerReportsRefresh(vehicleID).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Mileage for %s saved", monthLabel(saved.Month))).
		BodyHTML(`<div class="success">Recorded ` + formatMiles(saved.EndingMileage-saved.StartingMileage) +
			` miles in ` + template.HTMLEscapeString(monthLabel(saved.Month)) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteMileage(w http.ResponseWriter, r *http.Request, vehicleID, mileageID int64) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := s.maint.DeleteMileage(r.Context(), vehicleID, mileageID); err != nil {
		if errors.Is(err, core.ErrMileageNotFound) {
			NotFoundError("Mileage entry not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete mileage entry",
			log.FieldError, err.Error(),
			log.FieldVehicleID, vehicleID,
			"mileage_id", mileageID,
			log.FieldOperation, log.OpDelete)
		InternalServerError("Error deleting mileage entry").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Mileage entry deleted",
		log.FieldVehicleID, vehicleID,
		"mileage_id", mileageID,
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerMileageDeleted(vehicleID).
		TriggerReportsRefresh(vehicleID).
		TriggerSuccessNotification("Mileage entry deleted").
		Write(w)
}

// handleSummary renders the monthly mileage and cost summary partial.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	view, err := s.maint.Summary(ctx, vehicleID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading monthly summary</div>`))
		return
	}

	type summaryRow struct {
		Month string
		Start string
		End   string
		Miles string
		Cost  string
	}
	data := struct {
		VehicleID   int64
		Rows        []summaryRow
		TotalMiles  string
		TotalCost   string
		CostPerMile string
	}{
		VehicleID:   vehicleID,
		TotalMiles:  formatMiles(view.Annual.Mileage),
		TotalCost:   formatDollars(view.Annual.TotalCost.Cents),
		CostPerMile: fmt.Sprintf("$%.4f", view.Annual.CostPerMile),
	}
	for _, row := range view.Rows {
		data.Rows = append(data.Rows, summaryRow{
			Month: monthLabel(row.Month),
			Start: formatMiles(row.StartingMileage),
			End:   formatMiles(row.EndingMileage),
			Miles: formatMiles(row.Mileage),
			Cost:  formatDollars(row.Cost.Cents),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Total: ` + data.TotalCost + `</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "summary.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Summary template execution failed",
			log.FieldError, err.Error(), "template", "summary.html", log.FieldVehicleID, vehicleID)
	}
}

// handleBreakdown renders the description-by-month cost matrix partial.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	view, err := s.maint.Breakdown(ctx, vehicleID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Breakdown error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading cost breakdown</div>`))
		return
	}
	if !view.OK {
		_, _ = w.Write([]byte(`<div class="placeholder">Record monthly mileage to unlock the cost breakdown</div>`))
		return
	}

	type breakdownRowView struct {
		Description string
		Cells       []string
	}
	type breakdownSectionView struct {
		Category string
		Rows     []breakdownRowView
	}
	data := struct {
		VehicleID int64
		Months    []string
		Sections  []breakdownSectionView
		Totals    []string
	}{VehicleID: vehicleID}

	for _, m := range view.Breakdown.Months {
		data.Months = append(data.Months, m.Format("Jan 2006"))
	}
	for _, sec := range view.Breakdown.Sections {
		sv := breakdownSectionView{Category: sec.Category}
		for _, row := range sec.Rows {
			rv := breakdownRowView{Description: row.Description}
			for _, cell := range row.Cells {
				rv.Cells = append(rv.Cells, breakdownCell(cell))
			}
			sv.Rows = append(sv.Rows, rv)
		}
		data.Sections = append(data.Sections, sv)
	}
	for _, total := range view.Breakdown.Totals {
		data.Totals = append(data.Totals, breakdownCell(total))
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + strconv.Itoa(len(data.Months)) + ` months</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "breakdown.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Breakdown template execution failed",
			log.FieldError, err.Error(), "template", "breakdown.html", log.FieldVehicleID, vehicleID)
	}
}

// breakdownCell formats one matrix cell, leaving zero amounts blank so the
// sparse months read as empty instead of a wall of $0.00.
func breakdownCell(m core.Money) string {
	if m.Cents == 0 {
		return ""
	}
	return formatDollars(m.Cents)
}

// handleSchedule renders the preventative maintenance ladder partial.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	view, err := s.maint.Schedule(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			_, _ = w.Write([]byte(`<div class="placeholder">Vehicle not found</div>`))
			return
		}
		s.logger.ErrorContext(r.Context(), "Schedule error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading service schedule</div>`))
		return
	}

	type rungRow struct {
		Mileage     string
		Recommended string
		Reached     bool
		Next        bool
	}
	data := struct {
		VehicleID int64
		Odometer  string
		Rows      []rungRow
		HasNext   bool
		NextAt    string
	}{
		VehicleID: vehicleID,
		Odometer:  formatMiles(view.Odometer),
		HasNext:   view.HasNext,
	}
	for _, e := range view.Entries {
		data.Rows = append(data.Rows, rungRow{
			Mileage:     formatMiles(e.Mileage),
			Recommended: e.Recommended,
			Reached:     e.Mileage <= view.Odometer,
			Next:        view.HasNext && e.Mileage == view.Next.Mileage,
		})
	}
	if view.HasNext {
		data.NextAt = formatMiles(view.Next.Mileage)
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Odometer: ` + data.Odometer + `</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "schedule.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Schedule template execution failed",
			log.FieldError, err.Error(), "template", "schedule.html", log.FieldVehicleID, vehicleID)
	}
}
