package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"flotta/internal/core"
	"flotta/internal/log"
)

// vehicleRow is the fleet table view model.
type vehicleRow struct {
	ID       int64
	PlateReg string
	Name     string
	Status   string
	GasType  string
	Operator string
	Mileage  string
	NextDue  string
}

func toVehicleRows(vehicles []core.Vehicle) []vehicleRow {
	rows := make([]vehicleRow, 0, len(vehicles))
	for _, v := range vehicles {
		rows = append(rows, vehicleRow{
			ID:       v.ID,
			PlateReg: v.PlateReg,
			Name:     fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model),
			Status:   string(v.Status),
			GasType:  string(v.GasType),
			Operator: v.Operator,
			Mileage:  formatMiles(v.Mileage),
			NextDue:  v.NextServiceDue.ISO(),
		})
	}
	return rows
}

func statusOptions() []core.VehicleStatus {
	return []core.VehicleStatus{core.StatusActive, core.StatusInactive}
}

func gasOptions() []core.GasType {
	return []core.GasType{core.GasRegular, core.GasPremium, core.GasDiesel, core.GasElectric, core.GasOther}
}

// vehicleFromBody builds a vehicle from a parsed request body, accepting
// either form or JSON fields. The second return value is a ready error
// response when a field fails to parse.
func vehicleFromBody(p *RequestBodyParser) (core.Vehicle, *HTMXResponse) {
	v := core.Vehicle{
		Make:         p.Get("make"),
		Model:        p.Get("model"),
		PlateReg:     p.Get("plate_reg"),
		VIN:          p.Get("vin"),
		TankCapacity: p.Get("tank_capacity"),
		Operator:     p.Get("operator"),
		Location:     p.Get("location"),
		Status:       core.VehicleStatus(p.Get("status")),
		GasType:      core.GasType(p.Get("gas_type")),
	}
	if v.Status == "" {
		v.Status = core.StatusActive
	}
	if v.GasType == "" {
		v.GasType = core.GasRegular
	}

	if raw := p.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return v, UnprocessableEntityError("Invalid model year")
		}
		v.Year = year
	}
	if raw := p.Get("mileage"); raw != "" {
		miles, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return v, UnprocessableEntityError("Invalid odometer reading")
		}
		v.Mileage = miles
	}

	var err error
	if v.PurchaseDate, err = parseOptionalDate(p.Get("purchase_date")); err != nil {
		return v, UnprocessableEntityError("Invalid purchase date")
	}
	if v.ExpDate, err = parseOptionalDate(p.Get("exp_date")); err != nil {
		return v, UnprocessableEntityError("Invalid registration expiration date")
	}
	if v.NextServiceDue, err = parseOptionalDate(p.Get("next_service_due")); err != nil {
		return v, UnprocessableEntityError("Invalid next service date")
	}

	return v, nil
}

// handleFleet renders the fleet page: the roster table, the search box and
// the registration form.
func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	stats, err := s.vehicles.Stats(ctx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet stats error", log.FieldError, err.Error())
	}
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet list error", log.FieldError, err.Error())
	}

	data := struct {
		Total    int64
		Active   int64
		Inactive int64
		Rows     []vehicleRow
		Statuses []core.VehicleStatus
		GasTypes []core.GasType
		Today    string
	}{
		Total:    stats.Total,
		Active:   stats.Active,
		Inactive: stats.Inactive,
		Rows:     toVehicleRows(vehicles),
		Statuses: statusOptions(),
		GasTypes: gasOptions(),
		Today:    time.Now().Format(core.DateLayout),
	}

	if err := s.templates.ExecuteTemplate(w, "fleet.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet template execution failed",
			log.FieldError, err.Error(), "template", "fleet.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleFleetRows renders the fleet table rows partial. An optional q query
// filters by plate, make, model or operator.
func (s *Server) handleFleetRows(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	query := sanitizeInput(r.URL.Query().Get("q"))
	var (
		vehicles []core.Vehicle
		err      error
	)
	if query == "" {
		vehicles, err = s.vehicles.List(ctx)
	} else {
		vehicles, err = s.vehicles.Search(ctx, query)
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet rows error", log.FieldError, err.Error(), log.FieldQuery, query)
		_, _ = w.Write([]byte(`<tr><td colspan="8" class="placeholder">Error loading vehicles</td></tr>`))
		return
	}

	data := struct {
		Query string
		Rows  []vehicleRow
	}{Query: query, Rows: toVehicleRows(vehicles)}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<tr><td colspan="8" class="placeholder">` + strconv.Itoa(len(data.Rows)) + ` vehicles</td></tr>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "fleet_rows.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet rows template execution failed",
			log.FieldError, err.Error(), "template", "fleet_rows.html")
	}
}

// handleCreateVehicle registers a new vehicle from the fleet page form.
func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	v, errResp := vehicleFromBody(parser)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := v.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	created, err := s.vehicles.Create(r.Context(), v)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to register vehicle",
			log.FieldError, err.Error(),
			log.FieldPlateReg, v.PlateReg,
			log.FieldOperation, log.OpCreate)
		InternalServerError("Error registering vehicle").Write(w)
		return
	}

	s.appMetrics.totalVehicles.Add(1)

	s.logger.InfoContext(r.Context(), "Vehicle registered",
		log.FieldVehicleID, created.ID,
		log.FieldPlateReg, created.PlateReg,
		log.FieldOperation, log.OpCreate)

	NewHTMXResponse().
		TriggerVehicleCreated(created.ID).
		TriggerFleetRefresh().
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Vehicle %s registered", created.PlateReg)).
		BodyHTML(`<div class="success">Registered ` + template.HTMLEscapeString(created.PlateReg) + `: ` +
			template.HTMLEscapeString(fmt.Sprintf("%d %s %s", created.Year, created.Make, created.Model)) + `</div>`).
		Write(w)
}

// handleVehicle serves the vehicle detail page and its update and delete
// operations.
func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	switch r.Method {
	case http.MethodGet:
		s.renderVehiclePage(w, r, vehicleID)
	case http.MethodPost, http.MethodPut:
		s.updateVehicle(w, r, vehicleID)
	case http.MethodDelete:
		s.deleteVehicle(w, r, vehicleID)
	default:
		MethodNotAllowedError("GET, POST, PUT, DELETE").Write(w)
	}
}

func (s *Server) renderVehiclePage(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	v, err := s.vehicles.Get(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "Vehicle load error", log.FieldError, err.Error(), log.FieldVehicleID, vehicleID)
		http.Error(w, "error loading vehicle", http.StatusInternalServerError)
		return
	}

	data := struct {
		V          core.Vehicle
		Name       string
		Mileage    string
		Statuses   []core.VehicleStatus
		GasTypes   []core.GasType
		Vocabulary core.Vocabulary
		Today      string
		ThisMonth  string
	}{
		V:          v,
		Name:       fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model),
		Mileage:    formatMiles(v.Mileage),
		Statuses:   statusOptions(),
		GasTypes:   gasOptions(),
		Vocabulary: s.maint.Vocabulary(),
		Today:      time.Now().Format(core.DateLayout),
		ThisMonth:  time.Now().Format("2006-01"),
	}

	if err := s.templates.ExecuteTemplate(w, "vehicle.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Vehicle template execution failed",
			log.FieldError, err.Error(), "template", "vehicle.html", log.FieldVehicleID, vehicleID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) updateVehicle(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	v, errResp := vehicleFromBody(parser)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	v.ID = vehicleID
	if err := v.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	if err := s.vehicles.Update(r.Context(), v); err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			NotFoundError("Vehicle not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to update vehicle",
			log.FieldError, err.Error(),
			log.FieldVehicleID, vehicleID,
			log.FieldOperation, log.OpUpdate)
		InternalServerError("Error saving vehicle").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Vehicle updated",
		log.FieldVehicleID, vehicleID,
		log.FieldPlateReg, v.PlateReg,
		log.FieldOperation, log.OpUpdate)

	NewHTMXResponse().
		TriggerVehicleUpdated(vehicleID).
		TriggerFleetRefresh().
		TriggerSuccessNotification(fmt.Sprintf("Vehicle %s saved", v.PlateReg)).
		BodyHTML(`<div class="success">Saved ` + template.HTMLEscapeString(v.PlateReg) + `</div>`).
		Write(w)
}

func (s *Server) deleteVehicle(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	counts, err := s.vehicles.Delete(r.Context(), vehicleID)
	if err != nil {
		if errors.Is(err, core.ErrVehicleNotFound) {
			NotFoundError("Vehicle not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete vehicle",
			log.FieldError, err.Error(),
			log.FieldVehicleID, vehicleID,
			log.FieldOperation, log.OpDelete)
		// Delete buttons target the fleet row, so the failure surfaces as a
		// toast instead of swapped-in markup.
		InternalServerError("Error deleting vehicle").
			TriggerErrorNotification("Could not delete the vehicle").
			Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "Vehicle deleted",
		log.FieldVehicleID, vehicleID,
		"cascade_logs", counts.Logs,
		"cascade_mileage", counts.Mileage,
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerVehicleDeleted(vehicleID).
		TriggerFleetRefresh().
		TriggerSuccessNotification(fmt.Sprintf("Vehicle removed along with %d logs and %d mileage entries", counts.Logs, counts.Mileage)).
		Header("HX-Redirect", "/fleet").
		Write(w)
}
