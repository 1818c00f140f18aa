package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flotta/internal/core"
	"flotta/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth answers liveness probes. It deliberately checks nothing but
// the process itself.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.startedAt).String(),
	})
}

// handleReady answers readiness probes by poking each dependency the server
// cannot serve traffic without.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ready := true
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		ready = false
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.vehicles == nil:
		checks["storage"] = "not_configured"
		ready = false
	default:
		// A fleet count is the cheapest query that proves the database
		// answers.
		if _, err := s.vehicles.Stats(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	status, httpStatus := "ready", http.StatusOK
	if !ready {
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the text exposition format, readable by
// both humans and a scraper.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	security := s.securityDetector.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	traffic := s.traceMiddleware.GetMetrics()

	points := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traffic.TotalRequests},
		{"vehicles_created_total", "Vehicles registered since startup", "counter", s.appMetrics.totalVehicles.Load()},
		{"maintenance_logs_created_total", "Maintenance logs recorded since startup", "counter", s.appMetrics.totalLogs.Load()},
		{"rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", limits.TotalHits},
		{"suspicious_requests_total", "Requests matching attack patterns", "counter", security.SuspiciousRequests},
		{"active_rate_limit_clients", "Clients currently tracked by the rate limiter", "gauge", int64(s.rateLimiter.ActiveClients())},
		{"http_request_duration_microseconds", "Mean request duration", "gauge", traffic.AverageResponseTime},
		{"uptime_seconds", "Seconds since process start", "gauge", int64(time.Since(s.appMetrics.startedAt).Seconds())},
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, p := range points {
		fmt.Fprintf(w, "# HELP %s %s\n", p.name, p.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", p.name, p.kind)
		fmt.Fprintf(w, "%s %d\n\n", p.name, p.value)
	}
}

// handleDashboard renders the landing page: fleet counts, the current month's
// maintenance spend and the most recent log entries across all vehicles.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	stats, err := s.vehicles.Stats(ctx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Fleet stats error", log.FieldError, err.Error())
	}

	now := time.Now()
	month := core.NewDate(now.Year(), int(now.Month()), 1)
	cost, err := s.maint.MonthCost(ctx, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Month cost error", log.FieldError, err.Error(), log.FieldMonth, month.ISO())
	}

	type recentRow struct {
		Date    string
		Plate   string
		Vehicle string
		Desc    string
		Cost    string
	}
	data := struct {
		Total     int64
		Active    int64
		Inactive  int64
		MonthName string
		MonthCost string
		Recent    []recentRow
	}{
		Total:     stats.Total,
		Active:    stats.Active,
		Inactive:  stats.Inactive,
		MonthName: fmt.Sprintf("%s %d", now.Month(), now.Year()),
		MonthCost: formatDollars(cost.Cents),
	}

	recent, err := s.maint.RecentLogs(ctx, 8)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Recent logs error", log.FieldError, err.Error())
	}
	for _, item := range recent {
		data.Recent = append(data.Recent, recentRow{
			Date:    item.Log.Date.ISO(),
			Plate:   item.PlateReg,
			Vehicle: item.Make + " " + item.Model,
			Desc:    item.Log.Description,
			Cost:    formatDollars(item.Log.TotalCost.Cents),
		})
	}

	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard template execution failed",
			log.FieldError, err.Error(), "template", "dashboard.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleMonthCost renders the month cost tile partial. The month defaults to
// the current one and can be stepped with year/month query parameters.
func (s *Server) handleMonthCost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	params := ParseMonthParams(r.URL.Query())
	month := core.NewDate(params.Year, params.Month, 1)

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	cost, err := s.maint.MonthCost(ctx, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Month cost error", log.FieldError, err.Error(), log.FieldMonth, month.ISO())
		_, _ = w.Write([]byte(`<div id="month-cost" class="tile"><div class="placeholder">Error loading month cost</div></div>`))
		return
	}

	prev := month.AddMonths(-1)
	next := month.AddMonths(1)
	data := struct {
		MonthName string
		Cost      string
		PrevYear  int
		PrevMonth int
		NextYear  int
		NextMonth int
	}{
		MonthName: fmt.Sprintf("%s %d", time.Month(month.Month()), month.Year()),
		Cost:      formatDollars(cost.Cents),
		PrevYear:  prev.Year(),
		PrevMonth: prev.Month(),
		NextYear:  next.Year(),
		NextMonth: next.Month(),
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div id="month-cost" class="tile"><div class="placeholder">` + data.Cost + `</div></div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "cost_tile.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Cost tile template execution failed",
			log.FieldError, err.Error(), "template", "cost_tile.html")
		_, _ = w.Write([]byte(`<div id="month-cost" class="tile"><div class="placeholder">Error rendering month cost</div></div>`))
	}
}
