// Package http serves the fleet console: page handlers, HTMX fragment
// endpoints, and the operational endpoints under /healthz, /readyz and
// /metrics.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flotta/internal/core"
	"flotta/internal/log"
	"flotta/internal/middleware/ratelimit"
	"flotta/internal/middleware/security"
	"flotta/internal/middleware/trace"
	"flotta/internal/services"
	"flotta/internal/storage"
	appweb "flotta/web"
)

// VehicleDirectory is the vehicle registry surface the server renders.
type VehicleDirectory interface {
	Create(ctx context.Context, v core.Vehicle) (core.Vehicle, error)
	Get(ctx context.Context, id int64) (core.Vehicle, error)
	Update(ctx context.Context, v core.Vehicle) error
	Delete(ctx context.Context, id int64) (services.CascadeCounts, error)
	List(ctx context.Context) ([]core.Vehicle, error)
	Search(ctx context.Context, query string) ([]core.Vehicle, error)
	Stats(ctx context.Context) (storage.FleetStats, error)
}

// MaintenanceDesk is the maintenance data-entry and reporting surface the
// server renders.
type MaintenanceDesk interface {
	AddLog(ctx context.Context, l core.MaintenanceLog) (core.MaintenanceLog, error)
	DeleteLog(ctx context.Context, vehicleID, logID int64) error
	Logs(ctx context.Context, vehicleID int64) ([]core.MaintenanceLog, error)
	PutMileage(ctx context.Context, m core.MonthlyMileage) (core.MonthlyMileage, error)
	DeleteMileage(ctx context.Context, vehicleID, mileageID int64) error
	Mileage(ctx context.Context, vehicleID int64) ([]core.MonthlyMileage, error)
	Summary(ctx context.Context, vehicleID int64) (services.SummaryView, error)
	Breakdown(ctx context.Context, vehicleID int64) (services.BreakdownView, error)
	Schedule(ctx context.Context, vehicleID int64) (services.ScheduleView, error)
	MonthCost(ctx context.Context, month core.Date) (core.Money, error)
	RecentLogs(ctx context.Context, limit int) ([]storage.LogWithVehicle, error)
	Vocabulary() core.Vocabulary
}

var (
	_ VehicleDirectory = (*services.VehicleService)(nil)
	_ MaintenanceDesk  = (*services.MaintenanceService)(nil)
)

// appMetrics tracks application-level counters exposed at /metrics.
type appMetrics struct {
	startedAt     time.Time
	totalVehicles atomic.Int64
	totalLogs     atomic.Int64
}

// Options tunes request policing. The zero value applies the defaults.
type Options struct {
	RateLimitRPM   int
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates *template.Template
	vehicles  VehicleDirectory
	maint     MaintenanceDesk
	logger    *log.Logger
	structLog *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	headersChain     *security.Headers
	traceMiddleware  *trace.Middleware

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, vehicles VehicleDirectory, maint MaintenanceDesk, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		vehicles:         vehicles,
		maint:            maint,
		logger:           logger,
		structLog:        log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		securityDetector: security.NewDetector(),
		headersChain:     security.NewHeaders(security.DefaultHeadersConfig()),
	}
	s.appMetrics.startedAt = time.Now()
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.structLog)

	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring malformed trusted proxy CIDR", "cidr", cidr, log.FieldError, err.Error())
		}
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticCache(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/dashboard/cost", s.handleMonthCost)
	mux.HandleFunc("/fleet", s.handleFleet)
	mux.HandleFunc("/fleet/rows", s.handleFleetRows)
	mux.HandleFunc("/vehicles", s.handleCreateVehicle)
	mux.HandleFunc("/vehicles/", s.handleVehicleTree)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.Server.Handler = s.traceMiddleware.Middleware(
		s.headersChain.Middleware(
			s.limitMutations(
				s.watchSuspicious(mux))))

	return s
}

// limitMutations applies the per-client rate limit to mutating requests.
// Reads stay unthrottled so dashboards can poll freely.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			clientIP := s.securityDetector.ExtractClientIP(r)
			if !s.rateLimiter.Allow(clientIP) {
				s.logger.WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// watchSuspicious flags requests matching known probe patterns. Detection is
// log-only: false positives on a data-entry app are worse than letting the
// request reach a handler that validates everything anyway.
func (s *Server) watchSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// handleVehicleTree dispatches everything under /vehicles/{id}. The nested
// collections hang off the vehicle path so handlers always know which
// vehicle they are scoped to.
func (s *Server) handleVehicleTree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/vehicles/"), "/")
	parts := strings.Split(rest, "/")

	vehicleID, err := parseID(parts[0])
	if err != nil {
		NotFoundError("Unknown vehicle").Write(w)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleVehicle(w, r, vehicleID)
	case len(parts) == 2 && parts[1] == "logs":
		s.handleVehicleLogs(w, r, vehicleID)
	case len(parts) == 3 && parts[1] == "logs":
		logID, err := parseID(parts[2])
		if err != nil {
			NotFoundError("Unknown maintenance log").Write(w)
			return
		}
		s.handleDeleteLog(w, r, vehicleID, logID)
	case len(parts) == 2 && parts[1] == "mileage":
		s.handleVehicleMileage(w, r, vehicleID)
	case len(parts) == 3 && parts[1] == "mileage":
		mileageID, err := parseID(parts[2])
		if err != nil {
			NotFoundError("Unknown mileage entry").Write(w)
			return
		}
		s.handleDeleteMileage(w, r, vehicleID, mileageID)
	case len(parts) == 2 && parts[1] == "summary":
		s.handleSummary(w, r, vehicleID)
	case len(parts) == 2 && parts[1] == "breakdown":
		s.handleBreakdown(w, r, vehicleID)
	case len(parts) == 2 && parts[1] == "schedule":
		s.handleSchedule(w, r, vehicleID)
	default:
		http.NotFound(w, r)
	}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
