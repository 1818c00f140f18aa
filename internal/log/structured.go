package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the canonical request and domain-event lines. It
// writes through the raw slog logger so the component comes from the field
// set alone.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// levelFor maps a response status to the severity of its completion line.
func levelFor(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogHTTPStart writes the arrival line for a request.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP, requestID string) {
	f := LogFields{FieldComponent, ComponentHTTP, FieldRequestID, requestID, FieldClientIP, clientIP}.
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer"))

	sl.logger.Logger.InfoContext(ctx, "HTTP request started", f.ToSlice()...)
}

// LogHTTPEnd writes the completion line. The user agent and referer are left
// off here; the arrival line already carried them.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	f := LogFields{FieldComponent, ComponentHTTP, FieldRequestID, requestID, FieldClientIP, clientIP}.
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400)

	sl.logger.Logger.Log(ctx, levelFor(statusCode), "HTTP request completed", f.ToSlice()...)
}

// LogMaintenanceRecorded notes a stored maintenance log entry.
func (sl *StructuredLogger) LogMaintenanceRecorded(ctx context.Context, vehicleID int64, plateReg, desc string, costCents int64) {
	f := LogFields{FieldComponent, ComponentMaintenance, FieldOperation, OpCreate}.
		WithVehicle(vehicleID, plateReg).
		WithMaintenanceLog(desc, costCents)

	sl.logger.Logger.InfoContext(ctx, "Maintenance log recorded", f.ToSlice()...)
}

// LogError writes an error line carrying whatever fields the caller already
// collected.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	f := fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.logger.Logger.ErrorContext(ctx, msg, f.ToSlice()...)
}
