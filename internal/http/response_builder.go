// HTMX response assembly. Handlers chain triggers, headers and a body on a
// builder, then Write sends everything at once with the HX-Trigger header
// serialized as JSON.

package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HTMXResponse accumulates client events, headers, status and body
// for a single response. The zero maps are allocated on first use so a bare
// error response stays cheap.
type HTMXResponse struct {
	events  map[string]any
	headers map[string]string
	status  int
	body    []byte
}

// NewHTMXResponse creates an empty builder defaulting to 200 OK.
func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{status: http.StatusOK}
}

// Status overrides the 200 default.
func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

// Header sets a response header verbatim.
func (b *HTMXResponse) Header(name, value string) *HTMXResponse {
	if b.headers == nil {
		b.headers = map[string]string{}
	}
	b.headers[name] = value
	return b
}

// Trigger adds a named client event, with payload, to the HX-Trigger header.
func (b *HTMXResponse) Trigger(name string, data any) *HTMXResponse {
	if b.events == nil {
		b.events = map[string]any{}
	}
	b.events[name] = data
	return b
}

func idPayload(id int64) map[string]int64 {
	return map[string]int64{"id": id}
}

func vehiclePayload(id int64) map[string]int64 {
	return map[string]int64{"vehicle_id": id}
}

// TriggerVehicleCreated adds the vehicle:created trigger with the new ID.
func (b *HTMXResponse) TriggerVehicleCreated(vehicleID int64) *HTMXResponse {
	return b.Trigger("vehicle:created", idPayload(vehicleID))
}

// TriggerVehicleUpdated adds the vehicle:updated trigger with the vehicle ID.
func (b *HTMXResponse) TriggerVehicleUpdated(vehicleID int64) *HTMXResponse {
	return b.Trigger("vehicle:updated", idPayload(vehicleID))
}

// TriggerVehicleDeleted adds the vehicle:deleted trigger with the vehicle ID.
func (b *HTMXResponse) TriggerVehicleDeleted(vehicleID int64) *HTMXResponse {
	return b.Trigger("vehicle:deleted", idPayload(vehicleID))
}

// TriggerLogSaved adds the log:saved trigger so log lists refresh.
func (b *HTMXResponse) TriggerLogSaved(vehicleID int64) *HTMXResponse {
	return b.Trigger("log:saved", vehiclePayload(vehicleID))
}

// TriggerLogDeleted adds the log:deleted trigger so log lists refresh.
func (b *HTMXResponse) TriggerLogDeleted(vehicleID int64) *HTMXResponse {
	return b.Trigger("log:deleted", vehiclePayload(vehicleID))
}

// TriggerMileageSaved adds the mileage:saved trigger so ledgers refresh.
func (b *HTMXResponse) TriggerMileageSaved(vehicleID int64) *HTMXResponse {
	return b.Trigger("mileage:saved", vehiclePayload(vehicleID))
}

// TriggerMileageDeleted adds the mileage:deleted trigger so ledgers refresh.
func (b *HTMXResponse) TriggerMileageDeleted(vehicleID int64) *HTMXResponse {
	return b.Trigger("mileage:deleted", vehiclePayload(vehicleID))
}

// TriggerReportsRefresh adds the reports:refresh trigger. The summary,
// breakdown and schedule partials listen for it and re-fetch.
func (b *HTMXResponse) TriggerReportsRefresh(vehicleID int64) *HTMXResponse {
	return b.Trigger("reports:refresh", vehiclePayload(vehicleID))
}

// TriggerFleetRefresh adds the fleet:refresh trigger so the fleet table and
// stat tiles re-fetch.
func (b *HTMXResponse) TriggerFleetRefresh() *HTMXResponse {
	return b.Trigger("fleet:refresh", struct{}{})
}

// TriggerFormReset adds the form:reset trigger so the submitting form clears.
func (b *HTMXResponse) TriggerFormReset() *HTMXResponse {
	return b.Trigger("form:reset", struct{}{})
}

// NotificationType selects the toast style the notification listener renders.
type NotificationType string

// Toast styles.
const (
	NotificationSuccess = NotificationType("success")
	NotificationError   = NotificationType("error")
	NotificationWarning = NotificationType("warning")
	NotificationInfo    = NotificationType("info")
)

// Toast durations in milliseconds.
const (
	successToastMs = 3000
	errorToastMs   = 5000
)

// notification is the show-notification payload the toast listener consumes.
type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// TriggerNotification adds a show-notification trigger carrying the toast
// payload.
func (b *HTMXResponse) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponse {
	return b.Trigger("show-notification", notification{Type: kind, Message: message, Duration: durationMs})
}

// TriggerSuccessNotification shows a success toast for three seconds.
func (b *HTMXResponse) TriggerSuccessNotification(message string) *HTMXResponse {
	return b.TriggerNotification(NotificationSuccess, message, successToastMs)
}

// TriggerErrorNotification shows an error toast for five seconds.
func (b *HTMXResponse) TriggerErrorNotification(message string) *HTMXResponse {
	return b.TriggerNotification(NotificationError, message, errorToastMs)
}

// BodyString fills the body without touching Content-Type.
func (b *HTMXResponse) BodyString(content string) *HTMXResponse {
	b.body = []byte(content)
	return b
}

// BodyHTML fills the body and stamps the HTML content type.
func (b *HTMXResponse) BodyHTML(html string) *HTMXResponse {
	return b.Header("Content-Type", "text/html; charset=utf-8").BodyString(html)
}

// triggerHeader flattens the accumulated events into the HX-Trigger value.
func (b *HTMXResponse) triggerHeader() (string, bool) {
	if len(b.events) == 0 {
		return "", false
	}
	payload, err := json.Marshal(b.events)
	if err != nil {
		return "", false
	}
	return string(payload), true
}

// Write sends the accumulated response. Headers go out first since the
// status line flushes them.
func (b *HTMXResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if header, ok := b.triggerHeader(); ok {
		w.Header().Set("HX-Trigger", header)
	}

	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorPartial wraps an escaped message in the styled error div that HTMX
// swaps into the target.
func errorPartial(statusCode int, message string) *HTMXResponse {
	body := `<div class="error">` + template.HTMLEscapeString(message) + `</div>`
	return NewHTMXResponse().Status(statusCode).BodyHTML(body)
}

// BadRequestError rejects malformed input with a 400.
func BadRequestError(message string) *HTMXResponse {
	return errorPartial(http.StatusBadRequest, message)
}

// UnprocessableEntityError rejects well-formed but invalid input with a 422.
func UnprocessableEntityError(message string) *HTMXResponse {
	return errorPartial(http.StatusUnprocessableEntity, message)
}

// InternalServerError reports a failure the client cannot fix.
func InternalServerError(message string) *HTMXResponse {
	return errorPartial(http.StatusInternalServerError, message)
}

// NotFoundError reports a missing row or route.
func NotFoundError(message string) *HTMXResponse {
	return errorPartial(http.StatusNotFound, message)
}

// MethodNotAllowedError answers with a 405 and the Allow header filled in.
func MethodNotAllowedError(allowedMethods string) *HTMXResponse {
	b := NewHTMXResponse().Status(http.StatusMethodNotAllowed)
	return b.Header("Allow", allowedMethods)
}
