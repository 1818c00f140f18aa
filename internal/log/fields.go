package log

// Field names shared across the structured logs so dashboards can filter on
// a stable vocabulary.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldVehicleID  = "vehicle_id"
	FieldPlateReg   = "plate_reg"
	FieldLogDesc    = "log_description"
	FieldCostCents  = "cost_cents"
	FieldMonth      = "month"
)

// Component names, one per process or subsystem.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentMaintenance = "maintenance"
	ComponentWorker      = "worker"
	ComponentReminder    = "reminder"
	ComponentTemplate    = "template"
)

// Operation names for mutation logging.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogFields accumulates structured fields as alternating key-value pairs.
// Keeping them in a slice means every log line prints its fields in the
// order they were added instead of whatever order a map iteration yields.
type LogFields []any

func NewFields() LogFields {
	return make(LogFields, 0, 16)
}

func (f LogFields) add(key string, value any) LogFields {
	return append(f, key, value)
}

func (f LogFields) WithComponent(component string) LogFields {
	return f.add(FieldComponent, component)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	return f.add(FieldClientIP, ip)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	return f.add(FieldRequestID, requestID)
}

// WithError records the error message. A nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

func (f LogFields) WithOperation(op string) LogFields {
	return f.add(FieldOperation, op)
}

// WithVehicle stamps the vehicle identity onto the fields.
func (f LogFields) WithVehicle(vehicleID int64, plateReg string) LogFields {
	return f.add(FieldVehicleID, vehicleID).add(FieldPlateReg, plateReg)
}

// WithMaintenanceLog records what was done and what it cost.
func (f LogFields) WithMaintenanceLog(desc string, costCents int64) LogFields {
	return f.add(FieldLogDesc, desc).add(FieldCostCents, costCents)
}

// WithHTTPRequest adds request fields. User agent and referer are omitted
// when empty so completion lines stay compact.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f = f.add(FieldMethod, method).add(FieldPath, path).add(FieldQuery, query)
	if userAgent != "" {
		f = f.add(FieldUserAgent, userAgent)
	}
	if referer != "" {
		f = f.add(FieldReferer, referer)
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	return f.add(FieldStatusCode, statusCode).add(FieldDuration, durationMs).add(FieldSuccess, success)
}

// ToSlice hands the pairs to slog as variadic args.
func (f LogFields) ToSlice() []any {
	return f
}
