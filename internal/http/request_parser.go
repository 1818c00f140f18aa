// Request-side plumbing shared by the handlers: method guards, month
// selection from query strings, and a body reader that accepts both form
// posts and JSON.

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MonthParams is the year and month pair a month selector navigates with.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads the month selector from a query string. Missing,
// malformed or out-of-range values fall back to the current date.
func ParseMonthParams(query url.Values) MonthParams {
	now := time.Now()
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if y, ok := queryInt(query, "year"); ok {
		params.Year = y
	}
	if m, ok := queryInt(query, "month"); ok && m >= 1 && m <= 12 {
		params.Month = m
	}
	return params
}

func queryInt(vals url.Values, key string) (int, bool) {
	raw := strings.TrimSpace(vals.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RequestBodyParser reads a request body once and serves field lookups from
// it, whether the client sent a form post or a JSON object. HTMX forms send
// the former and scripted clients the latter, so the handlers never care.
type RequestBodyParser struct {
	raw    []byte
	mime   string
	object map[string]any
	form   url.Values
	done   bool
	err    error
}

// NewRequestBodyParser drains the request body into a parser. Decoding is
// deferred until Parse is called.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{mime: r.Header.Get("Content-Type")}
	p.raw, p.err = io.ReadAll(r.Body)
	return p
}

// Parse decodes the stored body. JSON is recognized by Content-Type or, when
// the header is absent, by the leading byte; anything else is treated as a
// urlencoded form. Parse is idempotent and remembers the first error.
func (p *RequestBodyParser) Parse() error {
	if p.done {
		return p.err
	}
	p.done = true

	switch {
	case p.err != nil:
	case len(p.raw) == 0:
		p.form = url.Values{}
	case p.looksJSON():
		dec := json.NewDecoder(bytes.NewReader(p.raw))
		dec.UseNumber()
		obj := map[string]any{}
		if err := dec.Decode(&obj); err != nil {
			p.err = err
		} else {
			p.object = obj
		}
	default:
		p.form, p.err = url.ParseQuery(string(p.raw))
	}
	return p.err
}

func (p *RequestBodyParser) looksJSON() bool {
	if strings.HasPrefix(p.mime, "application/json") {
		return true
	}
	return len(p.raw) > 0 && (p.raw[0] == '{' || p.raw[0] == '[')
}

// Get returns the named field as a trimmed, sanitized string. Missing fields
// come back empty.
func (p *RequestBodyParser) Get(key string) string {
	var val string
	switch {
	case p.object != nil:
		val = coerceString(p.object[key])
	case p.form != nil:
		val = p.form.Get(key)
	}
	return strings.TrimSpace(sanitizeInput(val))
}

// IsJSON reports whether the parsed body was a JSON object.
func (p *RequestBodyParser) IsJSON() bool {
	return p.object != nil
}

// coerceString renders a decoded JSON scalar the way the equivalent form
// field would arrive. Numbers keep their literal form thanks to UseNumber.
func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod returns a ready 405 response when the request method is not
// in the allowed set, nil otherwise.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponse {
	if slices.Contains(methods, r.Method) {
		return nil
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET guards read-only handlers.
func RequireGET(r *http.Request) *HTMXResponse {
	return RequireMethod(r, http.MethodGet)
}

// RequirePOST guards mutation handlers.
func RequirePOST(r *http.Request) *HTMXResponse {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST guards delete handlers, which HTMX may reach with
// either verb depending on the hx attribute used.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponse {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail wraps r.ParseForm, translating a failure into a ready 400
// response. Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponse {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
