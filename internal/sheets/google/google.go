package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	ports "flotta/internal/sheets"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors maintenance logs to a Google spreadsheet. Each calendar year
// gets its own sheet, named "<year> <base>", so old years stay untouched.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logsBase      string

	// Row counts are cached per sheet so consecutive appends skip the
	// dimension lookup.
	mu                 sync.Mutex
	cachedRows         map[string]rowCache
	cacheValidDuration time.Duration
}

type rowCache struct {
	count     int
	expiresAt time.Time
}

// Ensure interface conformance
var (
	_ ports.LogWriter  = (*Client)(nil)
	_ ports.LogDeleter = (*Client)(nil)
)

// Mirrored row layout, columns A through L:
// Date, Plate, Description, Odometer, Provider, Mechanic, Part No,
// Material, Labor, Total, Warranty, Log ID.
const lastCol = "L"

const defaultRowCacheTTL = 5 * time.Minute

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Optional: GOOGLE_SHEET_NAME (default "Maintenance") as the base sheet name.
// Credentials come from a service account (GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS) or, when
// none is set, from an OAuth client plus the token minted by oauth-init
// (GOOGLE_OAUTH_CLIENT_JSON/_FILE and GOOGLE_OAUTH_TOKEN_JSON/_FILE).
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := env("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	logsBase := env("GOOGLE_SHEET_NAME")
	if logsBase == "" {
		logsBase = "Maintenance"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		logsBase:           logsBase,
		cacheValidDuration: defaultRowCacheTTL,
	}, nil
}

// newSheetsService initializes a Sheets Service. A service account takes
// precedence; the OAuth user token is the fallback.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	source, err := tokenSourceFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	// Route API calls through the pooled HTTP client.
	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	authed := oauth2.NewClient(httpCtx, source)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(authed))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// tokenSourceFromEnv resolves credential material for the Sheets API.
func tokenSourceFromEnv(ctx context.Context) (oauth2.TokenSource, error) {
	serviceAccountJSON := env("GOOGLE_SERVICE_ACCOUNT_JSON")
	serviceAccountFile := env("GOOGLE_SERVICE_ACCOUNT_FILE")
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = env("GOOGLE_APPLICATION_CREDENTIALS")
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
	default:
		return oauthTokenSource(ctx)
	}

	slog.InfoContext(ctx, "Using service account credentials",
		"from_file", serviceAccountFile != "")

	creds, err := gauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// oauthTokenSource builds a token source from the OAuth client config and
// the stored user token. The source refreshes the access token as needed.
func oauthTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientJSON, err := readCredential("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return nil, errors.New("missing Google credentials: set a service account (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS) or an OAuth client plus token")
	}

	tokenJSON, err := readCredential("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing OAuth token: run oauth-init and set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE")
	}

	cfg, err := gauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	slog.InfoContext(ctx, "Using OAuth user credentials")
	return cfg.TokenSource(ctx, &tok), nil
}

// readCredential returns the inline value or the file contents, preferring
// the inline form. A nil slice means neither variable is set.
func readCredential(jsonVar, fileVar string) ([]byte, error) {
	if v := env(jsonVar); v != "" {
		return []byte(v), nil
	}
	if path := env(fileVar); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileVar, err)
		}
		return b, nil
	}
	return nil, nil
}

// env returns the trimmed value of the variable, empty when unset.
func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and keep-alive.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Append writes the row to the next free line of the year's sheet and returns
// its range reference.
func (c *Client) Append(ctx context.Context, row ports.MirrorRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheetName := c.logSheetName(row.Date.Year())
	nextRow, err := c.nextRow(ctx, sheetName)
	if err != nil {
		return "", err
	}

	dataRange := fmt.Sprintf("%s!A%d:%s%d", sheetName, nextRow, lastCol, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		row.Date.ISO(),
		row.PlateReg,
		row.Description,
		row.Odometer,
		row.ServiceProvider,
		row.Mechanic,
		row.PartNo,
		row.MaterialCost.Dollars(),
		row.LaborCost.Dollars(),
		row.TotalCost.Dollars(),
		row.Warranty,
		row.LogID,
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache(sheetName)
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// Delete locates the mirrored row by its log ID in the year's sheet and
// clears it. A row that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, row ports.MirrorRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := c.logSheetName(row.Date.Year())
	rng := fmt.Sprintf("%s!%s:%s", sheetName, lastCol, lastCol)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	want := strconv.FormatInt(row.LogID, 10)
	rowNum := 0
	for i, cells := range resp.Values {
		if len(cells) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(cells[0])) == want {
			rowNum = i + 1
			break
		}
	}
	if rowNum == 0 {
		slog.WarnContext(ctx, "Mirrored row not found, nothing to delete",
			"log_id", row.LogID,
			"sheet", sheetName)
		return nil
	}

	clearRange := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowNum, lastCol, rowNum)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}
	c.invalidateRowCache(sheetName)

	slog.InfoContext(ctx, "Mirrored row cleared", "log_id", row.LogID, "range", clearRange)
	return nil
}

// Verify checks that the spreadsheet is reachable with the configured
// credentials.
func (c *Client) Verify(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", c.spreadsheetID, err)
	}
	title := ""
	if meta.Properties != nil {
		title = meta.Properties.Title
	}
	slog.InfoContext(ctx, "Spreadsheet reachable",
		"title", title,
		"sheet_count", len(meta.Sheets))
	return nil
}

// nextRow returns the next free row number for the sheet, consulting the
// cache before asking the API. A cache hit also advances the count so
// back-to-back appends land on consecutive rows.
func (c *Client) nextRow(ctx context.Context, sheetName string) (int, error) {
	c.mu.Lock()
	if rc, ok := c.cachedRows[sheetName]; ok && time.Now().Before(rc.expiresAt) {
		rc.count++
		c.cachedRows[sheetName] = rc
		c.mu.Unlock()
		return rc.count, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get sheet dimensions for %s: %w", sheetName, err)
	}
	next := len(resp.Values) + 1

	c.mu.Lock()
	if c.cachedRows == nil {
		c.cachedRows = make(map[string]rowCache)
	}
	c.cachedRows[sheetName] = rowCache{count: next, expiresAt: time.Now().Add(c.cacheValidDuration)}
	c.mu.Unlock()

	return next, nil
}

func (c *Client) invalidateRowCache(sheetName string) {
	c.mu.Lock()
	delete(c.cachedRows, sheetName)
	c.mu.Unlock()
}

func (c *Client) logSheetName(year int) string {
	return yearPrefixedName(c.logsBase, year)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" || hasYearPrefix(base) {
		return base
	}
	return strconv.Itoa(year) + " " + base
}

func hasYearPrefix(name string) bool {
	head, _, ok := strings.Cut(name, " ")
	if !ok || len(head) != 4 {
		return false
	}
	y, err := strconv.Atoi(head)
	return err == nil && y > 1900 && y < 3000
}
