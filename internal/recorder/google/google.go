package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"budgetform/internal/core"
	ports "budgetform/internal/recorder"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

// Ensure interface conformance
var (
	_ ports.RowAppender = (*Client)(nil)
	_ ports.RowLister   = (*Client)(nil)
	_ ports.Pinger      = (*Client)(nil)
)

// Config selects the target spreadsheet and tab.
type Config struct {
	SpreadsheetID string
	// SheetName is the tab rows are appended to. When YearPrefix is set the
	// current year is prepended ("2026 Budget") unless already present.
	SheetName  string
	YearPrefix bool
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Budget"), GOOGLE_SHEET_YEAR_PREFIX (default false).
// Credentials are resolved as in NewWithEnvAuth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg := Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:     strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	cfg.YearPrefix, _ = strconv.ParseBool(strings.TrimSpace(os.Getenv("GOOGLE_SHEET_YEAR_PREFIX")))
	return NewWithEnvAuth(ctx, cfg)
}

// NewWithEnvAuth builds a client for cfg with credentials from the
// environment: a user token saved by "budgetctl oauth-init"
// (GOOGLE_OAUTH_TOKEN_FILE plus the OAuth client) when set, otherwise a
// service account (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS).
func NewWithEnvAuth(ctx context.Context, cfg Config) (*Client, error) {
	if tokenFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")); tokenFile != "" {
		ts, err := userTokenSource(ctx, tokenFile)
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Using OAuth user token", "path", tokenFile)
		return New(ctx, cfg, goption.WithTokenSource(ts))
	}

	credentialsJSON, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// OAuthConfigFromEnv builds the OAuth client config from
// GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	var b []byte
	switch inline, file := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"), os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); {
	case strings.TrimSpace(inline) != "":
		b = []byte(inline)
	case strings.TrimSpace(file) != "":
		var err error
		if b, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
	cfg, err := oauthgoogle.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth client config: %w", err)
	}
	return cfg, nil
}

// userTokenSource refreshes the token saved at path with the OAuth client.
func userTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// New builds a client with explicit options; tests point it at a fake
// endpoint with option.WithEndpoint and option.WithoutAuthentication.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = "Budget"
	}
	if cfg.YearPrefix {
		name = yearPrefixedName(name, time.Now().Year())
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: name}, nil
}

// serviceAccountCredentials loads service account JSON inline or from a file.
func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// SheetName returns the resolved tab name.
func (c *Client) SheetName() string { return c.sheet }

// Append adds the row after the last populated row of the sheet.
func (c *Client) Append(ctx context.Context, row core.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", c.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{row.Cells()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// EnsureHeader writes the column names into row 1 when it is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:H1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	header := make([]any, len(core.ExportHeader))
	for i, h := range core.ExportHeader {
		header[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Wrote sheet header", "sheet", c.sheet)
	return nil
}

// Ping checks that the spreadsheet is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}

// ListRows returns up to limit of the most recent rows. limit <= 0 means all.
func (c *Client) ListRows(ctx context.Context, limit int) ([]core.RecordedRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:H", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := parseRows(c.sheet, resp.Values)
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
