// Package google appends served predictions to a Google Sheets ledger.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"budgetsense/internal/core"
	"budgetsense/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// LedgerHeader is written to row 1 of an empty ledger sheet.
var LedgerHeader = []any{
	"id",
	"created_at",
	core.ColMinistry,
	core.ColPriorityLevel,
	core.ColProjectsCount,
	core.ColRegionImpact,
	core.ColDevIndex,
	core.ColPrevBudget,
	core.ColGDPImpact,
	"predicted_budget",
	"expected_budget",
	"reasoning",
}

const defaultRowCacheDuration = 2 * time.Minute

var _ store.PredictionWriter = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Row count cache, avoids a read before every append.
	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a ledger client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = "Predictions"
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultRowCacheDuration,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over the file; GOOGLE_APPLICATION_CREDENTIALS is the fallback.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Save appends p as one ledger row and returns its A1 range.
func (c *Client) Save(ctx context.Context, p core.Prediction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.rowCountLocked(ctx)
	if err != nil {
		return "", err
	}

	if rows == 0 {
		if err := c.writeRow(ctx, 1, LedgerHeader); err != nil {
			c.invalidateLocked()
			return "", fmt.Errorf("write ledger header: %w", err)
		}
		rows = 1
	}

	next := rows + 1
	if err := c.writeRow(ctx, next, ledgerRow(p)); err != nil {
		c.invalidateLocked()
		return "", fmt.Errorf("append prediction %s: %w", p.ID, err)
	}

	c.cachedRowCount = next
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)

	return c.rowRange(next), nil
}

func (c *Client) rowCountLocked(ctx context.Context) (int, error) {
	if time.Now().Before(c.cacheExpiresAt) {
		return c.cachedRowCount, nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheetName, err)
	}

	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return c.cachedRowCount, nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(row), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:L%d", c.sheetName, row, row)
}

// InvalidateRowCache forces the next append to re-read the sheet size.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
}

func ledgerRow(p core.Prediction) []any {
	var expected any = ""
	if p.ExpectedBudget != nil {
		expected = *p.ExpectedBudget
	}
	return []any{
		p.ID,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.Ministry,
		p.PriorityLevel,
		p.ProjectsCount,
		p.RegionImpact,
		p.DevIndex,
		p.PrevBudget,
		p.GDPImpact,
		p.PredictedBudget,
		expected,
		strings.Join(p.Reasoning, " | "),
	}
}
