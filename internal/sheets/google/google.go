package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"potshare/internal/core"
	ports "potshare/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes pot balances to one spreadsheet, one tab per pot.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]struct{}
}

var _ ports.BalanceExporter = (*Client)(nil)

// Credentials selects the service account; inline JSON wins over a file.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: make(map[string]struct{})}
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	inline := strings.TrimSpace(creds.JSON)
	file := strings.TrimSpace(creds.File)

	var auth goption.ClientOption
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		auth = goption.WithCredentialsJSON([]byte(inline))
	case file != "":
		slog.InfoContext(ctx, "Using service account credentials file", "path", file)
		auth = goption.WithCredentialsFile(file)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportPot clears the pot's tab and writes the balance table from A1.
func (c *Client) ExportPot(ctx context.Context, pot core.Pot, balances []core.Balance) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := ports.TabName(pot)

	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	clearRange := fmt.Sprintf("'%s'!A:D", tab)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ports.Rows(balances)
	writeRange := fmt.Sprintf("'%s'!A1:D%d", tab, len(rows))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	slog.DebugContext(ctx, "Pot exported", "pot_id", pot.ID, "tab", tab, "rows", len(rows))
	return nil
}

// ensureTab creates the tab unless it is already known to exist.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	_, known := c.tabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}

	exists := false
	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.tabs[sh.Properties.Title] = struct{}{}
		if sh.Properties.Title == tab {
			exists = true
		}
	}
	c.mu.Unlock()
	if exists {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created pot tab", "tab", tab)

	c.mu.Lock()
	c.tabs[tab] = struct{}{}
	c.mu.Unlock()
	return nil
}
