package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potshare/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets records the calls the client makes against the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	tabs     []string
	gets     int
	added    []string
	cleared  []string
	updated  map[string][][]any
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != 0 {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, f.failWith)
		return
	}

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.gets++
		var sheets []map[string]any
		for _, t := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear"))
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.updated[path[strings.Index(path, "/values/")+len("/values/"):]] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newFakeClient(t *testing.T, tabs ...string) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: tabs, updated: make(map[string][][]any)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	return newClient(svc, "sheet-1"), fake
}

var pot = core.Pot{ID: "p1", Name: "Trip", InviteCode: "abcd1234"}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", Credentials{JSON: "{}"})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), "sheet-1", Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestExportPot_CreatesTabAndWritesTable(t *testing.T) {
	c, fake := newFakeClient(t, "Sheet1")

	err := c.ExportPot(context.Background(), pot, []core.Balance{
		{Name: "Alice", Contributed: core.Cents(1000), Owed: core.Cents(250), Balance: core.Cents(750)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Pot abcd1234"}, fake.added)
	assert.Equal(t, []string{"'Pot abcd1234'!A:D"}, fake.cleared)

	rows, ok := fake.updated["'Pot abcd1234'!A1:D3"]
	require.True(t, ok, "updated ranges: %v", fake.updated)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"Participant", "Contributed", "Owed", "Balance"}, rows[0])
	assert.Equal(t, []any{"Alice", "10.00", "2.50", "7.50"}, rows[1])
}

func TestExportPot_ReusesKnownTab(t *testing.T) {
	c, fake := newFakeClient(t, "Pot abcd1234")

	require.NoError(t, c.ExportPot(context.Background(), pot, nil))
	require.NoError(t, c.ExportPot(context.Background(), pot, nil))

	assert.Empty(t, fake.added)
	assert.Equal(t, 1, fake.gets)
	assert.Len(t, fake.cleared, 2)
}

func TestExportPot_APIError(t *testing.T) {
	c, fake := newFakeClient(t)
	fake.failWith = http.StatusInternalServerError

	err := c.ExportPot(context.Background(), pot, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read spreadsheet sheet-1")
}

func TestExportPot_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet-1"}
	err := c.ExportPot(context.Background(), pot, nil)
	assert.EqualError(t, err, "sheets service not initialized")
}
