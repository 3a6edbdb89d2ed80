package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potshare/internal/config"
	"potshare/internal/sheets/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, MemoryExporter, cfg.Type)

	cfg, err = FromAppConfig(&config.Config{
		GoogleSpreadsheetID:      "sheet-1",
		GoogleServiceAccountJSON: "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsExporter, cfg.Type)
	assert.Equal(t, "sheet-1", cfg.SpreadsheetID)
	assert.Equal(t, "{}", cfg.CredentialsJSON)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "memory", config: Config{Type: MemoryExporter}},
		{name: "unknown type", config: Config{Type: "ftp"}, wantErr: "invalid exporter type: ftp"},
		{name: "sheets without id", config: Config{Type: SheetsExporter, CredentialsJSON: "{}"}, wantErr: "spreadsheet ID is required"},
		{name: "sheets without credentials", config: Config{Type: SheetsExporter, SpreadsheetID: "x"}, wantErr: "CredentialsJSON or CredentialsFile"},
		{name: "sheets ok", config: Config{Type: SheetsExporter, SpreadsheetID: "x", CredentialsFile: "/tmp/sa.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCreateMemoryExporter(t *testing.T) {
	res, err := NewFactory(quietLogger()).CreateExporter(context.Background(), Config{Type: MemoryExporter})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, res.Exporter)
	assert.Nil(t, res.Cleanup)
}

func TestCreateExporterRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateExporter(context.Background(), Config{Type: SheetsExporter})
	assert.Error(t, err)
}
