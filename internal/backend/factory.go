package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "potshare/internal/sheets/google"
	"potshare/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateExporter implements Factory.CreateExporter.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsExporter:
		return f.createSheetsExporter(ctx, config)
	default:
		return f.createMemoryExporter()
	}
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*Result, error) {
	client, err := gsheet.New(ctx, config.SpreadsheetID, gsheet.Credentials{
		JSON: config.CredentialsJSON,
		File: config.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.SpreadsheetID)
	return &Result{Exporter: client}, nil
}

func (f *DefaultFactory) createMemoryExporter() (*Result, error) {
	f.logger.Info("Initialized memory exporter")
	return &Result{Exporter: memory.New()}, nil
}
