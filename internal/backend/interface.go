// Package backend selects the balance exporter the worker writes to.
package backend

import (
	"context"

	"potshare/internal/sheets"
)

type ExporterType string

const (
	SheetsExporter ExporterType = "sheets"
	MemoryExporter ExporterType = "memory"
)

func (t ExporterType) IsValid() bool {
	return t == SheetsExporter || t == MemoryExporter
}

// CleanupFunc releases resources held by an exporter.
type CleanupFunc func() error

// Result contains the exporter and an optional cleanup function.
type Result struct {
	Exporter sheets.BalanceExporter
	Cleanup  CleanupFunc
}

// Factory creates exporters based on configuration.
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (*Result, error)
}

// Config holds the settings needed to build an exporter.
type Config struct {
	Type ExporterType

	// Google Sheets specific
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}
