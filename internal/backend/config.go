package backend

import (
	"errors"
	"fmt"

	"potshare/internal/config"
)

// FromAppConfig picks Google Sheets when a spreadsheet is configured and
// the in-memory exporter otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	if !appConfig.SheetsEnabled() {
		return Config{Type: MemoryExporter}, nil
	}
	return Config{
		Type:            SheetsExporter,
		SpreadsheetID:   appConfig.GoogleSpreadsheetID,
		CredentialsJSON: appConfig.GoogleServiceAccountJSON,
		CredentialsFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid exporter type: %s", c.Type)
	}
	if c.Type == SheetsExporter {
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet ID is required for sheets exporter")
		}
		if c.CredentialsJSON == "" && c.CredentialsFile == "" {
			return errors.New("either CredentialsJSON or CredentialsFile must be provided for sheets exporter")
		}
	}
	return nil
}
