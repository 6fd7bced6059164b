package backend

import (
	"fmt"

	"brunance/internal/accounts"
	"brunance/internal/config"
	"brunance/internal/services"
)

// FromAppConfig converts the application config to backend config. The
// account catalog is loaded here so a bad ACCOUNTS_FILE fails startup.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	remote := RemoteType(appConfig.RemoteBackend)
	if !remote.IsValid() {
		return Config{}, fmt.Errorf("invalid remote type in config: %s", appConfig.RemoteBackend)
	}

	reg, err := accounts.Load(appConfig.AccountsFile)
	if err != nil {
		return Config{}, fmt.Errorf("load account catalog: %w", err)
	}
	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("load time zone: %w", err)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Registry: reg,
		Location: loc,

		Remote:                   remote,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		SheetsWebAppURL:          appConfig.SheetsWebAppURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Sync: services.SyncConfig{
			Interval: appConfig.SyncInterval,
			Timeout:  appConfig.SyncTimeout,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	switch c.Remote {
	case NoRemote, "":
	case SheetsRemote:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets remote")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets remote")
		}
	case WebAppRemote:
		if c.SheetsWebAppURL == "" {
			return fmt.Errorf("web app URL is required for webapp remote")
		}
	default:
		return fmt.Errorf("invalid remote type: %s", c.Remote)
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
