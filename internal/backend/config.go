package backend

import (
	"fmt"

	"intentdash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	archiveType := ArchiveType(appConfig.ArchiveBackend)
	if archiveType == "" {
		archiveType = NoArchive
	}
	if !archiveType.IsValid() {
		return Config{}, fmt.Errorf("invalid archive backend in config: %s", appConfig.ArchiveBackend)
	}

	return Config{
		Type:         archiveType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid archive type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteArchive:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite archive")
		}
	case PostgresArchive:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres archive")
		}
	case NoArchive:
		if c.Export {
			return fmt.Errorf("sheets export requires an archive")
		}
	}

	if c.Export && c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for sheets export")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets export")
		}
	}

	return nil
}

// GetArchiveTypes returns all valid archive types
func GetArchiveTypes() []ArchiveType {
	return []ArchiveType{NoArchive, SQLiteArchive, PostgresArchive}
}

// GetArchiveTypeStrings returns all valid archive type strings
func GetArchiveTypeStrings() []string {
	types := GetArchiveTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
