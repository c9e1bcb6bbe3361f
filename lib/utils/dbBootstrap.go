package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ether/collabpads-go/lib/db"
	"github.com/ether/collabpads-go/lib/settings"
	"go.uber.org/zap"
)

// GetDB opens the store selected by dbType.
func GetDB(retrievedSettings settings.Settings, setupLogger *zap.SugaredLogger) (db.DataStore, error) {
	dbSettings := retrievedSettings.DBSettings
	if dbSettings == nil {
		dbSettings = &settings.DBSettings{}
	}

	switch retrievedSettings.DBType {
	case settings.SQLITE:
		setupLogger.Infof("Using SQLite database at %s", dbSettings.Filename)
		if !strings.Contains(dbSettings.Filename, ":memory") {
			if err := os.MkdirAll(filepath.Dir(dbSettings.Filename), 0o755); err != nil {
				return nil, fmt.Errorf("error creating database directory: %w", err)
			}
		}
		return db.NewSQLiteDB(dbSettings.Filename, setupLogger)
	case settings.MEMORY:
		setupLogger.Info("Using in-memory database (data will be lost on restart)")
		return db.NewMemoryDataStore(), nil
	case settings.POSTGRES:
		setupLogger.Infof("Using Postgres database at %s with database %s", dbSettings.Host, dbSettings.Database)
		port, err := dbSettings.PortNumber(5432)
		if err != nil {
			return nil, err
		}
		return db.NewPostgresDB(db.PostgresOptions{
			Username: dbSettings.User,
			Password: dbSettings.Password,
			Host:     dbSettings.Host,
			Database: dbSettings.Database,
			Port:     port,
		}, setupLogger)
	case settings.MYSQL:
		setupLogger.Infof("Using MySQL database at %s with database %s", dbSettings.Host, dbSettings.Database)
		port, err := dbSettings.PortNumber(3306)
		if err != nil {
			return nil, err
		}
		return db.NewMySQLDB(db.MySQLOptions{
			Username: dbSettings.User,
			Password: dbSettings.Password,
			Host:     dbSettings.Host,
			Database: dbSettings.Database,
			Port:     port,
		}, setupLogger)
	}
	return nil, fmt.Errorf("unsupported database type %q", retrievedSettings.DBType)
}
