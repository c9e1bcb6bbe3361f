package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ether/collabpads-go/lib/db/migrations"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLiteDB opens the sqlite database at path and migrates it. ":memory:" yields a
// shared in-memory database.
func NewSQLiteDB(path string, logger *zap.SugaredLogger) (*SQLDataStore, error) {
	if path == ":memory:" || path == ":memory" {
		path = "file::memory:?cache=shared"
	}

	sqlDb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if strings.Contains(path, ":memory:") {
		sqlDb.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err = sqlDb.Exec(pragma); err != nil {
			sqlDb.Close()
			return nil, err
		}
	}

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectSQLite, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newSQLDataStore(sqlDb, migrations.DialectSQLite), nil
}
