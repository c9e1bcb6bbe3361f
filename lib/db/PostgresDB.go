package db

import (
	"database/sql"
	"fmt"

	"github.com/ether/collabpads-go/lib/db/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresOptions struct {
	Username string
	Password string
	Port     int
	Host     string
	Database string
}

// NewPostgresDB connects to postgres and migrates the schema.
func NewPostgresDB(options PostgresOptions, logger *zap.SugaredLogger) (*SQLDataStore, error) {
	dbUrl := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", options.Username, options.Password, options.Host, options.Port, options.Database)
	sqlDb, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, err
	}

	sqlDb.SetMaxOpenConns(25)
	sqlDb.SetMaxIdleConns(5)

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectPostgres, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newSQLDataStore(sqlDb, migrations.DialectPostgres), nil
}
