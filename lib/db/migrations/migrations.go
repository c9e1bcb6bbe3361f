package migrations

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx, dialect Dialect) error
}

// Dialect selects the SQL flavour of a store.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

type MigrationManager struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration
	logger     *zap.SugaredLogger
}

func NewMigrationManager(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger) *MigrationManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MigrationManager{
		db:         db,
		dialect:    dialect,
		migrations: GetMigrations(),
		logger:     logger,
	}
}

// GetMigrations returns all known migrations.
func GetMigrations() []Migration {
	return []Migration{
		migration001InitialSchema(),
	}
}

// Run applies every migration newer than the recorded schema version. Each migration runs
// in its own transaction together with its version record.
func (m *MigrationManager) Run() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		m.logger.Infof("Running %s migration %d: %s", m.dialect, migration.Version, migration.Description)
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	if err := migration.Up(tx, m.dialect); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := m.setVersion(tx, migration.Version, migration.Description); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	return tx.Commit()
}

func (m *MigrationManager) createMigrationsTable() error {
	var query string
	switch m.dialect {
	case DialectMySQL:
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255),
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	default:
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := m.db.Exec(query)
	return err
}

func (m *MigrationManager) getCurrentVersion() (int, error) {
	var version int
	row := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (m *MigrationManager) setVersion(tx *sql.Tx, version int, description string) error {
	query := "INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)"
	if m.dialect == DialectPostgres {
		query = "INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)"
	}
	_, err := tx.Exec(query, version, description, time.Now())
	return err
}

// GetCurrentVersion returns the highest applied migration version.
func (m *MigrationManager) GetCurrentVersion() (int, error) {
	return m.getCurrentVersion()
}
