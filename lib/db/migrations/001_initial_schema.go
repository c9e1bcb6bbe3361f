package migrations

import (
	"database/sql"
)

func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "Initial schema - authors, sessions, history and stores",
		Up: func(tx *sql.Tx, dialect Dialect) error {
			var queries []string

			switch dialect {
			case DialectMySQL:
				queries = getMySQLInitialSchema()
			case DialectPostgres:
				queries = getPostgresInitialSchema()
			default:
				queries = getSQLiteInitialSchema()
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func getSQLiteInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS author (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// one row per live connection, connection_id keeps the binding 1:1
		`CREATE TABLE IF NOT EXISTS author_connection (
			connection_id INTEGER PRIMARY KEY,
			author_id INTEGER NOT NULL,
			session_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS collab_session (
			id INTEGER PRIMARY KEY,
			token TEXT NOT NULL,
			script_path TEXT NOT NULL DEFAULT '',
			page_title TEXT NOT NULL,
			page_namespace INTEGER NOT NULL,
			owner_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (script_path, page_title, page_namespace)
		)`,
		`CREATE TABLE IF NOT EXISTS session_author (
			session_id INTEGER NOT NULL,
			slot INTEGER NOT NULL,
			author_id INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			real_name TEXT,
			color TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			PRIMARY KEY (session_id, slot),
			UNIQUE (session_id, author_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session_connection (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_id INTEGER NOT NULL UNIQUE,
			session_id INTEGER NOT NULL,
			author_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_store (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_session ON session_history(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_store_session ON session_store(session_id)`,
	}
}

func getPostgresInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS author (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS author_connection (
			connection_id BIGINT PRIMARY KEY,
			author_id BIGINT NOT NULL,
			session_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS collab_session (
			id BIGINT PRIMARY KEY,
			token TEXT NOT NULL,
			script_path TEXT NOT NULL DEFAULT '',
			page_title TEXT NOT NULL,
			page_namespace INTEGER NOT NULL,
			owner_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (script_path, page_title, page_namespace)
		)`,
		`CREATE TABLE IF NOT EXISTS session_author (
			session_id BIGINT NOT NULL,
			slot INTEGER NOT NULL,
			author_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			real_name TEXT,
			color TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB,
			PRIMARY KEY (session_id, slot),
			UNIQUE (session_id, author_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session_connection (
			id BIGSERIAL PRIMARY KEY,
			connection_id BIGINT NOT NULL UNIQUE,
			session_id BIGINT NOT NULL,
			author_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_history (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_store (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_session ON session_history(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_store_session ON session_store(session_id)`,
	}
}

func getMySQLInitialSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS author (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS author_connection (
			connection_id BIGINT PRIMARY KEY,
			author_id BIGINT NOT NULL,
			session_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS collab_session (
			id BIGINT PRIMARY KEY,
			token VARCHAR(64) NOT NULL,
			script_path VARCHAR(255) NOT NULL DEFAULT '',
			page_title VARCHAR(255) NOT NULL,
			page_namespace INT NOT NULL,
			owner_id BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_locator (script_path, page_title, page_namespace)
		)`,
		`CREATE TABLE IF NOT EXISTS session_author (
			session_id BIGINT NOT NULL,
			slot INT NOT NULL,
			author_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			real_name VARCHAR(255) NULL,
			color VARCHAR(50) NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSON NULL,
			PRIMARY KEY (session_id, slot),
			UNIQUE KEY uq_session_author (session_id, author_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session_connection (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			connection_id BIGINT NOT NULL UNIQUE,
			session_id BIGINT NOT NULL,
			author_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id BIGINT NOT NULL,
			payload LONGTEXT NOT NULL,
			INDEX idx_session_history_session (session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session_store (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id BIGINT NOT NULL,
			payload LONGTEXT NOT NULL,
			INDEX idx_session_store_session (session_id)
		)`,
	}
}
