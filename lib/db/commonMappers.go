package db

import (
	"database/sql"
	"encoding/json"

	"github.com/ether/collabpads-go/lib/models/db"
)

type Reader interface {
	Scan(dest ...any) error
}

// queryRunner is satisfied by both *sql.DB and *sql.Tx.
type queryRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func readToAuthorDB(reader Reader) (*db.AuthorDB, error) {
	var author db.AuthorDB
	var createdAt sql.NullTime

	if err := reader.Scan(&author.ID, &author.Name, &createdAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		author.CreatedAt = createdAt.Time
	}
	author.Connections = []db.ConnectionPair{}
	return &author, nil
}

func readToSessionDescriptor(reader Reader) (*db.SessionDescriptor, error) {
	var descriptor db.SessionDescriptor

	if err := reader.Scan(&descriptor.ID, &descriptor.Token, &descriptor.Locator.ScriptPath,
		&descriptor.Locator.Title, &descriptor.Locator.Namespace,
	); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// readToSessionAuthor also returns the session id of the scanned row.
func readToSessionAuthor(reader Reader) (*db.SessionAuthor, int64, error) {
	var entry db.SessionAuthor
	var sessionID int64
	var realName sql.NullString
	var metadata sql.NullString

	if err := reader.Scan(&sessionID, &entry.Slot, &entry.AuthorID, &entry.Name,
		&realName, &entry.Color, &entry.Active, &metadata,
	); err != nil {
		return nil, 0, err
	}
	if realName.Valid {
		entry.RealName = &realName.String
	}
	entry.Connections = []int64{}
	entry.Metadata = map[string]string{}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return nil, 0, err
		}
	}
	return &entry, sessionID, nil
}
