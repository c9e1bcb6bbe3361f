package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ether/collabpads-go/lib/db/migrations"
	"github.com/ether/collabpads-go/lib/exception"
	"github.com/ether/collabpads-go/lib/models/db"
)

// SQLDataStore implements DataStore on top of database/sql. The dialect decides the
// placeholder format and how generated ids are read back.
type SQLDataStore struct {
	sqlDB   *sql.DB
	dialect migrations.Dialect
	builder sq.StatementBuilderType
}

func newSQLDataStore(sqlDB *sql.DB, dialect migrations.Dialect) *SQLDataStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == migrations.DialectPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLDataStore{
		sqlDB:   sqlDB,
		dialect: dialect,
		builder: builder,
	}
}

func dbErr(op string, err error) error {
	return exception.NewDatabaseError(op, err)
}

// withTx runs fn in a transaction. Errors returned by fn are passed through untouched so
// domain errors stay distinguishable from driver failures, which fn wraps with dbErr.
func (d *SQLDataStore) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := d.sqlDB.Begin()
	if err != nil {
		return dbErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return dbErr(op, err)
	}
	return nil
}

func (d *SQLDataStore) exec(runner queryRunner, op string, builder sq.Sqlizer) (sql.Result, error) {
	resultedSQL, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	result, err := runner.Exec(resultedSQL, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	return result, nil
}

// insertReturningID inserts a row and returns its generated id.
func (d *SQLDataStore) insertReturningID(runner queryRunner, op string, insert sq.InsertBuilder) (int64, error) {
	if d.dialect == migrations.DialectMySQL {
		result, err := d.exec(runner, op, insert)
		if err != nil {
			return 0, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, dbErr(op, err)
		}
		return id, nil
	}

	resultedSQL, args, err := insert.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := runner.QueryRow(resultedSQL, args...).Scan(&id); err != nil {
		return 0, dbErr(op, err)
	}
	return id, nil
}

func (d *SQLDataStore) exists(runner queryRunner, op string, builder sq.SelectBuilder) (bool, error) {
	resultedSQL, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = runner.QueryRow(resultedSQL, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, dbErr(op, err)
	}
	return true, nil
}

func (d *SQLDataStore) sessionExists(runner queryRunner, sessionID int64) (bool, error) {
	return d.exists(runner, "session exists", d.builder.Select("1").From("collab_session").Where(sq.Eq{"id": sessionID}))
}

// missingEntry tells apart a missing session from a missing author entry.
func (d *SQLDataStore) missingEntry(runner queryRunner, sessionID int64, authorID int64) error {
	ok, err := d.sessionExists(runner, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return exception.NewSessionNotFoundError(sessionID)
	}
	return exception.NewAuthorNotFoundError(authorID)
}

// requireEntry checks that the entry exists before it is updated. Update row counts are not
// used for this: MySQL reports changed rows only, so an update that writes the same value
// would look like a miss.
func (d *SQLDataStore) requireEntry(runner queryRunner, sessionID int64, authorID int64) error {
	ok, err := d.exists(runner, "author entry exists", d.builder.
		Select("1").
		From("session_author").
		Where(sq.Eq{"session_id": sessionID, "author_id": authorID}))
	if err != nil {
		return err
	}
	if !ok {
		return d.missingEntry(runner, sessionID, authorID)
	}
	return nil
}

// ============== SESSION METHODS ==============

func (d *SQLDataStore) CreateSession(locator db.DocLocator, ownerID int64) (int64, error) {
	sessionID := newSessionID()
	err := d.withTx("create session", func(tx *sql.Tx) error {
		taken, err := d.exists(tx, "session by locator", d.builder.
			Select("1").
			From("collab_session").
			Where(sq.Eq{
				"script_path":    locator.ScriptPath,
				"page_title":     locator.Title,
				"page_namespace": locator.Namespace,
			}))
		if err != nil {
			return err
		}
		if taken {
			return errors.New(SessionAlreadyExistsError)
		}
		if _, err := d.exec(tx, "create session", d.builder.
			Insert("collab_session").
			Columns("id", "token", "script_path", "page_title", "page_namespace", "owner_id").
			Values(sessionID, newSessionToken(), locator.ScriptPath, locator.Title, locator.Namespace, ownerID)); err != nil {
			return err
		}
		_, err = d.exec(tx, "create session owner", d.builder.
			Insert("session_author").
			Columns("session_id", "slot", "author_id", "active").
			Values(sessionID, db.OwnerSlot, ownerID, false))
		return err
	})
	if err != nil {
		return 0, err
	}
	return sessionID, nil
}

func (d *SQLDataStore) DeleteSession(sessionID int64) error {
	return d.withTx("delete session", func(tx *sql.Tx) error {
		for _, table := range []string{"session_connection", "session_author", "session_history", "session_store"} {
			if _, err := d.exec(tx, "delete session "+table, d.builder.
				Delete(table).
				Where(sq.Eq{"session_id": sessionID})); err != nil {
				return err
			}
		}
		_, err := d.exec(tx, "delete session", d.builder.
			Delete("collab_session").
			Where(sq.Eq{"id": sessionID}))
		return err
	})
}

func (d *SQLDataStore) AddAuthorToSession(sessionID int64, authorID int64, name string, color string, active bool, connectionID int64) (int, error) {
	var slot int
	err := d.withTx("add author to session", func(tx *sql.Tx) error {
		ok, err := d.sessionExists(tx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return exception.NewSessionNotFoundError(sessionID)
		}
		present, err := d.exists(tx, "author in session", d.builder.
			Select("1").
			From("session_author").
			Where(sq.Eq{"session_id": sessionID, "author_id": authorID}))
		if err != nil {
			return err
		}
		if present {
			return errors.New(AuthorAlreadyInSessionError)
		}

		resultedSQL, args, err := d.builder.
			Select("COALESCE(MAX(slot), -1) + 1").
			From("session_author").
			Where(sq.Eq{"session_id": sessionID}).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRow(resultedSQL, args...).Scan(&slot); err != nil {
			return dbErr("next slot", err)
		}

		if _, err := d.exec(tx, "add author to session", d.builder.
			Insert("session_author").
			Columns("session_id", "slot", "author_id", "name", "color", "active").
			Values(sessionID, slot, authorID, name, color, active)); err != nil {
			return err
		}
		if !active {
			return nil
		}
		_, err = d.exec(tx, "add session connection", d.builder.
			Insert("session_connection").
			Columns("connection_id", "session_id", "author_id").
			Values(connectionID, sessionID, authorID))
		return err
	})
	if err != nil {
		return 0, err
	}
	return slot, nil
}

func (d *SQLDataStore) IsAuthorInSession(sessionID int64, authorID int64) (bool, error) {
	return d.exists(d.sqlDB, "author in session", d.builder.
		Select("1").
		From("session_author").
		Where(sq.Eq{"session_id": sessionID, "author_id": authorID}))
}

func (d *SQLDataStore) SetAuthorField(sessionID int64, authorID int64, field string, value string) error {
	if err := checkAuthorField(field); err != nil {
		return err
	}

	column := ""
	switch field {
	case fieldName:
		column = "name"
	case fieldColor:
		column = "color"
	case fieldRealName:
		column = "real_name"
	}

	return d.withTx("set author field", func(tx *sql.Tx) error {
		where := sq.Eq{"session_id": sessionID, "author_id": authorID}
		if column != "" {
			if err := d.requireEntry(tx, sessionID, authorID); err != nil {
				return err
			}
			_, err := d.exec(tx, "set author field", d.builder.
				Update("session_author").
				Set(column, value).
				Where(where))
			return err
		}

		resultedSQL, args, err := d.builder.Select("metadata").From("session_author").Where(where).ToSql()
		if err != nil {
			return err
		}
		var raw sql.NullString
		err = tx.QueryRow(resultedSQL, args...).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return d.missingEntry(tx, sessionID, authorID)
		}
		if err != nil {
			return dbErr("read author metadata", err)
		}

		metadata := make(map[string]string)
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
				return fmt.Errorf("error unmarshaling author metadata: %w", err)
			}
		}
		metadata[field] = value
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("error marshaling author metadata: %w", err)
		}
		_, err = d.exec(tx, "write author metadata", d.builder.
			Update("session_author").
			Set("metadata", string(encoded)).
			Where(where))
		return err
	})
}

func (d *SQLDataStore) ActivateAuthor(sessionID int64, authorID int64, connectionID int64) error {
	return d.withTx("activate author", func(tx *sql.Tx) error {
		if err := d.requireEntry(tx, sessionID, authorID); err != nil {
			return err
		}
		if _, err := d.exec(tx, "activate author", d.builder.
			Update("session_author").
			Set("active", true).
			Where(sq.Eq{"session_id": sessionID, "author_id": authorID})); err != nil {
			return err
		}

		bound, err := d.exists(tx, "connection bound", d.builder.
			Select("1").
			From("session_connection").
			Where(sq.Eq{"connection_id": connectionID}))
		if err != nil || bound {
			return err
		}
		_, err = d.exec(tx, "add session connection", d.builder.
			Insert("session_connection").
			Columns("connection_id", "session_id", "author_id").
			Values(connectionID, sessionID, authorID))
		return err
	})
}

func (d *SQLDataStore) DeactivateAuthor(sessionID int64, authorID int64, connectionID int64, stillActive bool) error {
	return d.withTx("deactivate author", func(tx *sql.Tx) error {
		if err := d.requireEntry(tx, sessionID, authorID); err != nil {
			return err
		}
		if _, err := d.exec(tx, "remove session connection", d.builder.
			Delete("session_connection").
			Where(sq.Eq{"connection_id": connectionID, "session_id": sessionID, "author_id": authorID})); err != nil {
			return err
		}
		_, err := d.exec(tx, "deactivate author", d.builder.
			Update("session_author").
			Set("active", stillActive).
			Where(sq.Eq{"session_id": sessionID, "author_id": authorID}))
		return err
	})
}

func (d *SQLDataStore) appendPayload(table string, sessionID int64, payload string) error {
	return d.withTx("append "+table, func(tx *sql.Tx) error {
		ok, err := d.sessionExists(tx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return exception.NewSessionNotFoundError(sessionID)
		}
		_, err = d.exec(tx, "append "+table, d.builder.
			Insert(table).
			Columns("session_id", "payload").
			Values(sessionID, payload))
		return err
	})
}

func (d *SQLDataStore) AppendHistory(sessionID int64, transaction string) error {
	return d.appendPayload("session_history", sessionID, transaction)
}

func (d *SQLDataStore) AppendStore(sessionID int64, store string) error {
	return d.appendPayload("session_store", sessionID, store)
}

func (d *SQLDataStore) queryEntries(where sq.Eq) ([]db.SessionAuthor, error) {
	resultedSQL, args, err := d.builder.
		Select("session_id", "slot", "author_id", "name", "real_name", "color", "active", "metadata").
		From("session_author").
		Where(where).
		OrderBy("slot ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query session authors", err)
	}
	defer rows.Close()

	entries := []db.SessionAuthor{}
	var sessionID int64
	for rows.Next() {
		entry, sid, err := readToSessionAuthor(rows)
		if err != nil {
			return nil, dbErr("scan session author", err)
		}
		sessionID = sid
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query session authors", err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	connections, err := d.connectionsByAuthor(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if c, ok := connections[entries[i].AuthorID]; ok {
			entries[i].Connections = c
		}
	}
	return entries, nil
}

func (d *SQLDataStore) connectionsByAuthor(sessionID int64) (map[int64][]int64, error) {
	resultedSQL, args, err := d.builder.
		Select("author_id", "connection_id").
		From("session_connection").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query session connections", err)
	}
	defer rows.Close()

	connections := make(map[int64][]int64)
	for rows.Next() {
		var authorID, connectionID int64
		if err := rows.Scan(&authorID, &connectionID); err != nil {
			return nil, dbErr("scan session connection", err)
		}
		connections[authorID] = append(connections[authorID], connectionID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query session connections", err)
	}
	return connections, nil
}

func (d *SQLDataStore) ListActiveAuthors(sessionID int64) ([]db.SessionAuthor, error) {
	return d.queryEntries(sq.Eq{"session_id": sessionID, "active": true})
}

func (d *SQLDataStore) GetAuthorEntry(sessionID int64, authorID int64) (*db.SessionAuthor, error) {
	entries, err := d.queryEntries(sq.Eq{"session_id": sessionID, "author_id": authorID})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (d *SQLDataStore) payloads(table string, sessionID int64) ([]string, error) {
	resultedSQL, args, err := d.builder.
		Select("payload").
		From(table).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query "+table, err)
	}
	defer rows.Close()

	payloads := []string{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, dbErr("scan "+table, err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query "+table, err)
	}
	return payloads, nil
}

func (d *SQLDataStore) GetFullHistory(sessionID int64) ([]string, error) {
	return d.payloads("session_history", sessionID)
}

func (d *SQLDataStore) GetFullStores(sessionID int64) ([]string, error) {
	return d.payloads("session_store", sessionID)
}

func (d *SQLDataStore) GetOwner(sessionID int64) (*int64, error) {
	resultedSQL, args, err := d.builder.
		Select("owner_id").
		From("collab_session").
		Where(sq.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var owner int64
	err = d.sqlDB.QueryRow(resultedSQL, args...).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("get owner", err)
	}
	return &owner, nil
}

func (d *SQLDataStore) GetActiveConnections(sessionID int64) ([]int64, error) {
	resultedSQL, args, err := d.builder.
		Select("c.connection_id").
		From("session_connection c").
		Join("session_author a ON a.session_id = c.session_id AND a.author_id = c.author_id").
		Where(sq.Eq{"c.session_id": sessionID, "a.active": true}).
		OrderBy("a.slot ASC", "c.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query active connections", err)
	}
	defer rows.Close()

	connections := []int64{}
	for rows.Next() {
		var connectionID int64
		if err := rows.Scan(&connectionID); err != nil {
			return nil, dbErr("scan active connection", err)
		}
		connections = append(connections, connectionID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query active connections", err)
	}
	return connections, nil
}

func (d *SQLDataStore) FindSessionByLocator(locator db.DocLocator) (*db.SessionDescriptor, error) {
	resultedSQL, args, err := d.builder.
		Select("id", "token", "script_path", "page_title", "page_namespace").
		From("collab_session").
		Where(sq.Eq{
			"script_path":    locator.ScriptPath,
			"page_title":     locator.Title,
			"page_namespace": locator.Namespace,
		}).
		ToSql()
	if err != nil {
		return nil, err
	}
	descriptor, err := readToSessionDescriptor(d.sqlDB.QueryRow(resultedSQL, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("find session by locator", err)
	}
	return descriptor, nil
}

// ============== AUTHOR METHODS ==============

func (d *SQLDataStore) CreateAuthor(name string) (int64, error) {
	var authorID int64
	err := d.withTx("create author", func(tx *sql.Tx) error {
		taken, err := d.exists(tx, "author by name", d.builder.Select("1").From("author").Where(sq.Eq{"name": name}))
		if err != nil {
			return err
		}
		if taken {
			return errors.New(AuthorAlreadyExistsError)
		}
		authorID, err = d.insertReturningID(tx, "create author", d.builder.
			Insert("author").
			Columns("name").
			Values(name))
		return err
	})
	if err != nil {
		return 0, err
	}
	return authorID, nil
}

func (d *SQLDataStore) AddConnection(authorID int64, sessionID int64, connectionID int64) error {
	return d.withTx("add author connection", func(tx *sql.Tx) error {
		known, err := d.exists(tx, "author exists", d.builder.Select("1").From("author").Where(sq.Eq{"id": authorID}))
		if err != nil {
			return err
		}
		if !known {
			return errors.New(AuthorNotFoundError)
		}
		bound, err := d.exists(tx, "connection bound", d.builder.
			Select("1").
			From("author_connection").
			Where(sq.Eq{"connection_id": connectionID}))
		if err != nil {
			return err
		}
		if bound {
			return errors.New(ConnectionAlreadyBoundError)
		}
		_, err = d.exec(tx, "add author connection", d.builder.
			Insert("author_connection").
			Columns("connection_id", "author_id", "session_id").
			Values(connectionID, authorID, sessionID))
		return err
	})
}

func (d *SQLDataStore) RemoveConnection(authorID int64, connectionID int64) error {
	_, err := d.exec(d.sqlDB, "remove author connection", d.builder.
		Delete("author_connection").
		Where(sq.Eq{"author_id": authorID, "connection_id": connectionID}))
	return err
}

func (d *SQLDataStore) FindSessionByConnection(connectionID int64) (*int64, error) {
	resultedSQL, args, err := d.builder.
		Select("session_id").
		From("author_connection").
		Where(sq.Eq{"connection_id": connectionID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var sessionID int64
	err = d.sqlDB.QueryRow(resultedSQL, args...).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("find session by connection", err)
	}
	return &sessionID, nil
}

func (d *SQLDataStore) findAuthor(where sq.Sqlizer) (*db.AuthorDB, error) {
	resultedSQL, args, err := d.builder.
		Select("id", "name", "created_at").
		From("author").
		Where(where).
		ToSql()
	if err != nil {
		return nil, err
	}
	author, err := readToAuthorDB(d.sqlDB.QueryRow(resultedSQL, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr("find author", err)
	}

	resultedSQL, args, err = d.builder.
		Select("connection_id", "session_id").
		From("author_connection").
		Where(sq.Eq{"author_id": author.ID}).
		OrderBy("connection_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query author connections", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pair db.ConnectionPair
		if err := rows.Scan(&pair.ConnectionID, &pair.SessionID); err != nil {
			return nil, dbErr("scan author connection", err)
		}
		author.Connections = append(author.Connections, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query author connections", err)
	}
	return author, nil
}

func (d *SQLDataStore) FindAuthorByConnection(connectionID int64) (*db.AuthorDB, error) {
	return d.findAuthor(sq.Expr("id = (SELECT author_id FROM author_connection WHERE connection_id = ?)", connectionID))
}

func (d *SQLDataStore) FindAuthorByName(name string) (*db.AuthorDB, error) {
	return d.findAuthor(sq.Eq{"name": name})
}

func (d *SQLDataStore) FindAuthorByID(authorID int64) (*db.AuthorDB, error) {
	return d.findAuthor(sq.Eq{"id": authorID})
}

func (d *SQLDataStore) GetConnectionsByName(sessionID int64, name string) ([]int64, error) {
	resultedSQL, args, err := d.builder.
		Select("ac.connection_id").
		From("author_connection ac").
		Join("author a ON a.id = ac.author_id").
		Where(sq.Eq{"a.name": name, "ac.session_id": sessionID}).
		OrderBy("ac.connection_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := d.sqlDB.Query(resultedSQL, args...)
	if err != nil {
		return nil, dbErr("query connections by name", err)
	}
	defer rows.Close()

	connections := []int64{}
	for rows.Next() {
		var connectionID int64
		if err := rows.Scan(&connectionID); err != nil {
			return nil, dbErr("scan connection by name", err)
		}
		connections = append(connections, connectionID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("query connections by name", err)
	}
	return connections, nil
}

// ============== ADMINISTRATION ==============

func (d *SQLDataStore) ClearAllConnections() error {
	return d.withTx("clear connections", func(tx *sql.Tx) error {
		if _, err := d.exec(tx, "clear session connections", d.builder.Delete("session_connection")); err != nil {
			return err
		}
		if _, err := d.exec(tx, "deactivate session authors", d.builder.
			Update("session_author").
			Set("active", false)); err != nil {
			return err
		}
		_, err := d.exec(tx, "clear author connections", d.builder.Delete("author_connection"))
		return err
	})
}

func (d *SQLDataStore) Ping() error {
	if err := d.sqlDB.Ping(); err != nil {
		return dbErr("ping", err)
	}
	return nil
}

func (d *SQLDataStore) Close() error {
	return d.sqlDB.Close()
}

var _ DataStore = (*SQLDataStore)(nil)
