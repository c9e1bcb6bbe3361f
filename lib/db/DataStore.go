package db

import "github.com/ether/collabpads-go/lib/models/db"

// SessionMethods is the durable state of collaborative sessions. Every method is atomic
// for the single session entry it touches. Reads of a session that does not exist return
// nil or an empty slice, never an error.
type SessionMethods interface {
	CreateSession(locator db.DocLocator, ownerID int64) (int64, error)
	DeleteSession(sessionID int64) error
	// AddAuthorToSession appends a new entry and returns its slot.
	AddAuthorToSession(sessionID int64, authorID int64, name string, color string, active bool, connectionID int64) (int, error)
	IsAuthorInSession(sessionID int64, authorID int64) (bool, error)
	SetAuthorField(sessionID int64, authorID int64, field string, value string) error
	ActivateAuthor(sessionID int64, authorID int64, connectionID int64) error
	// DeactivateAuthor removes connectionID from the entry and sets the active flag to
	// stillActive.
	DeactivateAuthor(sessionID int64, authorID int64, connectionID int64, stillActive bool) error
	AppendHistory(sessionID int64, transaction string) error
	AppendStore(sessionID int64, store string) error
	ListActiveAuthors(sessionID int64) ([]db.SessionAuthor, error)
	GetAuthorEntry(sessionID int64, authorID int64) (*db.SessionAuthor, error)
	GetFullHistory(sessionID int64) ([]string, error)
	GetFullStores(sessionID int64) ([]string, error)
	GetOwner(sessionID int64) (*int64, error)
	GetActiveConnections(sessionID int64) ([]int64, error)
	FindSessionByLocator(locator db.DocLocator) (*db.SessionDescriptor, error)
}

// AuthorMethods is the durable state of authors and the connections they hold.
type AuthorMethods interface {
	CreateAuthor(name string) (int64, error)
	AddConnection(authorID int64, sessionID int64, connectionID int64) error
	RemoveConnection(authorID int64, connectionID int64) error
	FindSessionByConnection(connectionID int64) (*int64, error)
	FindAuthorByConnection(connectionID int64) (*db.AuthorDB, error)
	FindAuthorByName(name string) (*db.AuthorDB, error)
	FindAuthorByID(authorID int64) (*db.AuthorDB, error)
	GetConnectionsByName(sessionID int64, name string) ([]int64, error)
}

// SessionStore and AuthorStore are the two collaborators the hub consumes. Both carry the
// administrative reset run on every (re)start.
type SessionStore interface {
	SessionMethods
	ClearAllConnections() error
}

type AuthorStore interface {
	AuthorMethods
	ClearAllConnections() error
}

type DataStore interface {
	SessionMethods
	AuthorMethods
	// ClearAllConnections deactivates every session entry and empties every author's
	// connection list.
	ClearAllConnections() error
	Ping() error
	Close() error
}
