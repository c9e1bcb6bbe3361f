package db

import "time"

// ConnectionPair binds one live connection of an author to the session it joined.
type ConnectionPair struct {
	ConnectionID int64 `json:"c_id"`
	SessionID    int64 `json:"s_id"`
}

type AuthorDB struct {
	ID          int64
	Name        string
	Connections []ConnectionPair
	CreatedAt   time.Time
}

// SessionIDFor returns the session the given connection belongs to.
func (a AuthorDB) SessionIDFor(connectionID int64) (int64, bool) {
	for _, pair := range a.Connections {
		if pair.ConnectionID == connectionID {
			return pair.SessionID, true
		}
	}
	return 0, false
}
