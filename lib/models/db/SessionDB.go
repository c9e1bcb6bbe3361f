package db

import "time"

// OwnerSlot is the slot of the session owner. It is never removed from a session.
const OwnerSlot = 0

// DocLocator identifies the document a session edits.
type DocLocator struct {
	ScriptPath string `json:"wikiScriptPath"`
	Title      string `json:"pageTitle"`
	Namespace  int    `json:"pageNamespace"`
}

// SessionAuthor is the per-session entry of an author. Slot is assigned when the entry is
// created and stays stable for the lifetime of the session.
type SessionAuthor struct {
	Slot        int               `json:"slot"`
	AuthorID    int64             `json:"authorId"`
	Name        string            `json:"name"`
	RealName    *string           `json:"realName,omitempty"`
	Color       string            `json:"color"`
	Active      bool              `json:"active"`
	Connections []int64           `json:"connection"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s SessionAuthor) HasConnection(connectionID int64) bool {
	for _, c := range s.Connections {
		if c == connectionID {
			return true
		}
	}
	return false
}

// RemainingConnections returns the connection list without the given connection.
func (s SessionAuthor) RemainingConnections(connectionID int64) []int64 {
	remaining := make([]int64, 0, len(s.Connections))
	for _, c := range s.Connections {
		if c != connectionID {
			remaining = append(remaining, c)
		}
	}
	return remaining
}

type SessionDB struct {
	ID        int64
	Token     string
	Locator   DocLocator
	OwnerID   int64
	Authors   []SessionAuthor
	History   []string
	Stores    []string
	CreatedAt time.Time
}

// SessionDescriptor is the public projection returned by a locator lookup.
type SessionDescriptor struct {
	ID      int64      `json:"s_id"`
	Token   string     `json:"s_token"`
	Locator DocLocator `json:"locator"`
}
