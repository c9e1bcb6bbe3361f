package ws

import (
	"encoding/json"

	"github.com/ether/collabpads-go/lib/models/db"
)

type AuthorData struct {
	Name     string `json:"name"`
	RealName string `json:"realName"`
	Color    string `json:"color"`
}

// AuthorChange announces the current data of the author in a slot. On the wire the slot
// travels as authorId.
type AuthorChange struct {
	AuthorID   int        `json:"authorId"`
	AuthorData AuthorData `json:"authorData"`
}

func NewAuthorChange(entry db.SessionAuthor) AuthorChange {
	realName := ""
	if entry.RealName != nil {
		realName = *entry.RealName
	}
	return AuthorChange{
		AuthorID: entry.Slot,
		AuthorData: AuthorData{
			Name:     entry.Name,
			RealName: realName,
			Color:    entry.Color,
		},
	}
}

// InitSession is sent to a connection right after it joined.
type InitSession struct {
	SessionID int64             `json:"sessionId"`
	Token     string            `json:"token"`
	AuthorID  int               `json:"authorId"`
	OwnerID   int               `json:"ownerId"`
	Authors   []AuthorChange    `json:"authors"`
	History   []json.RawMessage `json:"history"`
	Stores    []json.RawMessage `json:"stores"`
}

// SubmittedChange is the change carried by submitChange.
type SubmittedChange struct {
	Transactions []json.RawMessage `json:"transactions"`
	Stores       []json.RawMessage `json:"stores"`
}

type SubmitChange struct {
	Change json.RawMessage `json:"change"`
}

// rawEntries replays stored history or store entries as they were submitted. Entries that are
// not JSON, written by older versions as bare text, are sent as strings.
func rawEntries(entries []string) []json.RawMessage {
	raw := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		if json.Valid([]byte(entry)) {
			raw = append(raw, json.RawMessage(entry))
			continue
		}
		quoted, _ := json.Marshal(entry)
		raw = append(raw, quoted)
	}
	return raw
}
