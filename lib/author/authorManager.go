package author

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ether/collabpads-go/lib/db"
	"github.com/ether/collabpads-go/lib/utils"
)

type Manager struct {
	Db db.AuthorStore
}

func NewManager(db db.AuthorStore) *Manager {
	return &Manager{
		Db: db,
	}
}

type Author struct {
	Id          int64
	Name        string
	Connections []Connection
	CreatedAt   time.Time
}

type Connection struct {
	ConnectionId int64
	SessionId    int64
}

// EnsureAuthor returns the author registered under name, creating it on first use.
func (m *Manager) EnsureAuthor(name string) (*Author, bool, error) {
	if name == "" {
		return nil, false, errors.New("author name must not be empty")
	}
	existing, err := m.Db.FindAuthorByName(name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		author := MapFromDB(*existing)
		return &author, false, nil
	}

	authorId, err := m.Db.CreateAuthor(name)
	if err != nil {
		return nil, false, err
	}
	return &Author{
		Id:          authorId,
		Name:        name,
		Connections: []Connection{},
		CreatedAt:   time.Now(),
	}, true, nil
}

// GetAuthorByConnection returns nil when no author holds the connection.
func (m *Manager) GetAuthorByConnection(connectionId int64) (*Author, error) {
	retrievedAuthor, err := m.Db.FindAuthorByConnection(connectionId)
	if err != nil || retrievedAuthor == nil {
		return nil, err
	}
	author := MapFromDB(*retrievedAuthor)
	return &author, nil
}

// BindConnection records that the author joined sessionId over connectionId.
func (m *Manager) BindConnection(authorId int64, sessionId int64, connectionId int64) error {
	return m.Db.AddConnection(authorId, sessionId, connectionId)
}

func (m *Manager) ReleaseConnection(authorId int64, connectionId int64) error {
	return m.Db.RemoveConnection(authorId, connectionId)
}

// PickColor keeps a requested colour and otherwise draws one from the palette.
func (m *Manager) PickColor(requested string) string {
	if requested != "" {
		return requested
	}
	return utils.ColorPalette[rand.IntN(len(utils.ColorPalette))]
}

// SessionFor returns the session the author joined over the given connection.
func (a Author) SessionFor(connectionId int64) (int64, bool) {
	for _, c := range a.Connections {
		if c.ConnectionId == connectionId {
			return c.SessionId, true
		}
	}
	return 0, false
}
