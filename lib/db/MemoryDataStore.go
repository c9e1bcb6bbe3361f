package db

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ether/collabpads-go/lib/exception"
	"github.com/ether/collabpads-go/lib/models/db"
)

// MemoryDataStore keeps everything in process memory. A single mutex serializes all
// operations, which gives the per-entry atomicity the hub relies on.
type MemoryDataStore struct {
	mu        sync.RWMutex
	sessions  map[int64]*db.SessionDB
	authors   map[int64]*db.AuthorDB
	authorSeq int64
	closed    bool
}

func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		sessions: make(map[int64]*db.SessionDB),
		authors:  make(map[int64]*db.AuthorDB),
	}
}

// ============== SESSION METHODS ==============

func (m *MemoryDataStore) CreateSession(locator db.DocLocator, ownerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.Locator == locator {
			return 0, errors.New(SessionAlreadyExistsError)
		}
	}

	sessionID := newSessionID()
	for m.sessions[sessionID] != nil {
		sessionID = newSessionID()
	}

	m.sessions[sessionID] = &db.SessionDB{
		ID:      sessionID,
		Token:   newSessionToken(),
		Locator: locator,
		OwnerID: ownerID,
		Authors: []db.SessionAuthor{{
			Slot:        db.OwnerSlot,
			AuthorID:    ownerID,
			Connections: []int64{},
		}},
		History:   []string{},
		Stores:    []string{},
		CreatedAt: time.Now(),
	}
	return sessionID, nil
}

func (m *MemoryDataStore) DeleteSession(sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryDataStore) AddAuthorToSession(sessionID int64, authorID int64, name string, color string, active bool, connectionID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return 0, exception.NewSessionNotFoundError(sessionID)
	}
	if entryIndex(session, authorID) >= 0 {
		return 0, errors.New(AuthorAlreadyInSessionError)
	}

	slot := 0
	for _, a := range session.Authors {
		if a.Slot >= slot {
			slot = a.Slot + 1
		}
	}
	connections := []int64{}
	if active {
		connections = append(connections, connectionID)
	}
	session.Authors = append(session.Authors, db.SessionAuthor{
		Slot:        slot,
		AuthorID:    authorID,
		Name:        name,
		Color:       color,
		Active:      active,
		Connections: connections,
	})
	return slot, nil
}

func (m *MemoryDataStore) IsAuthorInSession(sessionID int64, authorID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	return entryIndex(session, authorID) >= 0, nil
}

func (m *MemoryDataStore) SetAuthorField(sessionID int64, authorID int64, field string, value string) error {
	if err := checkAuthorField(field); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.entry(sessionID, authorID)
	if err != nil {
		return err
	}

	switch field {
	case fieldName:
		entry.Name = value
	case fieldColor:
		entry.Color = value
	case fieldRealName:
		entry.RealName = &value
	default:
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]string)
		}
		entry.Metadata[field] = value
	}
	return nil
}

func (m *MemoryDataStore) ActivateAuthor(sessionID int64, authorID int64, connectionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.entry(sessionID, authorID)
	if err != nil {
		return err
	}
	if !entry.HasConnection(connectionID) {
		entry.Connections = append(entry.Connections, connectionID)
	}
	entry.Active = true
	return nil
}

func (m *MemoryDataStore) DeactivateAuthor(sessionID int64, authorID int64, connectionID int64, stillActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.entry(sessionID, authorID)
	if err != nil {
		return err
	}
	entry.Connections = entry.RemainingConnections(connectionID)
	entry.Active = stillActive
	return nil
}

func (m *MemoryDataStore) AppendHistory(sessionID int64, transaction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return exception.NewSessionNotFoundError(sessionID)
	}
	session.History = append(session.History, transaction)
	return nil
}

func (m *MemoryDataStore) AppendStore(sessionID int64, store string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return exception.NewSessionNotFoundError(sessionID)
	}
	session.Stores = append(session.Stores, store)
	return nil
}

func (m *MemoryDataStore) ListActiveAuthors(sessionID int64) ([]db.SessionAuthor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return []db.SessionAuthor{}, nil
	}
	active := make([]db.SessionAuthor, 0, len(session.Authors))
	for _, a := range session.Authors {
		if a.Active {
			active = append(active, cloneEntry(a))
		}
	}
	return active, nil
}

func (m *MemoryDataStore) GetAuthorEntry(sessionID int64, authorID int64) (*db.SessionAuthor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	index := entryIndex(session, authorID)
	if index < 0 {
		return nil, nil
	}
	entry := cloneEntry(session.Authors[index])
	return &entry, nil
}

func (m *MemoryDataStore) GetFullHistory(sessionID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(session.History), nil
}

func (m *MemoryDataStore) GetFullStores(sessionID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(session.Stores), nil
}

func (m *MemoryDataStore) GetOwner(sessionID int64) (*int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	owner := session.OwnerID
	return &owner, nil
}

func (m *MemoryDataStore) GetActiveConnections(sessionID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connections := []int64{}
	session, ok := m.sessions[sessionID]
	if !ok {
		return connections, nil
	}
	for _, a := range session.Authors {
		if a.Active {
			connections = append(connections, a.Connections...)
		}
	}
	return connections, nil
}

func (m *MemoryDataStore) FindSessionByLocator(locator db.DocLocator) (*db.SessionDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.Locator == locator {
			return &db.SessionDescriptor{ID: s.ID, Token: s.Token, Locator: s.Locator}, nil
		}
	}
	return nil, nil
}

// ============== AUTHOR METHODS ==============

func (m *MemoryDataStore) CreateAuthor(name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.authors {
		if a.Name == name {
			return 0, errors.New(AuthorAlreadyExistsError)
		}
	}
	m.authorSeq++
	m.authors[m.authorSeq] = &db.AuthorDB{
		ID:          m.authorSeq,
		Name:        name,
		Connections: []db.ConnectionPair{},
		CreatedAt:   time.Now(),
	}
	return m.authorSeq, nil
}

func (m *MemoryDataStore) AddConnection(authorID int64, sessionID int64, connectionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	author, ok := m.authors[authorID]
	if !ok {
		return errors.New(AuthorNotFoundError)
	}
	for _, a := range m.authors {
		if _, bound := a.SessionIDFor(connectionID); bound {
			return errors.New(ConnectionAlreadyBoundError)
		}
	}
	author.Connections = append(author.Connections, db.ConnectionPair{ConnectionID: connectionID, SessionID: sessionID})
	return nil
}

func (m *MemoryDataStore) RemoveConnection(authorID int64, connectionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	author, ok := m.authors[authorID]
	if !ok {
		return nil
	}
	author.Connections = slices.DeleteFunc(author.Connections, func(pair db.ConnectionPair) bool {
		return pair.ConnectionID == connectionID
	})
	return nil
}

func (m *MemoryDataStore) FindSessionByConnection(connectionID int64) (*int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.authors {
		if sessionID, ok := a.SessionIDFor(connectionID); ok {
			return &sessionID, nil
		}
	}
	return nil, nil
}

func (m *MemoryDataStore) FindAuthorByConnection(connectionID int64) (*db.AuthorDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.authors {
		if _, ok := a.SessionIDFor(connectionID); ok {
			return cloneAuthor(a), nil
		}
	}
	return nil, nil
}

func (m *MemoryDataStore) FindAuthorByName(name string) (*db.AuthorDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.authors {
		if a.Name == name {
			return cloneAuthor(a), nil
		}
	}
	return nil, nil
}

func (m *MemoryDataStore) FindAuthorByID(authorID int64) (*db.AuthorDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.authors[authorID]
	if !ok {
		return nil, nil
	}
	return cloneAuthor(a), nil
}

func (m *MemoryDataStore) GetConnectionsByName(sessionID int64, name string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connections := []int64{}
	for _, a := range m.authors {
		if a.Name != name {
			continue
		}
		for _, pair := range a.Connections {
			if pair.SessionID == sessionID {
				connections = append(connections, pair.ConnectionID)
			}
		}
	}
	return connections, nil
}

// ============== ADMINISTRATION ==============

func (m *MemoryDataStore) ClearAllConnections() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		for i := range s.Authors {
			s.Authors[i].Active = false
			s.Authors[i].Connections = []int64{}
		}
	}
	for _, a := range m.authors {
		a.Connections = []db.ConnectionPair{}
	}
	return nil
}

func (m *MemoryDataStore) Ping() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return exception.NewDatabaseError("ping", errors.New("memory store closed"))
	}
	return nil
}

func (m *MemoryDataStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryDataStore) entry(sessionID int64, authorID int64) (*db.SessionAuthor, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, exception.NewSessionNotFoundError(sessionID)
	}
	index := entryIndex(session, authorID)
	if index < 0 {
		return nil, exception.NewAuthorNotFoundError(authorID)
	}
	return &session.Authors[index], nil
}

func entryIndex(session *db.SessionDB, authorID int64) int {
	for i, a := range session.Authors {
		if a.AuthorID == authorID {
			return i
		}
	}
	return -1
}

func cloneEntry(entry db.SessionAuthor) db.SessionAuthor {
	entry.Connections = slices.Clone(entry.Connections)
	if entry.RealName != nil {
		realName := *entry.RealName
		entry.RealName = &realName
	}
	if entry.Metadata != nil {
		metadata := make(map[string]string, len(entry.Metadata))
		for k, v := range entry.Metadata {
			metadata[k] = v
		}
		entry.Metadata = metadata
	}
	return entry
}

func cloneAuthor(a *db.AuthorDB) *db.AuthorDB {
	c := *a
	c.Connections = slices.Clone(a.Connections)
	return &c
}

var _ DataStore = (*MemoryDataStore)(nil)
