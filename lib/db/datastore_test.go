package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ether/collabpads-go/lib/exception"
	modeldb "github.com/ether/collabpads-go/lib/models/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storeFactory struct {
	name string
	open func(t *testing.T) DataStore
}

func localStores() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			open: func(t *testing.T) DataStore { return NewMemoryDataStore() },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) DataStore {
				store, err := NewSQLiteDB(filepath.Join(t.TempDir(), "collab.db"), zap.NewNop().Sugar())
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				return store
			},
		},
	}
}

var testLocator = modeldb.DocLocator{ScriptPath: "/w", Title: "Main_Page", Namespace: 0}

func TestDataStores(t *testing.T) {
	for _, factory := range localStores() {
		t.Run(factory.name, func(t *testing.T) {
			runDataStoreSuite(t, factory.open)
		})
	}
}

func runDataStoreSuite(t *testing.T, open func(t *testing.T) DataStore) {
	tests := []struct {
		name string
		test func(t *testing.T, ds DataStore)
	}{
		{"CreateSessionRegistersOwner", testCreateSessionRegistersOwner},
		{"CreateSessionRejectsDuplicateLocator", testCreateSessionRejectsDuplicateLocator},
		{"AddAuthorAssignsIncreasingSlots", testAddAuthorAssignsIncreasingSlots},
		{"AddAuthorToMissingSession", testAddAuthorToMissingSession},
		{"ActivateAndDeactivate", testActivateAndDeactivate},
		{"SetAuthorField", testSetAuthorField},
		{"UpdatesThatChangeNothing", testUpdatesThatChangeNothing},
		{"HistoryAndStoresKeepOrder", testHistoryAndStoresKeepOrder},
		{"ReadsOfMissingSession", testReadsOfMissingSession},
		{"AuthorConnections", testAuthorConnections},
		{"CreateAuthorRejectsDuplicateName", testCreateAuthorRejectsDuplicateName},
		{"ClearAllConnections", testClearAllConnections},
		{"DeleteSession", testDeleteSession},
		{"Ping", testPing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.test(t, open(t))
		})
	}
}

func newSession(t *testing.T, ds DataStore, ownerName string) (int64, int64) {
	t.Helper()
	ownerID, err := ds.CreateAuthor(ownerName)
	require.NoError(t, err)
	sessionID, err := ds.CreateSession(testLocator, ownerID)
	require.NoError(t, err)
	return sessionID, ownerID
}

func testCreateSessionRegistersOwner(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")
	assert.Positive(t, sessionID)

	owner, err := ds.GetOwner(sessionID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, ownerID, *owner)

	descriptor, err := ds.FindSessionByLocator(testLocator)
	require.NoError(t, err)
	require.NotNil(t, descriptor)
	assert.Equal(t, sessionID, descriptor.ID)
	assert.NotEmpty(t, descriptor.Token)
	assert.Equal(t, testLocator, descriptor.Locator)

	entry, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, modeldb.OwnerSlot, entry.Slot)
	assert.False(t, entry.Active)
	assert.Empty(t, entry.Connections)

	inSession, err := ds.IsAuthorInSession(sessionID, ownerID)
	require.NoError(t, err)
	assert.True(t, inSession)
}

func testCreateSessionRejectsDuplicateLocator(t *testing.T, ds DataStore) {
	_, ownerID := newSession(t, ds, "Alice")
	_, err := ds.CreateSession(testLocator, ownerID)
	require.Error(t, err)
	assert.Equal(t, SessionAlreadyExistsError, err.Error())

	other := testLocator
	other.Namespace = 1
	_, err = ds.CreateSession(other, ownerID)
	assert.NoError(t, err)
}

func testAddAuthorAssignsIncreasingSlots(t *testing.T, ds DataStore) {
	sessionID, _ := newSession(t, ds, "Alice")
	bob, err := ds.CreateAuthor("Bob")
	require.NoError(t, err)
	carol, err := ds.CreateAuthor("Carol")
	require.NoError(t, err)

	slot, err := ds.AddAuthorToSession(sessionID, bob, "Bob", "#ff0000", true, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	slot, err = ds.AddAuthorToSession(sessionID, carol, "Carol", "#00ff00", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, slot)

	_, err = ds.AddAuthorToSession(sessionID, bob, "Bob", "#ff0000", true, 12)
	require.Error(t, err)
	assert.Equal(t, AuthorAlreadyInSessionError, err.Error())

	active, err := ds.ListActiveAuthors(sessionID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, bob, active[0].AuthorID)
	assert.Equal(t, "Bob", active[0].Name)
	assert.Equal(t, "#ff0000", active[0].Color)
	assert.Equal(t, []int64{11}, active[0].Connections)
}

func testAddAuthorToMissingSession(t *testing.T, ds DataStore) {
	authorID, err := ds.CreateAuthor("Bob")
	require.NoError(t, err)

	_, err = ds.AddAuthorToSession(4242, authorID, "Bob", "#ff0000", true, 1)
	var notFound *exception.SessionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(4242), notFound.SessionId)
	assert.False(t, exception.IsFatal(err))
}

func testActivateAndDeactivate(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")

	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 1))
	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 2))
	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 2))

	entry, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.True(t, entry.Active)
	assert.Equal(t, []int64{1, 2}, entry.Connections)

	connections, err := ds.GetActiveConnections(sessionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, connections)

	require.NoError(t, ds.DeactivateAuthor(sessionID, ownerID, 1, true))
	entry, err = ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.True(t, entry.Active)
	assert.Equal(t, []int64{2}, entry.Connections)

	require.NoError(t, ds.DeactivateAuthor(sessionID, ownerID, 2, false))
	entry, err = ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.False(t, entry.Active)
	assert.Empty(t, entry.Connections)

	connections, err = ds.GetActiveConnections(sessionID)
	require.NoError(t, err)
	assert.Empty(t, connections)

	var notFound *exception.AuthorNotFoundError
	assert.True(t, errors.As(ds.ActivateAuthor(sessionID, 9999, 3), &notFound))
	var sessionMissing *exception.SessionNotFoundError
	assert.True(t, errors.As(ds.DeactivateAuthor(9999, ownerID, 3, false), &sessionMissing))
}

func testSetAuthorField(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")

	require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "name", "Alice A."))
	require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "color", "#123456"))
	require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "realName", "Alice Anderson"))
	require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "status", "typing"))
	require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "cursor", `{"line":3}`))

	entry, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", entry.Name)
	assert.Equal(t, "#123456", entry.Color)
	require.NotNil(t, entry.RealName)
	assert.Equal(t, "Alice Anderson", *entry.RealName)
	assert.Equal(t, "typing", entry.Metadata["status"])
	assert.Equal(t, `{"line":3}`, entry.Metadata["cursor"])

	for _, reserved := range []string{"authorId", "slot", "active", "connection", "connections", ""} {
		var fieldErr *exception.ReservedFieldError
		assert.True(t, errors.As(ds.SetAuthorField(sessionID, ownerID, reserved, "x"), &fieldErr), reserved)
	}

	var notFound *exception.AuthorNotFoundError
	assert.True(t, errors.As(ds.SetAuthorField(sessionID, 9999, "color", "#000000"), &notFound))
	assert.True(t, errors.As(ds.SetAuthorField(sessionID, 9999, "status", "idle"), &notFound))
}

// A second tab of the same author and a rejoin with unchanged fields rewrite rows with the
// values they already hold.
func testUpdatesThatChangeNothing(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")

	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 1))
	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 2))
	for i := 0; i < 2; i++ {
		require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "name", "Alice"))
		require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "color", "#abcdef"))
		require.NoError(t, ds.SetAuthorField(sessionID, ownerID, "realName", "Alice Anderson"))
	}

	require.NoError(t, ds.DeactivateAuthor(sessionID, ownerID, 1, true))

	entry, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.True(t, entry.Active)
	assert.Equal(t, []int64{2}, entry.Connections)
	assert.Equal(t, "#abcdef", entry.Color)
	connections, err := ds.GetActiveConnections(sessionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, connections)
}

func testHistoryAndStoresKeepOrder(t *testing.T, ds DataStore) {
	sessionID, _ := newSession(t, ds, "Alice")

	for _, tx := range []string{`{"op":1}`, `{"op":2}`, `{"op":3}`} {
		require.NoError(t, ds.AppendHistory(sessionID, tx))
	}
	require.NoError(t, ds.AppendStore(sessionID, `{"t1":{"a":1}}`))

	history, err := ds.GetFullHistory(sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"op":1}`, `{"op":2}`, `{"op":3}`}, history)

	stores, err := ds.GetFullStores(sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"t1":{"a":1}}`}, stores)

	var notFound *exception.SessionNotFoundError
	assert.True(t, errors.As(ds.AppendHistory(9999, "{}"), &notFound))
	assert.True(t, errors.As(ds.AppendStore(9999, "{}"), &notFound))
}

func testReadsOfMissingSession(t *testing.T, ds DataStore) {
	owner, err := ds.GetOwner(9999)
	require.NoError(t, err)
	assert.Nil(t, owner)

	entry, err := ds.GetAuthorEntry(9999, 1)
	require.NoError(t, err)
	assert.Nil(t, entry)

	active, err := ds.ListActiveAuthors(9999)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := ds.GetFullHistory(9999)
	require.NoError(t, err)
	assert.Empty(t, history)

	connections, err := ds.GetActiveConnections(9999)
	require.NoError(t, err)
	assert.Empty(t, connections)

	descriptor, err := ds.FindSessionByLocator(modeldb.DocLocator{Title: "Nowhere"})
	require.NoError(t, err)
	assert.Nil(t, descriptor)

	inSession, err := ds.IsAuthorInSession(9999, 1)
	require.NoError(t, err)
	assert.False(t, inSession)
}

func testAuthorConnections(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")

	require.NoError(t, ds.AddConnection(ownerID, sessionID, 5))
	require.NoError(t, ds.AddConnection(ownerID, sessionID, 6))

	err := ds.AddConnection(ownerID, sessionID, 5)
	require.Error(t, err)
	assert.Equal(t, ConnectionAlreadyBoundError, err.Error())

	err = ds.AddConnection(9999, sessionID, 7)
	require.Error(t, err)
	assert.Equal(t, AuthorNotFoundError, err.Error())

	found, err := ds.FindSessionByConnection(6)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sessionID, *found)

	author, err := ds.FindAuthorByConnection(5)
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, ownerID, author.ID)
	assert.Equal(t, "Alice", author.Name)
	assert.Len(t, author.Connections, 2)

	byName, err := ds.FindAuthorByName("Alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, ownerID, byName.ID)

	byID, err := ds.FindAuthorByID(ownerID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Alice", byID.Name)

	connections, err := ds.GetConnectionsByName(sessionID, "Alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, connections)

	require.NoError(t, ds.RemoveConnection(ownerID, 5))
	found, err = ds.FindSessionByConnection(5)
	require.NoError(t, err)
	assert.Nil(t, found)

	missing, err := ds.FindAuthorByName("Nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testCreateAuthorRejectsDuplicateName(t *testing.T, ds DataStore) {
	first, err := ds.CreateAuthor("Alice")
	require.NoError(t, err)
	second, err := ds.CreateAuthor("Bob")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = ds.CreateAuthor("Alice")
	require.Error(t, err)
	assert.Equal(t, AuthorAlreadyExistsError, err.Error())
}

func testClearAllConnections(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")
	bob, err := ds.CreateAuthor("Bob")
	require.NoError(t, err)

	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 1))
	require.NoError(t, ds.AddConnection(ownerID, sessionID, 1))
	_, err = ds.AddAuthorToSession(sessionID, bob, "Bob", "#ff0000", true, 2)
	require.NoError(t, err)
	require.NoError(t, ds.AddConnection(bob, sessionID, 2))
	require.NoError(t, ds.AppendHistory(sessionID, `{"op":1}`))

	require.NoError(t, ds.ClearAllConnections())

	active, err := ds.ListActiveAuthors(sessionID)
	require.NoError(t, err)
	assert.Empty(t, active)

	found, err := ds.FindSessionByConnection(2)
	require.NoError(t, err)
	assert.Nil(t, found)

	inSession, err := ds.IsAuthorInSession(sessionID, bob)
	require.NoError(t, err)
	assert.True(t, inSession)

	history, err := ds.GetFullHistory(sessionID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func testDeleteSession(t *testing.T, ds DataStore) {
	sessionID, ownerID := newSession(t, ds, "Alice")
	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 1))
	require.NoError(t, ds.AppendHistory(sessionID, `{"op":1}`))

	require.NoError(t, ds.DeleteSession(sessionID))

	descriptor, err := ds.FindSessionByLocator(testLocator)
	require.NoError(t, err)
	assert.Nil(t, descriptor)

	owner, err := ds.GetOwner(sessionID)
	require.NoError(t, err)
	assert.Nil(t, owner)

	history, err := ds.GetFullHistory(sessionID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = ds.CreateSession(testLocator, ownerID)
	assert.NoError(t, err)
}

func testPing(t *testing.T, ds DataStore) {
	assert.NoError(t, ds.Ping())
}

func TestMemoryPingAfterClose(t *testing.T) {
	ds := NewMemoryDataStore()
	require.NoError(t, ds.Close())
	err := ds.Ping()
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ds := NewMemoryDataStore()
	sessionID, ownerID := newSession(t, ds, "Alice")
	require.NoError(t, ds.ActivateAuthor(sessionID, ownerID, 1))

	entry, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	entry.Connections[0] = 99
	entry.Active = false

	again, err := ds.GetAuthorEntry(sessionID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, again.Connections)
	assert.True(t, again.Active)
}

func TestSQLiteDriverErrorsAreFatal(t *testing.T) {
	store, err := NewSQLiteDB(filepath.Join(t.TempDir(), "closed.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.CreateAuthor("Alice")
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
	assert.True(t, exception.IsFatal(store.Ping()))
}
