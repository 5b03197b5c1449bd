package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	for _, table := range []string{"overrides", "chat_turns"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		rows.Close()
	}

	// Re-running is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.SetOverride(Override{Kind: KindZone, RecordID: "recZ1", Visible: false, Status: "locked"}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	o, ok, err := reopened.Override(KindZone, "recZ1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "locked", o.Status)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_Overrides(t *testing.T) {
	store := setupTestStore(t)

	_, ok, err := store.Override(KindZone, "recZ1")
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetOverride(Override{
		Kind: KindZone, RecordID: "recZ1", Visible: false, Status: "locked", Teaser: "Soon", UpdatedAt: first,
	}))
	require.NoError(t, store.SetOverride(Override{
		Kind: KindStructure, RecordID: "recS1", Visible: false, KidsText: "A bubble!", RealText: "Forty hours of glass",
		UpdatedAt: first.Add(time.Hour),
	}))

	o, ok, err := store.Override(KindZone, "recZ1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, o.Visible)
	assert.Equal(t, "locked", o.Status)
	assert.Equal(t, "Soon", o.Teaser)
	assert.Equal(t, ReasonSchemaMismatch, o.Reason)
	assert.Equal(t, first, o.UpdatedAt)

	// Overwrite wins.
	require.NoError(t, store.SetOverride(Override{
		Kind: KindZone, RecordID: "recZ1", Visible: true, Status: "building", UpdatedAt: first.Add(2 * time.Hour),
	}))

	zones, err := store.Overrides(KindZone)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.True(t, zones["recZ1"].Visible)
	assert.Equal(t, "building", zones["recZ1"].Status)
	assert.Empty(t, zones["recZ1"].Teaser)

	structures, err := store.Overrides(KindStructure)
	require.NoError(t, err)
	require.Contains(t, structures, "recS1")
	assert.Equal(t, "A bubble!", structures["recS1"].KidsText)
	assert.Equal(t, "Forty hours of glass", structures["recS1"].RealText)

	all, err := store.ListOverrides()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "recZ1", all[0].RecordID)
	assert.Equal(t, "recS1", all[1].RecordID)
}

func TestSQLiteStore_SetOverrideValidates(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.SetOverride(Override{Kind: KindZone}))
	assert.Error(t, store.SetOverride(Override{Kind: "material", RecordID: "recM1"}))
}

func TestSQLiteStore_ChatTurns(t *testing.T) {
	store := setupTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		turn, err := store.AppendChatTurn(ChatTurn{Role: role, Content: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		assert.NotEmpty(t, turn.ID)
	}

	turns, err := store.RecentChatTurns(3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "c", turns[0].Content)
	assert.Equal(t, "e", turns[2].Content)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, base.Add(4*time.Minute), turns[2].CreatedAt)

	none, err := store.RecentChatTurns(0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.ClearChatTurns())
	turns, err = store.RecentChatTurns(10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	store := NewSQLiteStore()

	_, _, err := store.Override(KindZone, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.SetOverride(Override{Kind: KindZone, RecordID: "x"}), ErrNotOpen)
	_, err = store.Overrides(KindZone)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.AppendChatTurn(ChatTurn{})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.Migrate(), ErrNotOpen)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_DriverFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &SQLiteStore{db: db}
	diskFull := errors.New("disk full")

	mock.ExpectExec("INSERT INTO overrides").WillReturnError(diskFull)
	err = store.SetOverride(Override{Kind: KindZone, RecordID: "recZ1"})
	assert.ErrorIs(t, err, diskFull)

	mock.ExpectQuery("SELECT (.+) FROM overrides WHERE kind").WillReturnError(diskFull)
	_, err = store.Overrides(KindZone)
	assert.ErrorIs(t, err, diskFull)

	mock.ExpectQuery("SELECT (.+) FROM overrides WHERE kind").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "record_id"}).AddRow("zone", "recZ1"))
	_, err = store.Overrides(KindZone)
	assert.Error(t, err)

	mock.ExpectExec("DELETE FROM chat_turns").WillReturnError(diskFull)
	assert.ErrorIs(t, store.ClearChatTurns(), diskFull)

	assert.NoError(t, mock.ExpectationsWereMet())
}
