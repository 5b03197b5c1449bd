package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// OpenSQLite opens path and applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != MemoryPath {
		// WAL lets a dashboard process read while a CLI process writes.
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Overrides ---

const overrideColumns = `kind, record_id, visible, status, teaser, kids_text, real_text, reason, updated_at`

// Override returns the override for (kind, id).
func (s *SQLiteStore) Override(kind OverrideKind, id string) (Override, bool, error) {
	if s.db == nil {
		return Override{}, false, ErrNotOpen
	}

	row := s.db.QueryRow(
		`SELECT `+overrideColumns+` FROM overrides WHERE kind = ? AND record_id = ?`,
		string(kind), id,
	)
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Override{}, false, nil
	}
	if err != nil {
		return Override{}, false, fmt.Errorf("failed to get override: %w", err)
	}
	return o, true, nil
}

// SetOverride upserts o. Empty Reason defaults to schema_mismatch and a zero
// UpdatedAt is stamped with the current time.
func (s *SQLiteStore) SetOverride(o Override) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if o.RecordID == "" {
		return fmt.Errorf("override for %s: empty record id", o.Kind)
	}
	if o.Reason == "" {
		o.Reason = ReasonSchemaMismatch
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO overrides (`+overrideColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, record_id) DO UPDATE SET
		   visible = excluded.visible,
		   status = excluded.status,
		   teaser = excluded.teaser,
		   kids_text = excluded.kids_text,
		   real_text = excluded.real_text,
		   reason = excluded.reason,
		   updated_at = excluded.updated_at`,
		string(o.Kind), o.RecordID, o.Visible, o.Status, o.Teaser, o.KidsText, o.RealText, o.Reason, o.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

// Overrides returns the overrides of kind keyed by record id.
func (s *SQLiteStore) Overrides(kind OverrideKind) (map[string]Override, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.Query(`SELECT `+overrideColumns+` FROM overrides WHERE kind = ?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Override)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out[o.RecordID] = o
	}
	return out, rows.Err()
}

// ListOverrides returns all overrides, newest first.
func (s *SQLiteStore) ListOverrides() ([]Override, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.Query(`SELECT ` + overrideColumns + ` FROM overrides ORDER BY updated_at DESC, kind, record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverride(sc scanner) (Override, error) {
	var (
		o       Override
		kind    string
		updated int64
	)
	if err := sc.Scan(&kind, &o.RecordID, &o.Visible, &o.Status, &o.Teaser, &o.KidsText, &o.RealText, &o.Reason, &updated); err != nil {
		return Override{}, err
	}
	o.Kind = OverrideKind(kind)
	o.UpdatedAt = time.UnixMilli(updated).UTC()
	return o, nil
}

// --- Chat history ---

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// AppendChatTurn stores turn and returns it with id and timestamp filled in.
func (s *SQLiteStore) AppendChatTurn(turn ChatTurn) (ChatTurn, error) {
	if s.db == nil {
		return ChatTurn{}, ErrNotOpen
	}
	if turn.ID == "" {
		turn.ID = generateID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO chat_turns (id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		turn.ID, string(turn.Role), turn.Content, turn.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return ChatTurn{}, fmt.Errorf("failed to append chat turn: %w", err)
	}
	return turn, nil
}

// RecentChatTurns returns the last limit turns in conversation order.
func (s *SQLiteStore) RecentChatTurns(limit int) ([]ChatTurn, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT id, role, content, created_at FROM chat_turns ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat turns: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var (
			t       ChatTurn
			role    string
			created int64
		)
		if err := rows.Scan(&t.ID, &role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		t.Role = ChatRole(role)
		t.CreatedAt = time.UnixMilli(created).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearChatTurns deletes all chat history.
func (s *SQLiteStore) ClearChatTurns() error {
	if s.db == nil {
		return ErrNotOpen
	}
	if _, err := s.db.Exec(`DELETE FROM chat_turns`); err != nil {
		return fmt.Errorf("failed to clear chat turns: %w", err)
	}
	return nil
}
