// Package state persists the local side of the tracker in SQLite: field values the
// remote base rejected (overrides) and the assistant's chat history.
package state

import (
	"errors"
	"time"
)

// ErrNotOpen is returned by every operation on a store that has no open database.
var ErrNotOpen = errors.New("database not opened")

// OverrideKind is the record kind an override shadows.
type OverrideKind string

// Override kinds.
const (
	KindZone      OverrideKind = "zone"
	KindStructure OverrideKind = "structure"
)

// ReasonSchemaMismatch marks an override written because the remote base has no
// column for the value yet.
const ReasonSchemaMismatch = "schema_mismatch"

// Override is a locally held value that wins over the remote record.
// Zones carry Visible, Status and Teaser; structures carry Visible, KidsText
// and RealText.
type Override struct {
	Kind      OverrideKind `json:"kind"`
	RecordID  string       `json:"record_id"`
	Visible   bool         `json:"visible"`
	Status    string       `json:"status,omitempty"`
	Teaser    string       `json:"teaser,omitempty"`
	KidsText  string       `json:"kids_text,omitempty"`
	RealText  string       `json:"real_text,omitempty"`
	Reason    string       `json:"reason"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ChatRole is who said a chat turn.
type ChatRole string

// Chat roles, matching the assistant API.
const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one message of the assistant conversation.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the local persistence used by reconciliation and the assistant.
// It assumes a single writer process.
type Store interface {
	// Override returns the override for (kind, id) and whether one exists.
	Override(kind OverrideKind, id string) (Override, bool, error)
	// SetOverride inserts or replaces an override.
	SetOverride(o Override) error
	// Overrides returns every override of kind keyed by record id.
	Overrides(kind OverrideKind) (map[string]Override, error)
	// ListOverrides returns all overrides, most recently updated first.
	ListOverrides() ([]Override, error)

	// AppendChatTurn stores a turn, assigning an id when empty.
	AppendChatTurn(turn ChatTurn) (ChatTurn, error)
	// RecentChatTurns returns at most limit turns, oldest first.
	RecentChatTurns(limit int) ([]ChatTurn, error)
	// ClearChatTurns deletes the whole history.
	ClearChatTurns() error

	Close() error
}
