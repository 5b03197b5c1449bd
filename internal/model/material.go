package model

import "github.com/teamstreem/realm/internal/catalog"

// Material is a planned quantity of one block type.
type Material struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	QtyPlanned  int      `json:"qty_planned"`
	QtyRemain   int      `json:"qty_remaining"`
	ProgressAPI *float64 `json:"progress_api,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// QtyPlaced is planned minus remaining, never negative.
func (m Material) QtyPlaced() int {
	return max(0, m.QtyPlanned-m.QtyRemain)
}

// IsComplete reports whether every planned block has been placed.
func (m Material) IsComplete() bool {
	return m.QtyPlaced() >= m.QtyPlanned
}

// Progress is the API-supplied fraction when present, else placed/planned.
func (m Material) Progress() float64 {
	return progress(m.ProgressAPI, m.QtyPlaced(), m.QtyPlanned)
}

// Block resolves the material's catalog entry.
func (m Material) Block() catalog.Block {
	return catalog.Lookup(m.Name)
}

// Clone returns a deep copy.
func (m Material) Clone() Material {
	if m.ProgressAPI != nil {
		p := *m.ProgressAPI
		m.ProgressAPI = &p
	}
	return m
}
