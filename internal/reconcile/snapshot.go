package reconcile

import (
	"time"

	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/stats"
)

// Snapshot is an immutable view of every record kind plus the derived stats.
// Accessors return copies; a published Snapshot is never modified.
type Snapshot struct {
	version    uint64
	loadedAt   time.Time
	zones      []model.Zone
	structures []model.Structure
	materials  []model.Material
	sessions   []model.BuildSession
	stats      stats.Stats
}

// Version increases by one with every publish.
func (s *Snapshot) Version() uint64 { return s.version }

// LoadedAt is when the last full load finished. Zero before the first load.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Stats returns the rollups computed for this snapshot.
func (s *Snapshot) Stats() stats.Stats { return s.stats }

// Zones returns the zones in zone-number order.
func (s *Snapshot) Zones() []model.Zone {
	out := make([]model.Zone, len(s.zones))
	for i, z := range s.zones {
		out[i] = z.Clone()
	}
	return out
}

// Structures returns all structures.
func (s *Snapshot) Structures() []model.Structure {
	out := make([]model.Structure, len(s.structures))
	for i, st := range s.structures {
		out[i] = st.Clone()
	}
	return out
}

// Materials returns all materials.
func (s *Snapshot) Materials() []model.Material {
	out := make([]model.Material, len(s.materials))
	for i, m := range s.materials {
		out[i] = m.Clone()
	}
	return out
}

// Sessions returns sessions newest first.
func (s *Snapshot) Sessions() []model.BuildSession {
	out := make([]model.BuildSession, len(s.sessions))
	for i, b := range s.sessions {
		out[i] = b.Clone()
	}
	return out
}

// Zone looks up a zone by record id.
func (s *Snapshot) Zone(id string) (model.Zone, bool) {
	for _, z := range s.zones {
		if z.ID == id {
			return z.Clone(), true
		}
	}
	return model.Zone{}, false
}

// Structure looks up a structure by record id.
func (s *Snapshot) Structure(id string) (model.Structure, bool) {
	for _, st := range s.structures {
		if st.ID == id {
			return st.Clone(), true
		}
	}
	return model.Structure{}, false
}

// ForKids returns the kid-facing projection: hidden zones, structures and
// sessions are dropped. Stats stay those of the whole build.
func (s *Snapshot) ForKids() *Snapshot {
	kids := &Snapshot{
		version:   s.version,
		loadedAt:  s.loadedAt,
		materials: s.materials,
		stats:     s.stats,
	}
	for _, z := range s.zones {
		if z.Visible {
			kids.zones = append(kids.zones, z)
		}
	}
	for _, st := range s.structures {
		if st.Visible {
			kids.structures = append(kids.structures, st)
		}
	}
	for _, b := range s.sessions {
		if b.Visible {
			kids.sessions = append(kids.sessions, b)
		}
	}
	return kids
}

// SessionDates returns the date of every session, for streak counting.
func (s *Snapshot) SessionDates() []time.Time {
	out := make([]time.Time, 0, len(s.sessions))
	for _, b := range s.sessions {
		out = append(out, b.Date)
	}
	return out
}

// with returns a successor snapshot carrying the given collections. Nil
// arguments keep the current collection. Stats are recomputed.
func (s *Snapshot) with(zones []model.Zone, structures []model.Structure, sessions []model.BuildSession) *Snapshot {
	next := &Snapshot{
		version:    s.version + 1,
		loadedAt:   s.loadedAt,
		zones:      s.zones,
		structures: s.structures,
		materials:  s.materials,
		sessions:   s.sessions,
	}
	if zones != nil {
		next.zones = zones
	}
	if structures != nil {
		next.structures = structures
	}
	if sessions != nil {
		next.sessions = sessions
	}
	next.stats = stats.Compute(next.zones, next.sessions)
	return next
}
