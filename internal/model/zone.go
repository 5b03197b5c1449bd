// Package model defines the typed records of the build tracker: zones, structures,
// materials and build sessions, plus the small derivations the views rely on.
package model

import (
	"fmt"
	"strings"
)

// ZoneStatus is the lifecycle state of a zone.
type ZoneStatus string

// Zone statuses. The string values are what the remote Status column stores.
const (
	ZoneLocked   ZoneStatus = "locked"
	ZoneBuilding ZoneStatus = "building"
	ZoneComplete ZoneStatus = "complete"
)

// ParseZoneStatus returns the status for s and whether s named a known status.
func ParseZoneStatus(s string) (ZoneStatus, bool) {
	switch ZoneStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ZoneLocked:
		return ZoneLocked, true
	case ZoneBuilding:
		return ZoneBuilding, true
	case ZoneComplete:
		return ZoneComplete, true
	}
	return "", false
}

// Label is the kid-facing badge text.
func (s ZoneStatus) Label() string {
	switch s {
	case ZoneBuilding:
		return "⚒️ BUILDING"
	case ZoneComplete:
		return "✅ COMPLETE"
	default:
		return "🔒 Mystery"
	}
}

// InferZoneStatus derives a status from progress when the record carries none.
// Zone 1 is where the build starts, so it counts as building even at zero progress.
func InferZoneStatus(progress float64, number int) ZoneStatus {
	switch {
	case progress >= 1.0:
		return ZoneComplete
	case progress > 0 || number == 1:
		return ZoneBuilding
	default:
		return ZoneLocked
	}
}

// Zone is a large tracked region of the build.
type Zone struct {
	ID              string     `json:"id"`
	Number          int        `json:"number"`
	Name            string     `json:"name,omitempty"`
	InternalName    string     `json:"internal_name,omitempty"`
	YStart          int        `json:"y_start"`
	YEnd            int        `json:"y_end"`
	TotalLayers     int        `json:"total_layers"`
	LayersComplete  int        `json:"layers_complete"`
	BlocksPlanned   int        `json:"blocks_planned"`
	BlocksPlaced    int        `json:"blocks_placed"`
	BlocksRemaining int        `json:"blocks_remaining"`
	ProgressAPI     *float64   `json:"progress_api,omitempty"`
	Hours           float64    `json:"hours"`
	Visible         bool       `json:"visible"`
	Status          ZoneStatus `json:"status"`
	Teaser          string     `json:"teaser,omitempty"`
}

// Progress is the API-supplied fraction when present, else placed/planned.
func (z Zone) Progress() float64 {
	return progress(z.ProgressAPI, z.BlocksPlaced, z.BlocksPlanned)
}

// progress is the API-supplied fraction when present, else done/total,
// clamped to [0,1]. Rollups can overshoot when blocks are placed off-plan.
func progress(api *float64, done, total int) float64 {
	var f float64
	switch {
	case api != nil:
		f = *api
	case total > 0:
		f = float64(done) / float64(total)
	}
	return min(1, max(0, f))
}

// LayerProgress is the fraction of layers finished.
func (z Zone) LayerProgress() float64 {
	if z.TotalLayers <= 0 {
		return 0
	}
	return float64(z.LayersComplete) / float64(z.TotalLayers)
}

// DisplayName drops a leading "Zone N:" prefix from the kid-facing name.
func (z Zone) DisplayName() string {
	if z.Name == "" {
		return fmt.Sprintf("Zone %d", z.Number)
	}
	if i := strings.LastIndex(z.Name, ":"); i >= 0 {
		return strings.TrimSpace(z.Name[i+1:])
	}
	return z.Name
}

// FullDisplayName is the kid-facing name as stored.
func (z Zone) FullDisplayName() string {
	if z.Name == "" {
		return fmt.Sprintf("Zone %d", z.Number)
	}
	return z.Name
}

// IsLocked reports whether kids should see the zone as a mystery.
func (z Zone) IsLocked() bool {
	return !z.Visible || z.Status == ZoneLocked
}

// Emoji is the zone's badge.
func (z Zone) Emoji() string {
	switch z.Number {
	case 1:
		return "🌊"
	case 2:
		return "✨"
	case 3:
		return "🏝️"
	case 4:
		return "🗼"
	case 5:
		return "💎"
	default:
		return "🧱"
	}
}

// KidsDescription is the one-line teaser used on the kids view.
func (z Zone) KidsDescription() string {
	switch z.Number {
	case 1:
		return "Deep beneath the waves..."
	case 2:
		return "Where light meets darkness!"
	case 3:
		return "Breaking the surface!"
	case 4:
		return "Reaching for the sky!"
	case 5:
		return "The crown jewel awaits!"
	default:
		return "Mystery zone!"
	}
}

// Clone returns a deep copy.
func (z Zone) Clone() Zone {
	if z.ProgressAPI != nil {
		p := *z.ProgressAPI
		z.ProgressAPI = &p
	}
	return z
}
