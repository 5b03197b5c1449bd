package model

// StructureType classifies a structure.
type StructureType string

// Structure types, using the remote single-select values.
const (
	StructurePlatform StructureType = "Platform"
	StructureTower    StructureType = "Tower"
	StructureChamber  StructureType = "Chamber"
	StructureSystem   StructureType = "System"
	StructureBridge   StructureType = "Bridge"
	StructureMonument StructureType = "Monument"
	StructureOther    StructureType = "Other"
)

// StructureTypes lists every type in display order.
var StructureTypes = []StructureType{
	StructurePlatform,
	StructureTower,
	StructureChamber,
	StructureSystem,
	StructureBridge,
	StructureMonument,
	StructureOther,
}

// ParseStructureType maps a remote value to a type, defaulting to Other.
func ParseStructureType(s string) StructureType {
	for _, t := range StructureTypes {
		if string(t) == s {
			return t
		}
	}
	return StructureOther
}

// Icon returns the emoji shown for the type.
func (t StructureType) Icon() string {
	switch t {
	case StructurePlatform:
		return "🏗️"
	case StructureTower:
		return "🗼"
	case StructureChamber:
		return "🏛️"
	case StructureSystem:
		return "⚙️"
	case StructureBridge:
		return "🌉"
	case StructureMonument:
		return "🗿"
	default:
		return "🧱"
	}
}

// Structure is a named sub-build inside one or more zones.
type Structure struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name,omitempty"`
	InternalName           string        `json:"internal_name,omitempty"`
	Type                   StructureType `json:"type"`
	BlocksPlanned          int           `json:"blocks_planned"`
	BlocksPlaced           int           `json:"blocks_placed"`
	BlocksRemaining        *int          `json:"blocks_remaining,omitempty"`
	ProgressAPI            *float64      `json:"progress_api,omitempty"`
	EstimatedHours         float64       `json:"estimated_hours"`
	Hours                  float64       `json:"hours"`
	ForecastHoursRemaining float64       `json:"forecast_hours_remaining"`
	KidsText               string        `json:"kids_text,omitempty"`
	RealText               string        `json:"real_text,omitempty"`
	Visible                bool          `json:"visible"`
	ZoneIDs                []string      `json:"zone_ids,omitempty"`
}

// DisplayName is the kid-facing name, or a placeholder while unnamed.
func (s Structure) DisplayName() string {
	if s.Name == "" {
		return "Secret Build"
	}
	return s.Name
}

// Progress is the API-supplied fraction when present, else placed/planned.
func (s Structure) Progress() float64 {
	return progress(s.ProgressAPI, s.BlocksPlaced, s.BlocksPlanned)
}

// BlocksRemainingCount prefers the remote rollup and otherwise derives it.
func (s Structure) BlocksRemainingCount() int {
	if s.BlocksRemaining != nil {
		return *s.BlocksRemaining
	}
	return max(0, s.BlocksPlanned-s.BlocksPlaced)
}

// KidsDescription is what the kids view shows for the structure.
func (s Structure) KidsDescription() string {
	if s.KidsText == "" {
		return "Something awesome is being built here!"
	}
	return s.KidsText
}

// Clone returns a deep copy.
func (s Structure) Clone() Structure {
	if s.BlocksRemaining != nil {
		r := *s.BlocksRemaining
		s.BlocksRemaining = &r
	}
	if s.ProgressAPI != nil {
		p := *s.ProgressAPI
		s.ProgressAPI = &p
	}
	s.ZoneIDs = cloneStrings(s.ZoneIDs)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
