package model

import (
	"fmt"
	"strings"
	"time"
)

// Mood is how a build session felt. Values are the remote single-select labels.
type Mood string

// The five moods, best to worst.
const (
	MoodMasterBuilder   Mood = "🏆 Master Builder"
	MoodOnFire          Mood = "🔥 On Fire"
	MoodBrickByBrick    Mood = "🧱 Brick by Brick"
	MoodCreeperProblems Mood = "😤 Creeper Problems"
	MoodMinedOut        Mood = "😴 Mined Out"
)

// DefaultMood is used when a session carries no recognised mood.
const DefaultMood = MoodBrickByBrick

// Moods lists every mood in display order.
var Moods = []Mood{
	MoodMasterBuilder,
	MoodOnFire,
	MoodBrickByBrick,
	MoodCreeperProblems,
	MoodMinedOut,
}

var moodColors = map[Mood]string{
	MoodMasterBuilder:   "gold",
	MoodOnFire:          "redstone",
	MoodBrickByBrick:    "stone",
	MoodCreeperProblems: "emerald",
	MoodMinedOut:        "lapis",
}

// Emoji is the leading emoji of the label.
func (m Mood) Emoji() string {
	e, _, _ := strings.Cut(string(m), " ")
	return e
}

// ShortName is the label without its emoji.
func (m Mood) ShortName() string {
	_, name, _ := strings.Cut(string(m), " ")
	return name
}

// Color is the palette name used when rendering the mood.
func (m Mood) Color() string {
	if c, ok := moodColors[m]; ok {
		return c
	}
	return moodColors[DefaultMood]
}

// ParseMood accepts the full label, the short name (any case) or the emoji.
func ParseMood(s string) (Mood, bool) {
	s = strings.TrimSpace(s)
	for _, m := range Moods {
		if s == string(m) || s == m.Emoji() || strings.EqualFold(s, m.ShortName()) {
			return m, true
		}
	}
	return "", false
}

// SessionDateLayout is the full-date format of Session_Date.
const SessionDateLayout = "2006-01-02"

// BuildSession is one logged building episode.
type BuildSession struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date,omitzero"`
	DurationMinutes int       `json:"duration_minutes"`
	BlocksPlaced    int       `json:"blocks_placed"`
	Mood            Mood      `json:"mood"`
	Notes           string    `json:"notes,omitempty"`
	InternalNotes   string    `json:"internal_notes,omitempty"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	Visible         bool      `json:"visible"`
	ZoneIDs         []string  `json:"zone_ids,omitempty"`
	StructureIDs    []string  `json:"structure_ids,omitempty"`
}

// NewSession returns a visible session dated to now's calendar day.
func NewSession(now time.Time) BuildSession {
	y, m, d := now.Date()
	return BuildSession{
		Date:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Mood:    DefaultMood,
		Visible: true,
	}
}

// FormattedDuration renders the duration as "45m", "2h" or "1h 30m".
func (s BuildSession) FormattedDuration() string {
	if s.DurationMinutes <= 0 {
		return "--"
	}
	h, m := s.DurationMinutes/60, s.DurationMinutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// BlocksPerMinute is the session pace, or 0 when no duration was logged.
func (s BuildSession) BlocksPerMinute() float64 {
	if s.DurationMinutes <= 0 {
		return 0
	}
	return float64(s.BlocksPlaced) / float64(s.DurationMinutes)
}

// FormattedDate renders the date as "Mon, Jan 2".
func (s BuildSession) FormattedDate() string {
	if s.Date.IsZero() {
		return "Unknown"
	}
	return s.Date.Format("Mon, Jan 2")
}

// Clone returns a deep copy.
func (s BuildSession) Clone() BuildSession {
	s.ZoneIDs = cloneStrings(s.ZoneIDs)
	s.StructureIDs = cloneStrings(s.StructureIDs)
	return s
}
