// Package stats derives rollup statistics from a snapshot of zones and sessions.
// Everything here is a pure function of its inputs.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/teamstreem/realm/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats are the dashboard totals.
type Stats struct {
	TotalBlocksPlaced  int                 `json:"total_blocks_placed"`
	TotalBlocksPlanned int                 `json:"total_blocks_planned"`
	TotalBuildMinutes  int                 `json:"total_build_minutes"`
	OverallProgress    float64             `json:"overall_progress"`
	ZoneCount          int                 `json:"zone_count"`
	CompletedZones     int                 `json:"completed_zones"`
	ActiveZone         *model.Zone         `json:"active_zone,omitempty"`
	RecentSession      *model.BuildSession `json:"recent_session,omitempty"`
}

// Compute totals zones and sessions. Sessions are expected newest first.
func Compute(zones []model.Zone, sessions []model.BuildSession) Stats {
	s := Stats{ZoneCount: len(zones)}

	for i := range zones {
		z := &zones[i]
		s.TotalBlocksPlaced += z.BlocksPlaced
		s.TotalBlocksPlanned += z.BlocksPlanned
		switch z.Status {
		case model.ZoneComplete:
			s.CompletedZones++
		case model.ZoneBuilding:
			if s.ActiveZone == nil {
				active := z.Clone()
				s.ActiveZone = &active
			}
		}
	}
	for _, sess := range sessions {
		s.TotalBuildMinutes += sess.DurationMinutes
	}
	if len(sessions) > 0 {
		recent := sessions[0].Clone()
		s.RecentSession = &recent
	}

	s.OverallProgress = Progress(s.TotalBlocksPlaced, s.TotalBlocksPlanned)
	return s
}

// Progress is placed/planned clamped to [0, 1]; 0 when nothing is planned.
func Progress(placed, planned int) float64 {
	if planned <= 0 || placed <= 0 {
		return 0
	}
	return math.Min(1, float64(placed)/float64(planned))
}

// FormatDuration renders minutes as "3h 5m", or "5m" under an hour.
func FormatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormattedBuildTime is the total build time for display.
func (s Stats) FormattedBuildTime() string {
	return FormatDuration(s.TotalBuildMinutes)
}

// ProgressPercent is the overall progress as a rounded whole percent.
func (s Stats) ProgressPercent() int {
	return Percent(s.OverallProgress)
}

// Percent rounds a fraction to a whole percent.
func Percent(fraction float64) int {
	return int(math.Round(fraction * 100))
}

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// Streak counts consecutive calendar days with a session, ending today or
// yesterday. Any order and duplicates are accepted; zero dates are ignored.
func Streak(dates []time.Time, now time.Time) int {
	days := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		days[civilDay(d)] = struct{}{}
	}

	day := civilDay(now)
	if _, ok := days[day]; !ok {
		day = day.AddDate(0, 0, -1)
		if _, ok := days[day]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

// civilDay maps t to midnight UTC of its calendar date in t's own location.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Milestone is a celebrated progress threshold.
type Milestone struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Milestones in ascending order.
var Milestones = []Milestone{
	{Percent: 25, Message: "Quarter of the way there! Keep building!"},
	{Percent: 50, Message: "HALFWAY! You're doing amazing!"},
	{Percent: 75, Message: "Almost there! The finish line is in sight!"},
	{Percent: 100, Message: "YOU DID IT! The mega build is COMPLETE!"},
}

// CrossedMilestone returns the first milestone passed when progress moves from
// prev to cur percent.
func CrossedMilestone(prev, cur int) (Milestone, bool) {
	for _, m := range Milestones {
		if cur >= m.Percent && prev < m.Percent {
			return m, true
		}
	}
	return Milestone{}, false
}
