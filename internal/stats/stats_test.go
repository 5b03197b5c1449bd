package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamstreem/realm/internal/model"
)

func TestCompute(t *testing.T) {
	zones := []model.Zone{
		{ID: "z1", Number: 1, BlocksPlaced: 1000, BlocksPlanned: 1000, Status: model.ZoneComplete},
		{ID: "z2", Number: 2, BlocksPlaced: 250, BlocksPlanned: 1000, Status: model.ZoneBuilding},
		{ID: "z3", Number: 3, BlocksPlanned: 2000, Status: model.ZoneBuilding},
		{ID: "z4", Number: 4, Status: model.ZoneLocked},
	}
	sessions := []model.BuildSession{
		{ID: "s2", DurationMinutes: 90},
		{ID: "s1", DurationMinutes: 45},
	}

	s := Compute(zones, sessions)
	assert.Equal(t, 1250, s.TotalBlocksPlaced)
	assert.Equal(t, 4000, s.TotalBlocksPlanned)
	assert.Equal(t, 135, s.TotalBuildMinutes)
	assert.InDelta(t, 0.3125, s.OverallProgress, 1e-9)
	assert.Equal(t, 31, s.ProgressPercent())
	assert.Equal(t, 4, s.ZoneCount)
	assert.Equal(t, 1, s.CompletedZones)
	require.NotNil(t, s.ActiveZone)
	assert.Equal(t, "z2", s.ActiveZone.ID)
	require.NotNil(t, s.RecentSession)
	assert.Equal(t, "s2", s.RecentSession.ID)
	assert.Equal(t, "2h 15m", s.FormattedBuildTime())
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, nil)
	assert.Zero(t, s.OverallProgress)
	assert.Nil(t, s.ActiveZone)
	assert.Nil(t, s.RecentSession)
	assert.Equal(t, "0m", s.FormattedBuildTime())
}

func TestProgressIsBounded(t *testing.T) {
	tests := []struct {
		placed, planned int
		want            float64
	}{
		{placed: 0, planned: 0, want: 0},
		{placed: 50, planned: 0, want: 0},
		{placed: 0, planned: 100, want: 0},
		{placed: 50, planned: 100, want: 0.5},
		{placed: 150, planned: 100, want: 1},
		{placed: -5, planned: 100, want: 0},
	}

	for _, tt := range tests {
		got := Progress(tt.placed, tt.planned)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		assert.InDelta(t, tt.want, got, 1e-9)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", FormatDuration(0))
	assert.Equal(t, "45m", FormatDuration(45))
	assert.Equal(t, "1h 0m", FormatDuration(60))
	assert.Equal(t, "3h 5m", FormatDuration(185))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "12,345", FormatCount(12345))
	assert.Equal(t, "1,000,000", FormatCount(1000000))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStreak(t *testing.T) {
	now := time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{name: "none", want: 0},
		{name: "today only", dates: []time.Time{day(2025, 6, 14)}, want: 1},
		{name: "yesterday starts streak", dates: []time.Time{day(2025, 6, 13), day(2025, 6, 12)}, want: 2},
		{name: "two days ago breaks", dates: []time.Time{day(2025, 6, 12), day(2025, 6, 11)}, want: 0},
		{name: "gap stops count", dates: []time.Time{day(2025, 6, 14), day(2025, 6, 13), day(2025, 6, 11)}, want: 2},
		{name: "duplicates and order", dates: []time.Time{day(2025, 6, 12), day(2025, 6, 14), day(2025, 6, 13), day(2025, 6, 14)}, want: 3},
		{name: "zero dates ignored", dates: []time.Time{{}, day(2025, 6, 14)}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.dates, now))
		})
	}

	monthEdge := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, Streak([]time.Time{day(2025, 7, 1), day(2025, 6, 30), day(2025, 6, 29)}, monthEdge))
}

func TestCrossedMilestone(t *testing.T) {
	tests := []struct {
		prev, cur int
		want      int
		ok        bool
	}{
		{prev: 0, cur: 10, ok: false},
		{prev: 20, cur: 25, want: 25, ok: true},
		{prev: 20, cur: 60, want: 25, ok: true},
		{prev: 49, cur: 50, want: 50, ok: true},
		{prev: 50, cur: 74, ok: false},
		{prev: 99, cur: 100, want: 100, ok: true},
		{prev: 100, cur: 100, ok: false},
		{prev: 60, cur: 30, ok: false},
	}

	for _, tt := range tests {
		m, ok := CrossedMilestone(tt.prev, tt.cur)
		assert.Equal(t, tt.ok, ok, "%d -> %d", tt.prev, tt.cur)
		if tt.ok {
			assert.Equal(t, tt.want, m.Percent)
			assert.NotEmpty(t, m.Message)
		}
	}
}
