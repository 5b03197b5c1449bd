package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"
	"github.com/teamstreem/realm/internal/catalog"
	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/stats"
)

// zoneView is a zone plus the fields the dashboard renders.
type zoneView struct {
	model.Zone
	DisplayName     string `json:"display_name"`
	Emoji           string `json:"emoji"`
	Description     string `json:"description"`
	Locked          bool   `json:"locked"`
	ProgressPercent int    `json:"progress_percent"`
}

type structureView struct {
	model.Structure
	DisplayName     string `json:"display_name"`
	Icon            string `json:"icon"`
	Description     string `json:"description"`
	ProgressPercent int    `json:"progress_percent"`
}

type sessionView struct {
	model.BuildSession
	FormattedDate     string `json:"formatted_date"`
	FormattedDuration string `json:"formatted_duration"`
	MoodEmoji         string `json:"mood_emoji"`
	MoodColor         string `json:"mood_color"`
}

type materialView struct {
	model.Material
	QtyPlaced       int           `json:"qty_placed"`
	ProgressPercent int           `json:"progress_percent"`
	Block           catalog.Block `json:"block"`
}

// view is the JSON body of /api/kids and /api/dad.
type view struct {
	Version         uint64          `json:"version"`
	LoadedAt        time.Time       `json:"loaded_at,omitzero"`
	Stats           stats.Stats     `json:"stats"`
	ProgressPercent int             `json:"progress_percent"`
	BlocksPlaced    string          `json:"blocks_placed"`
	BlocksPlanned   string          `json:"blocks_planned"`
	BuildTime       string          `json:"build_time"`
	Streak          int             `json:"streak"`
	Zones           []zoneView      `json:"zones"`
	Structures      []structureView `json:"structures"`
	Sessions        []sessionView   `json:"sessions"`
	Materials       []materialView  `json:"materials"`
}

// buildView renders snap. For kids, hidden records are dropped and the
// parent-only text fields are blanked.
func buildView(snap *reconcile.Snapshot, kids bool, now time.Time) view {
	if kids {
		snap = snap.ForKids()
	}
	st := snap.Stats()

	v := view{
		Version:         snap.Version(),
		LoadedAt:        snap.LoadedAt(),
		ProgressPercent: st.ProgressPercent(),
		BlocksPlaced:    stats.FormatCount(st.TotalBlocksPlaced),
		BlocksPlanned:   stats.FormatCount(st.TotalBlocksPlanned),
		BuildTime:       st.FormattedBuildTime(),
		Streak:          stats.Streak(snap.SessionDates(), now),
		Zones:           []zoneView{},
		Structures:      []structureView{},
		Sessions:        []sessionView{},
		Materials:       []materialView{},
	}

	for _, z := range snap.Zones() {
		if kids {
			z.InternalName = ""
		}
		v.Zones = append(v.Zones, zoneView{
			Zone:            z,
			DisplayName:     z.DisplayName(),
			Emoji:           z.Emoji(),
			Description:     z.KidsDescription(),
			Locked:          z.IsLocked(),
			ProgressPercent: stats.Percent(z.Progress()),
		})
	}
	for _, s := range snap.Structures() {
		if kids {
			s.InternalName = ""
			s.RealText = ""
		}
		v.Structures = append(v.Structures, structureView{
			Structure:       s,
			DisplayName:     s.DisplayName(),
			Icon:            s.Type.Icon(),
			Description:     s.KidsDescription(),
			ProgressPercent: stats.Percent(s.Progress()),
		})
	}
	for _, b := range snap.Sessions() {
		if kids {
			b.InternalNotes = ""
		}
		v.Sessions = append(v.Sessions, sessionView{
			BuildSession:      b,
			FormattedDate:     b.FormattedDate(),
			FormattedDuration: b.FormattedDuration(),
			MoodEmoji:         b.Mood.Emoji(),
			MoodColor:         b.Mood.Color(),
		})
	}
	for _, m := range snap.Materials() {
		v.Materials = append(v.Materials, materialView{
			Material:        m,
			QtyPlaced:       m.QtyPlaced(),
			ProgressPercent: stats.Percent(m.Progress()),
			Block:           m.Block(),
		})
	}

	if kids {
		st = kidsStats(st)
	}
	v.Stats = st
	return v
}

// kidsStats drops or blanks the stats' embedded records that kids may not see.
func kidsStats(st stats.Stats) stats.Stats {
	if st.ActiveZone != nil {
		if !st.ActiveZone.Visible {
			st.ActiveZone = nil
		} else {
			z := st.ActiveZone.Clone()
			z.InternalName = ""
			st.ActiveZone = &z
		}
	}
	if st.RecentSession != nil {
		if !st.RecentSession.Visible {
			st.RecentSession = nil
		} else {
			s := st.RecentSession.Clone()
			s.InternalNotes = ""
			st.RecentSession = &s
		}
	}
	return st
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) kids(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, buildView(s.source.Snapshot(), true, s.now()))
}

func (s *Server) dad(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, buildView(s.source.Snapshot(), false, s.now()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// signals are the datastar signals the dashboard page binds to.
type signals struct {
	Version         uint64 `json:"version"`
	ProgressPercent int    `json:"progressPercent"`
	BlocksPlaced    string `json:"blocksPlaced"`
	BlocksPlanned   string `json:"blocksPlanned"`
	BuildTime       string `json:"buildTime"`
	CompletedZones  int    `json:"completedZones"`
	ZoneCount       int    `json:"zoneCount"`
	Streak          int    `json:"streak"`
}

type celebration struct {
	Celebration      string `json:"celebration"`
	MilestonePercent int    `json:"milestonePercent"`
}

func signalsFor(snap *reconcile.Snapshot, now time.Time) signals {
	kids := snap.ForKids()
	st := kids.Stats()
	return signals{
		Version:         kids.Version(),
		ProgressPercent: st.ProgressPercent(),
		BlocksPlaced:    stats.FormatCount(st.TotalBlocksPlaced),
		BlocksPlanned:   stats.FormatCount(st.TotalBlocksPlanned),
		BuildTime:       st.FormattedBuildTime(),
		CompletedZones:  st.CompletedZones,
		ZoneCount:       st.ZoneCount,
		Streak:          stats.Streak(kids.SessionDates(), now),
	}
}

// updates is the long-lived SSE endpoint. It sends the current signals, then
// new signals on every snapshot publish, plus a celebration whenever progress
// crosses a milestone.
func (s *Server) updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.source.Subscribe()
	defer s.source.Unsubscribe(updates)
	s.metrics.streamOpened()
	defer s.metrics.streamClosed()

	current := signalsFor(s.source.Snapshot(), s.now())
	if err := sse.MarshalAndPatchSignals(current); err != nil {
		return
	}
	prev := current.ProgressPercent

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			next := signalsFor(snap, s.now())
			if err := sse.MarshalAndPatchSignals(next); err != nil {
				_ = sse.ConsoleError(err)
				continue
			}
			if m, crossed := stats.CrossedMilestone(prev, next.ProgressPercent); crossed {
				s.logger.Info("milestone reached", "percent", m.Percent)
				if err := sse.MarshalAndPatchSignals(celebration{
					Celebration:      m.Message,
					MilestonePercent: m.Percent,
				}); err != nil {
					_ = sse.ConsoleError(err)
				}
			}
			prev = next.ProgressPercent
		}
	}
}
