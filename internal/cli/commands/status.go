package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/stats"
)

// StatusOutput is the JSON shape of `realm status`.
type StatusOutput struct {
	ProgressPercent int         `json:"progress_percent"`
	Streak          int         `json:"streak"`
	Stats           stats.Stats `json:"stats"`
	LoadedAt        time.Time   `json:"loaded_at"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	var kids bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show overall build progress",
		Long: `Load the whole build from the base and show the totals: blocks placed,
blocks planned, build time, finished zones and the current daily streak.`,
		Example: `  # Progress summary
  realm status

  # What the kids see
  realm status --kids

  # Machine-readable
  realm status -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, kids)
		},
	}

	cmd.Flags().BoolVar(&kids, "kids", false, "Only count what the kids can see")
	return cmd
}

func runStatus(cmd *cobra.Command, kids bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := loadSnapshot(cmd, cmdCtx.Reconciler, kids)
	if err != nil {
		return err
	}

	st := snap.Stats()
	streak := stats.Streak(snap.SessionDates(), time.Now())
	r := cmdCtx.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(StatusOutput{
			ProgressPercent: st.ProgressPercent(),
			Streak:          streak,
			Stats:           st,
			LoadedAt:        snap.LoadedAt(),
		})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Build Status"))
		r.Println("")
		for _, kv := range statusLines(st, streak) {
			r.Println(output.FormatKeyValue(kv[0], kv[1]))
		}
	default:
		r.Header(1, "Build Status")
		for _, kv := range statusLines(st, streak) {
			r.KeyValue(kv[0], kv[1])
		}
	}
	return nil
}

func statusLines(st stats.Stats, streak int) [][2]string {
	lines := [][2]string{
		{"Progress", fmt.Sprintf("%d%%", st.ProgressPercent())},
		{"Blocks placed", stats.FormatCount(st.TotalBlocksPlaced)},
		{"Blocks planned", stats.FormatCount(st.TotalBlocksPlanned)},
		{"Build time", st.FormattedBuildTime()},
		{"Zones complete", fmt.Sprintf("%d of %d", st.CompletedZones, st.ZoneCount)},
		{"Streak", fmt.Sprintf("%d days", streak)},
	}
	if st.ActiveZone != nil {
		lines = append(lines, [2]string{"Active zone", st.ActiveZone.FullDisplayName()})
	}
	if st.RecentSession != nil {
		s := st.RecentSession
		lines = append(lines, [2]string{"Last session",
			fmt.Sprintf("%s, %s, %s blocks %s", s.FormattedDate(), s.FormattedDuration(), stats.FormatCount(s.BlocksPlaced), s.Mood.Emoji())})
	}
	return lines
}

// loadSnapshot loads the full or kid-filtered snapshot.
func loadSnapshot(cmd *cobra.Command, rec *reconcile.Reconciler, kids bool) (*reconcile.Snapshot, error) {
	if kids {
		snap, err := rec.LoadKids(cmd.Context())
		if err != nil {
			return nil, err
		}
		return snap.ForKids(), nil
	}
	return rec.LoadAll(cmd.Context())
}
