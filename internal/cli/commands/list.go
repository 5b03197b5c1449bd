package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/stats"
)

// listing renders one record collection as a table or JSON.
type listing struct {
	title  string
	header []string
	rows   [][]string
	data   any
}

func (l listing) render(r *output.Renderer) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(l.data)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("%s (%d total)", l.title, len(l.rows))))
		r.Println("")
	default:
		r.Header(1, fmt.Sprintf("%s (%d total)", l.title, len(l.rows)))
	}
	r.Table(l.header, l.rows)
	return nil
}

// newListCommand wraps the load-then-render flow shared by every list command.
func newListCommand(use, short string, kidsFlag bool, build func(snap *reconcile.Snapshot, kids bool) listing) *cobra.Command {
	var kids bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := loadSnapshot(cmd, cmdCtx.Reconciler, kids)
			if err != nil {
				return err
			}
			return build(snap, kids).render(cmdCtx.Renderer)
		},
	}
	if kidsFlag {
		cmd.Flags().BoolVar(&kids, "kids", false, "Only show what the kids can see")
	}
	return cmd
}

// NewZonesCommand creates the zones command.
func NewZonesCommand() *cobra.Command {
	cmd := newListCommand("zones", "List zones with progress and status", true, func(snap *reconcile.Snapshot, kids bool) listing {
		zones := snap.Zones()
		rows := make([][]string, 0, len(zones))
		for i, z := range zones {
			name := z.DisplayName()
			if kids {
				z.InternalName = ""
				zones[i] = z
			} else if z.InternalName != "" {
				name += " (" + z.InternalName + ")"
			}
			rows = append(rows, []string{
				z.ID,
				fmt.Sprintf("%d", z.Number),
				z.Emoji() + " " + name,
				z.Status.Label(),
				fmt.Sprintf("%d%%", stats.Percent(z.Progress())),
				fmt.Sprintf("%s / %s", stats.FormatCount(z.BlocksPlaced), stats.FormatCount(z.BlocksPlanned)),
				fmt.Sprintf("%d / %d", z.LayersComplete, z.TotalLayers),
				visibleMark(z.Visible),
			})
		}
		return listing{
			title:  "Zones",
			header: []string{"ID", "#", "Name", "Status", "Progress", "Blocks", "Layers", "Visible"},
			rows:   rows,
			data:   zones,
		}
	})
	cmd.Example = `  # All zones
  realm zones

  # Only the zones the kids can see
  realm zones --kids`
	return cmd
}

// NewStructuresCommand creates the structures command.
func NewStructuresCommand() *cobra.Command {
	return newListCommand("structures", "List structures with progress", true, func(snap *reconcile.Snapshot, kids bool) listing {
		structures := snap.Structures()
		rows := make([][]string, 0, len(structures))
		for i, s := range structures {
			desc := s.KidsDescription()
			if kids {
				s.InternalName = ""
				s.RealText = ""
				structures[i] = s
			} else if s.RealText != "" {
				desc = s.RealText
			}
			rows = append(rows, []string{
				s.ID,
				s.Type.Icon() + " " + s.DisplayName(),
				fmt.Sprintf("%d%%", stats.Percent(s.Progress())),
				stats.FormatCount(s.BlocksRemainingCount()),
				truncate(desc, 48),
				visibleMark(s.Visible),
			})
		}
		return listing{
			title:  "Structures",
			header: []string{"ID", "Name", "Progress", "Remaining", "Description", "Visible"},
			rows:   rows,
			data:   structures,
		}
	})
}

// NewMaterialsCommand creates the materials command.
func NewMaterialsCommand() *cobra.Command {
	return newListCommand("materials", "List planned materials", false, func(snap *reconcile.Snapshot, _ bool) listing {
		materials := snap.Materials()
		rows := make([][]string, 0, len(materials))
		for _, m := range materials {
			rows = append(rows, []string{
				m.ID,
				m.Name,
				m.Category,
				stats.FormatCount(m.QtyPlaced()),
				stats.FormatCount(m.QtyPlanned),
				fmt.Sprintf("%d%%", stats.Percent(m.Progress())),
			})
		}
		return listing{
			title:  "Materials",
			header: []string{"ID", "Block", "Category", "Placed", "Planned", "Progress"},
			rows:   rows,
			data:   materials,
		}
	})
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand() *cobra.Command {
	var limit int

	cmd := newListCommand("sessions", "List build sessions, newest first", true, func(snap *reconcile.Snapshot, kids bool) listing {
		sessions := snap.Sessions()
		if limit > 0 && len(sessions) > limit {
			sessions = sessions[:limit]
		}
		rows := make([][]string, 0, len(sessions))
		for i, s := range sessions {
			notes := s.Notes
			if kids {
				s.InternalNotes = ""
				sessions[i] = s
			} else if s.InternalNotes != "" {
				notes = strings.TrimSpace(notes + " [" + s.InternalNotes + "]")
			}
			rows = append(rows, []string{
				s.ID,
				s.FormattedDate(),
				s.FormattedDuration(),
				stats.FormatCount(s.BlocksPlaced),
				s.Mood.Emoji() + " " + s.Mood.ShortName(),
				truncate(notes, 48),
			})
		}
		return listing{
			title:  "Sessions",
			header: []string{"ID", "Date", "Duration", "Blocks", "Mood", "Notes"},
			rows:   rows,
			data:   sessions,
		}
	})
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many sessions (0 for all)")
	return cmd
}

func visibleMark(v bool) string {
	if v {
		return "yes"
	}
	return "hidden"
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
