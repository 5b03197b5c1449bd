package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/stats"
)

// errNothingToChange is returned by set commands called without any change flag.
var errNothingToChange = errors.New("nothing to change: pass at least one flag")

// NewZoneCommand creates the zone command group.
func NewZoneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Change a zone's status, visibility or teaser",
	}
	cmd.AddCommand(newZoneSetCommand(), newZoneToggleCommand())
	return cmd
}

func newZoneSetCommand() *cobra.Command {
	var (
		status  string
		visible bool
		teaser  string
	)

	cmd := &cobra.Command{
		Use:   "set <zone-id>",
		Short: "Set fields on a zone",
		Long: `Set a zone's status, visibility or teaser.

When the base has no column for a value yet, the change is kept on this
machine and shown until the base can store it.`,
		Example: `  realm zone set recZ3 --status building
  realm zone set recZ4 --visible=false --teaser "Something big is coming..."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("status") && !flags.Changed("visible") && !flags.Changed("teaser") {
				return errNothingToChange
			}
			var parsed model.ZoneStatus
			if flags.Changed("status") {
				var ok bool
				if parsed, ok = model.ParseZoneStatus(status); !ok {
					return fmt.Errorf("unknown status %q (want locked, building or complete)", status)
				}
			}

			return editZone(cmd, args[0], func(z *model.Zone) {
				if flags.Changed("status") {
					z.Status = parsed
				}
				if flags.Changed("visible") {
					z.Visible = visible
				}
				if flags.Changed("teaser") {
					z.Teaser = teaser
				}
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Zone status (locked|building|complete)")
	cmd.Flags().BoolVar(&visible, "visible", true, "Whether the kids can see the zone")
	cmd.Flags().StringVar(&teaser, "teaser", "", "Text shown while the zone is locked")
	_ = cmd.RegisterFlagCompletionFunc("status", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(model.ZoneLocked), string(model.ZoneBuilding), string(model.ZoneComplete)}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newZoneToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <zone-id>",
		Short: "Show or hide a zone on the kids' dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editZone(cmd, args[0], func(z *model.Zone) { z.Visible = !z.Visible })
		},
	}
}

func editZone(cmd *cobra.Command, id string, edit func(*model.Zone)) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Reconciler.LoadAll(cmd.Context()); err != nil {
		return err
	}
	z, outcome, err := cmdCtx.Reconciler.EditZone(cmd.Context(), id, edit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(writeResult{Outcome: outcome.String(), Record: z})
	}
	reportOutcome(r, z.FullDisplayName(), outcome)
	r.Println(fmt.Sprintf("  status: %s, %s", z.Status, visibilityWord(z.Visible)))
	return nil
}

// NewStructureCommand creates the structure command group.
func NewStructureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Change a structure's visibility or descriptions",
	}
	cmd.AddCommand(newStructureSetCommand(), newStructureToggleCommand())
	return cmd
}

func newStructureSetCommand() *cobra.Command {
	var (
		visible  bool
		kidsText string
		realText string
	)

	cmd := &cobra.Command{
		Use:   "set <structure-id>",
		Short: "Set fields on a structure",
		Example: `  realm structure set recS1 --kids-text "A giant glass bubble!"
  realm structure set recS2 --visible`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("visible") && !flags.Changed("kids-text") && !flags.Changed("real-text") {
				return errNothingToChange
			}
			return editStructure(cmd, args[0], func(s *model.Structure) {
				if flags.Changed("visible") {
					s.Visible = visible
				}
				if flags.Changed("kids-text") {
					s.KidsText = kidsText
				}
				if flags.Changed("real-text") {
					s.RealText = realText
				}
			})
		},
	}

	cmd.Flags().BoolVar(&visible, "visible", true, "Whether the kids can see the structure")
	cmd.Flags().StringVar(&kidsText, "kids-text", "", "Description shown to the kids")
	cmd.Flags().StringVar(&realText, "real-text", "", "Description for parents only")
	return cmd
}

func newStructureToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <structure-id>",
		Short: "Show or hide a structure on the kids' dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editStructure(cmd, args[0], func(s *model.Structure) { s.Visible = !s.Visible })
		},
	}
}

func editStructure(cmd *cobra.Command, id string, edit func(*model.Structure)) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := cmdCtx.Reconciler.LoadAll(cmd.Context()); err != nil {
		return err
	}
	s, outcome, err := cmdCtx.Reconciler.EditStructure(cmd.Context(), id, edit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(writeResult{Outcome: outcome.String(), Record: s})
	}
	reportOutcome(r, s.DisplayName(), outcome)
	r.Println("  " + visibilityWord(s.Visible))
	return nil
}

// NewSessionCommand creates the session command group.
func NewSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Log build sessions",
	}
	cmd.AddCommand(newSessionLogCommand())
	return cmd
}

// SessionLogOptions holds options for `realm session log`.
type SessionLogOptions struct {
	Blocks        int
	Minutes       int
	Mood          string
	Notes         string
	InternalNotes string
	Zones         []string
	Structures    []string
	Hidden        bool
	Date          string
}

func newSessionLogCommand() *cobra.Command {
	opts := &SessionLogOptions{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a build session",
		Example: `  # An hour and a half, 1,200 blocks
  realm session log --blocks 1200 --minutes 90 --mood "on fire" --notes "Finished the dome"

  # Yesterday's session, linked to zone 2
  realm session log --blocks 300 --minutes 40 --date 2025-06-13 --zones recZ2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionLog(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Blocks, "blocks", 0, "Blocks placed")
	cmd.Flags().IntVar(&opts.Minutes, "minutes", 0, "Session length in minutes")
	cmd.Flags().StringVar(&opts.Mood, "mood", string(model.DefaultMood), "Mood label, short name or emoji")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Notes the kids can see")
	cmd.Flags().StringVar(&opts.InternalNotes, "internal-notes", "", "Notes for parents only")
	cmd.Flags().StringSliceVar(&opts.Zones, "zones", nil, "Linked zone ids")
	cmd.Flags().StringSliceVar(&opts.Structures, "structures", nil, "Linked structure ids")
	cmd.Flags().BoolVar(&opts.Hidden, "hidden", false, "Hide the session from the kids")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Session date (YYYY-MM-DD, default today)")
	_ = cmd.RegisterFlagCompletionFunc("mood", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(model.Moods))
		for i, m := range model.Moods {
			names[i] = strings.ToLower(m.ShortName())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// buildSession turns the flags into a session dated now unless --date is set.
func buildSession(opts *SessionLogOptions, now time.Time) (model.BuildSession, error) {
	if opts.Blocks < 0 || opts.Minutes < 0 {
		return model.BuildSession{}, fmt.Errorf("blocks and minutes must not be negative")
	}
	mood, ok := model.ParseMood(opts.Mood)
	if !ok {
		return model.BuildSession{}, fmt.Errorf("unknown mood %q", opts.Mood)
	}

	s := model.NewSession(now)
	if opts.Date != "" {
		d, err := time.Parse(model.SessionDateLayout, opts.Date)
		if err != nil {
			return model.BuildSession{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", opts.Date)
		}
		s.Date = d
	}
	s.BlocksPlaced = opts.Blocks
	s.DurationMinutes = opts.Minutes
	s.Mood = mood
	s.Notes = opts.Notes
	s.InternalNotes = opts.InternalNotes
	s.ZoneIDs = opts.Zones
	s.StructureIDs = opts.Structures
	s.Visible = !opts.Hidden
	return s, nil
}

func runSessionLog(cmd *cobra.Command, opts *SessionLogOptions) error {
	s, err := buildSession(opts, time.Now())
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	created, err := cmdCtx.Reconciler.CreateSession(cmd.Context(), s)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(writeResult{Outcome: reconcile.Committed.String(), Record: created})
	}
	r.Success(fmt.Sprintf("Session logged (%s)", created.ID))
	r.Println(fmt.Sprintf("  %s, %s, %s blocks %s", created.FormattedDate(), created.FormattedDuration(),
		stats.FormatCount(created.BlocksPlaced), created.Mood.Emoji()))
	return nil
}

// writeResult is the JSON shape of every write command.
type writeResult struct {
	Outcome string `json:"outcome"`
	Record  any    `json:"record"`
}

func visibilityWord(v bool) string {
	if v {
		return "visible to the kids"
	}
	return "hidden from the kids"
}
