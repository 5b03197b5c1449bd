package commands

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/state"
)

// NewOverridesCommand creates the overrides command.
func NewOverridesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "overrides",
		Short: "List values kept on this machine",
		Long: `List the values the base rejected and that are kept in the local state
database instead. They win over the base's values until a later write succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContextWithoutRemote(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			overrides, err := cmdCtx.Store.ListOverrides()
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(overrides)
			}

			rows := make([][]string, 0, len(overrides))
			for _, o := range overrides {
				text := o.Teaser
				if o.Kind == state.KindStructure {
					text = o.KidsText
				}
				rows = append(rows, []string{
					string(o.Kind),
					o.RecordID,
					strconv.FormatBool(o.Visible),
					o.Status,
					truncate(text, 32),
					o.Reason,
					o.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return listing{
				title:  "Local overrides",
				header: []string{"Kind", "Record", "Visible", "Status", "Text", "Reason", "Updated"},
				rows:   rows,
				data:   overrides,
			}.render(r)
		},
	}
}
