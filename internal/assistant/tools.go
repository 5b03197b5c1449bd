package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/stats"
)

// Tool names.
const (
	ToolLogSession       = "log_session"
	ToolUpdateZone       = "update_zone"
	ToolGetStats         = "get_stats"
	ToolToggleVisibility = "toggle_visibility"
)

// Tools is the fixed tool set offered to the model.
var Tools = []Tool{
	{
		Name:        ToolLogSession,
		Description: "Log a new build session to the database",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"blocks_placed":    {Type: "integer", Description: "Number of blocks placed this session"},
				"duration_minutes": {Type: "integer", Description: "Duration of the session in minutes"},
				"mood":             {Type: "string", Description: "Builder's mood", Enum: moodLabels()},
				"notes":            {Type: "string", Description: "Notes to share with the kids (optional)"},
				"zone_ids":         {Type: "string", Description: "Comma-separated zone IDs worked on"},
			},
			Required: []string{"blocks_placed", "duration_minutes", "mood"},
		},
	},
	{
		Name:        ToolUpdateZone,
		Description: "Update a zone's status, visibility, or teaser message",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"zone_id":        {Type: "string", Description: "The zone record ID"},
				"status":         {Type: "string", Description: "New status (optional)", Enum: []string{"locked", "building", "complete"}},
				"is_visible":     {Type: "boolean", Description: "Whether kids can see this zone (optional)"},
				"teaser_message": {Type: "string", Description: "Mystery teaser for locked zones (optional)"},
			},
			Required: []string{"zone_id"},
		},
	},
	{
		Name:        ToolGetStats,
		Description: "Get current project statistics",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}, Required: []string{}},
	},
	{
		Name:        ToolToggleVisibility,
		Description: "Toggle visibility of a zone or structure for the kids",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"type": {Type: "string", Description: "Type of item", Enum: []string{"zone", "structure"}},
				"id":   {Type: "string", Description: "Record ID"},
			},
			Required: []string{"type", "id"},
		},
	},
}

func moodLabels() []string {
	out := make([]string, len(model.Moods))
	for i, m := range model.Moods {
		out[i] = string(m)
	}
	return out
}

var validate = validator.New()

type logSessionInput struct {
	BlocksPlaced    int    `json:"blocks_placed" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Mood            string `json:"mood"`
	Notes           string `json:"notes" validate:"max=2000"`
	ZoneIDs         string `json:"zone_ids"`
}

type updateZoneInput struct {
	ZoneID    string  `json:"zone_id" validate:"required"`
	Status    *string `json:"status" validate:"omitempty,oneof=locked building complete"`
	IsVisible *bool   `json:"is_visible"`
	Teaser    *string `json:"teaser_message" validate:"omitempty,max=500"`
}

type toggleVisibilityInput struct {
	Type string `json:"type" validate:"required,oneof=zone structure"`
	ID   string `json:"id" validate:"required"`
}

// decodeInput decodes raw tool input into dst and validates it. Models
// sometimes quote numbers and booleans, so scalar types are coerced.
func decodeInput(raw json.RawMessage, dst any) error {
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// runTool executes one tool call and returns the text appended to the reply.
// Failures are reported in the text; the conversation continues.
func (a *Assistant) runTool(ctx context.Context, name string, input json.RawMessage) string {
	a.logger.Debug("tool call", "tool", name)

	var (
		out string
		err error
	)
	switch name {
	case ToolLogSession:
		out, err = a.logSession(ctx, input)
	case ToolUpdateZone:
		out, err = a.updateZone(ctx, input)
	case ToolGetStats:
		out = a.statsSummary()
	case ToolToggleVisibility:
		out, err = a.toggleVisibility(ctx, input)
	default:
		return "❌ Unknown tool: " + name
	}
	if err != nil {
		a.logger.Warn("tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("❌ %s failed: %v", name, err)
	}
	return out
}

func (a *Assistant) logSession(ctx context.Context, raw json.RawMessage) (string, error) {
	var in logSessionInput
	if err := decodeInput(raw, &in); err != nil {
		return "", err
	}

	s := model.NewSession(a.now())
	s.BlocksPlaced = in.BlocksPlaced
	s.DurationMinutes = in.DurationMinutes
	if mood, ok := model.ParseMood(in.Mood); ok {
		s.Mood = mood
	}
	s.Notes = in.Notes
	s.ZoneIDs = splitIDs(in.ZoneIDs)

	created, err := a.ops.CreateSession(ctx, s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ **Session Logged!**\n- Blocks: %s\n- Duration: %d minutes\n- Mood: %s %s\n\nThe kids will see this update! 🎉",
		stats.FormatCount(created.BlocksPlaced), created.DurationMinutes, created.Mood.Emoji(), created.Mood.ShortName()), nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *Assistant) updateZone(ctx context.Context, raw json.RawMessage) (string, error) {
	var in updateZoneInput
	if err := decodeInput(raw, &in); err != nil {
		return "", err
	}

	z, outcome, err := a.ops.EditZone(ctx, in.ZoneID, func(z *model.Zone) {
		if in.Status != nil {
			if status, ok := model.ParseZoneStatus(*in.Status); ok {
				z.Status = status
			}
		}
		if in.IsVisible != nil {
			z.Visible = *in.IsVisible
		}
		if in.Teaser != nil {
			z.Teaser = *in.Teaser
		}
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s updated: %s, %s.%s", z.FullDisplayName(), z.Status, visibility(z.Visible), localNote(outcome)), nil
}

func (a *Assistant) toggleVisibility(ctx context.Context, raw json.RawMessage) (string, error) {
	var in toggleVisibilityInput
	if err := decodeInput(raw, &in); err != nil {
		return "", err
	}

	if in.Type == "zone" {
		z, outcome, err := a.ops.ToggleZoneVisibility(ctx, in.ID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ %s is now %s.%s", z.FullDisplayName(), visibility(z.Visible), localNote(outcome)), nil
	}

	s, outcome, err := a.ops.ToggleStructureVisibility(ctx, in.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s is now %s.%s", s.DisplayName(), visibility(s.Visible), localNote(outcome)), nil
}

func visibility(visible bool) string {
	if visible {
		return "visible to the kids"
	}
	return "hidden from the kids"
}

func localNote(o reconcile.Outcome) string {
	if o == reconcile.SavedLocally {
		return " (saved on this machine only; the base has no column for it yet)"
	}
	return ""
}

func (a *Assistant) statsSummary() string {
	snap := a.ops.Snapshot()
	st := snap.Stats()
	recent := min(3, len(snap.Sessions()))

	return fmt.Sprintf("📊 **Project Stats**\n\n**Zones:** %d/%d complete\n**Blocks:** %s / %s\n**Progress:** %.1f%%\n**Build Time:** %s\n\n**Recent Sessions:** %d",
		st.CompletedZones, st.ZoneCount,
		stats.FormatCount(st.TotalBlocksPlaced), stats.FormatCount(st.TotalBlocksPlanned),
		st.OverallProgress*100,
		st.FormattedBuildTime(),
		recent)
}
