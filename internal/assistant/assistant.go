// Package assistant is the natural-language command surface. It forwards chat
// turns to the Anthropic messages API and maps the four tool calls the model
// may issue onto reconciler operations.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teamstreem/realm/internal/model"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/state"
)

// DefaultHistoryWindow is how many prior turns are sent with each message.
const DefaultHistoryWindow = 20

// Messenger sends a request to the model.
type Messenger interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Operations are the reconciler calls the tools map onto.
type Operations interface {
	Snapshot() *reconcile.Snapshot
	CreateSession(ctx context.Context, s model.BuildSession) (model.BuildSession, error)
	EditZone(ctx context.Context, id string, edit func(*model.Zone)) (model.Zone, reconcile.Outcome, error)
	ToggleZoneVisibility(ctx context.Context, id string) (model.Zone, reconcile.Outcome, error)
	ToggleStructureVisibility(ctx context.Context, id string) (model.Structure, reconcile.Outcome, error)
}

// History persists chat turns.
type History interface {
	AppendChatTurn(turn state.ChatTurn) (state.ChatTurn, error)
	RecentChatTurns(limit int) ([]state.ChatTurn, error)
	ClearChatTurns() error
}

// Config configures an Assistant.
type Config struct {
	Messenger     Messenger
	Operations    Operations
	History       History
	HistoryWindow int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Assistant holds one persistent conversation.
type Assistant struct {
	messenger Messenger
	ops       Operations
	history   History
	window    int
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	a := &Assistant{
		messenger: cfg.Messenger,
		ops:       cfg.Operations,
		history:   cfg.History,
		window:    cfg.HistoryWindow,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if a.window <= 0 {
		a.window = DefaultHistoryWindow
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Send records text as a user turn, asks the model, runs any tool calls and
// records and returns the reply. Tool results follow the model's text.
// The user turn is kept even when the request fails.
func (a *Assistant) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty message")
	}

	if _, err := a.history.AppendChatTurn(state.ChatTurn{
		Role:      state.RoleUser,
		Content:   text,
		CreatedAt: a.now(),
	}); err != nil {
		return "", fmt.Errorf("save message: %w", err)
	}

	turns, err := a.history.RecentChatTurns(a.window)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	// The API rejects empty content, and the conversation must open with a user turn.
	messages := make([]Message, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(messages) == 0 && t.Role != state.RoleUser {
			continue
		}
		messages = append(messages, Message{Role: string(t.Role), Content: t.Content})
	}

	snap := a.ops.Snapshot()
	system, err := renderSystemPrompt(snap.Stats(), snap.Zones())
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	resp, err := a.messenger.Send(ctx, Request{
		System:   system,
		Messages: messages,
		Tools:    Tools,
	})
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.WriteString(block.Text)
		case "tool_use":
			if reply.Len() > 0 {
				reply.WriteString("\n\n")
			}
			reply.WriteString(a.runTool(ctx, block.Name, block.Input))
		}
	}

	content := reply.String()
	if strings.TrimSpace(content) == "" {
		a.logger.Warn("model returned an empty reply", "stop_reason", resp.StopReason)
		return "", nil
	}
	if _, err := a.history.AppendChatTurn(state.ChatTurn{
		Role:      state.RoleAssistant,
		Content:   content,
		CreatedAt: a.now(),
	}); err != nil {
		return content, fmt.Errorf("save reply: %w", err)
	}
	return content, nil
}

// History returns up to limit most recent turns, oldest first.
func (a *Assistant) History(limit int) ([]state.ChatTurn, error) {
	return a.history.RecentChatTurns(limit)
}

// ClearHistory forgets the whole conversation.
func (a *Assistant) ClearHistory() error {
	return a.history.ClearChatTurns()
}
