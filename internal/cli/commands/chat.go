package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/assistant"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/state"
)

// ChatOptions holds options for the chat command.
type ChatOptions struct {
	Message string
	Clear   bool
	History int
}

// NewChatCommand creates the chat command.
func NewChatCommand() *cobra.Command {
	opts := &ChatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the build assistant",
		Long: `Chat with the build assistant. It can log sessions, update zones, toggle
what the kids can see and report progress. The conversation is kept in the
local state database.

Without --message an interactive prompt starts. Type .help for commands.`,
		Example: `  # Interactive
  realm chat

  # One message
  realm chat -m "We placed 1200 blocks in 90 minutes, zone 2, on fire!"

  # Show the last 10 turns
  realm chat --history 10

  # Start over
  realm chat --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "Send one message and exit")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Delete the conversation history")
	cmd.Flags().IntVar(&opts.History, "history", 0, "Print the last N turns and exit")
	cmd.Flags().String("model", "", "Model id (default: "+assistant.DefaultModel+")")

	return cmd
}

func runChat(cmd *cobra.Command, opts *ChatOptions) error {
	// History commands only need the local store.
	if opts.Clear || opts.History > 0 {
		cmdCtx, cleanup, err := NewCommandContextWithoutRemote(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		a := assistant.New(assistant.Config{History: cmdCtx.Store, Logger: cmdCtx.Logger})
		if opts.Clear {
			if err := a.ClearHistory(); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("Conversation cleared")
			return nil
		}
		turns, err := a.History(opts.History)
		if err != nil {
			return err
		}
		return printTurns(cmdCtx.Renderer, turns)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newAssistant(cmdCtx)
	if err != nil {
		return err
	}
	if _, err := cmdCtx.Reconciler.LoadAll(cmd.Context()); err != nil {
		return err
	}

	if opts.Message != "" {
		reply, err := a.Send(cmd.Context(), opts.Message)
		if err != nil {
			return err
		}
		cmdCtx.Renderer.Println(reply)
		return nil
	}
	return runChatREPL(cmd.Context(), cmd, cmdCtx, a)
}

func newAssistant(cmdCtx *CommandContext) (*assistant.Assistant, error) {
	cfg := cmdCtx.Cfg.Assistant
	client, err := assistant.NewClient(assistant.ClientConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		Logger:    cmdCtx.Logger,
	})
	if errors.Is(err, assistant.ErrMissingAPIKey) {
		return nil, fmt.Errorf("%w\nHint: set ANTHROPIC_API_KEY or assistant.api_key in realm.yaml", err)
	}
	if err != nil {
		return nil, err
	}
	return assistant.New(assistant.Config{
		Messenger:     client,
		Operations:    cmdCtx.Reconciler,
		History:       cmdCtx.Store,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        cmdCtx.Logger,
	}), nil
}

func printTurns(r *output.Renderer, turns []state.ChatTurn) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(turns)
	}
	if len(turns) == 0 {
		r.Println(r.Muted("(no conversation yet)"))
		return nil
	}
	for _, t := range turns {
		who := "You"
		if t.Role == state.RoleAssistant {
			who = "Assistant"
		}
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatHeader(3, fmt.Sprintf("%s (%s)", who, t.CreatedAt.Local().Format("Jan 2 15:04"))))
		} else {
			r.Println(r.Styles().Bold.Render(who) + " " + r.Muted(t.CreatedAt.Local().Format("Jan 2 15:04")))
		}
		r.Println(t.Content)
		r.Println("")
	}
	return nil
}

const chatPrompt = "realm> "

func runChatREPL(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, a *assistant.Assistant) error {
	historyFile := ""
	if cmdCtx.Cfg.StatePath != state.MemoryPath {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "chat_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          chatPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(chatDotCommands()...),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Println("Build assistant. Type .help for commands, .quit to exit")
	r.Println("")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			quit, err := handleChatDotCommand(r, a, line)
			if err != nil {
				r.Error(err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := a.Send(ctx, line)
		if err != nil {
			r.Error(err.Error())
			continue
		}
		r.Println(reply)
		r.Println("")
	}
}

func chatDotCommands() []readline.PrefixCompleterInterface {
	return []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
}

// handleChatDotCommand runs a REPL command and reports whether to quit.
func handleChatDotCommand(r *output.Renderer, a *assistant.Assistant, line string) (bool, error) {
	switch line {
	case ".quit", ".exit":
		return true, nil
	case ".clear":
		if err := a.ClearHistory(); err != nil {
			return false, err
		}
		r.Success("Conversation cleared")
	case ".history":
		turns, err := a.History(assistant.DefaultHistoryWindow)
		if err != nil {
			return false, err
		}
		return false, printTurns(r, turns)
	case ".help":
		r.Println("  .history  show recent turns")
		r.Println("  .clear    forget the conversation")
		r.Println("  .quit     leave")
	default:
		return false, fmt.Errorf("unknown command %s (try .help)", line)
	}
	return false, nil
}
