package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/assistant"
	"github.com/teamstreem/realm/internal/cli/config"
	"github.com/teamstreem/realm/internal/dashboard"
	"github.com/teamstreem/realm/internal/reconcile"
	"gopkg.in/yaml.v3"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var (
		force  bool
		baseID string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter realm.yaml",
		Long: `Write a commented realm.yaml with every setting at its default.

Credentials are not written to the file. Keep them in the environment:
  AIRTABLE_API_KEY   personal access token for the base
  ANTHROPIC_API_KEY  key for the chat assistant`,
		Example: `  # In the current directory
  realm init --base-id appXXXXXXXXXXXXXX

  # Overwrite an existing file
  realm init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			path, err := runInit(dir, baseID, force)
			if err != nil {
				return err
			}

			r := newRenderer(cmd, getConfig())
			r.Success("Wrote " + path)
			r.Println("")
			r.Println("Next steps:")
			r.Println("  1. export " + config.EnvAirtableToken + "=...")
			r.Println("  2. Run 'realm status' to load the build")
			r.Println("  3. Run 'realm serve' to start the kids' dashboard")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing realm.yaml")
	cmd.Flags().StringVar(&baseID, "base-id", "", "Airtable base id to write into the file")
	return cmd
}

// runInit writes dir/realm.yaml and returns its path.
func runInit(dir, baseID string, force bool) (string, error) {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, config.ConfigFileNames[0])
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	data, err := starterConfig(baseID)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// starterConfig renders the default settings as commented YAML.
func starterConfig(baseID string) ([]byte, error) {
	// pairs are (key, value, line comment) triples.
	section := func(pairs ...any) *yaml.Node {
		n := &yaml.Node{Kind: yaml.MappingNode}
		for i := 0; i+2 < len(pairs); i += 3 {
			key, value, note := pairs[i].(string), pairs[i+1], pairs[i+2].(string)
			var v yaml.Node
			_ = v.Encode(value)
			v.LineComment = note
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
		}
		return n
	}

	if baseID == "" {
		baseID = "appXXXXXXXXXXXXXX"
	}

	airtableNode := section(
		"base_id", baseID, "",
		"base_url", airtable.DefaultBaseURL, "",
		"timeout", airtable.DefaultTimeout.String(), "single-record calls",
		"list_timeout", airtable.DefaultListTimeout.String(), "whole paginated listings",
		"rate_limit", airtable.DefaultRateLimit, "requests per second",
	)
	assistantNode := section(
		"model", assistant.DefaultModel, "",
		"max_tokens", assistant.DefaultMaxTokens, "",
		"history_window", assistant.DefaultHistoryWindow, "turns sent with each message",
	)
	kidsNode := section(
		"session_limit", reconcile.DefaultKidsSessionLimit, "sessions on the kids' dashboard",
	)
	serveNode := section(
		"port", dashboard.DefaultPort, "",
		"refresh_interval", dashboard.DefaultRefreshInterval.String(), "",
		"watch", true, "pick up changes from other realm processes",
	)

	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, comment string, value *yaml.Node) {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment}, value)
	}
	add("airtable", "Family build base. The token comes from "+config.EnvAirtableToken+".", airtableNode)
	add("assistant", "Chat assistant. The key comes from "+config.EnvAnthropicKey+".", assistantNode)
	add("kids", "", kidsNode)
	add("serve", "Dashboard server", serveNode)

	var stateNode yaml.Node
	if err := stateNode.Encode(config.DefaultStateFile); err != nil {
		return nil, err
	}
	add("state_path", "Local overrides and chat history, relative to this file", &stateNode)

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return data, nil
}
