package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/airtable/airtabletest"
	"github.com/teamstreem/realm/internal/cli/config"
	"github.com/teamstreem/realm/internal/codec"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	root := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootFlagsReachConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvAirtableToken, airtabletest.Token)
	t.Setenv(config.EnvAirtableBaseID, "")
	t.Setenv(config.EnvAnthropicKey, "")

	remote := airtabletest.New(t)
	remote.Seed(airtable.TableZones, airtabletest.Rec("recZ1", map[string]any{
		codec.FieldZoneNumber: 1, codec.FieldZoneDisplay: "Zone 1: Ocean Floor",
		codec.FieldPlannedRollup: 100, codec.FieldPlacedRollup: 25,
	}))

	out, _, err := execute(t,
		"--base-url", remote.URL, "--base-id", airtabletest.BaseID,
		"--state", filepath.Join(t.TempDir(), "state.db"), "-o", "json", "status")
	require.NoError(t, err)

	var got struct {
		ProgressPercent int `json:"progress_percent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 25, got.ProgressPercent)
}

func TestRootVerboseNamesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "realm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: text\n"), 0o600))

	out, errOut, err := execute(t, "--config", path, "-v", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "realm v"+Version)
	assert.Contains(t, errOut, "Using config file: "+path)
}

func TestRootRejectsBadOutputMode(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := execute(t, "-o", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}

func TestCompletion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "realm")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{
		"version", "status", "zones", "structures", "materials", "sessions",
		"zone", "structure", "session", "overrides", "chat", "serve", "init", "completion",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
