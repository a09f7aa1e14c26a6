package servers

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/config"
)

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, env)

	env, err = parseEnv(nil)
	require.NoError(t, err)
	assert.Nil(t, env)

	_, err = parseEnv([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseEnv([]string{"=1"})
	assert.Error(t, err)
}

// useTestApp points the commands at a fresh sqlite file. Each command opens
// and closes its own connection, so the registry has to outlive them.
func useTestApp(t *testing.T) {
	t.Helper()
	app := &appState.App{
		Config: &config.ConfigSchema{
			DBPath: filepath.Join(t.TempDir(), "mcpchat.db"),
			MCPServers: map[string]config.MCPServer{
				"seeded": {Command: []string{"uvx", "mcp-server-seeded"}},
			},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	prev := currentApp
	currentApp = func() *appState.App { return app }
	t.Cleanup(func() { currentApp = prev })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	forceFlag, descriptionFlag, categoryFlag = false, "", ""
	autoConnectFlag, disabledFlag, envFlag = false, false, nil

	var out bytes.Buffer
	ServersCmd.SetArgs(args)
	ServersCmd.SetOut(&out)
	ServersCmd.SetErr(io.Discard)
	ServersCmd.SetIn(strings.NewReader(stdin))
	err := ServersCmd.Execute()
	return out.String(), err
}

func TestServersAddAndList(t *testing.T) {
	useTestApp(t)

	out, err := execute(t, "", "add", "--description", "Files", "--category", "Storage",
		"--auto-connect", "--env", "DEBUG=1", "fs", "--", "npx", "-y", "server-filesystem")
	require.NoError(t, err)
	assert.Contains(t, out, "Server 'fs' added")

	_, err = execute(t, "", "add", "fs", "other")
	assert.Error(t, err, "names are unique")
	_, err = execute(t, "", "add", "bad", "x", "--env", "novalue")
	assert.Error(t, err)

	out, err = execute(t, "", "ls")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Command")
	assert.Contains(t, lines[1], "fs")
	assert.Contains(t, lines[1], "Storage")
	assert.Contains(t, lines[1], "npx -y server-filesystem")
	assert.Contains(t, lines[2], "seeded", "configured servers are seeded")
}

func TestServersRemove(t *testing.T) {
	useTestApp(t)

	_, err := execute(t, "", "add", "git", "uvx", "mcp-server-git")
	require.NoError(t, err)

	out, err := execute(t, "n\n", "rm", "git")
	require.NoError(t, err)
	assert.Contains(t, out, "Operation cancelled")

	out, err = execute(t, "", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "git")

	out, err = execute(t, "", "rm", "git", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Server removed successfully")
	assert.NotContains(t, out, "Are you sure")

	out, err = execute(t, "", "ls")
	require.NoError(t, err)
	assert.NotContains(t, out, "git")

	_, err = execute(t, "", "rm", "git", "--force")
	assert.Error(t, err)
}
