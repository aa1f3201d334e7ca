package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

type result struct {
	code   int
	out    string
	errOut string
}

// run executes one front-end run against an isolated home directory.
func run(t *testing.T, args ...string) result {
	t.Helper()
	streams, _, out, errOut := genericclioptions.NewTestIOStreams()
	code := Run(context.Background(), args, streams)
	return result{code: code, out: out.String(), errOut: errOut.String()}
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MOSAIC_HISTORY_STORE", "memory")
	return home
}

func TestRun_BuiltinCommand(t *testing.T) {
	isolate(t)

	r := run(t, "echo", "--upper", "-r", "2", "hi", "there")
	assert.Equal(t, 0, r.code, r.errOut)
	assert.Equal(t, "HI THERE\nHI THERE\n", r.out)
	assert.NotContains(t, r.errOut, "Warning:")
}

func TestRun_ExitCodes(t *testing.T) {
	isolate(t)

	r := run(t, "deploy", "--env", "prod")
	assert.Equal(t, int(plugin.ExitUnknownCommand), r.code)
	assert.Contains(t, r.errOut, `unknown command`)
	assert.Contains(t, r.errOut, "Run 'mosaic commands'")

	r = run(t, "echo", "--repeat=-1", "x")
	assert.Equal(t, int(plugin.ExitFailure), r.code)
	assert.Contains(t, r.errOut, "--repeat must not be negative")

	r = run(t, "--history.store=redis", "echo")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.errOut, `invalid history store "redis"`)
}

func TestRun_NoArgsPrintsHelp(t *testing.T) {
	isolate(t)

	r := run(t)
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.out, "Plugin Commands:")
	assert.Contains(t, r.out, "Host Commands:")
	assert.Contains(t, r.out, "echo")
}

func TestRun_SkippedSourcesWarnOnce(t *testing.T) {
	isolate(t)

	r := run(t, "--plugins.sources=ftp:remote,builtin:missing", "echo", "ok")
	assert.Equal(t, 0, r.code)
	assert.Equal(t, "ok\n", r.out)
	assert.Contains(t, r.errOut, "Warning: 2 of 4 plugin sources loaded, 2 skipped")
	assert.Contains(t, r.errOut, "ftp:remote")
	assert.Contains(t, r.errOut, "builtin:missing")

	r = run(t, "--plugins.sources=ftp:remote", "plugins", "-o", "json")
	require.Equal(t, 0, r.code, r.errOut)
	var views []sourceView
	require.NoError(t, json.Unmarshal([]byte(r.out), &views))
	require.Len(t, views, 3)
	assert.Equal(t, "builtin:history", views[0].Source)
	assert.Equal(t, "1.0.0", views[0].Version)
	assert.Equal(t, "ftp:remote", views[2].Source)
	assert.Equal(t, "failed", views[2].Status)
	assert.NotEmpty(t, views[2].Error)
}

func TestRun_ConfigFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".mosaic"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".mosaic", "mosaic.yaml"), []byte(`
plugins:
  deny: [sys]
`), 0o644))

	r := run(t, "echo", "hi")
	assert.Equal(t, int(plugin.ExitUnknownCommand), r.code)

	explicit := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("plugins:\n  deny: []\n"), 0o644))
	r = run(t, "--config", explicit, "echo", "hi")
	assert.Equal(t, 0, r.code, r.errOut)

	r = run(t, "--config", filepath.Join(home, "missing.yaml"), "echo", "hi")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.errOut, "read config")
}

func TestRun_HistoryAcrossRuns(t *testing.T) {
	isolate(t)
	t.Setenv("MOSAIC_HISTORY_STORE", "boltdb")
	t.Setenv("MOSAIC_HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))

	require.Equal(t, 0, run(t, "echo", "one").code)
	require.Equal(t, int(plugin.ExitFailure), run(t, "echo", "-r", "-1").code)

	r := run(t, "history", "-o", "json", "--limit", "5")
	require.Equal(t, 0, r.code, r.errOut)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(r.out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "echo", got[0]["command"])
	assert.Equal(t, false, got[0]["success"])
}

func TestRun_HostCommands(t *testing.T) {
	isolate(t)

	r := run(t, "commands", "-o", "json")
	require.Equal(t, 0, r.code, r.errOut)
	var views []commandView
	require.NoError(t, json.Unmarshal([]byte(r.out), &views))
	var names []string
	for _, v := range views {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"history", "env", "echo"}, names)

	r = run(t, "commands")
	assert.Contains(t, r.out, "--limit")

	r = run(t, "version", "-o", "json")
	require.Equal(t, 0, r.code)
	assert.Contains(t, r.out, "gitVersion")

	r = run(t, "options")
	require.Equal(t, 0, r.code)
	assert.Contains(t, r.out, "Plugins flags:")
	assert.Contains(t, r.out, "--history.store")

	r = run(t, "commands", "-o", "yaml")
	assert.Equal(t, 1, r.code)
}

func TestRun_ManifestPlugin(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	isolate(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(`
name: ops
version: 0.3.0
commands:
  - name: deploy
    description: Deploy the service
    flags:
      - name: env
        shorthand: e
        default: dev
      - name: replicas
        type: int
        required: true
      - name: verbose-deploy
        shorthand: v
        type: bool
    exec: ["sh", "-c", "echo deploying to $MOSAIC_FLAG_ENV x$MOSAIC_FLAG_REPLICAS \"$@\"", "sh"]
`), 0o644))

	r := run(t, "--plugins.sources="+dir, "deploy", "-e", "prod", "--replicas", "3", "api")
	assert.Equal(t, 0, r.code, r.errOut)
	assert.Equal(t, "deploying to prod x3 api\n", r.out)

	r = run(t, "--plugins.sources="+dir, "deploy")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.errOut, "replicas")
}

func TestCollectFlags(t *testing.T) {
	defs := []plugin.FlagDef{
		{Name: "name", Type: plugin.FlagString},
		{Name: "count", Type: plugin.FlagInt, Default: 2},
		{Name: "ratio", Type: plugin.FlagFloat, Default: "0.5"},
		{Name: "tags", Type: plugin.FlagStringSlice, Default: []interface{}{"a"}},
		{Name: "force", Shorthand: "v", Type: plugin.FlagBool},
	}
	global := pflag.NewFlagSet("global", pflag.ContinueOnError)
	global.BoolP("verbose", "v", false, "")

	cmd := &cobra.Command{Use: "x"}
	for _, def := range defs {
		addFlag(cmd, def, global)
	}
	assert.Nil(t, cmd.Flags().ShorthandLookup("v"))

	require.NoError(t, cmd.Flags().Parse([]string{"--force"}))
	got := collectFlags(cmd.Flags(), defs)
	assert.Equal(t, map[string]interface{}{
		"count": 2,
		"ratio": 0.5,
		"tags":  []string{"a"},
		"force": true,
	}, got)
}

func TestPrintLoadWarnings(t *testing.T) {
	var buf bytes.Buffer
	printLoadWarnings(&buf, &plugin.LoadReport{Results: []plugin.SourceResult{{Source: "a", Status: plugin.StatusLoaded}}})
	assert.Empty(t, buf.String())
}
