package plugin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/logger"
)

func TestParseSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("name: x\n"), 0o644))

	tests := []struct {
		source  string
		want    ParsedSource
		wantErr bool
	}{
		{source: "builtin:history", want: ParsedSource{Scheme: SchemeBuiltin, Ref: "history"}},
		{source: "so:/opt/plugins/git.so", want: ParsedSource{Scheme: SchemeSO, Ref: "/opt/plugins/git.so"}},
		{source: "manifest:./greet", want: ParsedSource{Scheme: SchemeManifest, Ref: "./greet"}},
		{source: "/opt/plugins/git.so", want: ParsedSource{Scheme: SchemeSO, Ref: "/opt/plugins/git.so"}},
		{source: "plugins/greet.yaml", want: ParsedSource{Scheme: SchemeManifest, Ref: "plugins/greet.yaml"}},
		{source: "plugins/greet.YML", want: ParsedSource{Scheme: SchemeManifest, Ref: "plugins/greet.YML"}},
		{source: dir, want: ParsedSource{Scheme: SchemeManifest, Ref: dir}},
		{source: "  builtin:sys  ", want: ParsedSource{Scheme: SchemeBuiltin, Ref: "sys"}},
		{source: "", wantErr: true},
		{source: "builtin:", wantErr: true},
		{source: "/no/such/thing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := ParseSource(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCandidate(t *testing.T) {
	p := newFake("alpha")
	var iface Plugin = p

	tests := []struct {
		name    string
		mod     symbolModule
		want    interface{}
		wantErr bool
	}{
		{name: "plugin value", mod: symbolModule{SymbolPlugin: p}, want: p},
		{name: "pointer to interface variable", mod: symbolModule{SymbolPlugin: &iface}, want: p},
		{name: "factory", mod: symbolModule{SymbolNewPlugin: Factory(func() (Plugin, error) { return p, nil })}, want: p},
		{name: "plain constructor", mod: symbolModule{SymbolNewPlugin: func() Plugin { return p }}, want: p},
		{name: "constructor with error", mod: symbolModule{SymbolNewPlugin: func() (Plugin, error) { return nil, errors.New("x") }}, wantErr: true},
		{name: "wrong constructor type", mod: symbolModule{SymbolNewPlugin: func(int) Plugin { return p }}, wantErr: true},
		{name: "nothing exported", mod: symbolModule{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCandidate(tt.mod)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManifestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`
name: greet
version: 0.3.0
commands:
  - name: hello
    exec: ["echo", "hi"]
`), 0o644))

	mod, err := ManifestLoader{}.Load(context.Background(), dir)
	require.NoError(t, err)
	cand, err := extractCandidate(mod)
	require.NoError(t, err)

	d, ok := cand.(*Descriptor)
	require.True(t, ok)
	assert.Equal(t, dir, d.Dir)
	assert.Equal(t, "greet", d.Raw["name"])

	_, err = ManifestLoader{}.Load(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [unterminated"), 0o644))
	_, err = ManifestLoader{}.Load(context.Background(), bad)
	assert.Error(t, err)
}

func TestManifestLoader_BareNumericVersionKeepsText(t *testing.T) {
	v := newTestValidator(t)
	tests := []struct {
		yaml string
		want string
	}{
		{yaml: "1.10", want: "1.10"},
		{yaml: "1.0", want: "1.0"},
		{yaml: "2", want: "2"},
		{yaml: `"1.20"`, want: "1.20"},
	}
	for _, tt := range tests {
		t.Run(tt.yaml, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "greet.yaml")
			require.NoError(t, os.WriteFile(path, []byte("name: greet\nversion: "+tt.yaml+"\ncommands: []\n"), 0o644))

			mod, err := ManifestLoader{}.Load(context.Background(), path)
			require.NoError(t, err)
			cand, err := extractCandidate(mod)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cand.(*Descriptor).Raw["version"])

			got, errs := v.Validate(cand)
			require.Empty(t, errs)
			assert.Equal(t, tt.want, got.Manifest.Version)
		})
	}
}

func TestManifestLoader_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	mod, err := ManifestLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	cand, err := extractCandidate(mod)
	require.NoError(t, err)
	assert.Empty(t, cand.(*Descriptor).Raw)
}

func TestDeclarativePlugin_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	captureLog(t)

	dir := t.TempDir()
	hookLog := filepath.Join(dir, "hooks.log")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"), []byte(`
name: greet
version: "1.0"
description: Greets people
requires: ">= 1.0"
commands:
  - name: hello
    description: Print a greeting
    flags:
      - name: who
        type: string
        default: world
      - name: dry-run
        type: bool
    exec: ["sh", "-c", "echo hello $MOSAIC_FLAG_WHO dry=$MOSAIC_FLAG_DRY_RUN from $MOSAIC_PLUGIN \"$@\"", "sh"]
  - name: fail
    exec: ["sh", "-c", "exit 3"]
hooks:
  postRun: ["sh", "-c", "echo $MOSAIC_EVENT $MOSAIC_COMMAND $MOSAIC_SUCCESS >> hooks.log"]
`), 0o644))

	streams, _, out, _ := genericclioptions.NewTestIOStreams()
	cfg := &Config{
		Sources:   []string{filepath.Join(dir, "greet.yaml")},
		Logger:    logger.NewWithWriter(&bytes.Buffer{}, false),
		IOStreams: streams,
	}
	h, err := cfg.Complete().New()
	require.NoError(t, err)
	report, err := h.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Loaded, 1, "%+v", report.Results)
	assert.Equal(t, "Greets people", report.Loaded[0].Manifest.Description)

	status, err := h.Execute(context.Background(), "hello", Args{
		Positional: []string{"!"},
		Flags:      map[string]interface{}{"who": "mosaic", "dry-run": true},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, status)
	assert.Equal(t, "hello mosaic dry=true from greet !\n", out.String())

	status, err = h.Execute(context.Background(), "fail", Args{})
	assert.Equal(t, ExitFailure, status)
	assert.Error(t, err)

	data, err := os.ReadFile(hookLog)
	require.NoError(t, err)
	assert.Equal(t, "postRun hello true\npostRun fail false\n", string(data))
}

func TestFlagEnv(t *testing.T) {
	env := flagEnv(map[string]interface{}{
		"tags":    []string{"a", "b"},
		"dry-run": false,
		"count":   2,
		"unset":   nil,
	})
	assert.Equal(t, []string{
		"MOSAIC_FLAG_COUNT=2",
		"MOSAIC_FLAG_DRY_RUN=false",
		"MOSAIC_FLAG_TAGS=a,b",
		"MOSAIC_FLAG_UNSET=",
	}, env)
}
