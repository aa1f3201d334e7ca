package plugin

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/logger"
)

// fakePlugin implements Plugin and every optional interface; nil funcs are
// no-ops.
type fakePlugin struct {
	manifest   Manifest
	commands   []CommandDefinition
	hooks      map[HookEvent]HookHandler
	register   func(api PluginAPI) error
	activate   func(ctx context.Context, api PluginAPI) error
	deactivate func(ctx context.Context) error
}

func (p *fakePlugin) Manifest() Manifest                { return p.manifest }
func (p *fakePlugin) Commands() []CommandDefinition     { return p.commands }
func (p *fakePlugin) Hooks() map[HookEvent]HookHandler { return p.hooks }

func (p *fakePlugin) Register(api PluginAPI) error {
	if p.register == nil {
		return nil
	}
	return p.register(api)
}

func (p *fakePlugin) Activate(ctx context.Context, api PluginAPI) error {
	if p.activate == nil {
		return nil
	}
	return p.activate(ctx, api)
}

func (p *fakePlugin) Deactivate(ctx context.Context) error {
	if p.deactivate == nil {
		return nil
	}
	return p.deactivate(ctx)
}

func newFake(name string, cmds ...CommandDefinition) *fakePlugin {
	return &fakePlugin{
		manifest: Manifest{Name: name, Version: "1.0.0"},
		commands: cmds,
	}
}

func cmd(name string, run CommandHandler) CommandDefinition {
	if run == nil {
		run = func(*ExecutionContext, Args) error { return nil }
	}
	return CommandDefinition{Name: name, Description: name + " command", Run: run}
}

// captureLog routes the package logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := logger.Std()
	logger.SetLogger(logger.NewWithWriter(buf, true))
	t.Cleanup(func() { logger.SetLogger(prev) })
	return buf
}

// newTestHost builds a host whose builtin: sources are served from fakes.
// Sources are "builtin:<name>" for each key of plugins, in the given order.
func newTestHost(t *testing.T, atomic bool, order []string, plugins map[string]Plugin) (*Host, *bytes.Buffer) {
	t.Helper()
	intree := NewInTreeRegistry()
	sources := make([]string, 0, len(order))
	for _, key := range order {
		p := plugins[key]
		intree.MustRegister(key, func() (Plugin, error) { return p, nil })
		sources = append(sources, SchemeBuiltin+":"+key)
	}

	streams, _, out, _ := genericclioptions.NewTestIOStreams()
	cfg := &Config{
		Sources:            sources,
		Logger:             logger.NewWithWriter(&bytes.Buffer{}, true),
		IOStreams:          streams,
		AtomicRegistration: atomic,
		InTree:             intree,
	}
	h, err := cfg.Complete().New()
	require.NoError(t, err)
	return h, out
}
