package builtin

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	historymod "github.com/kiosk404/mosaic/internal/mosaic/service/history"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history/store/inmemory"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

type fixture struct {
	host    *plugin.Host
	journal *inmemory.InvocationStore
	out     *bytes.Buffer
}

func newFixture(t *testing.T, withJournal bool) *fixture {
	t.Helper()
	logger.SetLogger(logger.NewWithWriter(&bytes.Buffer{}, false))

	v := viper.New()
	v.Set("verbose", true)
	v.Set("plugins.sources", []string{"builtin:sys"})

	intree := NewInTreeRegistry()
	streams, _, out, _ := genericclioptions.NewTestIOStreams()
	h, err := (&plugin.Config{
		Sources:   intree.Sources(),
		Settings:  v,
		IOStreams: streams,
		InTree:    intree,
	}).Complete().New()
	require.NoError(t, err)

	f := &fixture{host: h, out: out}
	if withJournal {
		f.journal = inmemory.NewInvocationStore()
		require.NoError(t, h.ProvideService(historymod.HistoryToken.ServiceToken, f.journal))
	}
	_, err = h.Load(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) run(t *testing.T, name string, args plugin.Args) plugin.ExitStatus {
	t.Helper()
	f.out.Reset()
	status, _ := f.host.Execute(context.Background(), name, args)
	return status
}

func TestInTree_CommandsInLoadOrder(t *testing.T) {
	f := newFixture(t, true)

	var names []string
	for _, c := range f.host.ListCommands() {
		names = append(names, c.Plugin+"/"+c.Name)
	}
	assert.Equal(t, []string{"history/history", "sys/env", "sys/echo"}, names)
}

func TestHistory_JournalsInvocations(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, plugin.ExitSuccess, f.run(t, "echo", plugin.Args{Positional: []string{"hi"}}))
	assert.Equal(t, plugin.ExitFailure, f.run(t, "echo", plugin.Args{Flags: map[string]interface{}{"repeat": -1}}))
	assert.Equal(t, plugin.ExitUnknownCommand, f.run(t, "nope", plugin.Args{}))

	n, err := f.journal.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Equal(t, plugin.ExitSuccess, f.run(t, "history", plugin.Args{Flags: map[string]interface{}{"output": "json"}}))
	var got []*entity.Invocation
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "echo", got[0].Command)
	assert.False(t, got[0].Success)
	assert.Contains(t, got[0].Error, "--repeat must not be negative")
	assert.Equal(t, "sys", got[1].Plugin)
	assert.True(t, got[1].Success)

	require.Equal(t, plugin.ExitSuccess, f.run(t, "history", plugin.Args{Flags: map[string]interface{}{"failed": true, "limit": 5}}))
	assert.Contains(t, f.out.String(), "failed")
	assert.Contains(t, f.out.String(), "STARTED")

	assert.Equal(t, plugin.ExitFailure, f.run(t, "history", plugin.Args{Flags: map[string]interface{}{"output": "xml"}}))
}

func TestHistory_WithoutJournalOnlyHistoryFails(t *testing.T) {
	f := newFixture(t, false)

	report := f.host.Report()
	require.Len(t, report.Results, 2)
	assert.Equal(t, plugin.StatusFailed, report.Results[0].Status)
	assert.True(t, plugin.IsServiceNotFound(report.Results[0].Err))
	assert.Equal(t, plugin.StatusLoaded, report.Results[1].Status)

	assert.Equal(t, plugin.ExitSuccess, f.run(t, "echo", plugin.Args{Positional: []string{"still", "works"}}))
	assert.Equal(t, "still works\n", f.out.String())
}

func TestSys_Echo(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		args plugin.Args
		want string
	}{
		{name: "plain", args: plugin.Args{Positional: []string{"a", "b"}}, want: "a b\n"},
		{name: "upper", args: plugin.Args{Positional: []string{"a"}, Flags: map[string]interface{}{"upper": true}}, want: "A\n"},
		{name: "repeat and sep", args: plugin.Args{Positional: []string{"a", "b"}, Flags: map[string]interface{}{"repeat": 2, "sep": ","}}, want: "a,b\na,b\n"},
		{name: "zero repeat", args: plugin.Args{Positional: []string{"a"}, Flags: map[string]interface{}{"repeat": 0}}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, plugin.ExitSuccess, f.run(t, "echo", tt.args))
			assert.Equal(t, tt.want, f.out.String())
		})
	}
}

func TestSys_Env(t *testing.T) {
	f := newFixture(t, false)

	require.Equal(t, plugin.ExitSuccess, f.run(t, "env", plugin.Args{Flags: map[string]interface{}{"output": "json"}}))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
	assert.Equal(t, true, got["verbose"])
	assert.Equal(t, []interface{}{"builtin:sys"}, got["plugins.sources"])

	require.Equal(t, plugin.ExitSuccess, f.run(t, "env", plugin.Args{}))
	assert.Contains(t, f.out.String(), "plugins.sources")
}
