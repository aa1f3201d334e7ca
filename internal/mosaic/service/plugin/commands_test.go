package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistry_FirstRegistrationWins(t *testing.T) {
	logs := captureLog(t)
	r := NewCommandRegistry()

	var calledA, calledB bool
	require.NoError(t, r.Add(cmd("deploy", func(*ExecutionContext, Args) error { calledA = true; return nil }), "alpha"))

	err := r.Add(cmd("deploy", func(*ExecutionContext, Args) error { calledB = true; return nil }), "beta-plugin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNameConflict))
	assert.Equal(t, KindNameConflict, KindOf(err))
	assert.Contains(t, logs.String(), "beta-plugin")
	assert.Contains(t, logs.String(), "conflicts with plugin")

	entry, ok := r.Resolve("deploy")
	require.True(t, ok)
	assert.Equal(t, "alpha", entry.Plugin)
	require.NoError(t, entry.Definition.Run(nil, Args{}))
	assert.True(t, calledA)
	assert.False(t, calledB)
	assert.Equal(t, 1, r.Len())
}

func TestCommandRegistry_ListKeepsInsertionOrder(t *testing.T) {
	r := NewCommandRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Add(cmd(name, nil), "p"))
	}

	var names []string
	for _, e := range r.List() {
		names = append(names, e.Definition.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestCommandRegistry_ResolveMissing(t *testing.T) {
	r := NewCommandRegistry()
	_, ok := r.Resolve("nope")
	assert.False(t, ok)
	assert.False(t, r.Has("nope"))
}

func TestCommandRegistry_SealedIsReadOnly(t *testing.T) {
	r := NewCommandRegistry()
	require.NoError(t, r.Add(cmd("a", nil), "p"))
	r.seal()

	assert.Error(t, r.Add(cmd("b", nil), "p"))
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
}
