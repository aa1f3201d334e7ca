package safego

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	sentinel := errors.New("sentinel")

	assert.NoError(t, Call(func() error { return nil }))
	assert.ErrorIs(t, Call(func() error { return sentinel }), sentinel)

	err := Call(func() error { panic("kaboom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.EqualError(t, err, "panic: kaboom")

	err = Call(func() error { panic(sentinel) })
	assert.ErrorIs(t, err, sentinel)
}
