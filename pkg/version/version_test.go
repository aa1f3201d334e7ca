package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	info := Get()

	assert.Equal(t, GitVersion, info.String())
	assert.Contains(t, info.ToJSON(), `"gitVersion"`)

	text, err := info.Text()
	require.NoError(t, err)
	assert.Contains(t, string(text), "platform:")
}
