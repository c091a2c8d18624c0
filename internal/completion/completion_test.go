package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateForCommandsFiltersByPrefix(t *testing.T) {
	c := CreateForCommands("/fo")
	require.NotNil(t, c)
	assert.Equal(t, "fork", c.Current())
}

func TestCreateForCommandsEmptyResultReturnsNil(t *testing.T) {
	c := CreateForCommands("/zzz")
	assert.Nil(t, c)
}

func TestCandidatesWrapAround(t *testing.T) {
	c := CreateForCommands("/")
	require.NotNil(t, c)
	n := c.Len()
	require.Greater(t, n, 1)
	for i := 0; i < n; i++ {
		c.Next()
	}
	// after a full cycle we're back to the first candidate's position
	first := c.Current()
	c.Prev()
	c.Next()
	assert.Equal(t, first, c.Current())
}

func TestMatchesPrefixDetectsDivergence(t *testing.T) {
	c := CreateForCommands("/mo")
	require.NotNil(t, c)
	assert.True(t, c.MatchesPrefix("/mod"))
	assert.False(t, c.MatchesPrefix("/xo"))
}
