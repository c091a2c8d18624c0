package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	require.NotNil(t, err)
	_, err = New(-1)
	require.NotNil(t, err)
}

func TestAddSkipsEmpty(t *testing.T) {
	h := NewDefault()
	h.Add("")
	assert.Equal(t, 0, h.Len())
}

func TestAddDedupMostRecentIsNoOp(t *testing.T) {
	h := NewDefault()
	h.Add("a")
	h.Add("a")
	assert.Equal(t, []string{"a"}, h.Entries())
}

func TestAddMovesExistingToEnd(t *testing.T) {
	h := NewDefault()
	h.Add("a")
	h.Add("b")
	h.Add("a")
	assert.Equal(t, []string{"b", "a"}, h.Entries())
}

func TestAddNeverExceedsCapacity(t *testing.T) {
	h, _ := New(2)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []string{"b", "c"}, h.Entries())
}

func TestPrevNextBrowsing(t *testing.T) {
	h := NewDefault()
	h.Add("first")
	h.Add("second")

	assert.False(t, h.IsBrowsing())

	v, ok := h.Prev()
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.True(t, h.IsBrowsing())

	v, ok = h.Prev()
	require.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = h.Next()
	require.True(t, ok)
	assert.Equal(t, "second", v)

	v, ok = h.Next() // past newest -> pending snapshot
	require.True(t, ok)
	assert.Equal(t, "", v)
}
