package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikigai-term/ikigai/internal/scrollback"
)

func TestRenderCombinedEmitsExactlyOneClear(t *testing.T) {
	sb := scrollback.New()
	sb.EnsureLayout(20)
	sb.AppendLine([]byte("hello"))

	var out bytes.Buffer
	r := New(&out)
	err := r.RenderCombined(Frame{
		Scrollback:            sb,
		ScrollFromRow:         0,
		VisibleRowsScrollback: 3,
		TerminalWidth:         20,
		RenderInputBuffer:     false,
	})
	require.Nil(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), clearScreen))
}

func TestRenderCombinedHidesCursorWithoutInput(t *testing.T) {
	sb := scrollback.New()
	sb.EnsureLayout(20)

	var out bytes.Buffer
	r := New(&out)
	err := r.RenderCombined(Frame{Scrollback: sb, TerminalWidth: 20, VisibleRowsScrollback: 1})
	require.Nil(t, err)
	assert.Contains(t, out.String(), cursorHide)
	assert.NotContains(t, out.String(), cursorShow)
}

func TestRenderCombinedShowsInputArea(t *testing.T) {
	sb := scrollback.New()
	sb.EnsureLayout(20)
	sb.AppendLine([]byte("line one"))

	var out bytes.Buffer
	r := New(&out)
	err := r.RenderCombined(Frame{
		Scrollback:            sb,
		VisibleRowsScrollback: 1,
		TerminalWidth:         20,
		InputBytes:            []byte("hi"),
		InputCursorByte:       2,
		InputRowStarts:        []int{0},
		RenderInputBuffer:     true,
	})
	require.Nil(t, err)
	assert.Contains(t, out.String(), cursorShow)
	assert.Contains(t, out.String(), "hi")
}
