package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, p *Parser, s string) []Action {
	t.Helper()
	var out []Action
	for i := 0; i < len(s); i++ {
		out = append(out, p.Feed(s[i])...)
	}
	return out
}

func TestSimpleArrowKeys(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[A")
	require.Len(t, acts, 1)
	assert.Equal(t, ArrowUp, acts[0].Kind)
}

func TestCSIUShiftEnterInsertsNewline(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[13;2u")
	require.Len(t, acts, 1)
	assert.Equal(t, InsertNewline, acts[0].Kind)
}

func TestCSIUPlainEnterSubmits(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[13u")
	require.Len(t, acts, 1)
	assert.Equal(t, SubmitNewline, acts[0].Kind)
}

func TestCSIUCtrlLetter(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[119;5u") // 'w' + ctrl
	require.Len(t, acts, 1)
	assert.Equal(t, CtrlW, acts[0].Kind)
}

func TestCSIUShiftedPrintable(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[97;2u") // 'a' + shift
	require.Len(t, acts, 1)
	assert.Equal(t, Char, acts[0].Kind)
	assert.Equal(t, 'A', acts[0].CodePoint)
}

func TestMouseScroll(t *testing.T) {
	p := New()
	up := feedAll(t, p, "\x1b[<64;10;5M")
	require.Len(t, up, 1)
	assert.Equal(t, ScrollUp, up[0].Kind)

	down := feedAll(t, p, "\x1b[<65;10;5M")
	require.Len(t, down, 1)
	assert.Equal(t, ScrollDown, down[0].Kind)
}

func TestSGRDiscarded(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[38;5;242m")
	assert.Empty(t, acts)
}

func TestUnknownCSIDiscarded(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "\x1b[5~")
	assert.Empty(t, acts)
}

func TestMalformedEscapeOverflowResets(t *testing.T) {
	p := New()
	long := "\x1b[" + string(make([]byte, 40))
	for i := range long {
		_ = p.Feed(long[i])
	}
	acts := feedAll(t, p, "a")
	require.Len(t, acts, 1)
	assert.Equal(t, Char, acts[0].Kind)
	assert.Equal(t, rune('a'), acts[0].CodePoint)
}

func TestUTF8MultiByteChar(t *testing.T) {
	p := New()
	acts := feedAll(t, p, "中")
	require.Len(t, acts, 1)
	assert.Equal(t, Char, acts[0].Kind)
	assert.Equal(t, '中', acts[0].CodePoint)
}

func TestInvalidUTF8ContinuationResetsSilently(t *testing.T) {
	p := New()
	acts := p.Feed(0xC3) // lead byte expecting a continuation
	assert.Empty(t, acts)
	acts = p.Feed('a') // not a valid continuation byte
	assert.Empty(t, acts)
	acts = feedAll(t, p, "b")
	require.Len(t, acts, 1)
	assert.Equal(t, rune('b'), acts[0].CodePoint)
}

func TestControlBytes(t *testing.T) {
	p := New()
	cases := map[byte]ActionKind{
		0x03: CtrlC,
		0x01: CtrlA,
		0x05: CtrlE,
		0x0B: CtrlK,
		0x15: CtrlU,
		0x17: CtrlW,
		0x09: Tab,
		0x0A: InsertNewline,
		0x0D: SubmitNewline,
		0x7F: Backspace,
	}
	for b, want := range cases {
		p := New()
		acts := p.Feed(b)
		require.Len(t, acts, 1, "byte %x", b)
		assert.Equal(t, want, acts[0].Kind, "byte %x", b)
		_ = p
	}
}
