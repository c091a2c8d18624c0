// Package uwidth provides the UTF-8 decode, grapheme/word classification,
// and SGR-skipping visible-width scanning shared by the text buffer,
// scrollback, and renderer (§4.2 share, §4.4, §4.5, §4.6).
package uwidth

import (
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// CellWidth returns the terminal cell width of a code point: 2 for
// wide/emoji, 0 for combining marks, 1 otherwise.
func CellWidth(r rune) int {
	if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) || unicode.Is(unicode.Mc, r) {
		return 0
	}
	return runewidth.RuneWidth(r)
}

// DecodeRune decodes the rune at the head of b, returning the rune, its
// encoded byte length, and whether the decode was valid. An invalid leading
// byte or truncated sequence yields (utf8.RuneError, 1, false).
func DecodeRune(b []byte) (r rune, size int, ok bool) {
	if len(b) == 0 {
		return utf8.RuneError, 0, false
	}
	r, size = utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		return utf8.RuneError, 1, false
	}
	return r, size, true
}

// CharClass classifies a rune for word-motion purposes (§4.4
// delete_word_backward).
type CharClass int

const (
	ClassWhitespace CharClass = iota
	ClassWord
	ClassOther
)

// Classify buckets r into Whitespace, Word (alnum + underscore, including
// non-ASCII letters/digits), or Other.
func Classify(r rune) CharClass {
	switch r {
	case ' ', '\t', '\r', '\n':
		return ClassWhitespace
	}
	if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
		return ClassWord
	}
	return ClassOther
}

// IsGraphemeExtend reports whether r combines onto the previous grapheme
// cluster rather than starting a new one. This is a practical approximation
// (combining marks only) rather than a full UAX #29 implementation, matching
// the width classification already used for CellWidth.
func IsGraphemeExtend(r rune) bool {
	return CellWidth(r) == 0
}

// scanState walks code points, invoking visit(r, byteLen, cellWidth) for
// each, treating SGR/CSI escape sequences as zero-width spans that are
// still consumed from the byte stream.
func scan(b []byte, visit func(r rune, byteLen int, cellWidth int)) {
	i := 0
	for i < len(b) {
		if b[i] == 0x1b && i+1 < len(b) && b[i+1] == '[' {
			j := i + 2
			for j < len(b) && (b[j] == ';' || (b[j] >= '0' && b[j] <= '9')) {
				j++
			}
			if j < len(b) {
				j++ // consume final byte (e.g. 'm')
			}
			visit(0, j-i, 0)
			i = j
			continue
		}
		r, size, ok := DecodeRune(b[i:])
		if !ok {
			visit(utf8.RuneError, 1, 1)
			i++
			continue
		}
		visit(r, size, CellWidth(r))
		i += size
	}
}

// VisibleWidth returns the total display width of b, treating SGR/CSI
// escapes as zero-width (§4.5, §4.6).
func VisibleWidth(b []byte) int {
	total := 0
	scan(b, func(r rune, byteLen, cellWidth int) { total += cellWidth })
	return total
}

// CountGraphemes returns the number of grapheme clusters in b (combining
// marks do not start a new cluster).
func CountGraphemes(b []byte) int {
	count := 0
	i := 0
	for i < len(b) {
		r, size, ok := DecodeRune(b[i:])
		if !ok {
			count++
			i++
			continue
		}
		if !IsGraphemeExtend(r) {
			count++
		}
		i += size
	}
	return count
}

// Cell describes one visible unit produced while scanning a byte slice for
// wrapping purposes: its byte range and its display width.
type Cell struct {
	ByteOffset int
	ByteLen    int
	Width      int
}

// Cells returns the ordered visible cells of b (escape sequences collapse
// into the immediately following cell as zero-width prefixes, so that wrap
// calculations never double count escape bytes).
func Cells(b []byte) []Cell {
	var cells []Cell
	i := 0
	pendingEscBytes := 0
	scan(b, func(r rune, byteLen, cellWidth int) {
		if cellWidth == 0 && byteLen > 0 && r == 0 {
			// an escape span; fold into the following cell
			pendingEscBytes += byteLen
			i += byteLen
			return
		}
		cells = append(cells, Cell{ByteOffset: i - pendingEscBytes, ByteLen: byteLen + pendingEscBytes, Width: cellWidth})
		i += byteLen
		pendingEscBytes = 0
	})
	if pendingEscBytes > 0 {
		cells = append(cells, Cell{ByteOffset: i - pendingEscBytes, ByteLen: pendingEscBytes, Width: 0})
	}
	return cells
}
