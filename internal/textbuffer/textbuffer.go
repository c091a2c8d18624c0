// Package textbuffer implements the gap-free mutable UTF-8 editing buffer
// and grapheme/display-width-aware cursor described in §4.4.
package textbuffer

import (
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/uwidth"
)

// layoutCache mirrors §4.4's "Display-layout cache" for a single width.
type layoutCache struct {
	cachedWidth     int
	valid           bool
	physicalLines   int
	rowStartOffsets []int
}

// Buffer is the editable multi-line input region.
type Buffer struct {
	bytes            []byte
	cursorByte       int
	cursorGrapheme   int
	preferredColumn  int
	hasPreferredCol  bool
	layout           layoutCache
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Bytes returns the buffer's current content. Callers must not mutate it.
func (b *Buffer) Bytes() []byte { return b.bytes }

// CursorByteOffset returns the cursor's byte offset, always on a grapheme
// boundary.
func (b *Buffer) CursorByteOffset() int { return b.cursorByte }

// CursorGraphemeOffset returns the grapheme count of bytes[0:cursorByte].
func (b *Buffer) CursorGraphemeOffset() int { return b.cursorGrapheme }

func (b *Buffer) invalidateLayout() {
	b.layout.valid = false
}

// resetPreferredColumn clears the column-preservation anchor; called by any
// horizontal edit or motion (§4.4 cursor_up/down).
func (b *Buffer) resetPreferredColumn() {
	b.hasPreferredCol = false
	b.preferredColumn = 0
}

// Insert encodes code_point as 1-4 bytes and splices it at the cursor.
func (b *Buffer) Insert(r rune) {
	enc := make([]byte, 4)
	n := encodeRune(enc, r)
	enc = enc[:n]

	b.bytes = append(b.bytes[:b.cursorByte], append(append([]byte{}, enc...), b.bytes[b.cursorByte:]...)...)
	b.cursorByte += n
	if !uwidth.IsGraphemeExtend(r) {
		b.cursorGrapheme++
	}
	b.resetPreferredColumn()
	b.invalidateLayout()
}

func encodeRune(dst []byte, r rune) int {
	return copy(dst, string(r))
}

// InsertNewline inserts '\n' at the cursor and advances it.
func (b *Buffer) InsertNewline() {
	b.Insert('\n')
}

// graphemeBoundaries returns the byte offsets of every grapheme boundary in
// b.bytes, including 0 and len(b.bytes).
func (b *Buffer) graphemeBoundaries() []int {
	var bounds []int
	i := 0
	bounds = append(bounds, 0)
	for i < len(b.bytes) {
		r, size, ok := uwidth.DecodeRune(b.bytes[i:])
		if !ok {
			size = 1
		} else {
			// consume any combining marks that extend this cluster
			j := i + size
			for j < len(b.bytes) {
				r2, size2, ok2 := uwidth.DecodeRune(b.bytes[j:])
				if !ok2 || !uwidth.IsGraphemeExtend(r2) {
					break
				}
				j += size2
			}
			size = j - i
		}
		_ = r
		i += size
		bounds = append(bounds, i)
	}
	return bounds
}

// Backspace removes the grapheme ending at the cursor.
func (b *Buffer) Backspace() {
	if b.cursorByte == 0 {
		return
	}
	bounds := b.graphemeBoundaries()
	prev := 0
	for _, off := range bounds {
		if off >= b.cursorByte {
			break
		}
		prev = off
	}
	b.bytes = append(b.bytes[:prev], b.bytes[b.cursorByte:]...)
	b.cursorByte = prev
	b.cursorGrapheme--
	b.resetPreferredColumn()
	b.invalidateLayout()
}

// Delete removes the grapheme starting at the cursor; cursor unchanged.
func (b *Buffer) Delete() {
	if b.cursorByte >= len(b.bytes) {
		return
	}
	bounds := b.graphemeBoundaries()
	next := len(b.bytes)
	for _, off := range bounds {
		if off > b.cursorByte {
			next = off
			break
		}
	}
	b.bytes = append(b.bytes[:b.cursorByte], b.bytes[next:]...)
	b.resetPreferredColumn()
	b.invalidateLayout()
}

// DeleteWordBackward implements Ctrl+W (§4.4): consume trailing whitespace
// before the cursor, then one contiguous run of the next class (word or
// other), deleting [new_cursor, old_cursor).
func (b *Buffer) DeleteWordBackward() {
	if b.cursorByte == 0 {
		return
	}
	runes := b.runesBefore(b.cursorByte)
	if len(runes) == 0 {
		return
	}
	idx := len(runes)

	for idx > 0 && uwidth.Classify(runes[idx-1].r) == uwidth.ClassWhitespace {
		idx--
	}
	if idx > 0 {
		cls := uwidth.Classify(runes[idx-1].r)
		for idx > 0 && uwidth.Classify(runes[idx-1].r) == cls {
			idx--
		}
	}

	newCursor := 0
	if idx > 0 {
		newCursor = runes[idx-1].end
	}
	b.bytes = append(b.bytes[:newCursor], b.bytes[b.cursorByte:]...)
	removedGraphemes := b.cursorGrapheme - uwidth.CountGraphemes(b.bytes[:newCursor])
	b.cursorByte = newCursor
	b.cursorGrapheme -= removedGraphemes
	b.resetPreferredColumn()
	b.invalidateLayout()
}

type positionedRune struct {
	r     rune
	start int
	end   int
}

func (b *Buffer) runesBefore(limit int) []positionedRune {
	var out []positionedRune
	i := 0
	for i < limit {
		r, size, ok := uwidth.DecodeRune(b.bytes[i:])
		if !ok {
			size = 1
			r = 0xFFFD
		}
		out = append(out, positionedRune{r: r, start: i, end: i + size})
		i += size
	}
	return out
}

// KillToLineEnd implements Ctrl+K: delete [cursor, next '\n' or end); the
// newline itself is not deleted.
func (b *Buffer) KillToLineEnd() {
	end := indexByteFrom(b.bytes, '\n', b.cursorByte)
	if end < 0 {
		end = len(b.bytes)
	}
	b.bytes = append(b.bytes[:b.cursorByte], b.bytes[end:]...)
	b.invalidateLayout()
}

// KillLine implements Ctrl+U (§4.4): deletes the current logical line and
// its trailing newline, collapsing neighbor lines. If the cursor is on the
// last line (no trailing newline), the previous newline is deleted instead.
func (b *Buffer) KillLine() {
	lineStart := lastIndexByteUpTo(b.bytes, '\n', b.cursorByte) + 1
	lineEnd := indexByteFrom(b.bytes, '\n', b.cursorByte)

	if lineEnd < 0 {
		// Cursor is on the last line: delete the previous newline instead.
		if lineStart == 0 {
			return
		}
		prevNL := lineStart - 1 // index of the newline ending the prior line
		b.bytes = append(b.bytes[:prevNL], b.bytes[lineStart:]...)
		b.cursorByte = prevNL
		b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:b.cursorByte])
		b.resetPreferredColumn()
		b.invalidateLayout()
		return
	}

	b.bytes = append(b.bytes[:lineStart], b.bytes[lineEnd+1:]...)
	b.cursorByte = lineStart
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:b.cursorByte])
	b.resetPreferredColumn()
	b.invalidateLayout()
}

func indexByteFrom(b []byte, c byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func lastIndexByteUpTo(b []byte, c byte, upTo int) int {
	for i := upTo - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// CursorLeft moves the cursor back one grapheme, saturating at 0.
func (b *Buffer) CursorLeft() {
	if b.cursorByte == 0 {
		return
	}
	bounds := b.graphemeBoundaries()
	prev := 0
	for _, off := range bounds {
		if off >= b.cursorByte {
			break
		}
		prev = off
	}
	b.cursorByte = prev
	b.cursorGrapheme--
	b.resetPreferredColumn()
}

// CursorRight moves the cursor forward one grapheme, saturating at the end.
func (b *Buffer) CursorRight() {
	if b.cursorByte >= len(b.bytes) {
		return
	}
	bounds := b.graphemeBoundaries()
	next := len(b.bytes)
	for _, off := range bounds {
		if off > b.cursorByte {
			next = off
			break
		}
	}
	b.cursorByte = next
	b.cursorGrapheme++
	b.resetPreferredColumn()
}

// CursorToLineStart moves to the previous '\n' boundary (or buffer start).
func (b *Buffer) CursorToLineStart() {
	start := lastIndexByteUpTo(b.bytes, '\n', b.cursorByte) + 1
	b.cursorByte = start
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:start])
	b.resetPreferredColumn()
}

// CursorToLineEnd moves to the next '\n' boundary (or buffer end).
func (b *Buffer) CursorToLineEnd() {
	end := indexByteFrom(b.bytes, '\n', b.cursorByte)
	if end < 0 {
		end = len(b.bytes)
	}
	b.cursorByte = end
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:end])
	b.resetPreferredColumn()
}

// lineBounds returns [start,end) of the logical line containing byte offset.
func (b *Buffer) lineBounds(offset int) (start, end int) {
	start = lastIndexByteUpTo(b.bytes, '\n', offset) + 1
	end = indexByteFrom(b.bytes, '\n', offset)
	if end < 0 {
		end = len(b.bytes)
	}
	return start, end
}

// columnOf returns the grapheme column of offset within its logical line.
func (b *Buffer) columnOf(offset int) int {
	start, _ := b.lineBounds(offset)
	return uwidth.CountGraphemes(b.bytes[start:offset])
}

// CursorUp performs column-preserving vertical motion (§4.4).
func (b *Buffer) CursorUp() {
	start, _ := b.lineBounds(b.cursorByte)
	if start == 0 {
		return // already on the first line
	}
	if !b.hasPreferredCol {
		b.preferredColumn = b.columnOf(b.cursorByte)
		b.hasPreferredCol = true
	}
	prevLineEnd := start - 1
	prevStart, _ := b.lineBounds(prevLineEnd)
	b.cursorByte = offsetAtColumn(b.bytes, prevStart, prevLineEnd, b.preferredColumn)
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:b.cursorByte])
}

// CursorDown performs column-preserving vertical motion (§4.4).
func (b *Buffer) CursorDown() {
	_, end := b.lineBounds(b.cursorByte)
	if end >= len(b.bytes) {
		return // already on the last line
	}
	if !b.hasPreferredCol {
		b.preferredColumn = b.columnOf(b.cursorByte)
		b.hasPreferredCol = true
	}
	nextStart := end + 1
	_, nextEnd := b.lineBounds(nextStart)
	b.cursorByte = offsetAtColumn(b.bytes, nextStart, nextEnd, b.preferredColumn)
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes[:b.cursorByte])
}

// offsetAtColumn returns the byte offset within [lineStart,lineEnd] that is
// `column` graphemes in, clamped to the line's length.
func offsetAtColumn(buf []byte, lineStart, lineEnd, column int) int {
	offset := lineStart
	count := 0
	for offset < lineEnd && count < column {
		_, size, ok := uwidth.DecodeRune(buf[offset:])
		if !ok {
			size = 1
		}
		offset += size
		count++
	}
	return offset
}

// Clear empties the buffer and resets cursor + preferred column to 0.
func (b *Buffer) Clear() {
	b.bytes = b.bytes[:0]
	b.cursorByte = 0
	b.cursorGrapheme = 0
	b.resetPreferredColumn()
	b.invalidateLayout()
}

// SetContent replaces the buffer's content, moving the cursor to the end
// (used by history browsing to restore a snapshot).
func (b *Buffer) SetContent(content []byte) {
	b.bytes = append([]byte{}, content...)
	b.cursorByte = len(b.bytes)
	b.cursorGrapheme = uwidth.CountGraphemes(b.bytes)
	b.resetPreferredColumn()
	b.invalidateLayout()
}

// Layout describes the buffer's physical-row decomposition at a given
// terminal width.
type Layout struct {
	PhysicalLines   int
	RowStartOffsets []int
}

// EnsureLayout recomputes the display-layout cache if width differs from
// the cached width, then returns it.
func (b *Buffer) EnsureLayout(width int) (Layout, *ikerr.Error) {
	if width < 1 {
		return Layout{}, ikerr.New(ikerr.InvalidArg, "width must be >= 1")
	}
	if b.layout.valid && b.layout.cachedWidth == width {
		return Layout{PhysicalLines: b.layout.physicalLines, RowStartOffsets: b.layout.rowStartOffsets}, nil
	}

	var rowStarts []int
	lineStart := 0
	cellsInRow := 0
	rowStarts = append(rowStarts, 0)
	for lineStart <= len(b.bytes) {
		lineEnd := indexByteFrom(b.bytes, '\n', lineStart)
		hasNL := lineEnd >= 0
		if lineEnd < 0 {
			lineEnd = len(b.bytes)
		}
		cellsInRow = 0
		for _, cell := range uwidth.Cells(b.bytes[lineStart:lineEnd]) {
			if cellsInRow+cell.Width > width {
				rowStarts = append(rowStarts, lineStart+cell.ByteOffset)
				cellsInRow = 0
			}
			cellsInRow += cell.Width
		}
		if hasNL {
			rowStarts = append(rowStarts, lineEnd+1)
			lineStart = lineEnd + 1
		} else {
			break
		}
	}

	b.layout = layoutCache{
		cachedWidth:     width,
		valid:           true,
		physicalLines:   len(rowStarts),
		rowStartOffsets: rowStarts,
	}
	return Layout{PhysicalLines: b.layout.physicalLines, RowStartOffsets: rowStarts}, nil
}
