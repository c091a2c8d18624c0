// Package render is the ANSI composite renderer (§4.6): alt-screen aware
// full-frame writer that paints the scrollback viewport and the input
// region in a single write burst.
package render

import (
	"bytes"
	"io"

	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/scrollback"
	"github.com/ikigai-term/ikigai/internal/uwidth"
)

const (
	clearScreen  = "\x1b[2J"
	cursorHome   = "\x1b[H"
	cursorShow   = "\x1b[?25h"
	cursorHide   = "\x1b[?25l"
	separatorRune = '─'
)

// Writer is the destination for a rendered frame (the Terminal in
// production, a bytes.Buffer in tests).
type Writer interface {
	io.Writer
}

// Frame is everything render_combined (§4.6) needs for one repaint.
type Frame struct {
	Scrollback           *scrollback.Scrollback
	ScrollFromRow        int
	VisibleRowsScrollback int
	TerminalWidth         int

	InputBytes       []byte
	InputCursorByte  int
	RenderInputBuffer bool
	InputRowStarts    []int // from textbuffer.Layout.RowStartOffsets
	InputPhysicalLines int
}

// Renderer owns frame composition and emission.
type Renderer struct {
	w Writer
}

// New returns a Renderer writing to w.
func New(w Writer) *Renderer {
	return &Renderer{w: w}
}

// RenderCombined performs the full-frame repaint as one write burst (§4.6).
func (r *Renderer) RenderCombined(f Frame) *ikerr.Error {
	var buf bytes.Buffer
	buf.WriteString(clearScreen)
	buf.WriteString(cursorHome)

	sb := f.Scrollback
	for row := f.ScrollFromRow; row < f.ScrollFromRow+f.VisibleRowsScrollback; row++ {
		idx, rowOffset, ok := sb.FindLogicalLineAtPhysicalRow(row)
		if !ok {
			buf.WriteString("\r\n")
			continue
		}
		slice := wrappedSlice(sb.GetLineText(idx), f.TerminalWidth, rowOffset)
		buf.Write(slice)
		buf.WriteString("\r\n")
	}

	cursorRow, cursorCol := 0, 0
	if f.RenderInputBuffer {
		buf.WriteString(separatorLine(f.TerminalWidth))
		buf.WriteString("\r\n")

		rowStarts := f.InputRowStarts
		for i := 0; i < len(rowStarts); i++ {
			start := rowStarts[i]
			end := len(f.InputBytes)
			if i+1 < len(rowStarts) {
				end = rowStarts[i+1]
			}
			buf.Write(f.InputBytes[start:end])
			if i+1 < len(rowStarts) {
				buf.WriteString("\r\n")
			}
			if f.InputCursorByte >= start && (i+1 >= len(rowStarts) || f.InputCursorByte < rowStarts[i+1]) {
				cursorRow = i
				cursorCol = uwidth.VisibleWidth(f.InputBytes[start:f.InputCursorByte])
			}
		}

		screenRow := f.VisibleRowsScrollback + 2 + cursorRow
		buf.WriteString(cursorPositionSeq(screenRow, cursorCol+1))
		buf.WriteString(cursorShow)
	} else {
		buf.WriteString(cursorHide)
	}

	if _, err := r.w.Write(buf.Bytes()); err != nil {
		return ikerr.Wrap(err, ikerr.IO, "writing frame")
	}
	return nil
}

// wrappedSlice returns the byte slice of logical line content corresponding
// to the physical row at rowOffset within it, using the same width rules
// as scrollback layout (SGR zero-width, wide=2, combining=0).
func wrappedSlice(lineBytes []byte, width, rowOffset int) []byte {
	cells := uwidth.Cells(lineBytes)
	row := 0
	col := 0
	start := 0
	for _, c := range cells {
		if col+c.Width > width {
			if row == rowOffset {
				return lineBytes[start:c.ByteOffset]
			}
			row++
			col = 0
			start = c.ByteOffset
		}
		col += c.Width
	}
	if row == rowOffset {
		return lineBytes[start:]
	}
	return nil
}

func separatorLine(width int) string {
	if width <= 0 {
		width = 1
	}
	runes := make([]rune, width)
	for i := range runes {
		runes[i] = separatorRune
	}
	return string(runes)
}

func cursorPositionSeq(row, col int) string {
	return "\x1b[" + itoa(row) + ";" + itoa(col) + "H"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
