// Package scrollback implements the append-only list of logical lines with
// cached per-width wrap layout described in §4.5.
package scrollback

import "github.com/ikigai-term/ikigai/internal/uwidth"

// lineLayout is a line's cached wrap computation for one width.
type lineLayout struct {
	cachedWidth   int
	valid         bool
	displayWidth  int
	physicalLines int
}

// line holds one immutable appended line plus its lazily-computed layout.
type line struct {
	bytes  []byte
	layout lineLayout
}

// Scrollback is the append-only off-screen output history.
type Scrollback struct {
	lines              []line
	cachedWidth        int
	totalPhysicalLines int
}

// New returns an empty Scrollback.
func New() *Scrollback {
	return &Scrollback{}
}

// AppendLine copies bytes (immutable thereafter) onto the end of the
// scrollback. Layout is computed lazily.
func (s *Scrollback) AppendLine(b []byte) {
	cp := append([]byte{}, b...)
	s.lines = append(s.lines, line{bytes: cp})
	if s.cachedWidth > 0 {
		s.computeLayout(len(s.lines)-1, s.cachedWidth)
		s.totalPhysicalLines += s.lines[len(s.lines)-1].layout.physicalLines
	}
}

// GetLineCount returns the number of logical lines.
func (s *Scrollback) GetLineCount() int { return len(s.lines) }

// GetTotalPhysicalLines returns the sum of per-line physical-line counts at
// the currently cached width.
func (s *Scrollback) GetTotalPhysicalLines() int { return s.totalPhysicalLines }

// GetLineText returns the bytes of logical line i.
func (s *Scrollback) GetLineText(i int) []byte {
	if i < 0 || i >= len(s.lines) {
		return nil
	}
	return s.lines[i].bytes
}

// layoutFor computes (§4.5 steps 1-3) the width/physical-line count for
// line bytes at width W, treating SGR/CSI as zero-width.
func layoutFor(b []byte, width int) (displayWidth, physicalLines int) {
	displayWidth = uwidth.VisibleWidth(b)
	if displayWidth == 0 {
		return 0, 1
	}
	physicalLines = (displayWidth + width - 1) / width
	if physicalLines < 1 {
		physicalLines = 1
	}
	return displayWidth, physicalLines
}

func (s *Scrollback) computeLayout(i, width int) {
	dw, pl := layoutFor(s.lines[i].bytes, width)
	s.lines[i].layout = lineLayout{cachedWidth: width, valid: true, displayWidth: dw, physicalLines: pl}
}

// EnsureLayout recomputes all layouts if width differs from the cached
// width; O(1) otherwise (§4.5).
func (s *Scrollback) EnsureLayout(width int) {
	if width < 1 {
		return
	}
	if s.cachedWidth == width {
		return
	}
	total := 0
	for i := range s.lines {
		s.computeLayout(i, width)
		total += s.lines[i].layout.physicalLines
	}
	s.cachedWidth = width
	s.totalPhysicalLines = total
}

// FindLogicalLineAtPhysicalRow returns the logical line index and the
// physical-row offset within it corresponding to the given global physical
// row (0-based), at the currently cached width.
func (s *Scrollback) FindLogicalLineAtPhysicalRow(row int) (lineIndex, rowOffset int, ok bool) {
	if row < 0 {
		return 0, 0, false
	}
	acc := 0
	for i := range s.lines {
		pl := s.lines[i].layout.physicalLines
		if !s.lines[i].layout.valid {
			pl = 1
		}
		if row < acc+pl {
			return i, row - acc, true
		}
		acc += pl
	}
	return 0, 0, false
}

// DisplayWidth returns the cached visible cell width of line i.
func (s *Scrollback) DisplayWidth(i int) int {
	if i < 0 || i >= len(s.lines) {
		return 0
	}
	return s.lines[i].layout.displayWidth
}

// PhysicalLines returns the cached physical-line count of line i.
func (s *Scrollback) PhysicalLines(i int) int {
	if i < 0 || i >= len(s.lines) {
		return 0
	}
	if !s.lines[i].layout.valid {
		return 1
	}
	return s.lines[i].layout.physicalLines
}
