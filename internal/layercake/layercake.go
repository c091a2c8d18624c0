// Package layercake implements the vertical compositor described in §4.7:
// a bottom-to-top stack of Scrollback, Spinner, Separator, Input, and
// Completion layers, each reporting a physical height, allocating screen
// rows from the bottom up.
package layercake

// State is the current per-layer visibility/size input for one frame.
type State struct {
	SpinnerVisible       bool
	SeparatorVisible     bool // input visible implies separator visible
	InputVisible         bool
	InputPhysicalLines   int
	CompletionCandidates int
	ScrollbackTotalLines int
	ScreenRows           int
}

// Allocation is the computed row budget for a frame.
type Allocation struct {
	SpinnerRows      int
	SeparatorRows    int
	InputRows        int
	CompletionRows   int
	ScrollbackRows   int
	ViewportOffset   int
}

// Compose assigns screen rows bottom-up: completion, input, separator,
// spinner first, the remainder to scrollback, clamping viewportOffset to
// [0, totalPhysicalLines - scrollbackRows].
func Compose(s State, viewportOffset int) Allocation {
	a := Allocation{}

	if s.CompletionCandidates > 0 {
		a.CompletionRows = s.CompletionCandidates
	}
	if s.InputVisible {
		a.InputRows = max(s.InputPhysicalLines, 1)
	}
	if s.SeparatorVisible || s.InputVisible {
		a.SeparatorRows = 1
	}
	if s.SpinnerVisible {
		a.SpinnerRows = 1
	}

	reserved := a.SpinnerRows + a.SeparatorRows + a.InputRows + a.CompletionRows
	a.ScrollbackRows = s.ScreenRows - reserved
	if a.ScrollbackRows < 0 {
		a.ScrollbackRows = 0
	}

	maxOffset := s.ScrollbackTotalLines - a.ScrollbackRows
	if maxOffset < 0 {
		maxOffset = 0
	}
	if viewportOffset > maxOffset {
		viewportOffset = maxOffset
	}
	if viewportOffset < 0 {
		viewportOffset = 0
	}
	a.ViewportOffset = viewportOffset

	return a
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
