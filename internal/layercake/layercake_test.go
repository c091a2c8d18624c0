package layercake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeReservesBottomLayersFirst(t *testing.T) {
	s := State{
		SpinnerVisible:       true,
		InputVisible:         true,
		InputPhysicalLines:   2,
		ScrollbackTotalLines: 100,
		ScreenRows:           24,
	}
	a := Compose(s, 0)
	assert.Equal(t, 1, a.SpinnerRows)
	assert.Equal(t, 1, a.SeparatorRows)
	assert.Equal(t, 2, a.InputRows)
	assert.Equal(t, 24-1-1-2, a.ScrollbackRows)
}

func TestComposeClampsViewportOffset(t *testing.T) {
	s := State{
		InputVisible:         false,
		ScrollbackTotalLines: 10,
		ScreenRows:           24,
	}
	a := Compose(s, 1000)
	assert.Equal(t, 0, a.ViewportOffset) // total(10) <= rows, clamp to 0
}

func TestComposeNoInputHidesSeparator(t *testing.T) {
	s := State{InputVisible: false, ScreenRows: 24, ScrollbackTotalLines: 0}
	a := Compose(s, 0)
	assert.Equal(t, 0, a.SeparatorRows)
	assert.Equal(t, 0, a.InputRows)
}
