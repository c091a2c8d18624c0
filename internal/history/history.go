// Package history implements the capped MRU ring of submitted inputs with a
// pending-edit slot described in §4.8.
package history

import "github.com/ikigai-term/ikigai/internal/ikerr"

const defaultCapacity = 10000

// History is a bounded, deduplicated MRU ring of past submissions.
type History struct {
	capacity int
	entries  []string
	index    int
	pending  *string
}

// New returns a History with the given capacity (§6 history_size,
// default 10000 when cap <= 0... actually zero/negative is an explicit
// config error; callers should validate before constructing).
func New(capacity int) (*History, *ikerr.Error) {
	if capacity <= 0 {
		return nil, ikerr.New(ikerr.OutOfRange, "history_size must be positive")
	}
	return &History{capacity: capacity, index: -1}, nil
}

// NewDefault returns a History at the default capacity (10000).
func NewDefault() *History {
	h, _ := New(defaultCapacity)
	return h
}

// Add inserts text, applying dedup-to-MRU semantics (§4.8, §8 History
// dedup invariant). Empty strings are not added.
func (h *History) Add(text string) {
	if text == "" {
		return
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == text {
		h.pending = nil
		h.resetBrowsing()
		return
	}
	for i, e := range h.entries {
		if e == text {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	if len(h.entries) >= h.capacity {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, text)
	h.resetBrowsing()
}

func (h *History) resetBrowsing() {
	h.index = len(h.entries)
	h.pending = nil
}

// StartBrowsing snapshots the user's in-progress edit into pending and
// positions the cursor past-the-end.
func (h *History) StartBrowsing(currentEdit string) {
	p := currentEdit
	h.pending = &p
	h.index = len(h.entries)
}

// IsBrowsing reports whether pending is non-nil.
func (h *History) IsBrowsing() bool { return h.pending != nil }

// Prev moves toward older entries, returning the entry now in view.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.pending == nil {
		h.StartBrowsing("")
	}
	if h.index > 0 {
		h.index--
	}
	if h.index < 0 || h.index >= len(h.entries) {
		return "", false
	}
	return h.entries[h.index], true
}

// Next moves toward newer entries, returning the pending snapshot when
// stepping past the newest entry.
func (h *History) Next() (string, bool) {
	if h.pending == nil {
		return "", false
	}
	if h.index < len(h.entries) {
		h.index++
	}
	if h.index >= len(h.entries) {
		return *h.pending, true
	}
	return h.entries[h.index], true
}

// Entries returns a copy of the current ring contents, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the current entry count.
func (h *History) Len() int { return len(h.entries) }
