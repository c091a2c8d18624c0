// Package completion implements prefix match + fuzzy score over the
// command vocabulary (§4.9).
package completion

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Commands is the slash-command vocabulary completion matches against.
// (§4.15 command dispatch names the canonical set.)
var Commands = []string{
	"clear", "debug", "fork", "help", "kill", "mark", "model",
	"rewind", "send", "check-mail", "read-mail", "delete-mail", "system",
}

// Candidates is a cursor-addressable, wrap-around list of completion
// matches created for a given `/`-prefix.
type Candidates struct {
	prefix string
	items  []string
	pos    int
}

// CreateForCommands returns the completion candidate list for a `/`-prefixed
// input prefix, or nil when no command name starts with it. Matches are
// ordered by fuzzy score, case-insensitive.
func CreateForCommands(prefix string) *Candidates {
	if !strings.HasPrefix(prefix, "/") {
		return nil
	}
	needle := prefix[1:]

	var filtered []string
	for _, c := range Commands {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(needle)) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	matches := fuzzy.Find(needle, filtered)
	ordered := make([]string, 0, len(filtered))
	seen := make(map[string]bool, len(filtered))
	for _, m := range matches {
		ordered = append(ordered, filtered[m.Index])
		seen[filtered[m.Index]] = true
	}
	for _, c := range filtered {
		if !seen[c] {
			ordered = append(ordered, c)
		}
	}

	return &Candidates{prefix: prefix, items: ordered, pos: 0}
}

// Current returns the candidate currently selected.
func (c *Candidates) Current() string {
	if c == nil || len(c.items) == 0 {
		return ""
	}
	return c.items[c.pos]
}

// Next advances to the next candidate, wrapping around.
func (c *Candidates) Next() string {
	if c == nil || len(c.items) == 0 {
		return ""
	}
	c.pos = (c.pos + 1) % len(c.items)
	return c.items[c.pos]
}

// Prev moves to the previous candidate, wrapping around.
func (c *Candidates) Prev() string {
	if c == nil || len(c.items) == 0 {
		return ""
	}
	c.pos = (c.pos - 1 + len(c.items)) % len(c.items)
	return c.items[c.pos]
}

// MatchesPrefix reports whether currentInput still begins with the prefix
// used to create this candidate list, letting the caller cancel the
// completion on divergence.
func (c *Candidates) MatchesPrefix(currentInput string) bool {
	if c == nil {
		return false
	}
	return strings.HasPrefix(currentInput, c.prefix)
}

// Len returns the number of candidates.
func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}
