// Package debugpipe implements the fan-in pipe manager of §4.17: each
// owner gets an os.Pipe(); the manager buffers bytes from every read end
// until a newline, then either appends a tagged scrollback line or drops
// the bytes, depending on whether debugging is enabled.
package debugpipe

import (
	"bufio"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

// Sink receives one fully-formed debug line (already "<prefix> <line>").
type Sink interface {
	AppendDebugLine(text string)
}

// pipe is one owner's {prefix, write end, read end, buffer} tuple (§4.17).
type pipe struct {
	prefix   string
	writeEnd *os.File
	readEnd  *os.File
	reader   *bufio.Reader
}

// Manager owns the growable array of pipes and fans their ready read ends
// into a sink, mirroring add_pipe/add_to_fdset/handle_ready/destructor.
type Manager struct {
	mu      sync.Mutex
	pipes   []*pipe
	hlog    hclog.Logger
	enabled bool
}

// NewManager constructs an empty manager. hlog is the hashicorp/go-hclog
// logger bridged into slog (via hclogAdapter below) for the manager's own
// operational tracing — distinct from the debug-pipe *content* it fans in.
func NewManager() *Manager {
	return &Manager{
		hlog: hclog.New(&hclog.LoggerOptions{
			Name:   "debugpipe",
			Output: hclogSlogWriter{},
			Level:  hclog.Info,
		}),
	}
}

// SetEnabled toggles whether handle_ready appends lines to scrollback or
// silently drains them (the `/debug` command, §4.15).
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// AddPipe creates a pipe pair for prefix and registers it (§4.17
// add_pipe). The write end is returned for the owner to write debug text
// into; the manager keeps the read end.
func (m *Manager) AddPipe(prefix string) (*os.File, *ikerr.Error) {
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, ikerr.Wrap(err, ikerr.IO, "failed to create debug pipe for %q", prefix)
	}

	m.mu.Lock()
	m.pipes = append(m.pipes, &pipe{prefix: prefix, writeEnd: writeEnd, readEnd: readEnd, reader: bufio.NewReader(readEnd)})
	m.mu.Unlock()

	m.hlog.Debug("pipe added", "prefix", prefix)
	return writeEnd, nil
}

// ReadFDs returns every read end currently registered, the Go analogue of
// add_to_fdset(&read_fds, &max_fd): the REPL event loop folds these into
// its select.
func (m *Manager) ReadFDs() []*os.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	fds := make([]*os.File, len(m.pipes))
	for i, p := range m.pipes {
		fds[i] = p.readEnd
	}
	return fds
}

// HandleReady drains every pipe whose read end is in ready, buffering
// until a newline, and appends "<prefix> <line>" plus a blank line to
// sink only when enabled (§4.17 handle_ready). When disabled, bytes are
// still drained (so the writer never blocks) but discarded.
func (m *Manager) HandleReady(ready map[*os.File]bool, sink Sink) {
	m.mu.Lock()
	pipes := append([]*pipe{}, m.pipes...)
	enabled := m.enabled
	m.mu.Unlock()

	for _, p := range pipes {
		if !ready[p.readEnd] {
			continue
		}
		line, err := p.reader.ReadString('\n')
		if line != "" {
			trimmed := trimNewline(line)
			if enabled {
				sink.AppendDebugLine(p.prefix + " " + trimmed)
				sink.AppendDebugLine("")
			}
		}
		if err != nil {
			// EOF or closed pipe: nothing more to drain this tick.
			continue
		}
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// Close closes every registered pipe's read and write ends (§4.17
// destructor semantics).
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pipes {
		_ = p.readEnd.Close()
		_ = p.writeEnd.Close()
	}
	m.pipes = nil
}
