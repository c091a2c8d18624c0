// Package terminal owns /dev/tty: raw-mode entry/exit, alternate-screen
// bracketing, size queries, and the Kitty CSI-u capability probe (§4.1).
package terminal

import (
	"bytes"
	"os"
	"regexp"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/ikigai-term/ikigai/internal/ikerr"
)

const (
	enterAltScreen = "\x1b[?1049h"
	exitAltScreen  = "\x1b[?1049l"
	csiUProbe      = "\x1b[?u"
	csiUEnable     = "\x1b[>9u"
	csiUDisable    = "\x1b[<u"

	probeTimeout = 80 * time.Millisecond
)

var csiUResponse = regexp.MustCompile(`\x1b\[\?(\d+)u`)

// Terminal owns the tty fd. Only the Renderer writes through it once open.
type Terminal struct {
	tty          *os.File
	origTermios  *unix.Termios
	rawApplied   bool
	altScreen    bool
	CSIUSupported bool

	sigwinch chan os.Signal
	resized  chan struct{}
}

// Open opens /dev/tty and switches it to raw mode: disables ICRNL, IXON,
// OPOST, ECHO, ICANON, IEXTEN, ISIG, sets VMIN=0/VTIME=0, and writes the
// alt-screen-enter sequence. On any failure already-acquired resources are
// released in reverse order and an IO error is returned.
func Open() (*Terminal, *ikerr.Error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, ikerr.Wrap(err, ikerr.IO, "opening /dev/tty")
	}

	fd := int(tty.Fd())
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		tty.Close()
		return nil, ikerr.Wrap(err, ikerr.IO, "tcgetattr")
	}

	raw := *orig
	raw.Iflag &^= unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.IEXTEN | unix.ISIG
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		tty.Close()
		return nil, ikerr.Wrap(err, ikerr.IO, "tcsetattr")
	}

	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		unix.IoctlSetTermios(fd, ioctlSetTermios, orig)
		tty.Close()
		return nil, ikerr.Wrap(err, ikerr.IO, "tcflush")
	}

	t := &Terminal{
		tty:         tty,
		origTermios: orig,
		rawApplied:  true,
		resized:     make(chan struct{}, 1),
	}

	if _, err := tty.WriteString(enterAltScreen); err != nil {
		t.Close()
		return nil, ikerr.Wrap(err, ikerr.IO, "entering alt screen")
	}
	t.altScreen = true

	t.probeCSIU()
	t.watchResize()

	return t, nil
}

// Size queries the tty size via TIOCGWINSZ.
func (t *Terminal) Size() (rows, cols int, kerr *ikerr.Error) {
	ws, err := unix.IoctlGetWinsize(int(t.tty.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, ikerr.Wrap(err, ikerr.IO, "TIOCGWINSZ")
	}
	return int(ws.Row), int(ws.Col), nil
}

// Write performs a raw small-burst write to the tty (§5 suspension point ii).
func (t *Terminal) Write(b []byte) (int, *ikerr.Error) {
	n, err := t.tty.Write(b)
	if err != nil {
		return n, ikerr.Wrap(err, ikerr.IO, "writing to tty")
	}
	return n, nil
}

// Fd returns the underlying tty file descriptor, for select() integration.
func (t *Terminal) Fd() int { return int(t.tty.Fd()) }

// Read reads raw bytes from the tty (VMIN=0/VTIME=0: non-blocking-ish,
// returns whatever is immediately available).
func (t *Terminal) Read(buf []byte) (int, error) {
	return t.tty.Read(buf)
}

// Resized returns a channel that receives a notification whenever SIGWINCH
// fires (§4.15 step 9, §9 signal handling).
func (t *Terminal) Resized() <-chan struct{} { return t.resized }

func (t *Terminal) watchResize() {
	t.sigwinch = make(chan os.Signal, 1)
	signalNotifyWinch(t.sigwinch)
	go func() {
		for range t.sigwinch {
			select {
			case t.resized <- struct{}{}:
			default:
			}
		}
	}()
}

// probeCSIU writes the CSI-u capability probe and waits a bounded timeout
// for a matching response. On success it enables the "disambiguate escape
// codes" progressive-enhancement flag.
func (t *Terminal) probeCSIU() {
	if _, err := t.tty.WriteString(csiUProbe); err != nil {
		return
	}

	deadline := time.Now().Add(probeTimeout)
	var buf bytes.Buffer
	chunk := make([]byte, 64)
	for time.Now().Before(deadline) {
		fd := int(t.tty.Fd())
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		remaining := int(time.Until(deadline) / time.Millisecond)
		if remaining <= 0 {
			break
		}
		n, _ := unix.Poll(fds, remaining)
		if n <= 0 {
			continue
		}
		m, err := t.tty.Read(chunk)
		if err != nil || m == 0 {
			continue
		}
		buf.Write(chunk[:m])
		if csiUResponse.Match(buf.Bytes()) {
			t.CSIUSupported = true
			t.tty.WriteString(csiUEnable)
			return
		}
	}
}

// Close restores the original termios, exits the alt screen (writing the
// CSI-u pop sequence if enabled), and closes the tty. Idempotent and safe
// on a zero-value/partially-initialized Terminal.
func (t *Terminal) Close() *ikerr.Error {
	if t == nil {
		return nil
	}
	if t.sigwinch != nil {
		signalStopWinch(t.sigwinch)
		close(t.sigwinch)
		t.sigwinch = nil
	}
	var firstErr *ikerr.Error
	if t.CSIUSupported {
		t.tty.WriteString(csiUDisable)
		t.CSIUSupported = false
	}
	if t.altScreen {
		if _, err := t.tty.WriteString(exitAltScreen); err != nil {
			firstErr = ikerr.Wrap(err, ikerr.IO, "exiting alt screen")
		}
		t.altScreen = false
	}
	if t.rawApplied && t.origTermios != nil {
		if err := unix.IoctlSetTermios(int(t.tty.Fd()), ioctlSetTermios, t.origTermios); err != nil && firstErr == nil {
			firstErr = ikerr.Wrap(err, ikerr.IO, "restoring termios")
		}
		t.rawApplied = false
	}
	if t.tty != nil {
		if err := t.tty.Close(); err != nil && firstErr == nil {
			firstErr = ikerr.Wrap(err, ikerr.IO, "closing tty")
		}
		t.tty = nil
	}
	return firstErr
}

// IsTerminal reports whether f refers to a terminal device, used by the
// logger and renderer to decide whether to emit ANSI color.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
