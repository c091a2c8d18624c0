// Package input turns a raw tty byte stream into the closed Action enum
// described in §4.2: legacy VT100/xterm escape sequences, Kitty CSI-u
// keyboard events, SGR mouse reporting, and UTF-8 text.
package input

import "github.com/ikigai-term/ikigai/internal/uwidth"

// ActionKind enumerates the semantic key/mouse actions the parser emits.
type ActionKind int

const (
	Char ActionKind = iota
	Tab
	Backspace
	InsertNewline
	SubmitNewline
	Escape
	ArrowUp
	ArrowDown
	ArrowLeft
	ArrowRight
	CtrlA
	CtrlC
	CtrlE
	CtrlK
	CtrlU
	CtrlW
	ScrollUp
	ScrollDown
	Unknown
)

// Action is one semantic event produced by the parser.
type Action struct {
	Kind      ActionKind
	CodePoint rune // valid when Kind == Char
}

type state int

const (
	stateIdle state = iota
	stateEscape
	stateUTF8
)

const maxEscapeBuffer = 32

// Parser is a byte-stream state machine. It is not safe for concurrent use.
type Parser struct {
	st       state
	escBuf   []byte
	utf8Buf  []byte
	utf8Want int
}

// New returns a fresh Parser in the idle state.
func New() *Parser {
	return &Parser{}
}

// Feed consumes one input byte and returns the actions it produced (zero,
// one, or occasionally more — e.g. a flushed UTF-8 rune followed by a new
// sequence start). Most bytes produce at most one action.
func (p *Parser) Feed(b byte) []Action {
	switch p.st {
	case stateIdle:
		return p.feedIdle(b)
	case stateEscape:
		return p.feedEscape(b)
	case stateUTF8:
		return p.feedUTF8(b)
	default:
		p.reset()
		return nil
	}
}

func (p *Parser) reset() {
	p.st = stateIdle
	p.escBuf = p.escBuf[:0]
	p.utf8Buf = p.utf8Buf[:0]
	p.utf8Want = 0
}

func (p *Parser) feedIdle(b byte) []Action {
	switch b {
	case 0x03:
		return []Action{{Kind: CtrlC}}
	case 0x01:
		return []Action{{Kind: CtrlA}}
	case 0x05:
		return []Action{{Kind: CtrlE}}
	case 0x0B:
		return []Action{{Kind: CtrlK}}
	case 0x15:
		return []Action{{Kind: CtrlU}}
	case 0x17:
		return []Action{{Kind: CtrlW}}
	case 0x09:
		return []Action{{Kind: Tab}}
	case 0x0A:
		return []Action{{Kind: InsertNewline}}
	case 0x0D:
		return []Action{{Kind: SubmitNewline}}
	case 0x7F:
		return []Action{{Kind: Backspace}}
	case 0x1b:
		p.st = stateEscape
		p.escBuf = p.escBuf[:0]
		return nil
	}

	if b >= 0x20 && b <= 0x7E {
		return []Action{{Kind: Char, CodePoint: rune(b)}}
	}

	// Leading byte of a multi-byte UTF-8 sequence.
	if b >= 0xC0 {
		size := utf8SizeFromLead(b)
		if size == 0 {
			return nil // invalid lead byte, discard
		}
		p.st = stateUTF8
		p.utf8Buf = append(p.utf8Buf[:0], b)
		p.utf8Want = size
		return nil
	}

	return nil
}

func utf8SizeFromLead(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

func (p *Parser) feedUTF8(b byte) []Action {
	if b&0xC0 != 0x80 {
		// invalid continuation byte: reset without emitting
		p.reset()
		return nil
	}
	p.utf8Buf = append(p.utf8Buf, b)
	if len(p.utf8Buf) < p.utf8Want {
		return nil
	}
	r, _, ok := uwidth.DecodeRune(p.utf8Buf)
	p.reset()
	if !ok {
		return nil
	}
	return []Action{{Kind: Char, CodePoint: r}}
}

func (p *Parser) feedEscape(b byte) []Action {
	if len(p.escBuf) == 0 && b != '[' {
		// Bare ESC or an unsupported escape-intro byte.
		p.reset()
		if b == 0x1b {
			return []Action{{Kind: Escape}}
		}
		return nil
	}

	p.escBuf = append(p.escBuf, b)
	if len(p.escBuf) > maxEscapeBuffer {
		p.reset()
		return nil
	}

	if len(p.escBuf) == 1 {
		return nil // just consumed '['
	}

	// p.escBuf[0] == '[', remainder accumulates until a final byte.
	body := p.escBuf[1:]
	last := body[len(body)-1]

	switch {
	case len(body) == 1 && isSimpleArrowFinal(last):
		p.reset()
		return []Action{{Kind: arrowKind(last)}}

	case body[0] == '<':
		if isFinalByte(last) && last != '<' {
			return p.finishMouse(body)
		}
		return nil

	case isFinalByte(last):
		return p.finishGeneric(body)
	}

	return nil
}

func isSimpleArrowFinal(b byte) bool {
	switch b {
	case 'A', 'B', 'C', 'D':
		return true
	}
	return false
}

func arrowKind(b byte) ActionKind {
	switch b {
	case 'A':
		return ArrowUp
	case 'B':
		return ArrowDown
	case 'C':
		return ArrowRight
	default:
		return ArrowLeft
	}
}

func isFinalByte(b byte) bool {
	return b >= 0x40 && b <= 0x7E
}

// finishMouse parses `< b ; col ; row ; M|m`.
func (p *Parser) finishMouse(body []byte) []Action {
	defer p.reset()
	final := body[len(body)-1]
	if final != 'M' && final != 'm' {
		return nil
	}
	fields := splitSemicolons(body[1 : len(body)-1])
	if len(fields) < 1 {
		return nil
	}
	button := atoiSafe(fields[0])
	switch button {
	case 64:
		return []Action{{Kind: ScrollUp}}
	case 65:
		return []Action{{Kind: ScrollDown}}
	default:
		return nil
	}
}

// finishGeneric handles CSI-u (`<keycode>[;<modifiers>]u`) and SGR
// (`<digits>(;<digits>)*m`) sequences, discarding anything else recognized
// but not actionable, and resetting to idle on malformed input.
func (p *Parser) finishGeneric(body []byte) []Action {
	defer p.reset()
	final := body[len(body)-1]
	params := body[:len(body)-1]

	switch final {
	case 'u':
		return p.translateCSIU(params)
	case 'm':
		return nil // SGR: discarded (strips pasted color)
	default:
		return nil // unknown well-formed CSI: discarded
	}
}

func splitSemicolons(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == ';' {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	return out
}

func atoiSafe(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// translateCSIU implements the Kitty CSI-u keycode/modifier translation
// table in §4.2.
func (p *Parser) translateCSIU(params []byte) []Action {
	fields := splitSemicolons(params)
	if len(fields) == 0 || len(fields[0]) == 0 {
		return nil
	}
	keycode := atoiSafe(fields[0])
	modifiers := 1
	if len(fields) > 1 && len(fields[1]) > 0 {
		modifiers = atoiSafe(fields[1])
	}
	mask := modifiers - 1
	shift := mask&1 != 0
	ctrl := mask&4 != 0

	switch keycode {
	case 13:
		if modifiers == 1 {
			return []Action{{Kind: SubmitNewline}}
		}
		return []Action{{Kind: InsertNewline}}
	case 9:
		return []Action{{Kind: Tab}}
	case 27:
		return []Action{{Kind: Escape}}
	case 127:
		return []Action{{Kind: Backspace}}
	}

	if ctrl {
		if kind, ok := ctrlActionFor(keycode); ok {
			return []Action{{Kind: kind}}
		}
		return []Action{{Kind: Char, CodePoint: rune(keycode)}}
	}

	if isPrintableKeycode(keycode) {
		if shift {
			return []Action{{Kind: Char, CodePoint: shiftedVariant(rune(keycode))}}
		}
		return []Action{{Kind: Char, CodePoint: rune(keycode)}}
	}

	// Modifier-only synthetic keycodes (Alacritty emits these): discarded.
	return nil
}

func isPrintableKeycode(code int) bool {
	return code >= 0x20 && code <= 0x7E
}

func ctrlActionFor(keycode int) (ActionKind, bool) {
	switch keycode {
	case 'c', 'C':
		return CtrlC, true
	case 'a', 'A':
		return CtrlA, true
	case 'e', 'E':
		return CtrlE, true
	case 'k', 'K':
		return CtrlK, true
	case 'u', 'U':
		return CtrlU, true
	case 'w', 'W':
		return CtrlW, true
	}
	return Unknown, false
}

// shiftedVariant maps an unshifted printable code point to its shifted,
// US-keyboard-layout counterpart.
func shiftedVariant(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	if v, ok := usShiftMap[r]; ok {
		return v
	}
	return r
}

var usShiftMap = map[rune]rune{
	'1': '!', '2': '@', '3': '#', '4': '$', '5': '%',
	'6': '^', '7': '&', '8': '*', '9': '(', '0': ')',
	'-': '_', '=': '+', '[': '{', ']': '}', '\\': '|',
	';': ':', '\'': '"', ',': '<', '.': '>', '/': '?',
	'`': '~',
}
