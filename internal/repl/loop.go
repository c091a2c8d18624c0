package repl

import (
	"bytes"
	"context"
	"time"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/arrowburst"
	"github.com/ikigai-term/ikigai/internal/debugpipe"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/input"
	"github.com/ikigai-term/ikigai/internal/layercake"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
	"github.com/ikigai-term/ikigai/internal/render"
	"github.com/ikigai-term/ikigai/internal/terminal"
)

const spinnerTick = 100 * time.Millisecond

// scrollStep is the number of scrollback rows one scroll action moves the
// viewport by (§4.3), for both direct mouse-wheel escapes (input.ScrollUp/
// ScrollDown) and an arrow-burst Scroll verdict.
const scrollStep = 3

// termWriter adapts terminal.Terminal's *ikerr.Error-returning Write to
// the plain io.Writer render.Renderer expects.
type termWriter struct {
	term *terminal.Terminal
}

func (w termWriter) Write(b []byte) (int, error) {
	n, kerr := w.term.Write(b)
	if kerr != nil {
		return n, kerr
	}
	return n, nil
}

// computeTimeout implements §4.15 step 1: min(animation_tick while spinner
// visible, arrow-burst remaining, HTTP engine advice). A zero/negative
// duration means "no deadline" and is excluded from the min; if nothing
// has a deadline the loop blocks indefinitely (reported as 0 meaning "no
// timer", distinguished by hasDeadline).
func computeTimeout(spinnerVisible bool, arrowBurstRemaining time.Duration, engineAdvice time.Duration) (d time.Duration, hasDeadline bool) {
	best := time.Duration(-1)
	consider := func(candidate time.Duration) {
		if candidate < 0 {
			return
		}
		if best < 0 || candidate < best {
			best = candidate
		}
	}

	if spinnerVisible {
		consider(spinnerTick)
	}
	consider(arrowBurstRemaining)
	consider(engineAdvice)

	if best < 0 {
		return 0, false
	}
	return best, true
}

// Loop is the single-threaded cooperative REPL event loop of §4.15.
type Loop struct {
	term       *terminal.Terminal
	parser     *input.Parser
	burst      *arrowburst.Detector
	renderer   *render.Renderer
	registry   *provider.Registry
	debug      *debugpipe.Manager
	dispatcher *Dispatcher

	active       *agent.Agent
	debugEnabled bool
	maxToolTurns int
}

// New wires a Loop from its components. registry resolves the active
// agent's provider into a provider.Provider for each request, and
// maxToolTurns bounds tool-call iteration per turn (§4.14 "max_tool_turns").
func New(term *terminal.Terminal, registry *provider.Registry, debug *debugpipe.Manager, active *agent.Agent, maxToolTurns int) *Loop {
	l := &Loop{
		term:         term,
		parser:       input.New(),
		burst:        arrowburst.New(),
		renderer:     render.New(termWriter{term: term}),
		registry:     registry,
		debug:        debug,
		active:       active,
		maxToolTurns: maxToolTurns,
	}
	l.dispatcher = NewDispatcher(l)
	return l
}

// Notify implements Dispatcher's Notifier by appending to scrollback.
func (l *Loop) Notify(text string) {
	l.active.Scrollback.AppendLine([]byte(text))
	l.active.Scrollback.AppendLine(nil)
}

// handleCommandLine dispatches a submitted line that parses as a `/`
// command, returning true if it was consumed as a command (§4.15 step 4:
// "Unknown commands fall through to normal submission").
func (l *Loop) handleCommandLine(line string) (handled bool, outcome Outcome, err *ikerr.Error) {
	cmd, ok := ParseCommand(line)
	if !ok {
		return false, Outcome{}, nil
	}
	out, derr := l.dispatcher.Dispatch(cmd, l.active)
	if derr != nil {
		l.Notify(derr.Message)
		return true, Outcome{}, derr
	}

	if out.NewActiveAgent != nil {
		l.active = out.NewActiveAgent
	}
	if out.DebugEnabled != nil {
		l.debugEnabled = *out.DebugEnabled
		l.debug.SetEnabled(l.debugEnabled)
	}
	return true, out, nil
}

// frame builds the layercake allocation + render.Frame for the current
// terminal size and agent state (§4.15 step 8).
func (l *Loop) frame(rows, cols int) (layercake.Allocation, render.Frame) {
	sb := l.active.Scrollback
	sb.EnsureLayout(cols)

	completionCount := 0
	if l.active.Completion != nil {
		completionCount = l.active.Completion.Len()
	}

	layout, _ := l.active.Input.EnsureLayout(cols)

	state := layercake.State{
		SpinnerVisible:       l.active.Spinner,
		SeparatorVisible:     l.active.RunState == agent.StateIdle,
		InputVisible:         l.active.RunState == agent.StateIdle,
		InputPhysicalLines:   layout.PhysicalLines,
		CompletionCandidates: completionCount,
		ScrollbackTotalLines: sb.GetTotalPhysicalLines(),
		ScreenRows:           rows,
	}
	alloc := layercake.Compose(state, l.active.Viewport)
	l.active.Viewport = alloc.ViewportOffset

	frameOut := render.Frame{
		Scrollback:            sb,
		ScrollFromRow:         alloc.ViewportOffset,
		VisibleRowsScrollback: alloc.ScrollbackRows,
		TerminalWidth:         cols,
		InputBytes:            l.active.Input.Bytes(),
		InputCursorByte:       l.active.Input.CursorByteOffset(),
		RenderInputBuffer:     state.InputVisible,
		InputRowStarts:        layout.RowStartOffsets,
		InputPhysicalLines:    layout.PhysicalLines,
	}
	return alloc, frameOut
}

// RepaintNow performs one render pass immediately (used after startup and
// after any state-changing action, mirroring §4.15 step 8).
func (l *Loop) RepaintNow() *ikerr.Error {
	rows, cols, kerr := l.term.Size()
	if kerr != nil {
		return kerr
	}
	_, fr := l.frame(rows, cols)
	return l.renderer.RenderCombined(fr)
}

// FeedByte drives one stdin byte through the input parser and arrow-burst
// detector, applying the resulting actions to the active agent's input
// buffer, history browsing, and completion state (§4.15 step 3). It
// returns the line text and true once Enter submits a non-command,
// non-empty line; otherwise ok is false and the caller should just repaint.
//
// Every call first lets a pending arrow-burst buffer time out, since each
// incoming byte is itself a wake of the event loop (§4.15 step 1's
// "arrow-burst remaining" deadline has no other wake source here).
func (l *Loop) FeedByte(b byte) (line string, ok bool) {
	l.applyBurstResult(l.burst.CheckTimeout(time.Now()))

	for _, act := range l.parser.Feed(b) {
		switch act.Kind {
		case input.Char:
			l.active.Input.Insert(act.CodePoint)
		case input.Backspace:
			l.active.Input.Backspace()
		case input.InsertNewline:
			l.active.Input.InsertNewline()
		case input.SubmitNewline:
			text := string(l.active.Input.Bytes())
			l.active.Input.Clear()
			if text != "" {
				return text, true
			}
		case input.CtrlA:
			l.active.Input.CursorToLineStart()
		case input.CtrlE:
			l.active.Input.CursorToLineEnd()
		case input.CtrlK:
			l.active.Input.KillToLineEnd()
		case input.CtrlU:
			l.active.Input.KillLine()
		case input.CtrlW:
			l.active.Input.DeleteWordBackward()
		case input.ArrowLeft:
			l.active.Input.CursorLeft()
		case input.ArrowRight:
			l.active.Input.CursorRight()
		case input.ArrowUp:
			l.applyBurstResult(l.burst.Arrow(arrowburst.Up, time.Now()))
		case input.ArrowDown:
			l.applyBurstResult(l.burst.Arrow(arrowburst.Down, time.Now()))
		case input.ScrollUp:
			l.scrollViewport(-scrollStep)
		case input.ScrollDown:
			l.scrollViewport(scrollStep)
		}
	}
	return "", false
}

// applyBurstResult turns an arrowburst.Result into the corresponding input
// cursor move or scrollback scroll (§4.3, §4.15). A None result means the
// detector is still buffering a possible burst and nothing happens yet.
func (l *Loop) applyBurstResult(res arrowburst.Result) {
	switch res.Kind {
	case arrowburst.Cursor:
		if res.Dir == arrowburst.Up {
			l.active.Input.CursorUp()
		} else {
			l.active.Input.CursorDown()
		}
	case arrowburst.Scroll:
		if res.Dir == arrowburst.Up {
			l.scrollViewport(-scrollStep)
		} else {
			l.scrollViewport(scrollStep)
		}
	}
}

// scrollViewport nudges the scrollback viewport offset; layercake.Compose
// clamps it to the valid range on the next frame.
func (l *Loop) scrollViewport(delta int) {
	l.active.Viewport += delta
	if l.active.Viewport < 0 {
		l.active.Viewport = 0
	}
}

// Submit routes one fully-entered line: `/`-command lines are dispatched
// immediately (§4.15 step 4); everything else is appended as a user
// message and transitions the agent Idle -> WaitingForLLM so the caller
// can kick off a stream.
func (l *Loop) Submit(line string) (Outcome, bool, *ikerr.Error) {
	if handled, outcome, err := l.handleCommandLine(line); handled {
		return outcome, true, err
	}

	l.active.AppendMessage(llm.Message{Role: llm.RoleUser, ContentBlocks: []llm.ContentBlock{llm.TextBlock(line)}})
	l.active.History.Add(line)
	l.active.ResetToolTurns()
	l.active.BeginWaitingForLLM()
	return Outcome{}, false, nil
}

// PendingRequest builds the provider-agnostic request for the active
// agent if it is waiting on an LLM response (§4.10), returning ok=false
// if there is nothing to send (e.g. a command was just dispatched).
func (l *Loop) PendingRequest() (providerName string, req llm.Request, ok bool) {
	if l.active.RunState != agent.StateWaitingForLLM {
		return "", llm.Request{}, false
	}
	result := llm.BuildFromConversation(l.active)
	if result.Err != nil {
		l.Notify(result.Err.Message)
		l.active.FinishToIdle()
		return "", llm.Request{}, false
	}
	return l.active.Provider, result.Value, true
}

// PollToolCompletion checks whether the active agent's tool worker thread
// has finished since the last poll (§4.14 "the spinner tick provides a
// guaranteed wake" — here, every incoming byte substitutes for that wake,
// same as FeedByte's arrow-burst CheckTimeout call). It applies the result
// (or the max-tool-turns bailout) and reports whether the caller should now
// dispatch a follow-up LLM request.
func (l *Loop) PollToolCompletion() (shouldDispatch bool) {
	if l.active.RunState != agent.StateExecutingTool {
		return false
	}
	if !l.active.PollToolThread() {
		return false
	}
	if l.active.ExceededMaxToolTurns(l.maxToolTurns) {
		l.Notify("exceeded max tool turns for this request")
		l.active.FinishToIdle()
		return false
	}
	return true
}

// FinishWaiting transitions the active agent back to Idle with
// finalText appended as the assistant's reply (§4.13), used when a
// stream ends without ever reaching EventFinish (e.g. a pre-flight
// credential error).
func (l *Loop) FinishWaiting(finalText string) {
	l.active.CancelWaitingForLLM(finalText)
}

// StreamOnto drives one provider.Provider.StreamRequest call, appending
// content deltas into the active agent's scrollback streaming line and
// handling tool-call/finish/error events per §4.13/§4.14. The caller runs
// it on its own goroutine; the REPL loop only ever observes its effects
// through the agent's RunState and scrollback, never by blocking on it.
func (l *Loop) StreamOnto(ctx context.Context, req llm.Request, p provider.Provider) *ikerr.Error {
	var streamed, args bytes.Buffer
	var callID, name string

	return p.StreamRequest(ctx, req, func(ev provider.StreamEvent) {
		switch ev.Kind {
		case provider.EventContentDelta:
			streamed.WriteString(ev.Text)
		case provider.EventToolCallStart:
			callID, name = ev.ToolCallID, ev.ToolName
			args.Reset()
		case provider.EventToolCallDelta:
			args.WriteString(ev.ArgsDelta)
		case provider.EventError:
			l.active.CancelWaitingForLLM(streamed.String())
			l.Notify(ev.Message)
		case provider.EventFinish:
			l.active.CancelWaitingForLLM(streamed.String())
			if ev.Reason == provider.FinishToolCalls && callID != "" {
				l.active.BeginExecutingTool(ctx, callID, name, args.String(), unimplementedTool)
			}
		}
	})
}

// unimplementedTool is the stub invocation every recognized tool call runs
// through: concrete built-in tools are specified only by their invocation
// contract (spec §1 Non-goals) and aren't implemented here, so every call
// fails as a tool_result error, which the follow-up request can report to
// the model and the user.
func unimplementedTool(_ context.Context, name, _ string) (string, bool) {
	return "tool \"" + name + "\" is not available in this build", true
}
