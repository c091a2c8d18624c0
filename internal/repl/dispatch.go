package repl

import (
	"strconv"
	"strings"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
	"github.com/ikigai-term/ikigai/internal/llm/provider"
)

// inferProviderOrKeep re-infers the provider family from a new model name
// (§4.14 "cross-provider forks infer the new provider"), applied equally
// to `/model` so switching model families mid-conversation doesn't leave
// the agent bound to the wrong provider adapter.
func inferProviderOrKeep(model, current string) string {
	if inferred := provider.InferProvider(model); inferred != "" {
		return inferred
	}
	return current
}

// Notifier receives informational text the dispatcher wants appended to
// scrollback (help text, error diagnostics, mail-command stubs).
type Notifier interface {
	Notify(text string)
}

// Outcome reports what a dispatched command did, so the REPL loop knows
// whether to swap in a new active agent, rotate the logger, or toggle
// debug output.
type Outcome struct {
	NewActiveAgent *agent.Agent // set by /fork
	ClearRequested bool         // set by /clear
	DebugEnabled   *bool        // set by /debug; nil if unchanged
	KillRequested  bool         // set by /kill
	SendRequested  bool         // set by /send
}

// Dispatcher executes the §4.15 command vocabulary against the active
// agent.
type Dispatcher struct {
	notifier Notifier
}

// NewDispatcher constructs a Dispatcher reporting informational text
// through notifier.
func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Dispatch executes cmd against a, returning the side effects the REPL
// loop must apply.
func (d *Dispatcher) Dispatch(cmd Command, a *agent.Agent) (Outcome, *ikerr.Error) {
	switch cmd.Name {
	case CmdClear:
		return Outcome{ClearRequested: true}, nil

	case CmdDebug:
		enabled := parseDebugArg(cmd.Args)
		return Outcome{DebugEnabled: &enabled}, nil

	case CmdFork:
		overrides, err := parseForkArgs(cmd.Args)
		if err != nil {
			return Outcome{}, err
		}
		child := a.Fork(overrides)
		d.notifier.Notify("forked agent " + child.UUID)
		return Outcome{NewActiveAgent: child}, nil

	case CmdHelp:
		d.notifier.Notify(helpText())
		return Outcome{}, nil

	case CmdKill:
		return Outcome{KillRequested: true}, nil

	case CmdMark:
		name := strings.TrimSpace(cmd.Args)
		if name == "" {
			return Outcome{}, ikerr.New(ikerr.InvalidArg, "mark requires a name")
		}
		a.Mark(name)
		d.notifier.Notify("marked " + name)
		return Outcome{}, nil

	case CmdModel:
		return d.dispatchModel(cmd.Args, a)

	case CmdRewind:
		return d.dispatchRewind(cmd.Args, a)

	case CmdSend:
		return Outcome{SendRequested: true}, nil

	case CmdCheckMail, CmdReadMail, CmdDeleteMail:
		d.notifier.Notify("no mail store is configured")
		return Outcome{}, nil

	case CmdSystem:
		a.SystemMessage = strings.TrimSpace(cmd.Args)
		d.notifier.Notify("system prompt updated")
		return Outcome{}, nil

	default:
		return Outcome{}, ikerr.New(ikerr.InvalidArg, "unrecognized command %q", cmd.Name)
	}
}

func (d *Dispatcher) dispatchModel(args string, a *agent.Agent) (Outcome, *ikerr.Error) {
	name := strings.TrimSpace(args)
	if name == "" {
		d.notifier.Notify("current model: " + a.Model + " (" + a.Provider + ")")
		return Outcome{}, nil
	}
	a.Model = name
	if inferred := inferProviderOrKeep(name, a.Provider); inferred != "" {
		a.Provider = inferred
	}
	d.notifier.Notify("model set to " + a.Model + " (" + a.Provider + ")")
	return Outcome{}, nil
}

func (d *Dispatcher) dispatchRewind(args string, a *agent.Agent) (Outcome, *ikerr.Error) {
	trimmed := strings.TrimSpace(args)
	n := a.MessageCount()
	if n > 0 {
		n--
	}
	if trimmed != "" {
		parsed, convErr := strconv.Atoi(trimmed)
		if convErr != nil {
			return Outcome{}, ikerr.Wrap(convErr, ikerr.InvalidArg, "rewind target %q is not an integer", trimmed)
		}
		n = parsed
	}
	if err := a.Rewind(n); err != nil {
		return Outcome{}, err
	}
	d.notifier.Notify("rewound to " + strconv.Itoa(n) + " messages")
	return Outcome{}, nil
}

func parseDebugArg(args string) bool {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "off", "false", "0":
		return false
	default:
		return true
	}
}

func parseForkArgs(args string) (agent.ForkOverrides, *ikerr.Error) {
	var overrides agent.ForkOverrides
	for _, field := range strings.Fields(args) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return agent.ForkOverrides{}, ikerr.New(ikerr.InvalidArg, "malformed fork argument %q, expected key=value", field)
		}
		switch key {
		case "model":
			overrides.Model = value
		case "thinking":
			level, err := parseThinkingLevel(value)
			if err != nil {
				return agent.ForkOverrides{}, err
			}
			overrides.Thinking = level
		default:
			return agent.ForkOverrides{}, ikerr.New(ikerr.InvalidArg, "unrecognized fork argument %q", key)
		}
	}
	return overrides, nil
}

func parseThinkingLevel(s string) (llm.ThinkingLevel, *ikerr.Error) {
	switch strings.ToLower(s) {
	case "min":
		return llm.ThinkingMin, nil
	case "low":
		return llm.ThinkingLow, nil
	case "med", "medium":
		return llm.ThinkingMed, nil
	case "high":
		return llm.ThinkingHigh, nil
	default:
		return "", ikerr.New(ikerr.InvalidArg, "unrecognized thinking level %q", s)
	}
}

func helpText() string {
	return "commands: /" + strings.Join(Vocabulary, ", /")
}
