// Package repl implements the REPL event loop and command dispatcher of
// §4.15: a single-threaded cooperative loop driven by a select over
// stdin, the HTTP engine, and the debug-pipe manager.
package repl

import "strings"

// CommandName enumerates the recognized slash-command vocabulary (§4.15).
// Unknown commands fall through to normal submission.
type CommandName string

const (
	CmdClear      CommandName = "clear"
	CmdDebug      CommandName = "debug"
	CmdFork       CommandName = "fork"
	CmdHelp       CommandName = "help"
	CmdKill       CommandName = "kill"
	CmdMark       CommandName = "mark"
	CmdModel      CommandName = "model"
	CmdRewind     CommandName = "rewind"
	CmdSend       CommandName = "send"
	CmdCheckMail  CommandName = "check-mail"
	CmdReadMail   CommandName = "read-mail"
	CmdDeleteMail CommandName = "delete-mail"
	CmdSystem     CommandName = "system"
)

// Vocabulary is the full recognized command name list, in the order the
// original test suite enumerates it — used to seed command completion.
var Vocabulary = []string{
	string(CmdClear), string(CmdDebug), string(CmdFork), string(CmdHelp),
	string(CmdKill), string(CmdMark), string(CmdModel), string(CmdRewind),
	string(CmdSend), string(CmdCheckMail), string(CmdReadMail),
	string(CmdDeleteMail), string(CmdSystem),
}

// Command is a parsed `/name arg...` line.
type Command struct {
	Name CommandName
	Args string
}

var knownCommands = func() map[string]bool {
	m := make(map[string]bool, len(Vocabulary))
	for _, v := range Vocabulary {
		m[v] = true
	}
	return m
}()

// ParseCommand recognizes a line beginning with "/" as a command. ok is
// false for a line that isn't a recognized command (including plain text
// or an unknown `/word`), per §4.15's "unknown commands fall through to
// normal submission".
func ParseCommand(line string) (cmd Command, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	body := strings.TrimPrefix(line, "/")
	name, rest, _ := strings.Cut(body, " ")
	if !knownCommands[name] {
		return Command{}, false
	}
	return Command{Name: CommandName(name), Args: strings.TrimSpace(rest)}, true
}
