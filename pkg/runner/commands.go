package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/quarry/pkg/domain"
)

type commandKind int

const (
	cmdEvent commandKind = iota
	cmdLoad
	cmdQuery
	cmdHelp
	cmdQuit
)

type command struct {
	kind  commandKind
	event domain.Event
	arg   string
}

const helpText = `Commands:
  /recommend | /modify | /whatif   choose what to build
  /load <path or URL>              load a CSV dataset
  /drop [col, col...]              drop columns (no arguments keeps all)
  /add <column> <min> <max>        add a range through the form
  /finish                          finish the current step
  /query                           print the query document
  /quit                            leave (the session is kept)
Anything else is sent as a message. Say "done" to move on.`

// parseCommand maps an input line to a runner command.
func parseCommand(line string) (command, error) {
	if line == "exit" || line == "quit" {
		return command{kind: cmdQuit}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdEvent, event: domain.Utterance(line)}, nil
	}

	name, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "recommend", "modify", "whatif":
		qt, err := domain.ParseQueryType(name)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdEvent, event: domain.SelectAction(qt)}, nil
	case "load":
		if rest == "" {
			return command{}, fmt.Errorf("usage: /load <path or URL>")
		}
		return command{kind: cmdLoad, arg: rest}, nil
	case "drop":
		return command{kind: cmdEvent, event: domain.DropColumns(splitColumns(rest)...)}, nil
	case "add":
		return parseAdd(rest)
	case "finish":
		return command{kind: cmdEvent, event: domain.Finish()}, nil
	case "query":
		return command{kind: cmdQuery}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s (try /help)", name)
}

// splitColumns splits on commas when present, else on whitespace.
func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAdd reads "<column> <min> <max>"; the column may contain spaces.
func parseAdd(rest string) (command, error) {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return command{}, fmt.Errorf("usage: /add <column> <min> <max>")
	}
	n := len(fields)
	lo, err1 := strconv.ParseFloat(fields[n-2], 64)
	hi, err2 := strconv.ParseFloat(fields[n-1], 64)
	if err1 != nil || err2 != nil {
		return command{}, fmt.Errorf("min and max must be numbers")
	}
	column := strings.Join(fields[:n-2], " ")
	return command{kind: cmdEvent, event: domain.SubmitForm(column, lo, hi)}, nil
}
