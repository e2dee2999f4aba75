// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package console tokenizes operator-typed command lines, the kind typed
// into the monitor TUI's command entry or a local test harness, into
// argv-style tokens ready for dispatch as ground-station-equivalent
// commands.
package console

import (
	"fmt"

	"github.com/google/shlex"

	"github.com/hyped/podctl/internal/statemachine"
)

// Command is a parsed, ready-to-dispatch operator command.
type Command struct {
	Name string
	Args []string
}

// Parse splits an operator-typed line into a Command using shell-style
// tokenization, so quoted arguments and escapes behave the way an operator
// typing at a terminal expects.
func Parse(line string) (Command, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("tokenize command: %w", err)
	}
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Name: tokens[0], Args: tokens[1:]}, nil
}

// knownCommands maps operator command names to the state-machine event
// they inject, mirroring the codes the ground station link sends over the
// wire so the same commands work from a local console during testing.
var knownCommands = map[string]statemachine.Event{
	"launch": statemachine.OnStart,
	"stop":   statemachine.EndOfRunReached,
	"kill":   statemachine.CriticalFailureDetected,
}

// ToEvent resolves a parsed Command to the state-machine event it injects,
// or an error if the command name is not recognized.
func (c Command) ToEvent() (statemachine.Event, error) {
	e, ok := knownCommands[c.Name]
	if !ok {
		return 0, fmt.Errorf("unknown command %q", c.Name)
	}
	return e, nil
}
