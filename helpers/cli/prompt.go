// Package cli runs line oriented subcommands: go-prompt REPL on terminal, batch on pipe.
package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

// MainLoop blocks until user exits REPL or stdin is consumed.
func MainLoop(tag string, exec Executor, complete Completer) error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return RunLines(os.Stdin, exec)
}

// RunLines calls exec for each non-empty line of r.
func RunLines(r io.Reader, exec Executor) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(line)
	}
	return errors.Annotate(scanner.Err(), "read lines")
}

// NoComplete is Completer without suggestions.
func NoComplete(prompt.Document) []prompt.Suggest { return nil }
