package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tedsta/ted/internal/client"
	"github.com/tedsta/ted/internal/ot"
)

// replCommand is one parsed line of the line-oriented REPL `ted edit`
// and `ted connect` both drive: a minimal stand-in for a full modal
// keybinding table and command-language evaluator.
type replCommand struct {
	verb string
	args []string
}

func parseReplLine(line string) (replCommand, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return replCommand{}, false
	}
	fields := strings.SplitN(line, " ", 3)
	return replCommand{verb: fields[0], args: fields[1:]}, true
}

// applyInsert builds an Insert operation at index and runs it through
// rec.ApplyLocal.
func applyInsert(rec *client.Reconciler, index int, text string) error {
	return rec.ApplyLocal(ot.NewInsert(index, text))
}

// applyRemove builds a Remove operation covering the inclusive byte
// range [from, to], reading the doomed text from the buffer first since
// ot.NewRemove must carry it for Inverse to work.
func applyRemove(rec *client.Reconciler, from, to int) error {
	data := rec.Buffer().Bytes()
	if from < 0 || to >= len(data) || from > to {
		return fmt.Errorf("range [%d,%d] out of bounds for a %d-byte buffer", from, to, len(data))
	}
	text := string(data[from : to+1])
	return rec.ApplyLocal(ot.NewRemove(from, to, text))
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

const replHelp = `commands:
  i <index> <text>   insert text at byte index
  d <from> <to>      remove the inclusive byte range [from, to]
  u                  undo
  r                  redo
  p                  print the buffer
  w [path]           save (local path, or s3://bucket/key)
  q                  quit
`
