package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tedsta/ted/internal/buffer"
	"github.com/tedsta/ted/internal/client"
)

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit [file]",
		Short: "Edit a local buffer through a line-oriented REPL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			initial := ""
			if len(args) == 1 {
				path = args[0]
				data, err := os.ReadFile(path)
				if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("edit: %w", err)
				}
				initial = string(data)
			}

			buf, err := buffer.FromText(initial)
			if err != nil {
				return fmt.Errorf("edit: %w", err)
			}
			rec := client.New(buf, 0)

			fmt.Println(replHelp)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line, ok := parseReplLine(scanner.Text())
				if !ok {
					continue
				}
				if err := runEditCommand(cmd.Context(), rec, line, path); err != nil {
					if err == errQuit {
						return nil
					}
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			}
			return nil
		},
	}
}

var errQuit = fmt.Errorf("quit")

func runEditCommand(ctx context.Context, rec *client.Reconciler, cmdLine replCommand, defaultPath string) error {
	switch cmdLine.verb {
	case "i":
		if len(cmdLine.args) < 2 {
			return fmt.Errorf("usage: i <index> <text>")
		}
		index, err := parseIndex(cmdLine.args[0])
		if err != nil {
			return err
		}
		return applyInsert(rec, index, cmdLine.args[1])
	case "d":
		if len(cmdLine.args) < 2 {
			return fmt.Errorf("usage: d <from> <to>")
		}
		from, err := parseIndex(cmdLine.args[0])
		if err != nil {
			return err
		}
		to, err := parseIndex(cmdLine.args[1])
		if err != nil {
			return err
		}
		return applyRemove(rec, from, to)
	case "u":
		return rec.Undo()
	case "r":
		return rec.Redo()
	case "p":
		fmt.Println(rec.Buffer().Text())
		return nil
	case "w":
		path := defaultPath
		if len(cmdLine.args) > 0 {
			path = cmdLine.args[0]
		}
		if path == "" {
			return fmt.Errorf("w: no path given and no file was opened")
		}
		if err := saveBuffer(ctx, path, rec.Buffer().Text()); err != nil {
			return err
		}
		rec.ClearDirty()
		fmt.Printf("saved %s\n", path)
		return nil
	case "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type 'p' to print or 'q' to quit", cmdLine.verb)
	}
}
