package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tedsta/ted/internal/client"
	"github.com/tedsta/ted/internal/protocol"
	"github.com/tedsta/ted/pkg/logger"
	"github.com/tedsta/ted/pkg/transport"
)

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <host:port> [session-id]",
		Short: "Connect to a session hosted by `ted serve`",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := args[0]
			id, err := resolveSessionID(ctx, addr, args)
			if err != nil {
				return err
			}

			url := "ws://" + addr + "/api/socket/" + id
			codec := protocol.NewCompressingCodec(protocol.BinaryCodec{}, 256*1024)

			conn, rec, err := transport.Dial(ctx, url, codec)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()

			fmt.Printf("connected as client %d to session %s\n", conn.ID(), id)
			fmt.Println(replHelp)

			go func() {
				if err := conn.Run(ctx); err != nil {
					logger.Debug("connect: read loop ended: %v", err)
				}
			}()

			// drainPackets folds every server packet Run has queued so far
			// into rec. It is only ever called from this goroutine, so rec
			// is never touched concurrently.
			drainPackets := func() {
				for {
					select {
					case pkt := <-conn.Packets():
						if err := transport.ApplyServerPacket(rec, pkt); err != nil {
							logger.Error("connect: apply server packet: %v", err)
						}
					default:
						return
					}
				}
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				drainPackets()
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				drainPackets()
				line, ok := parseReplLine(scanner.Text())
				if !ok {
					continue
				}
				if err := runConnectCommand(ctx, rec, conn, line); err != nil {
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

// resolveSessionID returns the session id to connect to: the second
// positional argument if given, or a freshly created session from the
// server's /api/new endpoint otherwise.
func resolveSessionID(ctx context.Context, addr string, args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}

	url := "http://" + addr + "/api/new"
	req, err := httpGet(ctx, url)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return strings.TrimSpace(req), nil
}

func runConnectCommand(ctx context.Context, rec *client.Reconciler, conn *transport.ClientConn, cmdLine replCommand) error {
	switch cmdLine.verb {
	case "i", "d", "u", "r":
		if err := runEditCommand(ctx, rec, cmdLine, ""); err != nil {
			return err
		}
		return flushPending(ctx, rec, conn)
	case "p":
		fmt.Println(rec.Buffer().Text())
		return nil
	case "w":
		path := ""
		if len(cmdLine.args) > 0 {
			path = cmdLine.args[0]
		}
		if path == "" {
			return fmt.Errorf("w: no path given")
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

// flushPending sends every locally applied op the server has not yet
// seen.
func flushPending(ctx context.Context, rec *client.Reconciler, conn *transport.ClientConn) error {
	version := uint64(rec.ServerVersionKnown())
	for _, op := range rec.PendingOpsToSend() {
		if err := conn.SendOp(ctx, version, op); err != nil {
			return fmt.Errorf("send op: %w", err)
		}
	}
	return nil
}
