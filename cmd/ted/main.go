// Command ted is the synchronization core's CLI entry point: `ted edit`
// drives the local reconciler and buffer from a line-oriented REPL,
// `ted serve` hosts sessions over HTTP/WebSocket, and `ted connect`
// dials a running server.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tedsta/ted/pkg/logger"
)

func main() {
	logger.Init()

	root := &cobra.Command{
		Use:   "ted",
		Short: "ted — collaborative modal text editor",
		Long:  "A modal text editor whose buffer can be shared live with other clients via operational transformation.",
	}

	root.AddCommand(
		editCmd(),
		serveCmd(),
		connectCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
