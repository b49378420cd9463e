package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentserver",
		Short: "Serve an agent over the /invocations endpoint",
		Long: `agentserver hosts agent handlers behind a single endpoint.

Commands:
  serve   - Start the HTTP server

Example:
  agentserver serve --config config.yaml
  AGENTSERVER_PORT=9000 agentserver serve`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}
