package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/doc-qa/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document question-answering tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(appOptions{allowLocalFiles: true})
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "docqa MCP server started on stdio (data=%s, passages=%d)\n",
			a.cfg.DataDir, a.index.Count())

		return mcpserver.NewServer(a.svc).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
