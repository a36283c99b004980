package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over policy PDFs",
	Long: `docqa downloads policy and contract PDFs, splits them into section-aware
passages, indexes their embeddings and answers natural-language questions
with cited, confidence-scored responses. It runs as an HTTP API, an MCP
server for AI agents, or from the command line.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".docqa.yml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: pretty or json (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
}
