package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/doc-qa/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docqa configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose LLM and embedding providers, retrieval settings and the API token, and writes a .docqa.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
