package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deepsearch",
	Short: "Retrieval-augmented QA service over your documents",
	Long: `DeepSearch ingests documents into a vector index and answers
questions about them by retrieving the most similar chunks and asking an
LLM to synthesize an answer from that context.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
