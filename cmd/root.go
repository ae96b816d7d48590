package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "Ingest structured data and chat over it",
	Long: `datachat loads records from CSV files, PostgreSQL tables or MongoDB
collections, normalizes them against a declared schema, embeds them into a
vector index and answers questions grounded on the most similar documents.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
