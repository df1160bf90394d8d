package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repostack/internal/config"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rsk",
	Short: "Repostack - build dependency provisioning agent",
	Long: `Repostack provisions build dependencies from remote repositories.

It resolves credentials per repository location, caches downloads locally,
and understands composite repositories that aggregate several children.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists
		config.LoadEnvFile(".env")

		if verbose {
			fmt.Printf("Repostack version: 1.0.0\n")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(cacheCmd)
}

// Helper function to handle errors
func checkErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
