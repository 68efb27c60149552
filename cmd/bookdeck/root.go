package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "bookdeck",
	Short: "Turn a book into a printable deck of illustrated study cards",
	Long: `bookdeck turns an EPUB or HTML book into a printable deck.

The pipeline:
  - Cleans the book into normalized HTML with stable anchors
  - Asks a language model for sections, chapters and key passages
  - Generates concept and example cards per section, sized to its length
  - Illustrates cards and section landscapes
  - Renders every page to PDF and tiles them onto A4 sheets`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bookdeck/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "bookdeck home directory (default: ~/.bookdeck)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log at debug level",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
