package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/version"
)

// newOpener is swapped in tests for an in-memory browser.
var newOpener = browser.NewOpener

var rootCmd = &cobra.Command{
	Use:   "l10ncheck",
	Short: "l10ncheck - validate localized homepages in a real browser",
	Long: `l10ncheck drives a browser through a table of localized homepages,
checks that every page title carries the expected localized text and keeps
a screenshot of each page as evidence.

The stock table covers the English, French, Spanish and Hindi Wikipedia
main pages. Any failing locale makes the run exit non-zero.`,
	Version:      version.String(),
	SilenceUsage: true,
}

var configFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a l10ncheck.yaml config file (default: ./l10ncheck.yaml or ./config/l10ncheck.yaml if present)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(localesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "l10ncheck %s\n", version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
