package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xeonx/timeago"

	"github.com/gotrs-io/l10ncheck/internal/config"
	"github.com/gotrs-io/l10ncheck/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history <locale>",
	Short: "Show recent results for a locale from the history database",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var (
	historyLimitFlag int
	historyDSNFlag   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of results")
	historyCmd.Flags().StringVar(&historyDSNFlag, "dsn", "", "History database (default: history.dsn from config)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	dsn := cfg.History.DSN
	if historyDSNFlag != "" {
		dsn = historyDSNFlag
	}

	store, err := history.Open(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	// Locales are stored as configured; BCP 47 tags keep their case.
	loc := args[0]
	results, err := store.LocaleHistory(cmd.Context(), loc, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No results recorded for %s\n", loc)
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECKED\tRESULT\tDETAIL")
	for _, res := range results {
		when := timeago.English.Format(res.CheckedAt)
		if res.Passed {
			fmt.Fprintf(tw, "%s\t✅ passed\t%s\n", when, res.ActualTitle)
			continue
		}
		fmt.Fprintf(tw, "%s\t❌ %s\t%s\n", when, res.Kind, res.Error)
	}
	return tw.Flush()
}
