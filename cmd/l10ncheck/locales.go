package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/l10ncheck/internal/config"
)

var localesCmd = &cobra.Command{
	Use:   "locales",
	Short: "List the locale cases a run would validate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCALE\tLANGUAGE\tEXPECTED TITLE\tURL")
		for _, c := range cfg.Cases() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Locale, c.DisplayName(), c.ExpectedTitle, c.URL)
		}
		return tw.Flush()
	},
}
