package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
)

var (
	flagPast   int
	flagFuture int
)

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "Summarize the navigable months around today",
	Args:  cobra.NoArgs,
	RunE:  runMonths,
}

func init() {
	monthsCmd.Flags().IntVar(&flagPast, "past", -1, "Months before the current one (default from MONTHS_PAST)")
	monthsCmd.Flags().IntVar(&flagFuture, "future", -1, "Months after the current one (default from MONTHS_FUTURE)")
	rootCmd.AddCommand(monthsCmd)
}

func runMonths(cmd *cobra.Command, _ []string) error {
	dir, err := sortDirection()
	if err != nil {
		return err
	}
	past, future := app.Config.MonthsPast, app.Config.MonthsFuture
	if cmd.Flags().Changed("past") {
		past = flagPast
	}
	if cmd.Flags().Changed("future") {
		future = flagFuture
	}

	buckets, err := app.Ledger.Window(cmd.Context(), past, future, dir)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("LEDGER  %d past, %d future", past, future)))
	fmt.Println()
	fmt.Print(cli.RenderMonths(buckets))
	return nil
}
