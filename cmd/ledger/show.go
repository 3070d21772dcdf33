package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
)

var showCmd = &cobra.Command{
	Use:   "show [month]",
	Short: "Show one month's entries and pending occurrences",
	Long:  "Show one month. The month is given as dec-2025 or 2025-12 and defaults to the current one.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	dir, err := sortDirection()
	if err != nil {
		return err
	}

	var w core.MonthWindow
	if len(args) == 1 {
		if w, err = parseMonthArg(args[0]); err != nil {
			return err
		}
	} else if w, err = core.WindowOf(time.Now()); err != nil {
		return err
	}

	b, err := app.Ledger.Month(cmd.Context(), w, dir)
	if err != nil {
		return err
	}
	log.FromContext(cmd.Context()).Debug("Showing month",
		log.FieldMonthKey, b.Key,
		log.FieldDirection, string(dir),
		log.FieldEntries, len(b.Entries),
		log.FieldWarnings, len(b.Warnings))

	fmt.Println()
	fmt.Print(cli.RenderBucket(b))
	fmt.Println()
	return nil
}
