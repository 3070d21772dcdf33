package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
)

var (
	flagSort string
	app      *cli.App
)

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Monthly ledger with recurring transactions",
	Long:          "Browse month-by-month ledgers where recurring templates show up as pending entries until they are logged.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		a, err := cli.Bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		app = a
		cmd.SetContext(log.WithLogger(cmd.Context(), a.Logger.WithComponent(log.ComponentCLI)))
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if app == nil {
			return nil
		}
		a := app
		app = nil
		return a.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagSort, "sort", "s", "", "Sort direction within a month: asc or desc (default from LEDGER_SORT)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "  error: %v\n", err)
		if app != nil {
			_ = app.Close()
		}
		os.Exit(1)
	}
}

// sortDirection resolves --sort against the configured default.
func sortDirection() (core.SortDirection, error) {
	if flagSort == "" {
		return app.Config.SortDirection(), nil
	}
	return core.ParseSortDirection(flagSort)
}

// parseMonthArg accepts "dec-2025" or "2025-12".
func parseMonthArg(s string) (core.MonthWindow, error) {
	if w, err := core.ParseMonthKey(s); err == nil {
		return w, nil
	}
	w, err := core.ParseYearMonth(s)
	if err != nil {
		return core.MonthWindow{}, fmt.Errorf("month %q: use dec-2025 or 2025-12", s)
	}
	return w, nil
}

// buildClass turns the kind and category flags into a classification.
func buildClass(kind, category, subcategory, incomeCategory string) (core.Classification, error) {
	k, err := core.ParseEntryKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case core.KindExpense:
		if incomeCategory != "" {
			return nil, errors.New("--income-category only applies to income")
		}
		return core.ExpenseClass{CategoryID: strings.TrimSpace(category), SubcategoryID: strings.TrimSpace(subcategory)}, nil
	case core.KindIncome:
		if category != "" || subcategory != "" {
			return nil, errors.New("--category and --subcategory only apply to expenses")
		}
		return core.IncomeClass{Category: core.IncomeCategory(strings.ToLower(strings.TrimSpace(incomeCategory)))}, nil
	default:
		panic("ledger: unhandled entry kind " + string(k))
	}
}
