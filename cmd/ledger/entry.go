package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

var (
	flagEntryKind        string
	flagEntryAmount      string
	flagEntryCategory    string
	flagEntrySubcategory string
	flagEntryIncomeCat   string
	flagEntryDate        string
	flagEntryNote        string
	flagConfirmAmount    string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage one-off ledger entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log a one-off expense or income",
	Args:  cobra.NoArgs,
	RunE:  runEntryAdd,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <template-id> <date>",
	Short: "Log a pending recurring occurrence",
	Long:  "Log the occurrence of a template on a date (YYYY-MM-DD). Confirming an occurrence that is already logged reports the existing entry.",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfirm,
}

func init() {
	f := entryAddCmd.Flags()
	f.StringVarP(&flagEntryKind, "kind", "k", "expense", "expense or income")
	f.StringVarP(&flagEntryAmount, "amount", "a", "", "Amount, e.g. 12.50")
	f.StringVarP(&flagEntryCategory, "category", "c", "", "Expense category id")
	f.StringVar(&flagEntrySubcategory, "subcategory", "", "Expense subcategory id")
	f.StringVarP(&flagEntryIncomeCat, "income-category", "i", "", "Income category")
	f.StringVar(&flagEntryDate, "date", "", "Date YYYY-MM-DD or RFC 3339 instant (default: now)")
	f.StringVar(&flagEntryNote, "note", "", "Free-text note")
	_ = entryAddCmd.MarkFlagRequired("amount")
	entryCmd.AddCommand(entryAddCmd)

	confirmCmd.Flags().StringVarP(&flagConfirmAmount, "amount", "a", "", "Actual amount when it differs from the template")

	rootCmd.AddCommand(entryCmd, confirmCmd)
}

func runEntryAdd(cmd *cobra.Command, _ []string) error {
	amount, err := core.ParseAmount(flagEntryAmount)
	if err != nil {
		return err
	}
	class, err := buildClass(flagEntryKind, flagEntryCategory, flagEntrySubcategory, flagEntryIncomeCat)
	if err != nil {
		return err
	}
	ts := flagEntryDate
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}

	e, err := app.Ledger.LogEntry(cmd.Context(), core.LedgerEntry{
		Amount:    amount,
		Class:     class,
		Note:      flagEntryNote,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	day, _ := e.DateKey()
	fmt.Printf("  Logged %s %s on %s (%s)\n", e.Kind(), e.Amount, day, e.ID)
	return nil
}

func runConfirm(cmd *cobra.Command, args []string) error {
	k, err := core.ParseDateKey(args[1])
	if err != nil {
		return err
	}
	var amount *core.Money
	if flagConfirmAmount != "" {
		m, err := core.ParseAmount(flagConfirmAmount)
		if err != nil {
			return err
		}
		amount = &m
	}

	e, created, err := app.Ledger.ConfirmOccurrence(cmd.Context(), args[0], k, amount)
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("  Already logged as %s (%s)\n", e.ID, e.Amount)
		return nil
	}
	fmt.Printf("  Logged %s %s for %s on %s\n", e.Kind(), e.Amount, args[0], k)
	return nil
}
