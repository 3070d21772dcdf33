package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
)

var (
	flagTplID          string
	flagTplKind        string
	flagTplAmount      string
	flagTplCategory    string
	flagTplSubcategory string
	flagTplIncomeCat   string
	flagTplStart       string
	flagTplDay         int
	flagTplLimit       int
	flagTplNote        string
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage recurring templates",
}

var templateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a monthly recurring template",
	Args:  cobra.NoArgs,
	RunE:  runTemplateAdd,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ts, err := app.Ledger.Templates(cmd.Context())
		if err != nil {
			return err
		}
		if len(ts) == 0 {
			fmt.Println("\n  No templates.")
			return nil
		}
		fmt.Println()
		fmt.Print(cli.RenderTemplates(ts))
		return nil
	},
}

var templatePauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Stop scheduling a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.Ledger.PauseTemplate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("  Paused %s\n", t.ID)
		return nil
	},
}

var templateResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.Ledger.ResumeTemplate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("  Resumed %s\n", t.ID)
		return nil
	},
}

var templateSkipCmd = &cobra.Command{
	Use:   "skip <id> <date>",
	Short: "Skip one occurrence (date as YYYY-MM-DD)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := core.ParseDateKey(args[1])
		if err != nil {
			return err
		}
		t, err := app.Ledger.SkipOccurrence(cmd.Context(), args[0], k)
		if err != nil {
			return err
		}
		fmt.Printf("  Skipped %s on %s\n", t.ID, k)
		return nil
	},
}

var templateUnskipCmd = &cobra.Command{
	Use:   "unskip <id> <date>",
	Short: "Restore a skipped occurrence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := core.ParseDateKey(args[1])
		if err != nil {
			return err
		}
		t, err := app.Ledger.UnskipOccurrence(cmd.Context(), args[0], k)
		if err != nil {
			return err
		}
		fmt.Printf("  Restored %s on %s\n", t.ID, k)
		return nil
	},
}

func init() {
	f := templateAddCmd.Flags()
	f.StringVar(&flagTplID, "id", "", "Template id (generated when empty)")
	f.StringVarP(&flagTplKind, "kind", "k", "expense", "expense or income")
	f.StringVarP(&flagTplAmount, "amount", "a", "", "Amount, e.g. 12.50")
	f.StringVarP(&flagTplCategory, "category", "c", "", "Expense category id")
	f.StringVar(&flagTplSubcategory, "subcategory", "", "Expense subcategory id")
	f.StringVarP(&flagTplIncomeCat, "income-category", "i", "", "Income category")
	f.StringVar(&flagTplStart, "start", "", "First eligible date, YYYY-MM-DD")
	f.IntVar(&flagTplDay, "day", 0, "Day of month 1-31 (default: the start date's day)")
	f.IntVar(&flagTplLimit, "limit", 0, "Total occurrences (0 for unlimited)")
	f.StringVar(&flagTplNote, "note", "", "Free-text note")
	_ = templateAddCmd.MarkFlagRequired("amount")
	_ = templateAddCmd.MarkFlagRequired("start")

	templateCmd.AddCommand(templateAddCmd, templateListCmd, templatePauseCmd, templateResumeCmd, templateSkipCmd, templateUnskipCmd)
	rootCmd.AddCommand(templateCmd)
}

func runTemplateAdd(cmd *cobra.Command, _ []string) error {
	amount, err := core.ParseAmount(flagTplAmount)
	if err != nil {
		return err
	}
	start, err := core.ParseDateKey(flagTplStart)
	if err != nil {
		return err
	}
	class, err := buildClass(flagTplKind, flagTplCategory, flagTplSubcategory, flagTplIncomeCat)
	if err != nil {
		return err
	}

	day := flagTplDay
	if day == 0 {
		day = start.Day()
	}
	t := core.RecurringTemplate{
		ID:              flagTplID,
		Amount:          amount,
		Class:           class,
		Note:            flagTplNote,
		StartDate:       start,
		DayOfMonth:      day,
		SkippedDateKeys: core.NewSkipSet(),
	}
	if flagTplLimit > 0 {
		n := flagTplLimit
		t.TotalOccurrences = &n
	}

	created, err := app.Ledger.CreateTemplate(cmd.Context(), t)
	if err != nil {
		return err
	}
	fmt.Printf("  Created template %s (%s %s on day %d from %s)\n",
		created.ID, created.Kind(), created.Amount, created.DayOfMonth, created.StartDate)
	return nil
}
