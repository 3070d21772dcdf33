package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ledger/internal/core"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorMuted  = lipgloss.Color("#6F6E69")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorGreen  = lipgloss.Color("#879A39")
	ColorOrange = lipgloss.Color("#DA702C")
	ColorRed    = lipgloss.Color("#D14D41")
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	placeholderStyle = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Padding(0, 1)
	warnStyle        = lipgloss.NewStyle().Foreground(ColorOrange)
	incomeStyle      = lipgloss.NewStyle().Foreground(ColorGreen)
	expenseStyle     = lipgloss.NewStyle().Foreground(ColorRed)
)

// Table is a bordered table for terminal output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Muted marks rows rendered in the placeholder style.
	Muted map[int]bool
}

// RenderTitle renders a title bar in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 2).
		Render(titleStyle.Render(title))
}

// RenderTable renders t, or an empty string when it has no content.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case t.Muted[row]:
				return placeholderStyle
			default:
				return cellStyle
			}
		})

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(tbl.String())
	b.WriteString("\n")
	return b.String()
}

// RenderBucket renders a month's entries, its totals and its warnings.
func RenderBucket(b core.MonthBucket) string {
	rows := make([][]string, 0, len(b.Entries))
	muted := make(map[int]bool)
	for i, e := range b.Entries {
		day, err := e.DateKey()
		dayStr := string(day)
		if err != nil {
			dayStr = e.Timestamp
		}
		status := "logged"
		if e.IsPlaceholder {
			status = "pending"
			muted[i] = true
		} else if e.IsRecurringInstance {
			status = "confirmed"
		}
		rows = append(rows, []string{
			dayStr,
			string(e.Kind()),
			FormatClass(e.Class),
			e.Amount.String(),
			e.Note,
			status,
		})
	}

	var out strings.Builder
	out.WriteString(RenderTitle(strings.ToUpper(b.Label)))
	out.WriteString("\n")
	if len(rows) == 0 {
		out.WriteString("  No entries.\n")
	} else {
		out.WriteString(RenderTable(Table{
			Headers: []string{"Date", "Kind", "Category", "Amount", "Note", "Status"},
			Rows:    rows,
			Muted:   muted,
		}))
	}
	out.WriteString(RenderSummary(core.Summarize(b)))
	out.WriteString(RenderWarnings(b.Warnings))
	return out.String()
}

// RenderSummary renders a one-line total.
func RenderSummary(s core.MonthSummary) string {
	line := fmt.Sprintf("  %s  %s  net %s",
		incomeStyle.Render("income "+s.Income.String()),
		expenseStyle.Render("expenses "+s.Expenses.String()),
		s.Net().String())
	if s.Placeholders > 0 {
		line += fmt.Sprintf("  (%d pending, %s)", s.Placeholders, s.Pending.String())
	}
	return line + "\n"
}

// RenderWarnings lists bucket warnings, one per line.
func RenderWarnings(ws []core.Warning) string {
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	for _, w := range ws {
		subject := w.TemplateID
		if subject == "" && len(w.EntryIDs) > 0 {
			subject = strings.Join(w.EntryIDs, ",")
		}
		b.WriteString("  ")
		b.WriteString(warnStyle.Render(fmt.Sprintf("! %s %s %s: %s", w.Code, subject, w.DateKey, w.Message)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMonths renders one summary row per bucket.
func RenderMonths(buckets []core.MonthBucket) string {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		s := core.Summarize(b)
		rows = append(rows, []string{
			b.Key,
			b.Label,
			strconv.Itoa(len(b.Entries)),
			s.Income.String(),
			s.Expenses.String(),
			strconv.Itoa(s.Placeholders),
			strconv.Itoa(s.Warnings),
		})
	}
	return RenderTable(Table{
		Headers: []string{"Key", "Month", "Entries", "Income", "Expenses", "Pending", "Warnings"},
		Rows:    rows,
	})
}

// RenderTemplates renders the template list.
func RenderTemplates(ts []core.RecurringTemplate) string {
	rows := make([][]string, 0, len(ts))
	muted := make(map[int]bool)
	for i, t := range ts {
		limit := "-"
		if t.TotalOccurrences != nil {
			limit = strconv.Itoa(*t.TotalOccurrences)
		}
		state := "active"
		if t.IsPaused {
			state = "paused"
			muted[i] = true
		}
		rows = append(rows, []string{
			t.ID,
			string(t.Kind()),
			FormatClass(t.Class),
			t.Amount.String(),
			string(t.StartDate),
			strconv.Itoa(t.DayOfMonth),
			limit,
			strconv.Itoa(len(t.SkippedDateKeys)),
			state,
			t.Note,
		})
	}
	return RenderTable(Table{
		Headers: []string{"ID", "Kind", "Category", "Amount", "Start", "Day", "Limit", "Skips", "State", "Note"},
		Rows:    rows,
		Muted:   muted,
	})
}

// FormatClass renders a classification as "category/subcategory" or the
// income category.
func FormatClass(c core.Classification) string {
	switch v := c.(type) {
	case core.ExpenseClass:
		if v.SubcategoryID == "" {
			return v.CategoryID
		}
		return v.CategoryID + "/" + v.SubcategoryID
	case core.IncomeClass:
		return string(v.Category)
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("cli: unhandled classification %T", c))
	}
}
