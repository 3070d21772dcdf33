package core

// MonthSummary totals a bucket's entries.
type MonthSummary struct {
	Key          string
	Expenses     Money
	Income       Money
	Placeholders int
	Pending      Money // placeholder amounts not yet logged
	Warnings     int
}

// Net returns income minus expenses.
func (s MonthSummary) Net() Money {
	return Money{Amount: s.Income.Amount.Sub(s.Expenses.Amount)}
}

// Summarize computes totals for b. Placeholders count toward the totals.
func Summarize(b MonthBucket) MonthSummary {
	s := MonthSummary{Key: b.Key, Warnings: len(b.Warnings)}
	for _, e := range b.Entries {
		switch e.Class.(type) {
		case ExpenseClass:
			s.Expenses = s.Expenses.Add(e.Amount)
		case IncomeClass:
			s.Income = s.Income.Add(e.Amount)
		case nil:
			continue
		default:
			panic("core: unhandled classification")
		}
		if e.IsPlaceholder {
			s.Placeholders++
			s.Pending = s.Pending.Add(e.Amount)
		}
	}
	return s
}
