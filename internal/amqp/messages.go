package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// LedgerChangedMessage announces that the months listed need rebuilding.
// It carries keys only; consumers read the data back from storage.
type LedgerChangedMessage struct {
	Reason     string    `json:"reason"`
	TemplateID string    `json:"template_id,omitempty"`
	EntryID    string    `json:"entry_id,omitempty"`
	Months     []string  `json:"months"` // YYYY-MM
	Timestamp  time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(reason, templateID, entryID string, months ...core.MonthWindow) *LedgerChangedMessage {
	keys := make([]string, len(months))
	for i, w := range months {
		keys[i] = w.String()
	}
	return &LedgerChangedMessage{
		Reason:     reason,
		TemplateID: templateID,
		EntryID:    entryID,
		Months:     keys,
		Timestamp:  time.Now(),
	}
}

// Windows parses the month keys, dropping malformed ones.
func (m *LedgerChangedMessage) Windows() []core.MonthWindow {
	out := make([]core.MonthWindow, 0, len(m.Months))
	for _, k := range m.Months {
		if w, err := core.ParseYearMonth(k); err == nil {
			out = append(out, w)
		}
	}
	return out
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MonthRebuiltMessage carries the totals of a rebuilt month bucket.
type MonthRebuiltMessage struct {
	Month        string    `json:"month"`
	Label        string    `json:"label"`
	Expenses     string    `json:"expenses"`
	Income       string    `json:"income"`
	Pending      string    `json:"pending"`
	Placeholders int       `json:"placeholders"`
	Warnings     int       `json:"warnings"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewMonthRebuiltMessage(b core.MonthBucket) *MonthRebuiltMessage {
	s := core.Summarize(b)
	return &MonthRebuiltMessage{
		Month:        b.Key,
		Label:        b.Label,
		Expenses:     s.Expenses.String(),
		Income:       s.Income.String(),
		Pending:      s.Pending.String(),
		Placeholders: s.Placeholders,
		Warnings:     s.Warnings,
		Timestamp:    time.Now(),
	}
}
