package log

import "ledger/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldTemplateID  = "template_id"
	FieldEntryID     = "entry_id"
	FieldMonthKey    = "month_key"
	FieldDateKey     = "date_key"
	FieldWarningCode = "warning_code"
	FieldEntryIDs    = "entry_ids"
	FieldEntries     = "entries"
	FieldWarnings    = "warnings"
	FieldDuration    = "duration_ms"
	FieldDirection   = "direction"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpBuildMonth  = "build_month"
	OpBuildWindow = "build_window"
	OpCreate      = "create"
	OpPause       = "pause"
	OpResume      = "resume"
	OpSkip        = "skip"
	OpUnskip      = "unskip"
	OpLog         = "log_entry"
	OpConfirm     = "confirm"
	OpRefresh     = "refresh"
	OpPublish     = "publish"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithTemplate(id string) LogFields {
	if id != "" {
		f[FieldTemplateID] = id
	}
	return f
}

func (f LogFields) WithEntry(id string) LogFields {
	if id != "" {
		f[FieldEntryID] = id
	}
	return f
}

func (f LogFields) WithMonth(w core.MonthWindow) LogFields {
	f[FieldMonthKey] = w.Key()
	return f
}

// WithWarning adds the fields of a bucket warning.
func (f LogFields) WithWarning(w core.Warning) LogFields {
	f[FieldWarningCode] = string(w.Code)
	f.WithTemplate(w.TemplateID)
	if w.DateKey != "" {
		f[FieldDateKey] = string(w.DateKey)
	}
	if len(w.EntryIDs) > 0 {
		f[FieldEntryIDs] = w.EntryIDs
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
