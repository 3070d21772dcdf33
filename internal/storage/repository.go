package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

const templateColumns = `id, kind, amount, category_id, subcategory_id, income_category,
	note, start_date, day_of_month, total_occurrences, is_paused`

const entryColumns = `id, kind, amount, category_id, subcategory_id, income_category,
	note, timestamp, recurring_template_id, recurring_date_key, is_recurring_instance`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTemplates implements TemplateReader. Rows that cannot be decoded are
// logged and skipped so one bad template never hides the others.
func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var records []TemplateRecord
	for rows.Next() {
		rec, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	skips, err := r.loadSkips(ctx, "")
	if err != nil {
		return nil, err
	}

	templates := make([]core.RecurringTemplate, 0, len(records))
	for _, rec := range records {
		rec.SkippedDateKeys = skips[rec.ID]
		t, err := rec.Template()
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable template", "template_id", rec.ID, "error", err)
			continue
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// GetTemplate implements TemplateReader.
func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	rec, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("get template %s: %w", id, err)
	}

	skips, err := r.loadSkips(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	rec.SkippedDateKeys = skips[id]
	return rec.Template()
}

// SaveTemplate implements TemplateWriter. The row and its skip set are
// replaced in one transaction.
func (r *SQLiteRepository) SaveTemplate(ctx context.Context, t core.RecurringTemplate) error {
	rec := NewTemplateRecord(t)
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total sql.NullInt64
	if rec.TotalOccurrences != nil {
		total = sql.NullInt64{Int64: int64(*rec.TotalOccurrences), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recurring_templates (`+templateColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			amount = excluded.amount,
			category_id = excluded.category_id,
			subcategory_id = excluded.subcategory_id,
			income_category = excluded.income_category,
			note = excluded.note,
			start_date = excluded.start_date,
			day_of_month = excluded.day_of_month,
			total_occurrences = excluded.total_occurrences,
			is_paused = excluded.is_paused,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Kind, rec.Amount, rec.CategoryID, rec.SubcategoryID, rec.IncomeCategory,
		rec.Note, rec.StartDate, rec.DayOfMonth, total, rec.IsPaused, now, now)
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_skips WHERE template_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear skips for %s: %w", rec.ID, err)
	}
	for _, k := range rec.SkippedDateKeys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO template_skips (template_id, date_key) VALUES (?, ?)`, rec.ID, k); err != nil {
			return fmt.Errorf("insert skip %s for %s: %w", k, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template %s: %w", rec.ID, err)
	}

	slog.InfoContext(ctx, "Template saved to SQLite",
		"template_id", rec.ID,
		"kind", rec.Kind,
		"amount", rec.Amount,
		"day_of_month", rec.DayOfMonth,
		"skips", len(rec.SkippedDateKeys),
		"paused", rec.IsPaused)
	return nil
}

// ListEntries implements EntryReader.
func (r *SQLiteRepository) ListEntries(ctx context.Context, from, to core.DateKey) ([]core.LedgerEntry, error) {
	return r.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE date_key BETWEEN ? AND ? ORDER BY seq`, string(from), string(to))
}

// ListRecurringEntries implements EntryReader.
func (r *SQLiteRepository) ListRecurringEntries(ctx context.Context, from, to core.DateKey) ([]core.LedgerEntry, error) {
	return r.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE recurring_date_key BETWEEN ? AND ? ORDER BY seq`, string(from), string(to))
}

// AppendEntry implements EntryWriter. The day column is derived from the
// timestamp; entries with an unreadable timestamp are stored under an empty
// day so they only surface through their recurring date key.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.LedgerEntry) error {
	rec := NewEntryRecord(e)
	day, err := e.DateKey()
	if err != nil {
		slog.WarnContext(ctx, "Entry timestamp is not a valid date", "entry_id", rec.ID, "timestamp", rec.Timestamp, "error", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`, date_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Amount, rec.CategoryID, rec.SubcategoryID, rec.IncomeCategory,
		rec.Note, rec.Timestamp, nullString(rec.RecurringTemplateID), nullString(rec.RecurringDateKey),
		rec.IsRecurringInstance, string(day), time.Now().UTC().Format(time.RFC3339))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("insert entry %s: %w", rec.ID, ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", rec.ID, err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"entry_id", rec.ID,
		"kind", rec.Kind,
		"amount", rec.Amount,
		"date_key", day,
		"template_id", rec.RecurringTemplateID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s rowScanner) (TemplateRecord, error) {
	var (
		rec   TemplateRecord
		total sql.NullInt64
	)
	err := s.Scan(&rec.ID, &rec.Kind, &rec.Amount, &rec.CategoryID, &rec.SubcategoryID,
		&rec.IncomeCategory, &rec.Note, &rec.StartDate, &rec.DayOfMonth, &total, &rec.IsPaused)
	if err != nil {
		return TemplateRecord{}, err
	}
	if total.Valid {
		n := int(total.Int64)
		rec.TotalOccurrences = &n
	}
	return rec, nil
}

// loadSkips returns skip keys grouped by template, for one template when id
// is set or for all of them otherwise.
func (r *SQLiteRepository) loadSkips(ctx context.Context, id string) (map[string][]string, error) {
	query := `SELECT template_id, date_key FROM template_skips ORDER BY template_id, date_key`
	var args []any
	if id != "" {
		query = `SELECT template_id, date_key FROM template_skips WHERE template_id = ? ORDER BY date_key`
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	defer rows.Close()

	skips := make(map[string][]string)
	for rows.Next() {
		var tid, key string
		if err := rows.Scan(&tid, &key); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		skips[tid] = append(skips[tid], key)
	}
	return skips, rows.Err()
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var (
			rec      EntryRecord
			tid, rdk sql.NullString
		)
		err := rows.Scan(&rec.ID, &rec.Kind, &rec.Amount, &rec.CategoryID, &rec.SubcategoryID,
			&rec.IncomeCategory, &rec.Note, &rec.Timestamp, &tid, &rdk, &rec.IsRecurringInstance)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		rec.RecurringTemplateID = tid.String
		rec.RecurringDateKey = rdk.String

		e, err := rec.Entry()
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable entry", "entry_id", rec.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
