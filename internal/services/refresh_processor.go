package services

import (
	"context"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

// SummaryPublisher receives the totals of every rebuilt month.
type SummaryPublisher interface {
	PublishMonthRebuilt(ctx context.Context, msg *amqp.MonthRebuiltMessage) error
}

// RefreshProcessor rebuilds the navigable window on a schedule and when
// ledger change events arrive.
type RefreshProcessor struct {
	ledger    *LedgerService
	publisher SummaryPublisher
	past      int
	future    int
	dir       core.SortDirection
	logger    *log.Logger
}

// NewRefreshProcessor creates a processor for the window of past and future
// months around the ledger's clock. A nil publisher disables summaries.
func NewRefreshProcessor(ledger *LedgerService, publisher SummaryPublisher, past, future int, dir core.SortDirection) *RefreshProcessor {
	return &RefreshProcessor{
		ledger:    ledger,
		publisher: publisher,
		past:      past,
		future:    future,
		dir:       dir,
		logger:    ledger.logger.WithComponent(log.ComponentWorker),
	}
}

// Refresh rebuilds every month of the window from storage and returns the
// number of months rebuilt.
func (p *RefreshProcessor) Refresh(ctx context.Context) (int, error) {
	if p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	skeletons, err := GenerateMonths(p.past, p.future, p.ledger.clock.Now())
	if err != nil {
		return 0, err
	}
	months := make([]core.MonthWindow, len(skeletons))
	for i, sk := range skeletons {
		months[i] = sk.Window
	}
	p.ledger.Invalidate(months...)

	buckets, err := p.ledger.Window(ctx, p.past, p.future, p.dir)
	if err != nil {
		return 0, fmt.Errorf("rebuild window: %w", err)
	}

	warnings := 0
	for _, b := range buckets {
		warnings += len(b.Warnings)
		p.publishSummary(ctx, b)
	}

	p.logger.InfoContext(ctx, "Ledger window refreshed",
		"months", len(buckets),
		"warnings", warnings,
		"first", buckets[0].Key,
		"last", buckets[len(buckets)-1].Key)
	return len(buckets), nil
}

// HandleChange rebuilds the months named by a change event. Months that
// fail to build are logged and skipped so one bad month never blocks the
// others.
func (p *RefreshProcessor) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	months := msg.Windows()
	p.ledger.Invalidate(months...)

	rebuilt := 0
	for _, w := range months {
		b, err := p.ledger.Month(ctx, w, p.dir)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to rebuild month",
				log.NewFields().WithMonth(w).WithError(err).WithOperation(log.OpRefresh).ToSlice()...)
			continue
		}
		p.publishSummary(ctx, b)
		rebuilt++
	}

	p.logger.InfoContext(ctx, "Processed ledger change",
		"reason", msg.Reason,
		"template_id", msg.TemplateID,
		"entry_id", msg.EntryID,
		"rebuilt", rebuilt,
		"requested", len(msg.Months))
	return nil
}

func (p *RefreshProcessor) publishSummary(ctx context.Context, b core.MonthBucket) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishMonthRebuilt(ctx, amqp.NewMonthRebuiltMessage(b)); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish month summary", "month_key", b.Key, "error", err)
	}
}
