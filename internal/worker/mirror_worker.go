package worker

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/sheets"
)

// ExpenseLister pages through stored expenses.
type ExpenseLister interface {
	ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)
}

// MirrorWorker applies expense events to a mirror.
type MirrorWorker struct {
	mirror    sheets.ExpenseMirror
	storage   ExpenseLister
	batchSize int
	logger    *slog.Logger
}

func NewMirrorWorker(mirror sheets.ExpenseMirror, storage ExpenseLister, batchSize int, logger *slog.Logger) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{
		mirror:    mirror,
		storage:   storage,
		batchSize: batchSize,
		logger:    logger,
	}
}

// HandleEvent processes a single expense event from AMQP. A returned error
// requeues the event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, evt *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		"type", evt.Type,
		"expenses", len(evt.Expenses),
		"id", evt.ID)

	switch evt.Type {
	case amqp.EventExpensesImported, amqp.EventExpenseUpdated:
		if err := w.upsertInBatches(ctx, evt.Expenses); err != nil {
			return fmt.Errorf("mirror %s: %w", evt.Type, err)
		}
	case amqp.EventExpenseDeleted:
		if err := w.mirror.Remove(ctx, evt.ID); err != nil {
			return fmt.Errorf("mirror delete %d: %w", evt.ID, err)
		}
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", "type", evt.Type)
	}
	return nil
}

func (w *MirrorWorker) upsertInBatches(ctx context.Context, expenses []core.Expense) error {
	for start := 0; start < len(expenses); start += w.batchSize {
		end := min(start+w.batchSize, len(expenses))
		if err := w.mirror.Upsert(ctx, expenses[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// StartupSync mirrors every stored expense. It recovers from events lost
// while the worker was down; upserts make it safe to repeat.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	if w.storage == nil {
		return nil
	}
	total := 0
	for skip := 0; ; skip += w.batchSize {
		page, err := w.storage.ListExpenses(ctx, core.ExpenseFilter{Skip: skip, Limit: w.batchSize})
		if err != nil {
			return fmt.Errorf("list expenses for startup sync: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if err := w.mirror.Upsert(ctx, page); err != nil {
			return fmt.Errorf("mirror startup batch at %d: %w", skip, err)
		}
		total += len(page)
		if len(page) < w.batchSize {
			break
		}
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "mirrored", total)
	return nil
}
