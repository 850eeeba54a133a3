package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/classifier"
	"gastos/internal/core"
	"gastos/internal/imports"

	"golang.org/x/sync/errgroup"
)

const (
	// correctionsForImport is how many corrections are handed to the classifier.
	correctionsForImport = 50
	kpiCacheSize         = 64
)

// Repository is the storage the service needs.
type Repository interface {
	InsertExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)
	ListExpensesInPeriod(ctx context.Context, filter core.KPIFilter) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	TopCorrections(ctx context.Context, limit int) ([]core.Correction, error)
}

// Publisher announces expense changes to other processes.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, evt *amqp.ExpenseEvent) error
}

// invalidator is implemented by classifiers that remember past answers.
type invalidator interface {
	Invalidate()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, *amqp.ExpenseEvent) error { return nil }

// ExpenseService orchestrates imports, edits and KPIs over storage, the
// classifier, the KPI cache and the event publisher.
type ExpenseService struct {
	repo        Repository
	parser      *imports.Parser
	classifier  classifier.Classifier
	publisher   Publisher
	kpis        *cache.LRUCache[core.KPISummary]
	concurrency int
	logger      *slog.Logger
}

type Option func(*ExpenseService)

// WithPublisher sets where change events go. Without it events are dropped.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithKPICacheTTL sets how long KPI summaries are cached; zero disables it.
func WithKPICacheTTL(ttl time.Duration) Option {
	return func(s *ExpenseService) {
		s.kpis = cache.NewLRUCache[core.KPISummary](kpiCacheSize, ttl)
	}
}

// WithConcurrency bounds how many rows are classified at once.
func WithConcurrency(n int) Option {
	return func(s *ExpenseService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewExpenseService(repo Repository, c classifier.Classifier, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		repo:        repo,
		parser:      imports.NewParser(),
		classifier:  c,
		publisher:   noopPublisher{},
		kpis:        cache.NewLRUCache[core.KPISummary](kpiCacheSize, 5*time.Minute),
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KPICache exposes the summary cache so it can be swept by a cache.Manager.
func (s *ExpenseService) KPICache() *cache.LRUCache[core.KPISummary] {
	return s.kpis
}

// Import parses a bank export, classifies every row and stores the result.
func (s *ExpenseService) Import(ctx context.Context, filename string, r io.Reader) (core.ImportResult, error) {
	start := time.Now()

	parsed, err := s.parser.Parse(filename, r)
	if err != nil {
		return core.ImportResult{}, err
	}

	corrections, err := s.repo.TopCorrections(ctx, correctionsForImport)
	if err != nil {
		return core.ImportResult{}, fmt.Errorf("load corrections: %w", err)
	}

	expenses := make([]core.Expense, len(parsed.Rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, row := range parsed.Rows {
		g.Go(func() error {
			c, err := s.classifier.Classify(gctx, classifier.Transaction{
				Description: row.Description,
				Amount:      row.Amount,
			}, corrections)
			if err != nil {
				return fmt.Errorf("classify row %d: %w", i+1, err)
			}
			expenses[i] = core.Expense{
				Date:        row.Date,
				Description: row.Description,
				Amount:      row.Amount,
				Category:    optional(c.Category),
				Subcategory: optional(c.Subcategory),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.ImportResult{}, err
	}

	saved, err := s.repo.InsertExpenses(ctx, expenses)
	if err != nil {
		return core.ImportResult{}, err
	}
	s.kpis.Purge()

	if len(saved) > 0 {
		s.publish(ctx, amqp.NewImportedEvent(saved))
	}

	s.logger.InfoContext(ctx, "File imported",
		"file", filename,
		"rows", len(saved),
		"skipped", parsed.Skipped,
		"classifier", s.classifier.Name(),
		"duration", time.Since(start))

	return core.ImportResult{Imported: len(saved), Expenses: saved}, nil
}

// List returns a page of expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(filter.StartDate.Time) {
		return nil, fmt.Errorf("%w: end_date before start_date", core.ErrInvalidDate)
	}
	return s.repo.ListExpenses(ctx, filter)
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// Update changes the category and/or subcategory of an expense. A new
// category is remembered as a correction for future imports. Blank fields
// are ignored; with nothing left the stored expense is returned unchanged.
func (s *ExpenseService) Update(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error) {
	update = update.Normalize()
	if update.IsEmpty() {
		return s.repo.GetExpense(ctx, id)
	}

	updated, err := s.repo.UpdateExpense(ctx, id, update)
	if err != nil {
		return core.Expense{}, err
	}

	s.kpis.Purge()
	if update.Category != nil {
		if inv, ok := s.classifier.(invalidator); ok {
			inv.Invalidate()
		}
	}
	s.publish(ctx, amqp.NewUpdatedEvent(updated))

	s.logger.InfoContext(ctx, "Expense updated",
		"expense_id", id,
		"category", updated.CategoryLabel(),
		"corrected", updated.IsCorrected)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.kpis.Purge()
	s.publish(ctx, amqp.NewDeletedEvent(id))
	s.logger.InfoContext(ctx, "Expense deleted", "expense_id", id)
	return nil
}

// KPIs summarizes spending (negative amounts, as absolute values) in the
// filter's scope. Income is left out.
func (s *ExpenseService) KPIs(ctx context.Context, filter core.KPIFilter) (core.KPISummary, error) {
	if err := filter.Validate(); err != nil {
		return core.KPISummary{}, err
	}

	key := filter.Key()
	if cached, ok := s.kpis.Get(key); ok {
		return cached, nil
	}

	// A write that lands while the rows are read purges the cache; the
	// summary is then returned but not cached.
	gen := s.kpis.Generation()
	expenses, err := s.repo.ListExpensesInPeriod(ctx, filter)
	if err != nil {
		return core.KPISummary{}, err
	}

	summary := Summarize(expenses)
	s.kpis.SetIfGeneration(key, summary, gen)
	return summary, nil
}

// Summarize aggregates spending by category and by month.
func Summarize(expenses []core.Expense) core.KPISummary {
	summary := core.NewKPISummary()
	for _, e := range expenses {
		if !e.Amount.IsNegative() {
			continue
		}
		amount := e.Amount.Abs()
		summary.Total = summary.Total.Add(amount)
		summary.Count++

		cat := e.CategoryLabel()
		summary.ByCategory[cat] = summary.ByCategory[cat].Add(amount)

		month := e.Date.MonthKey()
		summary.ByMonth[month] = summary.ByMonth[month].Add(amount)
	}

	summary.Total = core.Round2(summary.Total)
	for k, v := range summary.ByCategory {
		summary.ByCategory[k] = core.Round2(v)
	}
	for k, v := range summary.ByMonth {
		summary.ByMonth[k] = core.Round2(v)
	}
	return summary
}

// publish never fails the caller: the change is already stored.
func (s *ExpenseService) publish(ctx context.Context, evt *amqp.ExpenseEvent) {
	if err := s.publisher.Publish(ctx, evt.Type, evt); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "Failed to publish expense event",
			"type", evt.Type,
			"error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
