package classifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gastos/internal/core"
)

const (
	// After this many consecutive primary failures the primary is skipped
	// for fallbackCooldown, so a dead provider does not stall an import.
	maxConsecutiveFailures = 5
	fallbackCooldown       = time.Minute
)

// Fallback tries the primary classifier and uses the fallback on error.
// Fallback answers are marked Provisional.
type Fallback struct {
	primary  Classifier
	fallback Classifier
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

func WithFallback(primary, fallback Classifier, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	if f.skipPrimary() {
		return f.useFallback(ctx, tx, corrections)
	}

	c, err := f.primary.Classify(ctx, tx, corrections)
	if err == nil {
		f.recordSuccess()
		return c, nil
	}
	if ctx.Err() != nil {
		return core.Classification{}, ctx.Err()
	}

	f.recordFailure()
	f.logger.Warn("Classifier failed, using keyword rules",
		"provider", f.primary.Name(),
		"error", err)
	return f.useFallback(ctx, tx, corrections)
}

func (f *Fallback) useFallback(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	c, err := f.fallback.Classify(ctx, tx, corrections)
	c.Provisional = err == nil
	return c, err
}

func (f *Fallback) skipPrimary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now().Before(f.openUntil)
}

func (f *Fallback) recordSuccess() {
	f.mu.Lock()
	f.failures = 0
	f.mu.Unlock()
}

func (f *Fallback) recordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	if f.failures >= maxConsecutiveFailures {
		f.openUntil = f.now().Add(fallbackCooldown)
		f.failures = 0
		f.logger.Warn("Classifier disabled after repeated failures",
			"provider", f.primary.Name(),
			"cooldown", fallbackCooldown)
	}
}
