package classifier

import (
	"context"
	"strings"
	"time"

	"gastos/internal/core"

	gocache "github.com/patrickmn/go-cache"
)

// Memo remembers classifications of identical descriptions so a statement
// with repeated merchants asks the provider once per merchant.
type Memo struct {
	next  Classifier
	cache *gocache.Cache
}

func NewMemo(next Classifier, ttl time.Duration) *Memo {
	return &Memo{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (m *Memo) Name() string { return m.next.Name() }

func (m *Memo) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	key := memoKey(tx)
	if v, ok := m.cache.Get(key); ok {
		return v.(core.Classification), nil
	}
	c, err := m.next.Classify(ctx, tx, corrections)
	if err != nil || c.Provisional {
		return c, err
	}
	m.cache.SetDefault(key, c)
	return c, nil
}

// Invalidate drops every remembered result. Called when the user corrects
// a category, since corrections change what providers answer.
func (m *Memo) Invalidate() {
	m.cache.Flush()
}

func (m *Memo) Len() int { return m.cache.ItemCount() }

// The sign is part of the key because the rules answer differently for
// income and spending.
func memoKey(tx Transaction) string {
	sign := "-"
	if tx.Amount.IsPositive() {
		sign = "+"
	}
	return sign + strings.ToLower(strings.TrimSpace(tx.Description))
}
