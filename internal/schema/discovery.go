// Package schema discovers the set of substitution field names the system
// recognizes. Discovery is a chain of strategies tried in order, first
// success wins, with the winner cached behind a time-boxed invalidation.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LT-FLOW/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNoStrategySucceeded = errors.New("no schema discovery strategy succeeded")

// Schema is the discovered field-name set. Source names the strategy that
// produced it; downstream validation behavior depends on which one won.
type Schema struct {
	Fields    []string  `json:"fields"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Strategy struct {
	Name    string
	Attempt func(ctx context.Context) (*Schema, error)
}

const DefaultTTL = 5 * time.Minute

// Discoverer runs the strategy chain and caches the result. It is an
// explicitly constructed, injected object; there is no ambient global
// cache.
type Discoverer struct {
	strategies []Strategy
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	cached *Schema
}

func NewDiscoverer(ttl time.Duration, logger *zap.Logger, strategies ...Strategy) *Discoverer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Discoverer{
		strategies: strategies,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Schema returns the cached schema while fresh, otherwise re-runs the
// chain.
func (d *Discoverer) Schema(ctx context.Context) (*Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.now().Sub(d.cached.FetchedAt) < d.ttl {
		return d.cached, nil
	}
	return d.discoverLocked(ctx)
}

// Refresh bypasses the cache and re-runs the chain immediately.
func (d *Discoverer) Refresh(ctx context.Context) (*Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discoverLocked(ctx)
}

// Clear drops the cached schema without fetching a replacement.
func (d *Discoverer) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
}

func (d *Discoverer) discoverLocked(ctx context.Context) (*Schema, error) {
	var lastErr error
	for _, strategy := range d.strategies {
		schema, err := strategy.Attempt(ctx)
		if err != nil {
			lastErr = err
			d.logger.Debug("schema strategy failed",
				zap.String("strategy", strategy.Name), zap.Error(err))
			continue
		}
		if schema == nil || len(schema.Fields) == 0 {
			continue
		}
		schema.Source = strategy.Name
		schema.FetchedAt = d.now()
		d.cached = schema
		return schema, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoStrategySucceeded, lastErr)
	}
	return nil, ErrNoStrategySucceeded
}

// ClientColumnsStrategy reads the client table's column names from the
// database, the authoritative source when reachable.
func ClientColumnsStrategy(db *gorm.DB) Strategy {
	return Strategy{
		Name: "client_columns",
		Attempt: func(ctx context.Context) (*Schema, error) {
			columns, err := db.WithContext(ctx).Migrator().ColumnTypes(&models.Client{})
			if err != nil {
				return nil, fmt.Errorf("failed to read client columns: %w", err)
			}

			skip := map[string]bool{
				"id": true, "created_at": true, "updated_at": true, "deleted_at": true,
			}
			var fields []string
			for _, col := range columns {
				if name := col.Name(); !skip[name] {
					fields = append(fields, name)
				}
			}
			return &Schema{Fields: fields}, nil
		},
	}
}

// StaticStrategy is the terminal fallback: the compiled-in attribute list
// plus the computed pseudo-fields. It never fails.
func StaticStrategy() Strategy {
	return Strategy{
		Name: "static",
		Attempt: func(ctx context.Context) (*Schema, error) {
			return &Schema{Fields: []string{
				"first_name", "last_name", "email", "phone",
				"street", "city", "state", "postal_code", "country",
				"date_of_birth",
				"full_name", "full_address", "current_date", "current_year",
			}}, nil
		},
	}
}
