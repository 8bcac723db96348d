// Package numbering issues year-scoped sequential document numbers.
//
// A number is max(number)+1 for (kind, year). Computing it and inserting the
// row happen in one immediate transaction; if another writer still wins the
// race, the unique constraint rejects the insert and the allocation retries
// with a freshly computed number.
package numbering

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/store"
)

// ErrAllocationExhausted is returned when every allocation attempt collided.
var ErrAllocationExhausted = errors.New("number allocation exhausted")

// DefaultMaxAttempts bounds allocation retries when no option overrides it.
const DefaultMaxAttempts = 5

// Store is the part of the context store the allocator needs.
type Store interface {
	MaxNumber(ctx context.Context, kind docs.Kind, year int) (int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error
}

// RenderFunc produces the document file for a freshly allocated record. It
// runs inside the allocation transaction; an error rolls the row back.
type RenderFunc func(ctx context.Context, rec docs.Record) error

// Allocator hands out document numbers.
type Allocator struct {
	store       Store
	maxAttempts int
	log         *zap.Logger

	// adjustNumber rewrites the computed number before insert. Tests use it
	// to simulate a stale max read.
	adjustNumber func(number int) int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts bounds how many times a colliding allocation is retried.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.log = l
		}
	}
}

// New returns an Allocator backed by s.
func New(s Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:       s,
		maxAttempts: DefaultMaxAttempts,
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// NextNumber returns the number the next document of (kind, year) would
// get. It is a pure read; calling it twice without an insert in between
// returns the same value.
func (a *Allocator) NextNumber(ctx context.Context, kind docs.Kind, year int) (int, error) {
	if ctx == nil {
		return 0, errors.New("next number: context is nil")
	}

	if !kind.Valid() {
		return 0, fmt.Errorf("next number: %w", docs.ErrUnknownKind)
	}

	maxN, err := a.store.MaxNumber(ctx, kind, year)
	if err != nil {
		return 0, fmt.Errorf("next number: %w", err)
	}

	return maxN + 1, nil
}

// Allocate numbers, stores and renders a new document in one transaction.
//
// The year comes from the context's business date. The stored snapshot
// carries the issued number. The returned record's FilePath is
// storage-relative.
func (a *Allocator) Allocate(ctx context.Context, kind docs.Kind, c docs.Context, alias string, render RenderFunc) (docs.Record, error) {
	if ctx == nil {
		return docs.Record{}, errors.New("allocate: context is nil")
	}

	if !kind.Valid() {
		return docs.Record{}, fmt.Errorf("allocate: %w", docs.ErrUnknownKind)
	}

	year, err := c.BusinessYear()
	if err != nil {
		return docs.Record{}, fmt.Errorf("allocate: %w", err)
	}

	err = layout.ValidateAlias(alias)
	if err != nil {
		return docs.Record{}, fmt.Errorf("allocate: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		rec, err := a.tryAllocate(ctx, kind, year, c, alias, render)
		if err == nil {
			a.log.Info("document number allocated",
				zap.String("kind", kind.String()),
				zap.String("number", rec.DeclaredNumber()),
				zap.String("path", rec.FilePath),
				zap.Int("attempt", attempt))

			return rec, nil
		}

		if !errors.Is(err, store.ErrUniqueViolation) {
			return docs.Record{}, fmt.Errorf("allocate: %w", err)
		}

		lastErr = err

		a.log.Warn("number collision, retrying",
			zap.String("kind", kind.String()),
			zap.Int("year", year),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return docs.Record{}, fmt.Errorf("allocate %s %d: %w after %d attempts: %w",
		kind, year, ErrAllocationExhausted, a.maxAttempts, lastErr)
}

func (a *Allocator) tryAllocate(ctx context.Context, kind docs.Kind, year int, c docs.Context, alias string, render RenderFunc) (docs.Record, error) {
	var rec docs.Record

	err := a.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		maxN, err := tx.MaxNumber(ctx, kind, year)
		if err != nil {
			return err
		}

		number := maxN + 1

		if a.adjustNumber != nil {
			number = a.adjustNumber(number)
		}

		rel, err := layout.RelPath(kind, year, number, alias)
		if err != nil {
			return err
		}

		c.Number = docs.FormatNumber(kind, number, year)

		err = tx.Insert(ctx, kind, year, number, rel, c)
		if err != nil {
			return err
		}

		rec = docs.Record{Kind: kind, Year: year, Number: number, FilePath: rel, Context: c}

		if render != nil {
			err = render(ctx, rec)
			if err != nil {
				return docs.WithContext(fmt.Errorf("render: %w", err), kind, rel)
			}
		}

		return nil
	})
	if err != nil {
		return docs.Record{}, err
	}

	return rec, nil
}
