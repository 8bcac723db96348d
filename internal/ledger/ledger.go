// Package ledger runs the document lifecycle: numbering a new document,
// rendering it to its file, editing it in place and deleting it. Each
// operation keeps the database row and the file on disk in step.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/numbering"
	"github.com/calvinalkan/docnum/internal/render"
	"github.com/calvinalkan/docnum/internal/store"
)

// ErrFileExists is returned when a new document would overwrite a file that
// no row points to. The audit reports such files as orphans.
var ErrFileExists = errors.New("document file already exists")

// Ledger ties the store, the allocator, the layout and the renderer together.
type Ledger struct {
	store    *store.Store
	alloc    *numbering.Allocator
	resolver *layout.Resolver
	renderer render.Renderer
	log      *zap.Logger

	maxAttempts int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Ledger) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMaxAttempts bounds number allocation retries.
func WithMaxAttempts(n int) Option {
	return func(g *Ledger) {
		g.maxAttempts = n
	}
}

// New returns a Ledger.
func New(s *store.Store, r *layout.Resolver, renderer render.Renderer, opts ...Option) *Ledger {
	g := &Ledger{
		store:       s,
		resolver:    r,
		renderer:    renderer,
		log:         zap.NewNop(),
		maxAttempts: numbering.DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.alloc = numbering.New(s, numbering.WithMaxAttempts(g.maxAttempts), numbering.WithLogger(g.log))

	return g
}

// Allocator exposes the allocator, for read-only queries like NextNumber.
func (g *Ledger) Allocator() *numbering.Allocator {
	return g.alloc
}

// Generate numbers c, stores it and renders its file. The client alias in
// c names the file. When rendering or writing fails nothing is kept: the row
// is rolled back and a partially written file removed.
func (g *Ledger) Generate(ctx context.Context, kind docs.Kind, c docs.Context) (docs.Record, error) {
	if ctx == nil {
		return docs.Record{}, errors.New("generate: context is nil")
	}

	err := c.Validate(kind)
	if err != nil {
		return docs.Record{}, fmt.Errorf("generate: %w", err)
	}

	var written string

	rec, err := g.alloc.Allocate(ctx, kind, c, c.ClientAlias, func(ctx context.Context, rec docs.Record) error {
		abs, err := g.resolver.Abs(kind, rec.FilePath)
		if err != nil {
			return err
		}

		_, err = os.Stat(abs)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, abs)
		}

		data, err := g.renderBytes(ctx, kind, rec.Context)
		if err != nil {
			return err
		}

		err = writeFile(abs, data)
		if err != nil {
			return err
		}

		written = abs

		return nil
	})
	if err != nil {
		if written != "" {
			rmErr := os.Remove(written)
			if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("remove %s: %w", written, rmErr))
			}
		}

		return docs.Record{}, fmt.Errorf("generate: %w", err)
	}

	g.log.Info("document generated", zap.String("kind", kind.String()),
		zap.String("number", rec.DeclaredNumber()), zap.String("path", rec.FilePath))

	return rec, nil
}

// Edit replaces the context of the document at filePath and re-renders its
// file in place. The number on record never changes; a context declaring a
// different number is rejected with [store.ErrIdentityMismatch] before
// anything is written.
func (g *Ledger) Edit(ctx context.Context, kind docs.Kind, filePath string, c docs.Context) (docs.Record, error) {
	if ctx == nil {
		return docs.Record{}, errors.New("edit: context is nil")
	}

	prev, err := g.store.Load(ctx, kind, filePath)
	if err != nil {
		return docs.Record{}, fmt.Errorf("edit: %w", err)
	}

	err = c.Validate(kind)
	if err != nil {
		return docs.Record{}, fmt.Errorf("edit: %w", docs.WithContext(err, kind, filePath))
	}

	// The file always shows the number on record; Overwrite rejects a
	// context that declares another one.
	staged := c
	staged.Number = prev.DeclaredNumber()

	abs, err := g.resolver.Abs(kind, filePath)
	if err != nil {
		return docs.Record{}, fmt.Errorf("edit: %w", err)
	}

	data, err := g.renderBytes(ctx, kind, staged)
	if err != nil {
		return docs.Record{}, fmt.Errorf("edit: %w", docs.WithContext(err, kind, filePath))
	}

	rec, err := g.store.Overwrite(ctx, kind, filePath, c)
	if err != nil {
		return docs.Record{}, fmt.Errorf("edit: %w", err)
	}

	err = writeFile(abs, data)
	if err != nil {
		_, revertErr := g.store.Overwrite(ctx, kind, filePath, prev.Context)
		if revertErr != nil {
			err = errors.Join(err, fmt.Errorf("revert context: %w", revertErr))
		}

		return docs.Record{}, fmt.Errorf("edit: %w", docs.WithContext(err, kind, filePath))
	}

	g.log.Info("document edited", zap.String("kind", kind.String()),
		zap.String("number", rec.DeclaredNumber()), zap.String("path", filePath))

	return rec, nil
}

// Delete removes the row for filePath and then its file. A file that is
// already gone is not an error.
func (g *Ledger) Delete(ctx context.Context, kind docs.Kind, filePath string) error {
	if ctx == nil {
		return errors.New("delete: context is nil")
	}

	abs, err := g.resolver.Abs(kind, filePath)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	err = g.store.Delete(ctx, kind, filePath)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	err = os.Remove(abs)
	if errors.Is(err, fs.ErrNotExist) {
		g.log.Warn("document file already gone", zap.String("kind", kind.String()), zap.String("path", abs))

		err = nil
	}

	if err != nil {
		return fmt.Errorf("delete: %w", docs.WithContext(err, kind, filePath))
	}

	g.log.Info("document deleted", zap.String("kind", kind.String()), zap.String("path", filePath))

	return nil
}

func (g *Ledger) renderBytes(ctx context.Context, kind docs.Kind, c docs.Context) ([]byte, error) {
	values, err := render.Values(c)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	templateID := render.SelectTemplate(kind, c)

	data, err := g.renderer.Render(ctx, templateID, values)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", templateID, err)
	}

	return data, nil
}

func writeFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}
