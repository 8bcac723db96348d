// Package restore rebuilds every rendered document from the context snapshots
// stored in a database. The source database is only read; output goes to a
// separate folder tree:
//
//	{outputRoot}/offers/{year}/{file}
//	{outputRoot}/wz/{year}/{file}
//
// A record that cannot be restored is reported and skipped. Only structural
// problems (database unavailable, schema missing) and cancellation stop a run.
package restore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/render"
	"github.com/calvinalkan/docnum/internal/store"
)

var (
	// ErrRenderFailure is recorded when the renderer rejects a record.
	ErrRenderFailure = errors.New("render failure")

	// ErrMalformedContext is recorded when a stored snapshot cannot be decoded.
	ErrMalformedContext = docs.ErrMalformedContext

	// ErrInProgress is returned when a restore is already running.
	ErrInProgress = errors.New("restore already in progress")

	// ErrCanceled is the cause of a run stopped through [Job.Cancel].
	ErrCanceled = errors.New("restore canceled")
)

// FileError is one record that could not be restored.
type FileError struct {
	FilePath string
	Err      error
}

// Error formats as "<path>: <cause>".
func (e FileError) Error() string {
	return e.FilePath + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e FileError) Unwrap() error {
	return e.Err
}

// MarshalJSON writes the cause as a string.
func (e FileError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}

	return json.Marshal(struct {
		FilePath string `json:"file_path"`
		Err      string `json:"error"`
	}{e.FilePath, msg})
}

// Report is the outcome of one restore run. For each kind, OK plus the
// number of errors equals Total, and Total equals the number of rows.
type Report struct {
	RunID string `json:"run_id"`

	OffersTotal  int         `json:"offers_total"`
	OffersOK     int         `json:"offers_ok"`
	OffersErrors []FileError `json:"offers_errors"`

	WzTotal  int         `json:"wz_total"`
	WzOK     int         `json:"wz_ok"`
	WzErrors []FileError `json:"wz_errors"`
}

// Success reports whether every record was restored.
func (r *Report) Success() bool {
	return len(r.OffersErrors) == 0 && len(r.WzErrors) == 0
}

func (r *Report) add(kind docs.Kind, fe *FileError) {
	switch kind {
	case docs.KindOffer:
		if fe != nil {
			r.OffersErrors = append(r.OffersErrors, *fe)
		} else {
			r.OffersOK++
		}
	case docs.KindWZ:
		if fe != nil {
			r.WzErrors = append(r.WzErrors, *fe)
		} else {
			r.WzOK++
		}
	}
}

func (r *Report) setTotal(kind docs.Kind, n int) {
	switch kind {
	case docs.KindOffer:
		r.OffersTotal = n
	case docs.KindWZ:
		r.WzTotal = n
	}
}

// Progress is handed to the progress callback after every record.
type Progress struct {
	Kind     docs.Kind
	FilePath string
	Done     int
	Total    int
	Err      error
}

// Engine restores documents with one renderer.
type Engine struct {
	renderer render.Renderer
	log      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Engine rendering through r.
func New(r render.Renderer, opts ...Option) *Engine {
	e := &Engine{renderer: r, log: zap.NewNop()}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RestoreAll renders every record of dbPath into outputRoot. onProgress may
// be nil. Files already present in outputRoot are replaced, so running it
// twice gives the same tree.
//
// On cancellation the partial report is returned together with the error.
func (e *Engine) RestoreAll(ctx context.Context, dbPath, outputRoot string, onProgress func(Progress)) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("restore: context is nil")
	}

	if outputRoot == "" {
		return nil, errors.New("restore: output root is empty")
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("restore: run id: %w", err)
	}

	log := e.log.With(zap.String("run_id", runID.String()))

	s, err := store.Open(ctx, dbPath, store.WithReadOnly(), store.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	for _, kind := range docs.Kinds {
		err = s.CheckKindTables(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", kind, err)
		}
	}

	report := &Report{RunID: runID.String(), OffersErrors: []FileError{}, WzErrors: []FileError{}}

	for _, kind := range docs.Kinds {
		rows, err := s.List(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", kind, err)
		}

		report.setTotal(kind, len(rows))

		for i, row := range rows {
			if ctx.Err() != nil {
				return report, fmt.Errorf("restore: %w", context.Cause(ctx))
			}

			fe := e.restoreOne(ctx, kind, row, outputRoot)
			if fe != nil && ctx.Err() != nil {
				return report, fmt.Errorf("restore: %w", context.Cause(ctx))
			}

			report.add(kind, fe)

			if fe != nil {
				log.Warn("record not restored", zap.String("kind", kind.String()),
					zap.String("path", row.FilePath), zap.Error(fe.Err))
			}

			if onProgress != nil {
				p := Progress{Kind: kind, FilePath: row.FilePath, Done: i + 1, Total: len(rows)}
				if fe != nil {
					p.Err = fe.Err
				}

				onProgress(p)
			}
		}
	}

	log.Info("restore finished",
		zap.String("db", dbPath),
		zap.String("output", outputRoot),
		zap.Int("offers_total", report.OffersTotal),
		zap.Int("offers_ok", report.OffersOK),
		zap.Int("wz_total", report.WzTotal),
		zap.Int("wz_ok", report.WzOK))

	return report, nil
}

func (e *Engine) restoreOne(ctx context.Context, kind docs.Kind, row store.Row, outputRoot string) *FileError {
	fail := func(err error) *FileError {
		return &FileError{FilePath: row.FilePath, Err: err}
	}

	c, err := docs.DecodeSnapshot([]byte(row.Context))
	if err != nil {
		return fail(err)
	}

	templateID := render.SelectTemplate(kind, c)

	values, err := render.Values(c)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRenderFailure, err))
	}

	data, err := e.renderer.Render(ctx, templateID, values)
	if err != nil {
		return fail(fmt.Errorf("%w: template %s: %w", ErrRenderFailure, templateID, err))
	}

	out, err := OutputPath(outputRoot, kind, row.FilePath)
	if err != nil {
		return fail(err)
	}

	err = os.MkdirAll(filepath.Dir(out), 0o750)
	if err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	err = atomic.WriteFile(out, bytes.NewReader(data))
	if err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	return nil
}

// OutputPath is where a stored FilePath is restored under outputRoot. Legacy
// absolute rows keep only their "<year>/<file>" tail.
func OutputPath(outputRoot string, kind docs.Kind, stored string) (string, error) {
	rel, ok := layout.Trailing(stored)
	if !ok {
		local := filepath.FromSlash(stored)
		if !filepath.IsLocal(local) {
			return "", fmt.Errorf("stored path %q cannot be placed under the output root", stored)
		}

		rel = filepath.ToSlash(local)
	}

	return filepath.Join(outputRoot, kind.Dir(), filepath.FromSlash(rel)), nil
}
