// Package audit reconciles the database, the document folders and the text
// printed inside the documents.
//
// Structural problems (missing tables, unreachable database) abort an audit.
// Everything else is a finding in the [Report]; one bad file never hides the
// rest.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/extract"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/store"
)

// Store is the part of the context store an audit reads.
type Store interface {
	CheckKindTables(ctx context.Context, kind docs.Kind) error
	List(ctx context.Context, kind docs.Kind) ([]store.Row, error)
	ClientAliases(ctx context.Context) (map[string]string, error)
}

// Auditor runs audits against one database and one set of roots.
type Auditor struct {
	store     Store
	resolver  *layout.Resolver
	extractor extract.DocumentTextExtractor
	workers   int
	log       *zap.Logger
	now       func() time.Time
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithExtractor replaces the .docx extractor.
func WithExtractor(x extract.DocumentTextExtractor) Option {
	return func(a *Auditor) {
		if x != nil {
			a.extractor = x
		}
	}
}

// WithWorkers sets how many documents are read concurrently.
func WithWorkers(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.log = l
		}
	}
}

// New returns an Auditor.
func New(s Store, r *layout.Resolver, opts ...Option) *Auditor {
	a := &Auditor{
		store:     s,
		resolver:  r,
		extractor: extract.Docx{},
		workers:   4,
		log:       zap.NewNop(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// contentJob is one existing tracked file whose text gets checked.
type contentJob struct {
	kind docs.Kind
	row  store.Row
	abs  string
}

// contentResult holds the findings of one job. Exactly one job writes each
// result, so results need no locking.
type contentResult struct {
	number     *NumberMismatch
	alias      *AliasMismatch
	unreadable *UnreadableFile
}

// Audit checks kinds (all kinds when none are given) and returns the report.
func (a *Auditor) Audit(ctx context.Context, kinds ...docs.Kind) (*Report, error) {
	if ctx == nil {
		return nil, errors.New("audit: context is nil")
	}

	if len(kinds) == 0 {
		kinds = docs.Kinds
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("audit: run id: %w", err)
	}

	report := newReport(runID.String(), a.now())
	log := a.log.With(zap.String("run_id", report.RunID))

	for _, kind := range kinds {
		err = a.store.CheckKindTables(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", kind, err)
		}
	}

	aliases, err := a.store.ClientAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	var jobs []contentJob

	for _, kind := range kinds {
		kindJobs, err := a.checkFiles(ctx, kind, report, log)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, kindJobs...)
	}

	results := make([]contentResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, job := range jobs {
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}

			results[i] = a.checkContent(job, aliases, log)

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	for _, r := range results {
		if r.unreadable != nil {
			report.UnreadableFiles = append(report.UnreadableFiles, *r.unreadable)
		}

		if r.number != nil {
			report.NumberMismatches = append(report.NumberMismatches, *r.number)
		}

		if r.alias != nil {
			report.AliasMismatches = append(report.AliasMismatches, *r.alias)
		}
	}

	log.Info("audit finished",
		zap.Int("records_checked", report.RecordsChecked),
		zap.Int("files_scanned", report.FilesScanned),
		zap.Int("missing", len(report.MissingFiles)),
		zap.Int("orphaned", len(report.OrphanedFiles)),
		zap.Int("number_mismatches", len(report.NumberMismatches)),
		zap.Int("alias_mismatches", len(report.AliasMismatches)),
		zap.Int("unreadable", len(report.UnreadableFiles)),
		zap.Duration("took", a.now().Sub(report.StartedAt)))

	return report, nil
}

// checkFiles records missing and orphaned files for one kind and returns the
// tracked files that exist.
func (a *Auditor) checkFiles(ctx context.Context, kind docs.Kind, report *Report, log *zap.Logger) ([]contentJob, error) {
	rows, err := a.store.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", kind, err)
	}

	root, err := a.resolver.Root(kind)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", kind, err)
	}

	tracked := make(map[string]struct{}, len(rows))

	var jobs []contentJob

	for _, row := range rows {
		report.RecordsChecked++

		abs, err := a.resolver.Abs(kind, row.FilePath)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", kind, err)
		}

		tracked[pathKey(abs)] = struct{}{}

		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			report.MissingFiles = append(report.MissingFiles, MissingFile{Kind: kind, FilePath: row.FilePath, AbsPath: abs})

			log.Debug("missing file", zap.String("kind", kind.String()), zap.String("path", row.FilePath))

			continue
		}

		jobs = append(jobs, contentJob{kind: kind, row: row, abs: abs})
	}

	files, err := scanDocuments(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", kind, err)
	}

	if files == nil {
		log.Warn("document root does not exist", zap.String("kind", kind.String()), zap.String("root", root))
	}

	for _, abs := range files {
		report.FilesScanned++

		if _, ok := tracked[pathKey(abs)]; ok {
			continue
		}

		report.OrphanedFiles = append(report.OrphanedFiles, OrphanedFile{Kind: kind, AbsPath: abs})
	}

	return jobs, nil
}

// scanDocuments lists every .docx under root, year folders included. Word
// lock files ("~$name.docx") are skipped. A missing root yields nil.
func scanDocuments(ctx context.Context, root string) ([]string, error) {
	_, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	files := []string{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), layout.Extension) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	return files, nil
}

// pathKey makes tracked and scanned paths comparable.
func pathKey(p string) string {
	return filepath.Clean(p)
}

func (a *Auditor) checkContent(job contentJob, aliases map[string]string, log *zap.Logger) contentResult {
	var res contentResult

	unreadable := func(err error) contentResult {
		log.Warn("unreadable document", zap.String("kind", job.kind.String()),
			zap.String("path", job.row.FilePath), zap.Error(err))

		return contentResult{unreadable: &UnreadableFile{Kind: job.kind, FilePath: job.row.FilePath, Err: err.Error()}}
	}

	data, err := os.ReadFile(job.abs)
	if err != nil {
		return unreadable(err)
	}

	declared, err := a.extractor.ExtractDeclaredNumber(data)
	if err != nil {
		return unreadable(err)
	}

	taxID, err := a.extractor.ExtractPartyTaxID(data)
	if err != nil {
		return unreadable(err)
	}

	stem := layout.Stem(job.row.FilePath)
	name, nameErr := layout.ParseFilename(job.row.FilePath)

	if declared != "" {
		got := extract.NormalizeNumber(declared)
		if !numberMatches(got, stem, name, nameErr) {
			res.number = &NumberMismatch{Kind: job.kind, FilePath: job.row.FilePath, Declared: got, Expected: stem}
		}
	}

	if taxID != "" {
		fileAlias := ""
		if nameErr == nil {
			fileAlias = name.Alias
		}

		// Exact lookup: a NIP printed with separators does not resolve.
		resolved, ok := aliases[taxID]
		if !ok || resolved != fileAlias {
			res.alias = &AliasMismatch{
				Kind:          job.kind,
				FilePath:      job.row.FilePath,
				TaxID:         taxID,
				ResolvedAlias: resolved,
				FileAlias:     fileAlias,
			}
		}
	}

	return res
}

// numberMatches accepts the full stem ("12_OF_2025_ACME") or its number
// part ("12_OF_2025"); templates print either.
func numberMatches(declared, stem string, name layout.Name, nameErr error) bool {
	if declared == stem {
		return true
	}

	if nameErr != nil {
		return false
	}

	return strings.EqualFold(declared, fmt.Sprintf("%d_%s_%d", name.Number, name.Kind.Code(), name.Year))
}
