package layout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
)

// PathStore is the part of the document store a root migration needs.
type PathStore interface {
	ListPaths(ctx context.Context, kind docs.Kind) ([]string, error)
	UpdatePath(ctx context.Context, kind docs.Kind, oldPath, newPath string) error
}

// Migration entry statuses.
const (
	StatusUpdated         = "updated"
	StatusUnchanged       = "unchanged"
	StatusSkippedNotFound = "skipped_not_found"
	StatusOutsideOldRoot  = "outside_old_root"
	StatusUnrecognized    = "unrecognized"
	StatusError           = "error"
)

// MigrationEntry is the outcome for one stored path.
type MigrationEntry struct {
	OldPath   string `json:"old_path"`
	NewPath   string `json:"new_path,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Status    string `json:"status"`
	Err       string `json:"error,omitempty"`
}

// MigrationSummary aggregates a [MigrateRoot] run.
type MigrationSummary struct {
	Kind            docs.Kind        `json:"-"`
	OldRoot         string           `json:"old_root"`
	NewRoot         string           `json:"new_root"`
	DryRun          bool             `json:"dry_run"`
	Checked         int              `json:"checked"`
	Updated         int              `json:"updated"`
	SkippedNotFound int              `json:"skipped_not_found"`
	Errors          int              `json:"errors"`
	Entries         []MigrationEntry `json:"entries"`
}

// MigrateOptions tunes [MigrateRoot].
type MigrateOptions struct {
	DryRun bool
	Logger *zap.Logger
}

// MigrateRoot repairs stored paths after the kind's root folder was moved.
//
// It is a link fix, not a file mover: the operator copies the files to newRoot
// beforehand, and a row is rewritten only when a file already exists at the
// candidate location. Files are never created or deleted.
//
// Relative rows do not depend on the root; they are only checked for
// presence under newRoot. Absolute (legacy) rows under oldRoot are rewritten
// to the absolute candidate. When oldRoot and newRoot are the same folder the
// run is read-only.
func MigrateRoot(ctx context.Context, store PathStore, kind docs.Kind, oldRoot, newRoot string, opts MigrateOptions) (MigrationSummary, error) {
	if ctx == nil {
		return MigrationSummary{}, errors.New("migrate root: context is nil")
	}

	if newRoot == "" {
		return MigrationSummary{}, errors.New("migrate root: new root is empty")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	log = log.With(zap.String("kind", kind.String()), zap.String("old_root", oldRoot), zap.String("new_root", newRoot))

	summary := MigrationSummary{
		Kind:    kind,
		OldRoot: oldRoot,
		NewRoot: newRoot,
		DryRun:  opts.DryRun,
		Entries: []MigrationEntry{},
	}

	readOnly := opts.DryRun || sameRoot(oldRoot, newRoot)

	paths, err := store.ListPaths(ctx, kind)
	if err != nil {
		return MigrationSummary{}, fmt.Errorf("migrate root: %w", err)
	}

	for _, stored := range paths {
		err = ctx.Err()
		if err != nil {
			return summary, fmt.Errorf("migrate root: canceled: %w", context.Cause(ctx))
		}

		entry := MigrationEntry{OldPath: stored}

		prefix, year, file, ok := splitStored(stored)
		if !ok {
			entry.Status = StatusUnrecognized
			summary.Errors++
			summary.Entries = append(summary.Entries, entry)

			log.Warn("stored path does not match <year>/<file>", zap.String("path", stored))

			continue
		}

		summary.Checked++

		if prefix != "" && oldRoot != "" && !sameRoot(prefix, oldRoot) {
			entry.Status = StatusOutsideOldRoot
			summary.Entries = append(summary.Entries, entry)

			continue
		}

		candidate := filepath.Join(newRoot, year, file)
		entry.Candidate = candidate

		_, statErr := os.Stat(candidate)
		if statErr != nil {
			entry.Status = StatusSkippedNotFound
			summary.SkippedNotFound++
			summary.Entries = append(summary.Entries, entry)

			log.Info("path migration skipped: no file at candidate",
				zap.String("path", stored), zap.String("candidate", candidate))

			continue
		}

		// Relative rows already point at the right file under any root.
		newStored := path.Join(year, file)
		if prefix != "" {
			newStored = candidate
		}

		if newStored == stored || readOnly {
			entry.Status = StatusUnchanged
			if newStored != stored {
				entry.NewPath = newStored
			}

			summary.Entries = append(summary.Entries, entry)

			continue
		}

		err = store.UpdatePath(ctx, kind, stored, newStored)
		if err != nil {
			entry.Status = StatusError
			entry.Err = err.Error()
			summary.Errors++
			summary.Entries = append(summary.Entries, entry)

			log.Error("path migration failed", zap.String("path", stored), zap.Error(err))

			continue
		}

		entry.Status = StatusUpdated
		entry.NewPath = newStored
		summary.Updated++
		summary.Entries = append(summary.Entries, entry)

		log.Info("path migrated", zap.String("path", stored), zap.String("new_path", newStored))
	}

	log.Info("root migration finished",
		zap.Int("checked", summary.Checked),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped_not_found", summary.SkippedNotFound),
		zap.Int("errors", summary.Errors),
		zap.Bool("dry_run", summary.DryRun))

	return summary, nil
}

// sameRoot compares folders ignoring separator style, trailing separators and
// letter case (roots often live on case-insensitive network shares).
func sameRoot(a, b string) bool {
	norm := func(s string) string {
		s = strings.ReplaceAll(s, `\`, "/")
		s = strings.TrimRight(s, "/")

		return strings.ToLower(s)
	}

	return norm(a) == norm(b)
}
