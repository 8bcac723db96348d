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

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
)

// DefaultDebounce is how long the folders must stay quiet before a re-audit.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions tunes [Auditor.Watch].
type WatchOptions struct {
	// Kinds to audit; all kinds when empty.
	Kinds []docs.Kind
	// DatabasePath, when set, re-audits after the database file changes.
	DatabasePath string
	// Debounce defaults to [DefaultDebounce].
	Debounce time.Duration
}

// Watch audits once, then again whenever documents under the kind roots (or
// the database) change, until ctx is canceled. Every run is handed to
// onReport; a failed run is reported with its error and watching goes on.
// Watch returns nil when ctx is canceled.
func (a *Auditor) Watch(ctx context.Context, opts WatchOptions, onReport func(*Report, error)) error {
	if ctx == nil {
		return errors.New("watch: context is nil")
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = docs.Kinds
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	defer func() { _ = w.Close() }()

	for _, kind := range kinds {
		root, err := a.resolver.Root(kind)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}

		a.watchTree(w, root)
	}

	dbFile := ""
	if opts.DatabasePath != "" {
		dbFile = filepath.Clean(opts.DatabasePath)

		err = w.Add(filepath.Dir(dbFile))
		if err != nil {
			a.log.Warn("cannot watch database folder", zap.String("db", dbFile), zap.Error(err))
		}
	}

	run := func() {
		report, err := a.Audit(ctx, kinds...)
		if ctx.Err() != nil {
			return
		}

		onReport(report, err)
	}

	run()

	ticker := time.NewTicker(debounce / 4)
	defer ticker.Stop()

	var (
		pending   bool
		lastEvent time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			if !a.relevant(w, event, dbFile) {
				continue
			}

			a.log.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))

			pending = true
			lastEvent = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			a.log.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			if pending && time.Since(lastEvent) >= debounce {
				pending = false

				run()
			}
		}
	}
}

// watchTree adds root and every folder below it. fsnotify does not recurse.
func (a *Auditor) watchTree(w *fsnotify.Watcher, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return w.Add(path)
		}

		return nil
	})
	if err != nil {
		a.log.Warn("cannot watch document root", zap.String("root", root), zap.Error(err))
	}
}

func (a *Auditor) relevant(w *fsnotify.Watcher, event fsnotify.Event, dbFile string) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	if dbFile != "" && filepath.Clean(event.Name) == dbFile {
		return true
	}

	if event.Op.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			// A new year folder: watch it and everything already inside.
			a.watchTree(w, event.Name)

			return true
		}
	}

	name := filepath.Base(event.Name)

	return !strings.HasPrefix(name, "~$") && strings.EqualFold(filepath.Ext(name), layout.Extension)
}
