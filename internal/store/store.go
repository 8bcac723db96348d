// Package store persists document records, context snapshots and parties in
// the application's SQLite database.
//
// The deployed topology is one desktop process per database file, often on a
// shared network folder. The store therefore opens a connection per
// operation and closes it again; nothing is pooled and no transaction
// outlives a call.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"go.uber.org/zap"
)

// defaultBusyTimeout is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const defaultBusyTimeout = 10 * time.Second

// Store is a handle on one database file. It holds no open connection.
type Store struct {
	path        string
	readOnly    bool
	busyTimeout time.Duration
	log         *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReadOnly opens every connection with mode=ro. Writes fail.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// WithBusyTimeout overrides the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// Open returns a Store for an existing database file. It fails closed with
// [ErrDatabaseUnavailable] when the file is missing or cannot be opened;
// it never creates a database. Use [Init] for that.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("open store: context is nil")
	}

	if path == "" {
		return nil, errors.New("open store: path is empty")
	}

	s := &Store{
		path:        path,
		busyTimeout: defaultBusyTimeout,
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", ErrDatabaseUnavailable, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("open store: %w: %s is a directory", ErrDatabaseUnavailable, path)
	}

	err = s.withDB(ctx, func(db *sqlx.DB) error { return nil })
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) dsn(create bool) string {
	mode := "rw"

	switch {
	case s.readOnly:
		mode = "ro"
	case create:
		mode = "rwc"
	}

	params := []string{
		"mode=" + mode,
		fmt.Sprintf("_busy_timeout=%d", s.busyTimeout.Milliseconds()),
	}

	if !s.readOnly {
		// BEGIN IMMEDIATE takes the write lock up front, so a max+1 read
		// inside the transaction cannot be raced by another writer.
		params = append(params, "_txlock=immediate")
	}

	return "file:" + uriPathEscaper.Replace(s.path) + "?" + strings.Join(params, "&")
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// withDB opens a connection, runs fn and closes the connection again.
func (s *Store) withDB(ctx context.Context, fn func(db *sqlx.DB) error) error {
	return s.withDBMode(ctx, false, fn)
}

func (s *Store) withDBMode(ctx context.Context, create bool, fn func(db *sqlx.DB) error) error {
	db, err := sqlx.Open("sqlite3", s.dsn(create))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}

	db.SetMaxOpenConns(1)

	defer func() {
		closeErr := db.Close()
		if closeErr != nil {
			s.log.Warn("close sqlite", zap.String("db", s.path), zap.Error(closeErr))
		}
	}()

	err = db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}

	return fn(db)
}

// withTx runs fn in one immediate transaction on a fresh connection. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.withDB(ctx, func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}

		err = fn(tx)
		if err != nil {
			rbErr := tx.Rollback()
			if rbErr != nil {
				return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}

			return err
		}

		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		return nil
	})
}
