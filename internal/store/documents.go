package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
)

// Row is a document row as stored. Context is the raw snapshot; callers
// decode it with [docs.DecodeSnapshot] so that one malformed row does not
// fail a whole listing.
type Row struct {
	Year     int    `db:"year"`
	Number   int    `db:"number"`
	FilePath string `db:"file_path"`
	Context  string `db:"context"`
}

func selectRows(t docTable) string {
	return fmt.Sprintf(`SELECT %s AS year, %s AS number, %s AS file_path, COALESCE(%s, '') AS context FROM %s`,
		t.year, t.number, t.path, t.context, t.name)
}

// Tx is an open write transaction. It is only valid inside the callback of
// [Store.WithTx].
type Tx struct {
	tx  *sqlx.Tx
	log *zap.Logger
}

// WithTx runs fn inside one immediate write transaction. The write lock is
// taken when the transaction begins and held until it commits. A non-nil
// error from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if ctx == nil {
		return errors.New("with tx: context is nil")
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &Tx{tx: tx, log: s.log})
	})
}

// MaxNumber returns the highest number issued for (kind, year), or 0.
func (t *Tx) MaxNumber(ctx context.Context, kind docs.Kind, year int) (int, error) {
	return maxNumber(ctx, t.tx, kind, year)
}

// Insert adds a document row. Collisions on (year, number) or on the path
// return [ErrUniqueViolation].
func (t *Tx) Insert(ctx context.Context, kind docs.Kind, year, number int, filePath string, c docs.Context) error {
	return insert(ctx, t.tx, kind, year, number, filePath, c)
}

// MaxNumber returns the highest number issued for (kind, year), or 0.
func (s *Store) MaxNumber(ctx context.Context, kind docs.Kind, year int) (int, error) {
	if ctx == nil {
		return 0, errors.New("max number: context is nil")
	}

	var n int

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		var err error

		n, err = maxNumber(ctx, db, kind, year)

		return err
	})

	return n, err
}

func maxNumber(ctx context.Context, q sqlx.QueryerContext, kind docs.Kind, year int) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, fmt.Errorf("max number: %w", err)
	}

	var maxN sql.NullInt64

	err = sqlx.GetContext(ctx, q, &maxN,
		fmt.Sprintf(`SELECT MAX(%s) FROM %s WHERE %s = ?`, t.number, t.name, t.year), year)
	if err != nil {
		return 0, fmt.Errorf("max number: %w", err)
	}

	if !maxN.Valid {
		return 0, nil
	}

	return int(maxN.Int64), nil
}

func insert(ctx context.Context, e sqlx.ExecerContext, kind docs.Kind, year, number int, filePath string, c docs.Context) error {
	t, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if number < 1 {
		return fmt.Errorf("save: %w: number %d", docs.ErrInvalidNumber, number)
	}

	if filePath == "" {
		return errors.New("save: file path is empty")
	}

	err = c.Validate(kind)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	encoded, err := docs.EncodeContext(c)
	if err != nil {
		return fmt.Errorf("save: encode context: %w", err)
	}

	_, err = e.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?)`, t.name, t.year, t.number, t.path, t.context),
		year, number, filePath, encoded)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save %s: %w: %w", docs.FormatNumber(kind, number, year), ErrUniqueViolation, err)
		}

		return fmt.Errorf("save: %w", err)
	}

	return nil
}

// Save inserts a new document row. The context is validated first.
func (s *Store) Save(ctx context.Context, kind docs.Kind, year, number int, filePath string, c docs.Context) error {
	if ctx == nil {
		return errors.New("save: context is nil")
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return insert(ctx, tx, kind, year, number, filePath, c)
	})
}

// Load returns the record stored at filePath.
func (s *Store) Load(ctx context.Context, kind docs.Kind, filePath string) (docs.Record, error) {
	if ctx == nil {
		return docs.Record{}, errors.New("load: context is nil")
	}

	t, err := tableFor(kind)
	if err != nil {
		return docs.Record{}, fmt.Errorf("load: %w", err)
	}

	var row Row

	err = s.withDB(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &row, selectRows(t)+fmt.Sprintf(` WHERE %s = ?`, t.path), filePath)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docs.Record{}, docs.WithContext(fmt.Errorf("load: %w", ErrNotFound), kind, filePath)
		}

		return docs.Record{}, fmt.Errorf("load: %w", err)
	}

	return rowRecord(kind, row)
}

func rowRecord(kind docs.Kind, row Row) (docs.Record, error) {
	c, err := docs.DecodeSnapshot([]byte(row.Context))
	if err != nil {
		return docs.Record{}, docs.WithContext(err, kind, row.FilePath)
	}

	return docs.Record{
		Kind:     kind,
		Year:     row.Year,
		Number:   row.Number,
		FilePath: row.FilePath,
		Context:  c,
	}, nil
}

// Overwrite replaces the context of the row at filePath. The row identity
// never changes: a context that declares a number other than the one on
// record fails with [ErrIdentityMismatch] and nothing is written.
func (s *Store) Overwrite(ctx context.Context, kind docs.Kind, filePath string, c docs.Context) (docs.Record, error) {
	if ctx == nil {
		return docs.Record{}, errors.New("overwrite: context is nil")
	}

	t, err := tableFor(kind)
	if err != nil {
		return docs.Record{}, fmt.Errorf("overwrite: %w", err)
	}

	err = c.Validate(kind)
	if err != nil {
		return docs.Record{}, docs.WithContext(fmt.Errorf("overwrite: %w", err), kind, filePath)
	}

	var rec docs.Record

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row Row

		err := tx.GetContext(ctx, &row, selectRows(t)+fmt.Sprintf(` WHERE %s = ?`, t.path), filePath)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}

			return err
		}

		onRecord := docs.FormatNumber(kind, row.Number, row.Year)

		if c.Number != "" {
			number, year, err := docs.ParseDeclaredNumber(c.Number)
			if err != nil || number != row.Number || year != row.Year {
				return fmt.Errorf("%w: declared %q, on record %q", ErrIdentityMismatch, c.Number, onRecord)
			}
		}

		// The stored snapshot always carries the number on record.
		c.Number = onRecord

		encoded, err := docs.EncodeContext(c)
		if err != nil {
			return fmt.Errorf("encode context: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, t.name, t.context, t.path),
			encoded, filePath)
		if err != nil {
			return err
		}

		rec = docs.Record{Kind: kind, Year: row.Year, Number: row.Number, FilePath: row.FilePath, Context: c}

		return nil
	})
	if err != nil {
		return docs.Record{}, docs.WithContext(fmt.Errorf("overwrite: %w", err), kind, filePath)
	}

	return rec, nil
}

// Delete removes the row at filePath. Deletion is keyed by path only.
func (s *Store) Delete(ctx context.Context, kind docs.Kind, filePath string) error {
	if ctx == nil {
		return errors.New("delete: context is nil")
	}

	t, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	err = s.withDB(ctx, func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.name, t.path), filePath)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if n == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return docs.WithContext(fmt.Errorf("delete: %w", err), kind, filePath)
	}

	return nil
}

// List returns every row of kind ordered by (year, number).
func (s *Store) List(ctx context.Context, kind docs.Kind) ([]Row, error) {
	if ctx == nil {
		return nil, errors.New("list: context is nil")
	}

	t, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	rows := []Row{}

	err = s.withDB(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, selectRows(t)+fmt.Sprintf(` ORDER BY %s, %s`, t.year, t.number))
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}

	return rows, nil
}

// ListPaths returns the stored file path of every row of kind.
func (s *Store) ListPaths(ctx context.Context, kind docs.Kind) ([]string, error) {
	rows, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(rows))
	for _, r := range rows {
		paths = append(paths, r.FilePath)
	}

	return paths, nil
}

// UpdatePath rewrites a stored file path.
func (s *Store) UpdatePath(ctx context.Context, kind docs.Kind, oldPath, newPath string) error {
	if ctx == nil {
		return errors.New("update path: context is nil")
	}

	t, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("update path: %w", err)
	}

	err = s.withDB(ctx, func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, t.name, t.path, t.path), newPath, oldPath)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
			}

			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if n == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return docs.WithContext(fmt.Errorf("update path: %w", err), kind, oldPath)
	}

	return nil
}
