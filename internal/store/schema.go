package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
)

// schemaVersion is stored in PRAGMA user_version by [Init].
const schemaVersion = 1

// Table names.
const (
	TableOffers    = "Offers"
	TableWuzetkas  = "Wuzetkas"
	TableClients   = "Clients"
	TableSuppliers = "Suppliers"
)

// docTable names the columns of one document table.
type docTable struct {
	name    string
	year    string
	number  string
	path    string
	context string
}

var docTables = map[docs.Kind]docTable{
	docs.KindOffer: {
		name:    TableOffers,
		year:    "OfferYearNumber",
		number:  "OfferOrderNumber",
		path:    "OfferFilePath",
		context: "OfferContext",
	},
	docs.KindWZ: {
		name:    TableWuzetkas,
		year:    "WzYearNumber",
		number:  "WzOrderNumber",
		path:    "WzFilePath",
		context: "WzContext",
	},
}

func tableFor(kind docs.Kind) (docTable, error) {
	t, ok := docTables[kind]
	if !ok {
		return docTable{}, fmt.Errorf("%w: %d", docs.ErrUnknownKind, int(kind))
	}

	return t, nil
}

// TableName returns the document table of kind.
func TableName(kind docs.Kind) (string, error) {
	t, err := tableFor(kind)
	if err != nil {
		return "", err
	}

	return t.name, nil
}

func documentDDL(t docTable) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	%[2]sId INTEGER PRIMARY KEY AUTOINCREMENT,
	%[3]s INTEGER NOT NULL,
	%[4]s INTEGER NOT NULL CHECK (%[4]s >= 1),
	%[5]s TEXT NOT NULL UNIQUE,
	%[6]s TEXT,
	UNIQUE (%[3]s, %[4]s)
)`, t.name, strings.TrimSuffix(t.name, "s"), t.year, t.number, t.path, t.context)
}

const clientsDDL = `CREATE TABLE IF NOT EXISTS Clients (
	Nip TEXT PRIMARY KEY,
	CompanyName TEXT NOT NULL,
	AddressP1 TEXT NOT NULL DEFAULT '',
	AddressP2 TEXT NOT NULL DEFAULT '',
	Alias TEXT NOT NULL UNIQUE,
	Email TEXT,
	Phone TEXT,
	ContactPerson TEXT
)`

const suppliersDDL = `CREATE TABLE IF NOT EXISTS Suppliers (
	Nip TEXT PRIMARY KEY,
	CompanyName TEXT NOT NULL,
	AddressP1 TEXT NOT NULL DEFAULT '',
	AddressP2 TEXT NOT NULL DEFAULT '',
	IsDefault INTEGER NOT NULL DEFAULT 0 CHECK (IsDefault IN (0, 1))
)`

// At most one supplier may be the default.
const suppliersDefaultIndex = `CREATE UNIQUE INDEX IF NOT EXISTS Suppliers_single_default
	ON Suppliers (IsDefault) WHERE IsDefault = 1`

// Init creates the database file if needed and ensures all tables exist.
// It is idempotent.
func Init(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("init store: context is nil")
	}

	if path == "" {
		return nil, errors.New("init store: path is empty")
	}

	s := &Store{
		path:        path,
		busyTimeout: defaultBusyTimeout,
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.readOnly {
		return nil, errors.New("init store: read-only store")
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, fmt.Errorf("init store: %w: %w", ErrDatabaseUnavailable, err)
	}

	err = s.withDBMode(ctx, true, func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}

		stmts := []string{
			documentDDL(docTables[docs.KindOffer]),
			documentDDL(docTables[docs.KindWZ]),
			clientsDDL,
			suppliersDDL,
			suppliersDefaultIndex,
			fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
		}

		for _, stmt := range stmts {
			_, err = tx.ExecContext(ctx, stmt)
			if err != nil {
				_ = tx.Rollback()

				return fmt.Errorf("create schema: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	s.log.Info("database initialized", zap.String("db", path), zap.Int("schema_version", schemaVersion))

	return s, nil
}

// CheckTables fails with [ErrSchemaNotInitialized] when any of the named
// tables is missing.
func (s *Store) CheckTables(ctx context.Context, names ...string) error {
	if ctx == nil {
		return errors.New("check tables: context is nil")
	}

	var existing []string

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &existing, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	})
	if err != nil {
		return fmt.Errorf("check tables: %w", err)
	}

	var missing []string

	for _, name := range names {
		if !slices.Contains(existing, name) {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing table(s) %s", ErrSchemaNotInitialized, strings.Join(missing, ", "))
	}

	return nil
}

// CheckKindTables checks the tables an audit or restore of kind reads.
func (s *Store) CheckKindTables(ctx context.Context, kind docs.Kind) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	return s.CheckTables(ctx, t.name, TableClients, TableSuppliers)
}
