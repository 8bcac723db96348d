package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Client is a registered customer. Alias is the short name used in file
// names and is unique across clients.
type Client struct {
	Nip           string         `db:"Nip"`
	CompanyName   string         `db:"CompanyName"`
	AddressP1     string         `db:"AddressP1"`
	AddressP2     string         `db:"AddressP2"`
	Alias         string         `db:"Alias"`
	Email         sql.NullString `db:"Email"`
	Phone         sql.NullString `db:"Phone"`
	ContactPerson sql.NullString `db:"ContactPerson"`
}

// Supplier is an issuing company. At most one supplier is the default.
type Supplier struct {
	Nip         string `db:"Nip"`
	CompanyName string `db:"CompanyName"`
	AddressP1   string `db:"AddressP1"`
	AddressP2   string `db:"AddressP2"`
	IsDefault   bool   `db:"IsDefault"`
}

const clientColumns = `Nip, CompanyName, AddressP1, AddressP2, Alias, Email, Phone, ContactPerson`

// UpsertClient inserts or updates a client keyed by NIP. An alias already
// used by another client returns [ErrUniqueViolation].
func (s *Store) UpsertClient(ctx context.Context, c Client) error {
	if ctx == nil {
		return errors.New("upsert client: context is nil")
	}

	if c.Nip == "" || c.Alias == "" {
		return errors.New("upsert client: nip and alias are required")
	}

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		_, err := db.NamedExecContext(ctx, `INSERT INTO Clients (`+clientColumns+`)
			VALUES (:Nip, :CompanyName, :AddressP1, :AddressP2, :Alias, :Email, :Phone, :ContactPerson)
			ON CONFLICT (Nip) DO UPDATE SET
				CompanyName = excluded.CompanyName,
				AddressP1 = excluded.AddressP1,
				AddressP2 = excluded.AddressP2,
				Alias = excluded.Alias,
				Email = excluded.Email,
				Phone = excluded.Phone,
				ContactPerson = excluded.ContactPerson`, c)

		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("upsert client %s: %w: alias %q", c.Nip, ErrUniqueViolation, c.Alias)
		}

		return fmt.Errorf("upsert client %s: %w", c.Nip, err)
	}

	return nil
}

// ClientByNip looks a client up by exact NIP.
func (s *Store) ClientByNip(ctx context.Context, nip string) (Client, error) {
	return s.getClient(ctx, "Nip", nip)
}

// ClientByAlias looks a client up by exact alias.
func (s *Store) ClientByAlias(ctx context.Context, alias string) (Client, error) {
	return s.getClient(ctx, "Alias", alias)
}

func (s *Store) getClient(ctx context.Context, column, value string) (Client, error) {
	if ctx == nil {
		return Client{}, errors.New("get client: context is nil")
	}

	var c Client

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &c, `SELECT `+clientColumns+` FROM Clients WHERE `+column+` = ?`, value)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Client{}, fmt.Errorf("client %s=%q: %w", column, value, ErrNotFound)
		}

		return Client{}, fmt.Errorf("client %s=%q: %w", column, value, err)
	}

	return c, nil
}

// ClientAliases returns NIP -> alias for every client in one query.
func (s *Store) ClientAliases(ctx context.Context) (map[string]string, error) {
	if ctx == nil {
		return nil, errors.New("client aliases: context is nil")
	}

	var clients []Client

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &clients, `SELECT `+clientColumns+` FROM Clients`)
	})
	if err != nil {
		return nil, fmt.Errorf("client aliases: %w", err)
	}

	aliases := make(map[string]string, len(clients))
	for _, c := range clients {
		aliases[c.Nip] = c.Alias
	}

	return aliases, nil
}

// UpsertSupplier inserts or updates a supplier keyed by NIP. The default
// flag is left untouched; use [Store.SetDefaultSupplier].
func (s *Store) UpsertSupplier(ctx context.Context, sup Supplier) error {
	if ctx == nil {
		return errors.New("upsert supplier: context is nil")
	}

	if sup.Nip == "" {
		return errors.New("upsert supplier: nip is required")
	}

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		_, err := db.NamedExecContext(ctx, `INSERT INTO Suppliers (Nip, CompanyName, AddressP1, AddressP2, IsDefault)
			VALUES (:Nip, :CompanyName, :AddressP1, :AddressP2, 0)
			ON CONFLICT (Nip) DO UPDATE SET
				CompanyName = excluded.CompanyName,
				AddressP1 = excluded.AddressP1,
				AddressP2 = excluded.AddressP2`, sup)

		return err
	})
	if err != nil {
		return fmt.Errorf("upsert supplier %s: %w", sup.Nip, err)
	}

	return nil
}

// SetDefaultSupplier makes nip the only default supplier.
func (s *Store) SetDefaultSupplier(ctx context.Context, nip string) error {
	if ctx == nil {
		return errors.New("set default supplier: context is nil")
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE Suppliers SET IsDefault = 0 WHERE IsDefault = 1`)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE Suppliers SET IsDefault = 1 WHERE Nip = ?`, nip)
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
		return fmt.Errorf("set default supplier %s: %w", nip, err)
	}

	return nil
}

// DefaultSupplier returns the default supplier or [ErrNotFound].
func (s *Store) DefaultSupplier(ctx context.Context) (Supplier, error) {
	if ctx == nil {
		return Supplier{}, errors.New("default supplier: context is nil")
	}

	var sup Supplier

	err := s.withDB(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &sup,
			`SELECT Nip, CompanyName, AddressP1, AddressP2, IsDefault FROM Suppliers WHERE IsDefault = 1`)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Supplier{}, fmt.Errorf("default supplier: %w", ErrNotFound)
		}

		return Supplier{}, fmt.Errorf("default supplier: %w", err)
	}

	return sup, nil
}
