// Package testutil holds fixtures shared by docnum's package tests: valid
// contexts, temp databases and hand-built .docx packages.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/calvinalkan/docnum/internal/config"
	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/store"
)

// SupplierNip is the NIP of the supplier in every fixture context.
const SupplierNip = "5250001009"

// Context returns a context that passes validation for kind, addressed to
// the client (nip, alias).
func Context(kind docs.Kind, alias, nip string) docs.Context {
	c := docs.Context{
		Date:             "2025-03-14",
		SupplierName:     "Hurtownia Stal Sp. z o.o.",
		SupplierAddress1: "ul. Kowalska 1",
		SupplierAddress2: "00-001 Warszawa",
		SupplierNip:      SupplierNip,
		ClientName:       alias + " S.A.",
		ClientAddress1:   "ul. Polna 7",
		ClientAddress2:   "30-002 Kraków",
		ClientNip:        nip,
		ClientAlias:      alias,
		Products: []docs.Product{
			{LP: "1", Name: "Pręt fi 12", Unit: "szt", Qty: "10"},
		},
	}

	if kind == docs.KindOffer {
		c.Products[0].UnitPrice = "12,50"
		c.Products[0].Total = "125,00"
	}

	return c
}

// NewStore initializes a fresh database in a temp dir.
func NewStore(tb testing.TB) *store.Store {
	tb.Helper()

	s, err := store.Init(tb.Context(), filepath.Join(tb.TempDir(), "docnum.sqlite"))
	if err != nil {
		tb.Fatalf("init store: %v", err)
	}

	return s
}

// Config returns a resolved config rooted at dir.
func Config(dir string) *config.Config {
	cfg := config.Default()
	cfg.EffectiveCwd = dir
	cfg.DatabasePathAbs = filepath.Join(dir, cfg.DatabasePath)
	cfg.OffersDirAbs = filepath.Join(dir, cfg.OffersDir)
	cfg.WzDirAbs = filepath.Join(dir, cfg.WzDir)
	cfg.TemplatesDirAbs = filepath.Join(dir, cfg.TemplatesDir)

	return &cfg
}

// AddClient registers a client or fails the test.
func AddClient(tb testing.TB, s *store.Store, nip, alias string) {
	tb.Helper()

	err := s.UpsertClient(tb.Context(), store.Client{Nip: nip, CompanyName: alias + " S.A.", Alias: alias})
	if err != nil {
		tb.Fatalf("add client %s: %v", alias, err)
	}
}
