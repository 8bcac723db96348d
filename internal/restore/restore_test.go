package restore_test

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/extract"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/render"
	"github.com/calvinalkan/docnum/internal/restore"
	"github.com/calvinalkan/docnum/internal/store"
	"github.com/calvinalkan/docnum/internal/testutil"
)

type fixture struct {
	store     *store.Store
	templates string
	out       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()

	return &fixture{
		store:     testutil.NewStore(t),
		templates: filepath.Join(dir, "templates"),
		out:       filepath.Join(dir, "restored"),
	}
}

func (f *fixture) addTemplate(t *testing.T, id string) {
	t.Helper()

	testutil.WriteDocx(t, filepath.Join(f.templates, id+".docx"),
		"Nr oferty: {{number}}",
		"Odbiorca: {{client_name}}",
		"NIP: {{client_nip}}",
	)
}

func (f *fixture) save(t *testing.T, kind docs.Kind, number int, alias string) string {
	t.Helper()

	c := testutil.Context(kind, alias, "1234567890")
	c.Number = docs.FormatNumber(kind, number, 2025)

	rel, err := layout.RelPath(kind, 2025, number, alias)
	require.NoError(t, err)

	err = f.store.Save(t.Context(), kind, 2025, number, rel, c)
	require.NoError(t, err)

	return rel
}

func (f *fixture) engine() *restore.Engine {
	return restore.New(render.NewDocxRenderer(f.templates))
}

// Contract: totals equal the row counts and OK + errors == total, even when
// a template is missing for one kind.
func Test_RestoreAll_Counts_Every_Row_When_A_Template_Is_Missing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)

	offer1 := f.save(t, docs.KindOffer, 1, "ACME")
	offer2 := f.save(t, docs.KindOffer, 2, "ACME")
	wz1 := f.save(t, docs.KindWZ, 1, "ACME")
	f.save(t, docs.KindWZ, 2, "ACME")

	report, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)

	require.Equal(t, 2, report.OffersTotal)
	require.Equal(t, 2, report.OffersOK)
	require.Empty(t, report.OffersErrors)

	require.Equal(t, 2, report.WzTotal)
	require.Equal(t, 0, report.WzOK)
	require.Len(t, report.WzErrors, 2)
	require.Equal(t, wz1, report.WzErrors[0].FilePath)
	require.ErrorIs(t, report.WzErrors[0], restore.ErrRenderFailure)
	require.ErrorIs(t, report.WzErrors[0], render.ErrTemplateNotFound)
	require.False(t, report.Success())

	for _, rel := range []string{offer1, offer2} {
		data, err := os.ReadFile(filepath.Join(f.out, "offers", filepath.FromSlash(rel)))
		require.NoError(t, err)

		number, err := extract.Docx{}.ExtractDeclaredNumber(data)
		require.NoError(t, err)
		require.NotEmpty(t, number)
	}

	_, err = os.Stat(filepath.Join(f.out, "wz", filepath.FromSlash(wz1)))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_RestoreAll_Records_Malformed_Context_And_Continues(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)
	f.save(t, docs.KindOffer, 1, "ACME")

	db, err := sql.Open("sqlite3", f.store.Path())
	require.NoError(t, err)

	_, err = db.ExecContext(t.Context(),
		`INSERT INTO Offers (OfferYearNumber, OfferOrderNumber, OfferFilePath, OfferContext) VALUES (2025, 2, '2025/2_OF_2025_ACME.docx', '{"date": 5}')`)
	_ = db.Close()

	require.NoError(t, err)

	report, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)

	require.Equal(t, 2, report.OffersTotal)
	require.Equal(t, 1, report.OffersOK)
	require.Len(t, report.OffersErrors, 1)
	require.Equal(t, "2025/2_OF_2025_ACME.docx", report.OffersErrors[0].FilePath)
	require.ErrorIs(t, report.OffersErrors[0], restore.ErrMalformedContext)
}

func Test_RestoreAll_Produces_Same_Tree_When_Run_Twice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)
	f.addTemplate(t, render.TemplateWZ)

	offer := f.save(t, docs.KindOffer, 1, "ACME")
	wz := f.save(t, docs.KindWZ, 1, "ACME")

	read := func() map[string][]byte {
		return map[string][]byte{
			offer: mustRead(t, filepath.Join(f.out, "offers", filepath.FromSlash(offer))),
			wz:    mustRead(t, filepath.Join(f.out, "wz", filepath.FromSlash(wz))),
		}
	}

	_, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)

	first := read()

	report, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)
	require.True(t, report.Success())

	if diff := cmp.Diff(first, read()); diff != "" {
		t.Fatalf("second restore differs (-first +second):\n%s", diff)
	}
}

func Test_RestoreAll_Leaves_Source_Database_Untouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)
	f.save(t, docs.KindOffer, 1, "ACME")

	before := mustRead(t, f.store.Path())

	_, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)

	if !bytes.Equal(before, mustRead(t, f.store.Path())) {
		t.Fatal("database file changed during restore")
	}
}

func Test_RestoreAll_Places_Legacy_Absolute_Rows_Under_Output_Root(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)

	c := testutil.Context(docs.KindOffer, "ACME", "1234567890")
	legacy := `C:\Dokumenty\Oferty\2025\3_OF_2025_ACME.docx`

	err := f.store.Save(t.Context(), docs.KindOffer, 2025, 3, legacy, c)
	require.NoError(t, err)

	report, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.OffersOK)

	_, err = os.Stat(filepath.Join(f.out, "offers", "2025", "3_OF_2025_ACME.docx"))
	require.NoError(t, err)
}

func Test_RestoreAll_Reports_Progress_Once_Per_Row(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addTemplate(t, render.TemplateOffer)
	f.save(t, docs.KindOffer, 1, "ACME")
	f.save(t, docs.KindOffer, 2, "ACME")
	f.save(t, docs.KindWZ, 1, "ACME")

	var got []restore.Progress

	_, err := f.engine().RestoreAll(t.Context(), f.store.Path(), f.out, func(p restore.Progress) {
		got = append(got, p)
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	require.Equal(t, 2, got[1].Done)
	require.Equal(t, 2, got[1].Total)
	require.NoError(t, got[1].Err)
	require.Equal(t, docs.KindWZ, got[2].Kind)
	require.ErrorIs(t, got[2].Err, restore.ErrRenderFailure)
}

func Test_RestoreAll_Fails_When_Database_Missing_Or_Schema_Absent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	engine := restore.New(render.NewDocxRenderer(dir))

	_, err := engine.RestoreAll(t.Context(), filepath.Join(dir, "missing.sqlite"), filepath.Join(dir, "out"), nil)
	if !errors.Is(err, store.ErrDatabaseUnavailable) {
		t.Fatalf("missing db: err = %v, want ErrDatabaseUnavailable", err)
	}

	bare := filepath.Join(dir, "bare.sqlite")

	db, err := sql.Open("sqlite3", bare)
	require.NoError(t, err)

	_, err = db.ExecContext(t.Context(), `CREATE TABLE Unrelated (Id INTEGER)`)
	_ = db.Close()

	require.NoError(t, err)

	_, err = engine.RestoreAll(t.Context(), bare, filepath.Join(dir, "out"), nil)
	if !errors.Is(err, store.ErrSchemaNotInitialized) {
		t.Fatalf("bare db: err = %v, want ErrSchemaNotInitialized", err)
	}
}

func Test_OutputPath_Rejects_Paths_Escaping_The_Output_Root(t *testing.T) {
	t.Parallel()

	got, err := restore.OutputPath("/out", docs.KindWZ, "2025/1_WZ_2025_ACME.docx")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/out", "wz", "2025", "1_WZ_2025_ACME.docx"), got)

	_, err = restore.OutputPath("/out", docs.KindWZ, "../../etc/passwd")
	require.Error(t, err)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return data
}
