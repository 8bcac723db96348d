package layout_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/testutil"
)

func Test_BuildPath_Places_Document_In_Year_Folder(t *testing.T) {
	t.Parallel()

	cfg := testutil.Config(t.TempDir())
	r := layout.NewResolver(cfg)

	got, err := r.BuildPath(docs.KindOffer, 2025, 12, "ACME")
	if err != nil {
		t.Fatalf("build path: %v", err)
	}

	want := filepath.Join(cfg.OffersDirAbs, "2025", "12_OF_2025_ACME.docx")
	if got != want {
		t.Fatalf("BuildPath = %q, want %q", got, want)
	}

	rel, err := layout.RelPath(docs.KindWZ, 2024, 3, "BETA")
	if err != nil {
		t.Fatalf("rel path: %v", err)
	}

	if rel != "2024/3_WZ_2024_BETA.docx" {
		t.Fatalf("RelPath = %q", rel)
	}
}

func Test_BuildPath_Rejects_Alias_When_It_Escapes_Year_Folder(t *testing.T) {
	t.Parallel()

	r := layout.NewResolver(testutil.Config(t.TempDir()))

	for _, alias := range []string{"", "  ", ".", "..", "A/B", `A\B`, "../x"} {
		_, err := r.BuildPath(docs.KindOffer, 2025, 1, alias)
		if !errors.Is(err, layout.ErrInvalidAlias) {
			t.Errorf("alias %q: err = %v, want ErrInvalidAlias", alias, err)
		}
	}
}

func Test_ParseFilename_Inverts_FileName(t *testing.T) {
	t.Parallel()

	name, err := layout.FileName(docs.KindWZ, 2025, 7, "ACME-Kraków")
	if err != nil {
		t.Fatalf("file name: %v", err)
	}

	got, err := layout.ParseFilename("2025/" + name)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := layout.Name{Number: 7, Kind: docs.KindWZ, Year: 2025, Alias: "ACME-Kraków"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseFilename mismatch (-want +got):\n%s", diff)
	}

	if got.Stem() != "7_WZ_2025_ACME-Kraków" {
		t.Fatalf("Stem = %q", got.Stem())
	}

	for _, bad := range []string{"notes.docx", "1_XX_2025_A.docx", "1_OF_2025_A.pdf"} {
		_, err := layout.ParseFilename(bad)
		if !errors.Is(err, layout.ErrNotDocumentName) {
			t.Errorf("%q: err = %v, want ErrNotDocumentName", bad, err)
		}
	}
}

func Test_ParseFilename_Rejects_Name_When_Number_Overflows(t *testing.T) {
	t.Parallel()

	_, err := layout.ParseFilename("2025/99999999999999999999_OF_2025_ACME.docx")
	if !errors.Is(err, layout.ErrNotDocumentName) {
		t.Fatalf("err = %v, want ErrNotDocumentName", err)
	}
}

func Test_Abs_And_Rel_Round_Trip_Under_Root(t *testing.T) {
	t.Parallel()

	cfg := testutil.Config(t.TempDir())
	r := layout.NewResolver(cfg)

	abs, err := r.Abs(docs.KindOffer, "2025/1_OF_2025_A.docx")
	if err != nil {
		t.Fatalf("abs: %v", err)
	}

	rel, err := r.Rel(docs.KindOffer, abs)
	if err != nil {
		t.Fatalf("rel: %v", err)
	}

	if rel != "2025/1_OF_2025_A.docx" {
		t.Fatalf("Rel = %q", rel)
	}

	_, err = r.Rel(docs.KindOffer, filepath.Join(cfg.WzDirAbs, "2025", "x.docx"))
	if err == nil {
		t.Fatal("Rel accepted a path outside the offers root")
	}

	legacy := filepath.Join(t.TempDir(), "2025", "1_OF_2025_A.docx")

	got, err := r.Abs(docs.KindOffer, legacy)
	if err != nil || got != legacy {
		t.Fatalf("Abs(legacy) = %q, %v", got, err)
	}
}

func Test_Trailing_Returns_Year_And_File_For_Any_Stored_Form(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"2025/1_OF_2025_A.docx":                     "2025/1_OF_2025_A.docx",
		"/mnt/share/oferty/2025/1_OF_2025_A.docx":   "2025/1_OF_2025_A.docx",
		`C:\Dokumenty\Oferty\2024\9_OF_2024_B.docx`: "2024/9_OF_2024_B.docx",
		`\\serwer\oferty\2023\2_OF_2023_C.docx`:     "2023/2_OF_2023_C.docx",
	}

	for stored, want := range cases {
		got, ok := layout.Trailing(stored)
		if !ok || got != want {
			t.Errorf("Trailing(%q) = %q, %v; want %q", stored, got, ok, want)
		}
	}

	if _, ok := layout.Trailing("loose.docx"); ok {
		t.Error("Trailing accepted a path without a year folder")
	}
}
