package layout_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/store"
	"github.com/calvinalkan/docnum/internal/testutil"
)

func saveAt(t *testing.T, s *store.Store, number int, stored string) {
	t.Helper()

	c := testutil.Context(docs.KindOffer, "ACME", "1234567890")

	err := s.Save(t.Context(), docs.KindOffer, 2025, number, stored, c)
	require.NoError(t, err)
}

// Contract: a row is rewritten only when a file already exists at the
// candidate location; no file is created or removed.
func Test_MigrateRoot_Rewrites_Row_Only_When_File_Exists_At_Candidate(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	dir := t.TempDir()
	oldRoot := filepath.Join(dir, "old")
	newRoot := filepath.Join(dir, "new")

	present := filepath.Join(oldRoot, "2025", "1_OF_2025_ACME.docx")
	absent := filepath.Join(oldRoot, "2025", "2_OF_2025_ACME.docx")

	saveAt(t, s, 1, present)
	saveAt(t, s, 2, absent)

	testutil.WriteDocx(t, filepath.Join(newRoot, "2025", "1_OF_2025_ACME.docx"), "Nr oferty: 1/OF/2025")

	summary, err := layout.MigrateRoot(t.Context(), s, docs.KindOffer, oldRoot, newRoot, layout.MigrateOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, summary.Checked)
	require.Equal(t, 1, summary.Updated)
	require.Equal(t, 1, summary.SkippedNotFound)
	require.Equal(t, 0, summary.Errors)

	paths, err := s.ListPaths(t.Context(), docs.KindOffer)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(newRoot, "2025", "1_OF_2025_ACME.docx"),
		absent,
	}, paths)

	require.NoFileExists(t, filepath.Join(newRoot, "2025", "2_OF_2025_ACME.docx"))
}

func Test_MigrateRoot_Changes_Nothing_When_Roots_Are_Equal(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	root := filepath.Join(t.TempDir(), "oferty")
	stored := filepath.Join(root, "2025", "1_OF_2025_ACME.docx")

	saveAt(t, s, 1, stored)
	testutil.WriteDocx(t, stored, "Nr oferty: 1/OF/2025")

	summary, err := layout.MigrateRoot(t.Context(), s, docs.KindOffer, root, root+string(filepath.Separator), layout.MigrateOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Updated)

	paths, err := s.ListPaths(t.Context(), docs.KindOffer)
	require.NoError(t, err)
	require.Equal(t, []string{stored}, paths)
}

func Test_MigrateRoot_Writes_Nothing_When_Dry_Run(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	dir := t.TempDir()
	oldRoot := filepath.Join(dir, "old")
	newRoot := filepath.Join(dir, "new")
	stored := filepath.Join(oldRoot, "2025", "1_OF_2025_ACME.docx")

	saveAt(t, s, 1, stored)
	testutil.WriteDocx(t, filepath.Join(newRoot, "2025", "1_OF_2025_ACME.docx"), "x")

	summary, err := layout.MigrateRoot(t.Context(), s, docs.KindOffer, oldRoot, newRoot, layout.MigrateOptions{DryRun: true})
	require.NoError(t, err)
	require.True(t, summary.DryRun)
	require.Equal(t, 0, summary.Updated)
	require.Equal(t, layout.StatusUnchanged, summary.Entries[0].Status)
	require.Equal(t, filepath.Join(newRoot, "2025", "1_OF_2025_ACME.docx"), summary.Entries[0].NewPath)

	paths, err := s.ListPaths(t.Context(), docs.KindOffer)
	require.NoError(t, err)
	require.Equal(t, []string{stored}, paths)
}

func Test_MigrateRoot_Keeps_Relative_Rows_And_Flags_Unrecognized(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	newRoot := filepath.Join(t.TempDir(), "new")

	saveAt(t, s, 1, "2025/1_OF_2025_ACME.docx")
	saveAt(t, s, 2, "loose.docx")

	testutil.WriteDocx(t, filepath.Join(newRoot, "2025", "1_OF_2025_ACME.docx"), "x")

	summary, err := layout.MigrateRoot(t.Context(), s, docs.KindOffer, "", newRoot, layout.MigrateOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Checked)
	require.Equal(t, 0, summary.Updated)
	require.Equal(t, 1, summary.Errors)

	statuses := map[string]string{}
	for _, e := range summary.Entries {
		statuses[e.OldPath] = e.Status
	}

	require.Equal(t, map[string]string{
		"2025/1_OF_2025_ACME.docx": layout.StatusUnchanged,
		"loose.docx":               layout.StatusUnrecognized,
	}, statuses)
}
