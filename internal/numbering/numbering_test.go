package numbering_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/numbering"
	"github.com/calvinalkan/docnum/internal/store"
	"github.com/calvinalkan/docnum/internal/testutil"
)

// Contract: NextNumber is a pure read; an insert at that number moves it on by one.
func Test_NextNumber_Is_Idempotent_Until_Insert(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	a := numbering.New(s)

	for _, kind := range docs.Kinds {
		first, err := a.NextNumber(t.Context(), kind, 2025)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		second, err := a.NextNumber(t.Context(), kind, 2025)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		if first != 1 || second != 1 {
			t.Fatalf("%s next = %d, %d, want 1, 1", kind, first, second)
		}

		path, err := layout.RelPath(kind, 2025, first, "ACME")
		if err != nil {
			t.Fatalf("rel path: %v", err)
		}

		err = s.Save(t.Context(), kind, 2025, first, path, testutil.Context(kind, "ACME", "1234567890"))
		if err != nil {
			t.Fatalf("save: %v", err)
		}

		after, err := a.NextNumber(t.Context(), kind, 2025)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		if after != first+1 {
			t.Fatalf("%s next after insert = %d, want %d", kind, after, first+1)
		}

		other, err := a.NextNumber(t.Context(), kind, 2024)
		if err != nil {
			t.Fatalf("next: %v", err)
		}

		if other != 1 {
			t.Fatalf("%s next in other year = %d, want 1", kind, other)
		}
	}
}

// Contract: the year comes from the business date, not the clock.
func Test_Allocate_Uses_Business_Year_When_Back_Dated(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	a := numbering.New(s)

	c := testutil.Context(docs.KindOffer, "ACME", "1234567890")
	c.Date = "30.12.2019"

	rec, err := a.Allocate(t.Context(), docs.KindOffer, c, "ACME", nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if rec.Year != 2019 || rec.Number != 1 || rec.FilePath != "2019/1_OF_2019_ACME.docx" {
		t.Fatalf("record = %+v", rec)
	}

	loaded, err := s.Load(t.Context(), docs.KindOffer, rec.FilePath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Context.Number != "1/OF/2019" {
		t.Fatalf("stored number = %q, want 1/OF/2019", loaded.Context.Number)
	}
}

func Test_Allocate_Retries_When_Number_Collides(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)

	err := s.Save(t.Context(), docs.KindWZ, 2025, 1, "2025/1_WZ_2025_ACME.docx", testutil.Context(docs.KindWZ, "ACME", "1234567890"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	a := numbering.New(s)

	calls := 0

	numbering.SetAdjustNumber(a, func(n int) int {
		calls++
		if calls == 1 {
			return 1 // stale read: another writer already took 1
		}

		return n
	})

	rec, err := a.Allocate(t.Context(), docs.KindWZ, testutil.Context(docs.KindWZ, "ACME", "1234567890"), "ACME", nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if rec.Number != 2 || calls != 2 {
		t.Fatalf("number = %d after %d attempts, want 2 after 2", rec.Number, calls)
	}
}

func Test_Allocate_Fails_When_Attempts_Exhausted(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)

	err := s.Save(t.Context(), docs.KindWZ, 2025, 1, "2025/1_WZ_2025_ACME.docx", testutil.Context(docs.KindWZ, "ACME", "1234567890"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	a := numbering.New(s, numbering.WithMaxAttempts(3))

	calls := 0

	numbering.SetAdjustNumber(a, func(int) int {
		calls++

		return 1
	})

	_, err = a.Allocate(t.Context(), docs.KindWZ, testutil.Context(docs.KindWZ, "ACME", "1234567890"), "ACME", nil)
	if !errors.Is(err, numbering.ErrAllocationExhausted) {
		t.Fatalf("err = %v, want ErrAllocationExhausted", err)
	}

	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("err = %v, want wrapped ErrUniqueViolation", err)
	}

	if calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}
}

// Contract: a failed render leaves no row behind.
func Test_Allocate_Rolls_Back_When_Render_Fails(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	a := numbering.New(s)
	renderErr := errors.New("template broken")

	_, err := a.Allocate(t.Context(), docs.KindOffer, testutil.Context(docs.KindOffer, "ACME", "1234567890"), "ACME",
		func(context.Context, docs.Record) error { return renderErr })
	if !errors.Is(err, renderErr) {
		t.Fatalf("err = %v, want render error", err)
	}

	rows, err := s.List(t.Context(), docs.KindOffer)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func Test_Allocate_Rejects_Alias_When_It_Escapes_Folder(t *testing.T) {
	t.Parallel()

	a := numbering.New(testutil.NewStore(t))

	_, err := a.Allocate(t.Context(), docs.KindOffer, testutil.Context(docs.KindOffer, "ACME", "1234567890"), "../x", nil)
	if !errors.Is(err, layout.ErrInvalidAlias) {
		t.Fatalf("err = %v, want ErrInvalidAlias", err)
	}
}

// Contract: concurrent allocations for the same (kind, year) get dense,
// distinct numbers.
func Test_Allocate_Issues_Distinct_Numbers_When_Run_Concurrently(t *testing.T) {
	t.Parallel()

	s := testutil.NewStore(t)
	a := numbering.New(s)

	const writers = 6

	var (
		mu      sync.Mutex
		numbers []int
	)

	g, ctx := errgroup.WithContext(t.Context())

	for range writers {
		g.Go(func() error {
			rec, err := a.Allocate(ctx, docs.KindOffer, testutil.Context(docs.KindOffer, "ACME", "1234567890"), "ACME", nil)
			if err != nil {
				return err
			}

			mu.Lock()
			numbers = append(numbers, rec.Number)
			mu.Unlock()

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	slices.Sort(numbers)

	want := []int{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(want, numbers); diff != "" {
		t.Fatalf("numbers mismatch (-want +got):\n%s", diff)
	}
}
