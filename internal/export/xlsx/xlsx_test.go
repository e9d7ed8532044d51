package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dcledger/internal/core"
	"dcledger/internal/export"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "exports"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func inwardRow(day int, dc string, qty string) export.Row {
	q := decimal.RequireFromString(qty)
	rate := decimal.NewFromInt(5)
	return export.Row{
		Direction:    core.Inward,
		EntryDate:    core.NewDate(2025, 8, day),
		CustomerName: "Acme Forge",
		CustomerGST:  "27AAACA1234F1Z5",
		ItemName:     "MS Bracket",
		HSNCode:      "7326",
		DCNoCust:     dc,
		Qty:          q,
		Rate:         rate,
		Amount:       q.Mul(rate),
	}
}

func outwardRow(day int, dc string, qty string) export.Row {
	return export.Row{
		Direction:    core.Outward,
		EntryDate:    core.NewDate(2025, 8, day),
		CustomerName: "Acme Forge",
		CustomerGST:  "27AAACA1234F1Z5",
		ItemName:     "MS Bracket",
		HSNCode:      "7326",
		DCNoCust:     dc,
		DCUniqueNo:   "OUT-9",
		Qty:          decimal.RequireFromString(qty),
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Project(ctx, inwardRow(14, "DC-1", "10")); err != nil {
		t.Fatalf("project: %v", err)
	}

	id := export.ArchiveID{Year: 2025, Month: 8}
	rows, err := s.ReadTable(ctx, id, core.Inward)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.CustomerName != "Acme Forge" || got.DCNoCust != "DC-1" {
		t.Fatalf("row mismatch: %+v", got)
	}
	if !got.Qty.Equal(decimal.NewFromInt(10)) || !got.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("numeric mismatch: qty=%s amt=%s", got.Qty, got.Amount)
	}
	if got.EntryDate.String() != "2025-08-14" {
		t.Fatalf("date mismatch: %s", got.EntryDate)
	}
}

func TestSiblingTableSurvivesProjection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Project(ctx, inwardRow(i+1, fmt.Sprintf("DC-%d", i), "10")); err != nil {
			t.Fatalf("project inward: %v", err)
		}
	}

	if err := s.Project(ctx, outwardRow(5, "DC-0", "4")); err != nil {
		t.Fatalf("project outward: %v", err)
	}

	id := export.ArchiveID{Year: 2025, Month: 8}
	inward, err := s.ReadTable(ctx, id, core.Inward)
	if err != nil {
		t.Fatalf("read inward: %v", err)
	}
	if len(inward) != 3 {
		t.Fatalf("inward table lost rows: got %d, want 3", len(inward))
	}
	for i, r := range inward {
		if r.DCNoCust != fmt.Sprintf("DC-%d", i) {
			t.Fatalf("inward row %d corrupted: %+v", i, r)
		}
	}

	outward, err := s.ReadTable(ctx, id, core.Outward)
	if err != nil {
		t.Fatalf("read outward: %v", err)
	}
	if len(outward) != 1 || outward[0].DCUniqueNo != "OUT-9" {
		t.Fatalf("outward table wrong: %+v", outward)
	}
}

func TestPartitionByEntryDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Project(ctx, inwardRow(31, "DC-A", "1")); err != nil {
		t.Fatalf("project: %v", err)
	}
	sep := inwardRow(1, "DC-B", "2")
	sep.EntryDate = core.NewDate(2025, 9, 1)
	if err := s.Project(ctx, sep); err != nil {
		t.Fatalf("project: %v", err)
	}

	ids, err := s.ListArchives(ctx)
	if err != nil {
		t.Fatalf("list archives: %v", err)
	}
	if len(ids) != 2 || ids[0].String() != "2025-08" || ids[1].String() != "2025-09" {
		t.Fatalf("unexpected archives: %v", ids)
	}
}

func TestReadAbsentIsEmptyNotError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows, err := s.ReadTable(ctx, export.ArchiveID{Year: 2030, Month: 1}, core.Inward)
	if err != nil {
		t.Fatalf("absent archive should not error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("absent archive should be empty, got %d rows", len(rows))
	}

	// Archive exists but the requested sheet does not.
	if err := s.Project(ctx, inwardRow(1, "DC-1", "1")); err != nil {
		t.Fatalf("project: %v", err)
	}
	rows, err = s.ReadTable(ctx, export.ArchiveID{Year: 2025, Month: 8}, core.Outward)
	if err != nil {
		t.Fatalf("absent sheet should not error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("absent sheet should be empty, got %d rows", len(rows))
	}
}

func TestCorruptArchiveIsDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := export.ArchiveID{Year: 2025, Month: 8}
	if err := os.WriteFile(filepath.Join(s.dir, id.String()+".xlsx"), []byte("not a workbook"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	_, err := s.ReadTable(ctx, id, core.Inward)
	if !errors.Is(err, export.ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got %v", err)
	}

	err = s.Project(ctx, inwardRow(2, "DC-1", "1"))
	if !errors.Is(err, export.ErrCorruptArchive) {
		t.Fatalf("project into corrupt archive: expected ErrCorruptArchive, got %v", err)
	}
}

func TestConcurrentProjectionsLoseNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const n = 24

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if i%2 == 0 {
				return s.Project(ctx, inwardRow(i%28+1, fmt.Sprintf("DC-%d", i), "1"))
			}
			return s.Project(ctx, outwardRow(i%28+1, fmt.Sprintf("DC-%d", i), "1"))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent project: %v", err)
	}

	id := export.ArchiveID{Year: 2025, Month: 8}
	inward, err := s.ReadTable(ctx, id, core.Inward)
	if err != nil {
		t.Fatalf("read inward: %v", err)
	}
	outward, err := s.ReadTable(ctx, id, core.Outward)
	if err != nil {
		t.Fatalf("read outward: %v", err)
	}
	if got := len(inward) + len(outward); got != n {
		t.Fatalf("lost rows under concurrency: got %d, want %d", got, n)
	}
}

func TestOpenArchive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.OpenArchive(ctx, export.ArchiveID{Year: 2030, Month: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Project(ctx, inwardRow(1, "DC-1", "1")); err != nil {
		t.Fatalf("project: %v", err)
	}
	rc, err := s.OpenArchive(ctx, export.ArchiveID{Year: 2025, Month: 8})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer rc.Close()
}
