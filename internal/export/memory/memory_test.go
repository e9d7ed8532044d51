package memory

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
	"dcledger/internal/export"
)

func row(dir core.Direction, day int, dc string) export.Row {
	return export.Row{
		Direction:    dir,
		EntryDate:    core.NewDate(2025, 8, day),
		CustomerName: "Acme Forge",
		ItemName:     "MS Bracket",
		DCNoCust:     dc,
		Qty:          decimal.NewFromInt(1),
	}
}

func TestProjectAndReadBack(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Project(ctx, row(core.Inward, 1, "DC-1")); err != nil {
		t.Fatalf("project: %v", err)
	}
	if err := s.Project(ctx, row(core.Outward, 2, "DC-1")); err != nil {
		t.Fatalf("project: %v", err)
	}

	id := export.ArchiveID{Year: 2025, Month: 8}
	inward, err := s.ReadTable(ctx, id, core.Inward)
	if err != nil || len(inward) != 1 {
		t.Fatalf("inward = %v, %v", inward, err)
	}
	outward, err := s.ReadTable(ctx, id, core.Outward)
	if err != nil || len(outward) != 1 {
		t.Fatalf("outward = %v, %v", outward, err)
	}

	absent, err := s.ReadTable(ctx, export.ArchiveID{Year: 2030, Month: 1}, core.Inward)
	if err != nil || absent != nil {
		t.Fatalf("absent archive should be empty: %v, %v", absent, err)
	}
}

func TestListArchivesSorted(t *testing.T) {
	s := New()
	ctx := context.Background()

	sep := row(core.Inward, 1, "DC-1")
	sep.EntryDate = core.NewDate(2025, 9, 1)
	jan := row(core.Inward, 1, "DC-2")
	jan.EntryDate = core.NewDate(2024, 1, 5)

	for _, r := range []export.Row{sep, jan, row(core.Inward, 3, "DC-3")} {
		if err := s.Project(ctx, r); err != nil {
			t.Fatalf("project: %v", err)
		}
	}

	ids, err := s.ListArchives(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"2024-01", "2025-08", "2025-09"}
	if len(ids) != len(want) {
		t.Fatalf("got %d archives, want %d", len(ids), len(want))
	}
	for i, id := range ids {
		if id.String() != want[i] {
			t.Fatalf("archive %d = %s, want %s", i, id, want[i])
		}
	}
}

func TestOpenArchiveRendersWorkbook(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.OpenArchive(ctx, export.ArchiveID{Year: 2030, Month: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Project(ctx, row(core.Inward, 1, "DC-1")); err != nil {
		t.Fatalf("project: %v", err)
	}
	rc, err := s.OpenArchive(ctx, export.ArchiveID{Year: 2025, Month: 8})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		t.Fatalf("empty workbook: %d bytes, %v", len(data), err)
	}
}
