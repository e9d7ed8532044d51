package recon

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
)

type fakeJournal struct {
	movements []core.Movement
}

func (f *fakeJournal) AllMovements(context.Context) ([]core.Movement, error) {
	return f.movements, nil
}

func mv(dir core.Direction, dc string, qty string, customerID int64) core.Movement {
	return core.Movement{
		Direction:  dir,
		EntryDate:  core.NewDate(2025, 8, 1),
		CustomerID: customerID,
		ItemID:     1,
		DCNoCust:   dc,
		Qty:        decimal.RequireFromString(qty),
	}
}

func TestBuildAggregates(t *testing.T) {
	j := &fakeJournal{movements: []core.Movement{
		mv(core.Inward, "DC-1", "10", 1),
		mv(core.Inward, "DC-1", "5", 1),
		mv(core.Outward, "DC-1", "6", 1),
		mv(core.Inward, " DC-2 ", "3", 2),
		mv(core.Inward, "", "7", 1),
		mv(core.Inward, "   ", "9", 1),
	}}
	e := New(j)

	aggs, err := e.BuildAggregates(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	a, ok := aggs["DC-1"]
	if !ok {
		t.Fatalf("missing DC-1 aggregate")
	}
	if !a.InwardTotal.Equal(decimal.NewFromInt(15)) {
		t.Errorf("inward total = %s, want 15", a.InwardTotal)
	}
	if !a.OutwardTotal.Equal(decimal.NewFromInt(6)) {
		t.Errorf("outward total = %s, want 6", a.OutwardTotal)
	}
	if !a.Pending().Equal(decimal.NewFromInt(9)) {
		t.Errorf("pending = %s, want 9", a.Pending())
	}

	// Whitespace-padded keys join the trimmed key.
	if _, ok := aggs["DC-2"]; !ok {
		t.Errorf("trimmed key DC-2 missing: %v", aggs)
	}

	// Blank keys never aggregate.
	if len(aggs) != 2 {
		t.Errorf("expected 2 keys, got %d: %v", len(aggs), aggs)
	}
}

func TestPendingMayGoNegative(t *testing.T) {
	j := &fakeJournal{movements: []core.Movement{
		mv(core.Inward, "DC-1", "4", 1),
		mv(core.Outward, "DC-1", "6", 1),
	}}
	aggs, err := New(j).BuildAggregates(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !aggs["DC-1"].Pending().Equal(decimal.NewFromInt(-2)) {
		t.Fatalf("pending = %s, want -2", aggs["DC-1"].Pending())
	}
}

func TestAggregationIsFilterIndependent(t *testing.T) {
	// Customer 2's outward movement must still count against DC-1 even
	// when the display is filtered down to customer 1.
	j := &fakeJournal{movements: []core.Movement{
		mv(core.Inward, "DC-1", "10", 1),
		mv(core.Outward, "DC-1", "4", 2),
	}}
	aggs, err := New(j).BuildAggregates(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	filteredDisplay := []core.Movement{mv(core.Inward, "DC-1", "10", 1)}
	rows := Enrich(filteredDisplay, aggs)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Dispatched.Equal(decimal.NewFromInt(4)) {
		t.Errorf("dispatched = %s, want 4", rows[0].Dispatched)
	}
	if !rows[0].Pending.Equal(decimal.NewFromInt(6)) {
		t.Errorf("pending = %s, want 6", rows[0].Pending)
	}
}

func TestEnrichBlankKeyFallsBackToOwnQty(t *testing.T) {
	j := &fakeJournal{movements: []core.Movement{
		mv(core.Inward, "", "7", 1),
		mv(core.Outward, "DC-9", "100", 1),
	}}
	aggs, err := New(j).BuildAggregates(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rows := Enrich([]core.Movement{mv(core.Inward, "", "7", 1)}, aggs)
	if !rows[0].Dispatched.IsZero() {
		t.Errorf("untracked row dispatched = %s, want 0", rows[0].Dispatched)
	}
	if !rows[0].Pending.Equal(decimal.NewFromInt(7)) {
		t.Errorf("untracked row pending = %s, want its own qty 7", rows[0].Pending)
	}
}

func TestEnrichSharedKeySharesTotals(t *testing.T) {
	j := &fakeJournal{movements: []core.Movement{
		mv(core.Inward, "DC-1", "10", 1),
		mv(core.Inward, "DC-1", "5", 1),
		mv(core.Outward, "DC-1", "6", 1),
	}}
	aggs, err := New(j).BuildAggregates(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rows := Enrich([]core.Movement{
		mv(core.Inward, "DC-1", "10", 1),
		mv(core.Inward, "DC-1", "5", 1),
	}, aggs)

	for i, r := range rows {
		if !r.Dispatched.Equal(decimal.NewFromInt(6)) || !r.Pending.Equal(decimal.NewFromInt(9)) {
			t.Errorf("row %d totals = (%s, %s), want (6, 9)", i, r.Dispatched, r.Pending)
		}
	}
}

func TestImplausibleOverDispatch(t *testing.T) {
	plausible := Aggregate{
		InwardTotal:  decimal.NewFromInt(10),
		OutwardTotal: decimal.NewFromInt(15),
	}
	if implausibleOverDispatch(plausible) {
		t.Errorf("mild over-dispatch should not be flagged")
	}

	implausible := Aggregate{
		InwardTotal:  decimal.NewFromInt(10),
		OutwardTotal: decimal.NewFromInt(25),
	}
	if !implausibleOverDispatch(implausible) {
		t.Errorf("outward more than double inward should be flagged")
	}
}
