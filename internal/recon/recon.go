// Package recon derives dispatched/pending totals per customer DC
// reference. It holds no state: aggregates are rebuilt from the full
// journal on every read, so out-of-band deletes are always reflected.
package recon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
)

// JournalReader is the slice of the journal the engine needs. The full,
// unfiltered record set is required: aggregation is never limited by a
// display filter.
type JournalReader interface {
	AllMovements(ctx context.Context) ([]core.Movement, error)
}

// Aggregate is the per-DC-key reconciliation state.
type Aggregate struct {
	InwardTotal  decimal.Decimal
	OutwardTotal decimal.Decimal
}

// Pending is the quantity still with the business. Negative means
// over-dispatch, which is a valid, reportable state.
func (a Aggregate) Pending() decimal.Decimal {
	return a.InwardTotal.Sub(a.OutwardTotal)
}

// Enriched is an inward journal row joined to its aggregate. Rows
// sharing a DC key carry identical totals: the key, not the row, is the
// reconciliation unit.
type Enriched struct {
	Movement   core.Movement
	Dispatched decimal.Decimal
	Pending    decimal.Decimal
}

type Engine struct {
	journal JournalReader
}

func New(journal JournalReader) *Engine {
	return &Engine{journal: journal}
}

// BuildAggregates makes a single pass over the whole journal and
// accumulates inward/outward totals per trimmed DC key. Records with a
// blank key are untracked and excluded entirely.
func (e *Engine) BuildAggregates(ctx context.Context) (map[string]Aggregate, error) {
	movements, err := e.journal.AllMovements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal for aggregation: %w", err)
	}

	aggs := make(map[string]Aggregate)
	for _, m := range movements {
		key := core.DCKey(m.DCNoCust)
		if key == "" {
			continue
		}
		a := aggs[key]
		switch m.Direction {
		case core.Inward:
			a.InwardTotal = a.InwardTotal.Add(m.Qty)
		case core.Outward:
			a.OutwardTotal = a.OutwardTotal.Add(m.Qty)
		}
		aggs[key] = a
	}

	for key, a := range aggs {
		if implausibleOverDispatch(a) {
			slog.WarnContext(ctx, "Outward total implausibly exceeds inward total",
				"dc_no_cust", key,
				"inward_total", a.InwardTotal.String(),
				"outward_total", a.OutwardTotal.String())
		}
	}

	return aggs, nil
}

// implausibleOverDispatch flags keys whose outward total is more than
// double the inward total. Plain negative pending stays a valid state.
func implausibleOverDispatch(a Aggregate) bool {
	return a.OutwardTotal.GreaterThan(a.InwardTotal.Mul(decimal.NewFromInt(2)))
}

// Enrich joins a displayed inward row set against the aggregates. A row
// whose key has no aggregate (blank DC reference) falls back to its own
// quantity: dispatched zero, pending the row's qty.
func Enrich(inward []core.Movement, aggs map[string]Aggregate) []Enriched {
	out := make([]Enriched, 0, len(inward))
	for _, m := range inward {
		key := core.DCKey(m.DCNoCust)
		a, ok := aggs[key]
		if key == "" || !ok {
			out = append(out, Enriched{
				Movement:   m,
				Dispatched: decimal.Zero,
				Pending:    m.Qty,
			})
			continue
		}
		out = append(out, Enriched{
			Movement:   m,
			Dispatched: a.OutwardTotal,
			Pending:    a.Pending(),
		})
	}
	return out
}
