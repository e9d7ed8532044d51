// Package services wires the journal, the monthly archives and the
// reconciliation engine into the operations the presentation layer
// calls.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
	"dcledger/internal/export"
	"dcledger/internal/recon"
	"dcledger/internal/storage"
)

// ExportQueue hands an export request to the background worker. Nil
// queue means direct mode: the archive is written synchronously after
// the journal commit.
type ExportQueue interface {
	PublishMovementExport(ctx context.Context, dir core.Direction, id int64) error
}

// ExportError reports an archive write that failed after the journal
// commit succeeded. The journal row stands; the archive is behind until
// the retry sweep catches up.
type ExportError struct {
	Direction  core.Direction
	MovementID int64
	Err        error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("archive export failed for %s movement %d: %v", e.Direction, e.MovementID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

type MovementService struct {
	store   *storage.SQLiteRepository
	archive export.Projector
	queue   ExportQueue
	engine  *recon.Engine

	// Serializes exports so the consumer and the retry sweep cannot
	// both project the same pending row.
	exportMu sync.Mutex
}

func NewMovementService(store *storage.SQLiteRepository, archive export.Projector, queue ExportQueue) *MovementService {
	return &MovementService{
		store:   store,
		archive: archive,
		queue:   queue,
		engine:  recon.New(store),
	}
}

// RecordInward commits a receipt to the journal and then projects it
// into its monthly archive. The returned id is valid even when the
// error is an *ExportError: the journal write already happened.
func (s *MovementService) RecordInward(ctx context.Context, e core.InwardEntry) (int64, error) {
	id, err := s.store.AppendInward(ctx, e)
	if err != nil {
		return 0, err
	}
	return id, s.dispatchExport(ctx, core.Inward, id)
}

// RecordOutward commits a dispatch to the journal and then projects it
// into its monthly archive.
func (s *MovementService) RecordOutward(ctx context.Context, e core.OutwardEntry) (int64, error) {
	id, err := s.store.AppendOutward(ctx, e)
	if err != nil {
		return 0, err
	}
	return id, s.dispatchExport(ctx, core.Outward, id)
}

func (s *MovementService) dispatchExport(ctx context.Context, dir core.Direction, id int64) error {
	if s.queue != nil {
		if err := s.queue.PublishMovementExport(ctx, dir, id); err != nil {
			// Row stays pending; the worker sweep picks it up.
			slog.WarnContext(ctx, "Failed to enqueue export, leaving row pending",
				"direction", dir, "id", id, "error", err)
		}
		return nil
	}

	if err := s.ExportMovement(ctx, dir, id); err != nil {
		return &ExportError{Direction: dir, MovementID: id, Err: err}
	}
	return nil
}

// ExportMovement projects one committed journal row into its archive
// and records the outcome on the row. Calls are serialized and the
// state is re-read under the lock, so concurrent retries of the same
// row cannot each land a line in the archive.
func (s *MovementService) ExportMovement(ctx context.Context, dir core.Direction, id int64) error {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	m, err := s.store.GetMovement(ctx, dir, id)
	if err != nil {
		return err
	}
	if m.ExportState == core.Exported {
		return nil
	}

	row, err := s.buildArchiveRow(ctx, m)
	if err != nil {
		return err
	}

	if err := s.archive.Project(ctx, row); err != nil {
		if markErr := s.store.MarkExportError(ctx, dir, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to flag export error state",
				"direction", dir, "id", id, "error", markErr)
		}
		return fmt.Errorf("project movement into archive: %w", err)
	}

	return s.store.MarkExported(ctx, dir, id)
}

// buildArchiveRow resolves master ids into the display names archives
// carry. Names are frozen at export time: later master edits do not
// rewrite history.
func (s *MovementService) buildArchiveRow(ctx context.Context, m core.Movement) (export.Row, error) {
	cust, err := s.store.ResolveCustomer(ctx, m.CustomerID)
	if err != nil {
		return export.Row{}, fmt.Errorf("resolve customer %d: %w", m.CustomerID, err)
	}
	item, err := s.store.ResolveItem(ctx, m.ItemID)
	if err != nil {
		return export.Row{}, fmt.Errorf("resolve item %d: %w", m.ItemID, err)
	}

	return export.Row{
		Direction:    m.Direction,
		EntryDate:    m.EntryDate,
		CustomerName: cust.Name,
		CustomerGST:  cust.GSTNo,
		ItemName:     item.Name,
		HSNCode:      item.HSNCode,
		DCNoCust:     m.DCNoCust,
		DCUniqueNo:   m.DCUniqueNo,
		Qty:          m.Qty,
		Rate:         m.Rate,
		Amount:       m.Amount,
	}, nil
}

// Delete removes a journal row. Rows already projected stay in their
// monthly archive: archives are snapshots of what was exported.
func (s *MovementService) Delete(ctx context.Context, dir core.Direction, id int64) error {
	return s.store.DeleteMovement(ctx, dir, id)
}

// ListMovements returns the journal rows of one direction, newest
// first, narrowed by the display filter.
func (s *MovementService) ListMovements(ctx context.Context, dir core.Direction, f storage.Filter) ([]core.Movement, error) {
	switch dir {
	case core.Inward:
		return s.store.ListInward(ctx, f)
	case core.Outward:
		return s.store.ListOutward(ctx, f)
	}
	return nil, core.ErrInvalidDirection
}

// OverviewRow is one inward receipt joined with its reconciliation
// totals and resolved master names.
type OverviewRow struct {
	ID           int64
	EntryDate    core.Date
	CustomerID   int64
	CustomerName string
	ItemID       int64
	ItemName     string
	HSNCode      string
	DCNoCust     string
	Qty          decimal.Decimal
	Rate         decimal.Decimal
	Amount       decimal.Decimal
	Dispatched   decimal.Decimal
	Pending      decimal.Decimal
	ExportState  core.ExportState
}

// Overview lists inward receipts under the display filter, each carrying
// dispatched and pending totals computed from the whole journal. The
// filter narrows what is shown, never what is aggregated.
func (s *MovementService) Overview(ctx context.Context, f storage.Filter) ([]OverviewRow, error) {
	inward, err := s.store.ListInward(ctx, f)
	if err != nil {
		return nil, err
	}

	aggs, err := s.engine.BuildAggregates(ctx)
	if err != nil {
		return nil, err
	}

	enriched := recon.Enrich(inward, aggs)

	customers := make(map[int64]core.Customer)
	items := make(map[int64]core.Item)

	out := make([]OverviewRow, 0, len(enriched))
	for _, e := range enriched {
		m := e.Movement

		cust, ok := customers[m.CustomerID]
		if !ok {
			if cust, err = s.store.ResolveCustomer(ctx, m.CustomerID); err != nil {
				return nil, fmt.Errorf("resolve customer %d: %w", m.CustomerID, err)
			}
			customers[m.CustomerID] = cust
		}

		item, ok := items[m.ItemID]
		if !ok {
			if item, err = s.store.ResolveItem(ctx, m.ItemID); err != nil {
				return nil, fmt.Errorf("resolve item %d: %w", m.ItemID, err)
			}
			items[m.ItemID] = item
		}

		out = append(out, OverviewRow{
			ID:           m.ID,
			EntryDate:    m.EntryDate,
			CustomerID:   m.CustomerID,
			CustomerName: cust.Name,
			ItemID:       m.ItemID,
			ItemName:     item.Name,
			HSNCode:      item.HSNCode,
			DCNoCust:     m.DCNoCust,
			Qty:          m.Qty,
			Rate:         m.Rate,
			Amount:       m.Amount,
			Dispatched:   e.Dispatched,
			Pending:      e.Pending,
			ExportState:  m.ExportState,
		})
	}

	return out, nil
}

// ExportFailures lists journal rows whose archive write failed after a
// successful commit.
func (s *MovementService) ExportFailures(ctx context.Context) ([]core.Movement, error) {
	return s.store.ListExportFailures(ctx)
}
