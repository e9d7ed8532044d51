// Package worker drains queued archive export requests and retries
// rows whose export is pending or failed.
package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"dcledger/internal/amqp"
	"dcledger/internal/core"
	"dcledger/internal/log"
	"dcledger/internal/services"
	"dcledger/internal/storage"
)

// Consumer delivers export messages until the context ends.
type Consumer interface {
	ConsumeMovementExports(ctx context.Context, handler func(context.Context, *amqp.MovementExportMessage) error) error
}

type ExportWorker struct {
	svc       *services.MovementService
	store     *storage.SQLiteRepository
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(svc *services.MovementService, store *storage.SQLiteRepository, batchSize int, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		svc:       svc,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// HandleExportMessage projects one journal row into its archive. A row
// deleted before the worker got to it is skipped, not retried: there is
// nothing left to export.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.MovementExportMessage) error {
	err := w.svc.ExportMovement(ctx, msg.Direction, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Movement gone before export, skipping",
			"direction", msg.Direction, "id", msg.ID)
		return nil
	}
	return err
}

// ProcessPendingExports retries one batch of rows still waiting for (or
// having failed) their archive write. It keeps going past individual
// failures so one bad row cannot block the rest of the batch.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	rows, err := w.store.ListUnexported(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Retrying unexported movements", "count", len(rows))

	failed := 0
	for _, m := range rows {
		if err := w.svc.ExportMovement(ctx, m.Direction, m.ID); err != nil {
			failed++
			w.logger.ErrorContext(ctx, "Retry export failed",
				"direction", m.Direction, "id", m.ID, "error", err)
		}
	}

	if failed > 0 {
		w.logger.WarnContext(ctx, "Export retry batch finished with failures",
			"total", len(rows), "failed", failed)
	}
	return nil
}

// StartupExportCheck drains whatever the previous run left behind so a
// crash between journal commit and archive write heals on restart.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) {
	if err := w.ProcessPendingExports(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export check failed", "error", err)
	}
}

// Run consumes queued export messages and sweeps unexported rows on a
// timer, until the context ends.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer, sweepInterval time.Duration) error {
	w.StartupExportCheck(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeMovementExports(ctx, w.HandleExportMessage)
	})

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPendingExports(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Export sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
