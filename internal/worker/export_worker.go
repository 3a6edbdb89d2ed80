// Package worker keeps the external balance export in step with the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"potshare/internal/amqp"
	"potshare/internal/core"
	"potshare/internal/metrics"
	"potshare/internal/services"
	"potshare/internal/sheets"
	"potshare/internal/storage"
)

const defaultConcurrency = 4

// PotReader resolves pots for export.
type PotReader interface {
	GetPot(ctx context.Context, id string) (core.Pot, error)
	ListPots(ctx context.Context) ([]core.Pot, error)
}

// BalanceSource computes a pot's balances from the store.
type BalanceSource interface {
	Compute(ctx context.Context, potID string) (services.PotBalances, error)
}

// ExportWorker recomputes balances on ledger events and writes them to an
// exporter. A periodic full export covers events that were lost.
type ExportWorker struct {
	pots        PotReader
	balances    BalanceSource
	exporter    sheets.BalanceExporter
	metrics     *metrics.Metrics
	concurrency int
}

func NewExportWorker(pots PotReader, balances BalanceSource, exporter sheets.BalanceExporter, m *metrics.Metrics, concurrency int) *ExportWorker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &ExportWorker{
		pots:        pots,
		balances:    balances,
		exporter:    exporter,
		metrics:     m,
		concurrency: concurrency,
	}
}

// HandleLedgerEvent exports the pot named by the event. A pot that no
// longer exists is skipped rather than requeued.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_type", ev.Type,
		"pot_id", ev.PotID,
		"entity_id", ev.EntityID)

	err := w.ExportPot(ctx, ev.PotID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Pot not found, dropping event", "pot_id", ev.PotID)
		return nil
	}
	return err
}

// ExportPot recomputes and exports a single pot.
func (w *ExportWorker) ExportPot(ctx context.Context, potID string) error {
	pot, err := w.pots.GetPot(ctx, potID)
	if err != nil {
		return fmt.Errorf("get pot: %w", err)
	}
	return w.export(ctx, pot)
}

func (w *ExportWorker) export(ctx context.Context, pot core.Pot) error {
	result, err := w.balances.Compute(ctx, pot.ID)
	if err != nil {
		w.metrics.Exported(err)
		return fmt.Errorf("compute balances: %w", err)
	}
	err = w.exporter.ExportPot(ctx, pot, result.Balances)
	w.metrics.Exported(err)
	if err != nil {
		return fmt.Errorf("export pot %s: %w", pot.ID, err)
	}
	slog.DebugContext(ctx, "Pot balances exported", "pot_id", pot.ID, "participants", len(result.Balances))
	return nil
}

// ExportAll exports every pot with bounded concurrency. Failures are logged
// per pot and do not stop the others; the returned error counts them.
func (w *ExportWorker) ExportAll(ctx context.Context) (int, error) {
	pots, err := w.pots.ListPots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pots: %w", err)
	}

	var exported, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, pot := range pots {
		g.Go(func() error {
			if err := w.export(gctx, pot); err != nil {
				slog.ErrorContext(gctx, "Failed to export pot", "pot_id", pot.ID, "error", err)
				failed.Add(1)
				return nil
			}
			exported.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return int(exported.Load()), fmt.Errorf("%d of %d pots failed to export", n, len(pots))
	}
	return int(exported.Load()), nil
}

// StartupExport runs one full export and logs the outcome.
func (w *ExportWorker) StartupExport(ctx context.Context) {
	start := time.Now()
	n, err := w.ExportAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Startup export completed with errors", "exported", n, "error", err)
		return
	}
	slog.InfoContext(ctx, "Startup export completed", "exported", n, "duration_ms", time.Since(start).Milliseconds())
}

// RunPeriodic repeats the full export every interval until ctx is done.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.ExportAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "exported", n, "error", err)
			}
		}
	}
}
