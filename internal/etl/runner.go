package etl

import (
	"context"
	"log/slog"
	"time"

	"github.com/avkuzmin/techharvest/internal/store"
	"github.com/avkuzmin/techharvest/internal/types"
)

// Runner rebuilds and republishes the relations from the document store on a
// fixed interval, independent of crawl progress.
type Runner struct {
	store     store.DocumentStore
	publisher *Publisher
	interval  time.Duration
	keep      int
	logger    *slog.Logger
}

// NewRunner creates an ETL runner. keep bounds how many superseded snapshots
// survive pruning.
func NewRunner(s store.DocumentStore, publisher *Publisher, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		store:     s,
		publisher: publisher,
		interval:  interval,
		keep:      2,
		logger:    logger.With("component", "etl_runner"),
	}
}

// RunOnce rebuilds the relations from the store and publishes one snapshot.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()

	var docs []*types.ProductDocument
	err := r.store.ScanAll(ctx, func(doc *types.ProductDocument) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return err
	}

	rel := Forward(docs)
	dir, err := r.publisher.Publish(rel)
	if err != nil {
		return err
	}

	if err := r.publisher.Prune(r.keep); err != nil {
		r.logger.Warn("snapshot pruning failed", "error", err)
	}

	r.logger.Info("etl cycle complete",
		"documents", len(docs),
		"dir", dir,
		"elapsed", time.Since(start),
	)
	return nil
}

// Run publishes immediately and then on every interval tick until the context
// is cancelled. A failed cycle is logged and retried on the next tick; the
// previous snapshot stays current in the meantime.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("initial etl cycle failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("etl runner stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("etl cycle failed", "error", err)
			}
		}
	}
}
