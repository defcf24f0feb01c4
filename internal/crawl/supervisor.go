package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/avkuzmin/techharvest/internal/etl"
	"github.com/avkuzmin/techharvest/internal/types"
)

// Supervisor runs the crawl loop and the ETL runner side by side. A crawl
// aborted by a store failure is restarted with exponential backoff; anything
// else ends the supervisor.
type Supervisor struct {
	orchestrator *Orchestrator
	etlRunner    *etl.Runner
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	logger       *slog.Logger
}

// NewSupervisor creates a supervisor. etlRunner may be nil for crawl-only
// runs.
func NewSupervisor(o *Orchestrator, etlRunner *etl.Runner, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		orchestrator: o,
		etlRunner:    etlRunner,
		baseBackoff:  5 * time.Second,
		maxBackoff:   5 * time.Minute,
		logger:       logger.With("component", "supervisor"),
	}
}

// Run blocks until the context is cancelled or the crawl fails unrecoverably.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	if s.etlRunner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.etlRunner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("etl runner exited", "error", err)
			}
		}()
	}

	err := s.runCrawl(ctx)
	wg.Wait()
	return err
}

// runCrawl keeps the crawl alive across transient store outages.
func (s *Supervisor) runCrawl(ctx context.Context) error {
	backoff := s.baseBackoff

	for {
		err := s.orchestrator.Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var storeErr *types.StoreError
		if !errors.As(err, &storeErr) {
			return err
		}

		s.logger.Error("crawl aborted by store failure, restarting",
			"backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}
