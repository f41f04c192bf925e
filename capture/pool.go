package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
)

// Summary counts the outcome of a Pool run.
type Summary struct {
	Captured int64
	Failed   int64
}

// Pool captures batches of shots with a fixed number of workers. Each
// batch is attempted up to Retries+1 times.
type Pool struct {
	engine  Engine
	workers int
	retries int
	logger  logger.Logger
}

// NewPool creates a worker pool around engine.
func NewPool(engine Engine, workers, retries int, log logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if retries < 0 {
		retries = 0
	}
	return &Pool{
		engine:  engine,
		workers: workers,
		retries: retries,
		logger:  log.WithField("component", "capture"),
	}
}

// Run captures every batch. It keeps going when a shot fails and returns
// all failures joined once the work is drained.
func (p *Pool) Run(ctx context.Context, batches [][]Shot) (Summary, error) {
	var (
		summary Summary
		mu      sync.Mutex
		errs    []error
		wg      sync.WaitGroup
	)

	work := make(chan []Shot)
	p.logger.Info(ctx, "starting capture workers", map[string]interface{}{
		"workers": p.workers,
		"batches": len(batches),
	})

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for batch := range work {
				err := p.captureWithRetry(ctx, id, batch)
				if err != nil {
					atomic.AddInt64(&summary.Failed, int64(len(batch)))
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				atomic.AddInt64(&summary.Captured, int64(len(batch)))
			}
		}(i)
	}

feed:
	for _, batch := range batches {
		select {
		case work <- batch:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	p.logger.Info(ctx, "capture finished", map[string]interface{}{
		"captured": summary.Captured,
		"failed":   summary.Failed,
	})
	return summary, errors.Join(errs...)
}

func (p *Pool) captureWithRetry(ctx context.Context, worker int, batch []Shot) error {
	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = p.capture(ctx, batch)
		if err == nil {
			for _, s := range batch {
				p.logger.Debug(ctx, "shot captured", map[string]interface{}{
					"worker": worker,
					"label":  s.Label,
					"domain": s.Domain,
					"size":   s.Size.String(),
				})
			}
			return nil
		}
		p.logger.Warn(ctx, "capture attempt failed", map[string]interface{}{
			"worker":  worker,
			"url":     batch[0].URL,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return fmt.Errorf("capture %s: %w", batch[0].URL, err)
}

func (p *Pool) capture(ctx context.Context, batch []Shot) error {
	if r, ok := p.engine.(Resizer); ok && len(batch) > 1 {
		return r.CaptureSizes(ctx, batch)
	}
	for _, s := range batch {
		if err := p.engine.Capture(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
