package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/agent"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

// Runner solves one accepted task chain.
type Runner interface {
	Run(ctx context.Context, req quiz.TaskRequest) (agent.Report, error)
}

// Dispatcher runs accepted tasks in the background. Every chain gets its own
// deadline, and at most a fixed number of chains hold a browser at once; the
// rest wait their turn.
type Dispatcher struct {
	runner  Runner
	timeout time.Duration
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *observability.Metrics

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(runner Runner, maxConcurrent int64, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:  runner,
		timeout: timeout,
		sem:     semaphore.NewWeighted(maxConcurrent),
		logger:  logger,
		metrics: metrics,
		base:    base,
		cancel:  cancel,
	}
}

// Dispatch starts req in the background and returns immediately.
func (d *Dispatcher) Dispatch(req quiz.TaskRequest) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(req)
	}()
}

func (d *Dispatcher) run(req quiz.TaskRequest) {
	if err := d.sem.Acquire(d.base, 1); err != nil {
		d.logger.Warn("task dropped before start", zap.String("url", req.URL), zap.Error(err))
		return
	}
	defer d.sem.Release(1)

	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	report, err := d.runner.Run(ctx, req)
	if err != nil {
		d.logger.Warn("task chain ended with error",
			zap.String("run_id", report.RunID),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("task chain finished",
		zap.String("run_id", report.RunID),
		zap.Strings("visited", report.Visited),
		zap.String("outcome", report.Outcome.Kind.String()),
	)
}

// Shutdown cancels every in-flight chain and waits for them to release their
// resources, or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
