package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/agent"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

type blockingRunner struct {
	running atomic.Int32
	peak    atomic.Int32
	release chan struct{}
	ended   chan error
}

func (r *blockingRunner) Run(ctx context.Context, req quiz.TaskRequest) (agent.Report, error) {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-r.release:
		r.ended <- nil
		return agent.Report{}, nil
	case <-ctx.Done():
		r.ended <- ctx.Err()
		return agent.Report{}, ctx.Err()
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ended: make(chan error, 5)}
	d := NewDispatcher(runner, 2, time.Minute, nil, nil)

	for i := 0; i < 5; i++ {
		d.Dispatch(quiz.TaskRequest{URL: "https://quiz.test"})
	}
	require.Eventually(t, func() bool { return runner.running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(runner.release)

	for i := 0; i < 5; i++ {
		require.NoError(t, <-runner.ended)
	}
	require.Equal(t, int32(2), runner.peak.Load())
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcherAppliesChainDeadline(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ended: make(chan error, 1)}
	d := NewDispatcher(runner, 1, 20*time.Millisecond, nil, nil)

	d.Dispatch(quiz.TaskRequest{URL: "https://quiz.test"})
	select {
	case err := <-runner.ended:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("chain deadline was not enforced")
	}
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcherShutdownCancelsChains(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ended: make(chan error, 1)}
	d := NewDispatcher(runner, 1, time.Hour, nil, nil)

	d.Dispatch(quiz.TaskRequest{URL: "https://quiz.test"})
	require.Eventually(t, func() bool { return runner.running.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	require.ErrorIs(t, <-runner.ended, context.Canceled)
}
