package ddnsd_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/honsun/ddnsd"
)

// countingProvider counts list calls (one per cycle) and tracks how
// many cycles run concurrently.
type countingProvider struct {
	*ddnsd.Fake
	cycles  atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (p *countingProvider) ListRecords(ctx context.Context, family ddnsd.Family) (map[string][]ddnsd.Record, error) {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)
	p.cycles.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.Fake.ListRecords(ctx, family)
}

func runnerFor(t *testing.T, load ddnsd.LoadFunc) *ddnsd.Runner {
	t.Helper()
	runner, err := ddnsd.NewRunner(&ddnsd.RunnerOptions{
		Load:          load,
		RetryCooldown: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return runner
}

func singleTaskBatch(t *testing.T, provider ddnsd.Provider, interval time.Duration) *ddnsd.Batch {
	t.Helper()
	task, err := ddnsd.NewTask(&ddnsd.TaskOptions{
		Name:     "home",
		Families: []ddnsd.Family{ddnsd.FamilyV4},
		Interval: interval,
		Resolver: staticLocal("@", addr("203.0.113.1")),
		Provider: provider,
	})
	require.NoError(t, err)
	return &ddnsd.Batch{Tasks: []*ddnsd.Task{task}, Stagger: time.Millisecond}
}

func TestRunnerTicksSequentially(t *testing.T) {
	provider := &countingProvider{Fake: ddnsd.NewFake(nil), delay: 10 * time.Millisecond}
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		return singleTaskBatch(t, provider, time.Millisecond), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(80 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, provider.cycles.Load(), int32(2), "task should tick repeatedly")
	assert.False(t, provider.overlap.Load(), "ticks of one task must never overlap")
}

func TestRunnerShutdownStopsTicking(t *testing.T) {
	provider := &countingProvider{Fake: ddnsd.NewFake(nil)}
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		return singleTaskBatch(t, provider, 2*time.Millisecond), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	settled := provider.cycles.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, provider.cycles.Load(), "no tick may begin after shutdown")
}

func TestRunnerReloadSwapsTaskSet(t *testing.T) {
	first := &countingProvider{Fake: ddnsd.NewFake(nil)}
	second := &countingProvider{Fake: ddnsd.NewFake(nil)}
	var loads atomic.Int32
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		if loads.Add(1) == 1 {
			return singleTaskBatch(t, first, 2*time.Millisecond), nil
		}
		return singleTaskBatch(t, second, 2*time.Millisecond), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	runner.Reload()
	time.Sleep(30 * time.Millisecond)

	frozen := first.cycles.Load()
	beforeSecond := second.cycles.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, frozen, first.cycles.Load(), "tasks from the old config must stop ticking")
	assert.Greater(t, second.cycles.Load(), beforeSecond, "tasks from the new config must tick")
	assert.GreaterOrEqual(t, loads.Load(), int32(2), "reload must re-read configuration")

	cancel()
	require.NoError(t, <-done)
}

// blockingProvider parks ListRecords until released and records
// whether the call's context was cancelled while it waited.
type blockingProvider struct {
	*ddnsd.Fake
	started      chan struct{}
	release      chan struct{}
	sawCancelled atomic.Bool
}

func (p *blockingProvider) ListRecords(ctx context.Context, family ddnsd.Family) (map[string][]ddnsd.Record, error) {
	select {
	case p.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		p.sawCancelled.Store(true)
	case <-p.release:
	}
	return p.Fake.ListRecords(ctx, family)
}

func TestRunnerTerminationLetsInflightCycleFinish(t *testing.T) {
	provider := &blockingProvider{
		Fake:    ddnsd.NewFake(nil),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		return singleTaskBatch(t, provider, time.Hour), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	<-provider.started
	cancel()

	// Shutdown must wait out the cycle, and the cycle's provider call
	// must not observe the termination.
	select {
	case <-done:
		t.Fatal("runner returned while a cycle was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(provider.release)
	require.NoError(t, <-done)
	assert.False(t, provider.sawCancelled.Load(), "in-flight provider call observed termination")
	assert.Equal(t, []string{"create @ 203.0.113.1"}, provider.Ops(), "the interrupted cycle must still apply its changes")
}

func TestRunnerCompletionDuringShutdownIsQuiet(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	// An empty batch completes instantly, so a pre-cancelled context
	// races task-set completion against termination on every run.
	for i := 0; i < 20; i++ {
		runner, err := ddnsd.NewRunner(&ddnsd.RunnerOptions{
			Logger: zap.New(core),
			Load: func() (*ddnsd.Batch, error) {
				return &ddnsd.Batch{Stagger: time.Millisecond}, nil
			},
			RetryCooldown: time.Hour,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, runner.Run(ctx))
	}

	assert.Zero(t, logs.FilterMessage("task set stopped unexpectedly, retrying after cooldown").Len(),
		"shutdown must not be reported as a task-set failure")
}

func TestRunnerLoadFailureIsFatal(t *testing.T) {
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		return nil, errors.New("bad config")
	})
	err := runner.Run(context.Background())
	require.ErrorContains(t, err, "bad config")
}

func TestRunnerCooldownRestartsStoppedTaskSet(t *testing.T) {
	// An empty batch finishes immediately, which the runner treats as a
	// catastrophic stop: cool down, then relaunch. Termination must
	// still win while that cycle repeats.
	var loads atomic.Int32
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		loads.Add(1)
		return &ddnsd.Batch{Tasks: nil, Stagger: time.Millisecond}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	require.NoError(t, runner.Run(ctx))
	assert.Equal(t, int32(1), loads.Load(), "cooldown retry must reuse the loaded config")
}

func TestRunnerStaggersFirstTicks(t *testing.T) {
	early := &countingProvider{Fake: ddnsd.NewFake(nil)}
	late := &countingProvider{Fake: ddnsd.NewFake(nil)}
	mkTask := func(name string, p ddnsd.Provider) *ddnsd.Task {
		task, err := ddnsd.NewTask(&ddnsd.TaskOptions{
			Name:     name,
			Families: []ddnsd.Family{ddnsd.FamilyV4},
			Interval: time.Hour,
			Resolver: staticLocal("@", addr("203.0.113.1")),
			Provider: p,
		})
		require.NoError(t, err)
		return task
	}
	runner := runnerFor(t, func() (*ddnsd.Batch, error) {
		return &ddnsd.Batch{
			Tasks:   []*ddnsd.Task{mkTask("a", early), mkTask("b", late)},
			Stagger: 100 * time.Millisecond,
		}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, early.cycles.Load(), int32(1), "first task starts immediately")
	assert.Zero(t, late.cycles.Load(), "second task waits out its stagger delay")

	time.Sleep(100 * time.Millisecond)
	assert.GreaterOrEqual(t, late.cycles.Load(), int32(1))

	cancel()
	require.NoError(t, <-done)
}
