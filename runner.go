package ddnsd

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryCooldown is how long the runner waits before restarting a
// task set that stopped unexpectedly.
const DefaultRetryCooldown = 10 * time.Second

// Batch is one loaded task set plus the stagger base interval applied
// between consecutive task start times.
type Batch struct {
	Tasks   []*Task
	Stagger time.Duration
}

// LoadFunc produces a fresh Batch from configuration. It is called once
// at startup and again after every reload request.
type LoadFunc func() (*Batch, error)

type RunnerOptions struct {
	Logger *zap.Logger
	Clock  clock.Clock
	Load   LoadFunc

	// RetryCooldown overrides DefaultRetryCooldown; used by tests.
	RetryCooldown time.Duration
}

// Runner supervises the whole task set as a unit. Its lifecycle is
// load -> run, with three ways out of run: termination (context
// cancelled), reload (back to load), and unexpected task-set completion
// (cooldown, then run again with the same batch).
type Runner struct {
	logger   *zap.Logger
	clock    clock.Clock
	load     LoadFunc
	cooldown time.Duration
	reload   chan struct{}
}

func NewRunner(opts *RunnerOptions) (*Runner, error) {
	if opts.Load == nil {
		return nil, errors.New("runner requires a load function")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	cooldown := opts.RetryCooldown
	if cooldown <= 0 {
		cooldown = DefaultRetryCooldown
	}
	return &Runner{
		logger:   logger,
		clock:    clk,
		load:     opts.Load,
		cooldown: cooldown,
		reload:   make(chan struct{}, 1),
	}, nil
}

// Reload asks the runner to finish in-flight cycles, discard the
// current task set, and load configuration again. It never blocks; a
// request arriving while a reload is already pending is coalesced.
func (r *Runner) Reload() {
	select {
	case r.reload <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled or configuration loading fails.
// Configuration-load failure is the only fatal error.
func (r *Runner) Run(ctx context.Context) error {
	for {
		batch, err := r.load()
		if err != nil {
			return errors.Wrap(err, "loading configuration")
		}
		r.logger.Info("task set loaded", zap.Int("tasks", len(batch.Tasks)))

		again, err := r.supervise(ctx, batch)
		if err != nil {
			return err
		}
		if !again {
			r.logger.Info("shutdown complete")
			return nil
		}
		r.logger.Info("reload requested, configuration will be re-read")
	}
}

// supervise runs one batch until termination or reload. It returns true
// when the caller should load configuration and run again.
func (r *Runner) supervise(ctx context.Context, batch *Batch) (again bool, err error) {
	shutdown := NewShutdown()
	done := r.launch(ctx, shutdown, batch)
	running := true

	var cooldown *clock.Timer
	var cooldownC <-chan time.Time
	defer func() {
		if cooldown != nil {
			cooldown.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("termination requested, waiting for in-flight cycles")
			shutdown.TriggerAndWait()
			if running {
				<-done
			}
			return false, nil

		case <-r.reload:
			r.logger.Info("stopping task set for reload")
			shutdown.TriggerAndWait()
			if running {
				<-done
			}
			return true, nil

		case taskErr := <-done:
			running = false
			// Termination empties the task set too; completion racing
			// the cancelled context is an ordinary shutdown, not a
			// failure.
			if ctx.Err() != nil {
				r.logger.Info("termination requested, task set already stopped")
				return false, nil
			}
			// Tasks self-suppress per-tick errors, so the set finishing
			// while still armed is a catastrophic failure. Cool down and
			// retry with the same batch; termination and reload keep
			// priority while waiting.
			if taskErr == nil {
				taskErr = errors.New("all task loops stopped")
			}
			r.logger.Error("task set stopped unexpectedly, retrying after cooldown",
				zap.Duration("cooldown", r.cooldown),
				zap.Error(taskErr))
			cooldown = r.clock.Timer(r.cooldown)
			cooldownC = cooldown.C

		case <-cooldownC:
			cooldownC = nil
			r.logger.Info("cooldown elapsed, restarting task set")
			done = r.launch(ctx, shutdown, batch)
			running = true
		}
	}
}

// launch starts every task loop with its staggered first tick and
// returns a channel that yields once when all loops have finished.
func (r *Runner) launch(ctx context.Context, shutdown *Shutdown, batch *Batch) <-chan error {
	done := make(chan error, 1)
	go func() {
		g := new(errgroup.Group)
		for i, task := range batch.Tasks {
			stagger := time.Duration(i) * batch.Stagger
			task := task
			g.Go(func() error {
				task.run(ctx, shutdown, stagger)
				return nil
			})
		}
		done <- g.Wait()
	}()
	return done
}
