package ddnsd

import (
	"context"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// TaskOptions describes one periodic sync job. All references are fixed
// for the task's lifetime; a configuration reload builds a new task set
// rather than mutating a running one.
type TaskOptions struct {
	Logger    *zap.Logger
	Clock     clock.Clock
	Name      string
	Families  []Family
	Interval  time.Duration
	Resolver  Resolver
	Provider  Provider
	Notifiers []Notifier
	TTL       int
	Force     bool
}

// Task runs one reconciliation cycle per tick on a fixed interval.
type Task struct {
	logger    *zap.Logger
	clock     clock.Clock
	name      string
	families  []Family
	interval  time.Duration
	resolver  Resolver
	provider  Provider
	notifiers []Notifier
	ttl       int
	force     bool
}

func NewTask(opts *TaskOptions) (*Task, error) {
	if opts.Name == "" {
		return nil, errors.New("task name cannot be empty")
	}
	if len(opts.Families) == 0 {
		return nil, errors.Errorf("task %s selects no address families", opts.Name)
	}
	if opts.Interval <= 0 {
		return nil, errors.Errorf("task %s has a non-positive interval", opts.Name)
	}
	if opts.Resolver == nil || opts.Provider == nil {
		return nil, errors.Errorf("task %s is missing a resolver or provider", opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Task{
		logger:    logger.With(zap.String("task", opts.Name)),
		clock:     clk,
		name:      opts.Name,
		families:  opts.Families,
		interval:  opts.Interval,
		resolver:  opts.Resolver,
		provider:  opts.Provider,
		notifiers: opts.Notifiers,
		ttl:       opts.TTL,
		force:     opts.Force,
	}, nil
}

func (t *Task) Name() string { return t.name }

// run is the task's timer loop. The first tick fires after stagger, then
// every interval. Ticks are strictly sequential: the timer is re-armed
// only after the previous cycle (including notifier calls) completes.
// Per-tick errors are logged and never stop the loop.
func (t *Task) run(ctx context.Context, shutdown *Shutdown, stagger time.Duration) {
	timer := t.clock.Timer(stagger)
	defer timer.Stop()
	for {
		select {
		case <-shutdown.Done():
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !shutdown.Begin() {
			return
		}
		// A cycle that has begun runs to completion: termination stops
		// future ticks, never the provider calls already in flight.
		if err := t.RunOnce(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn("sync cycle failed", zap.Error(err))
		}
		shutdown.End()
		timer.Reset(t.interval)
	}
}

// RunOnce performs one full cycle: resolve local addresses, reconcile
// them against the provider, and notify if anything changed.
func (t *Task) RunOnce(ctx context.Context) error {
	for _, family := range t.families {
		local, err := t.resolver.Resolve(ctx, family)
		if err != nil {
			return errors.Wrapf(err, "resolving %s addresses", family)
		}

		// Sanity check, not a provider error: a resolver answering with
		// the wrong family gets skipped with a warning.
		if wrong := wrongFamily(local, family); len(wrong) > 0 {
			t.logger.Warn("resolver returned addresses of the wrong family, skipping",
				zap.Stringer("want", family),
				zap.Strings("got", wrong))
			continue
		}
		t.logger.Info("resolved local addresses",
			zap.Stringer("family", family),
			zap.Strings("addrs", describeLocal(local)))

		applied, err := Reconcile(ctx, t.logger, t.provider, local, t.ttl, t.force, family)
		if err != nil {
			return errors.Wrapf(err, "reconciling %s records", family)
		}
		if len(applied) == 0 {
			continue
		}

		addrs := lo.Map(applied, func(a Applied, _ int) netip.Addr { return a.Addr })
		for _, notifier := range t.notifiers {
			if err := notifier.Notify(ctx, addrs); err != nil {
				// Surfaced but contained: other notifiers and the next
				// tick are unaffected.
				t.logger.Warn("notifier failed", zap.Error(err))
			}
		}
	}
	return nil
}

func wrongFamily(local map[string][]netip.Addr, family Family) []string {
	var wrong []string
	for _, addrs := range local {
		for _, addr := range addrs {
			if !family.Matches(addr) {
				wrong = append(wrong, addr.String())
			}
		}
	}
	return wrong
}

func describeLocal(local map[string][]netip.Addr) []string {
	var out []string
	for prefix, addrs := range local {
		for _, addr := range addrs {
			out = append(out, prefix+" -> "+addr.String())
		}
	}
	return out
}
