package switchboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/retry/exponential"

	"github.com/bearlytools/switchboard/resolver"
)

// subChannelPool is the slice of pool.Pool the reconciler drives.
// Tests substitute recording fakes.
type subChannelPool interface {
	ApplyDiff(toAdd, toRemove resolver.EndpointSet) error
	Current() resolver.EndpointSet
}

// reconciler periodically resolves the service and applies the difference
// between the resolved and connected endpoint sets to the pool. It is the
// single writer of its own state; at most one resolution is in flight.
type reconciler struct {
	res  resolver.Resolver
	pool subChannelPool
	cfg  *config
	m    *metrics

	// last is the last successfully resolved set; nil until the first
	// success. Owned by the reconciler goroutine after startup.
	last resolver.EndpointSet

	// bootstrapped records that an eager bootstrap already applied a set, so
	// the loop's first tick waits a full probe interval.
	bootstrapped bool

	// done is closed when the loop exits.
	done chan struct{}
}

func newReconciler(res resolver.Resolver, p subChannelPool, cfg *config, m *metrics) *reconciler {
	return &reconciler{
		res:  res,
		pool: p,
		cfg:  cfg,
		m:    m,
		done: make(chan struct{}),
	}
}

// bootstrap performs the eager initial resolution: retry with exponential
// backoff until a non-empty set is obtained or the initial lookup deadline
// expires. An empty successful resolution counts as failure here; callers
// asked to wait for endpoints, and handing them none defeats the purpose.
func (r *reconciler) bootstrap(ctx context.Context) error {
	boff, err := exponential.New(exponential.WithPolicy(exponential.FastRetryPolicy()))
	if err != nil {
		return err
	}

	bctx, cancel := context.WithTimeout(ctx, r.cfg.initialLookupDeadline)
	defer cancel()

	var set resolver.EndpointSet
	err = boff.Retry(bctx, func(rctx context.Context, rec exponential.Record) error {
		tctx, tcancel := context.WithTimeout(rctx, r.cfg.resolutionTimeout)
		defer tcancel()

		s, err := r.res.Resolve(tctx)
		if err != nil {
			return err
		}
		if s.Len() == 0 {
			return errors.New("resolver returned no endpoints")
		}
		set = s
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialResolution, err)
	}

	toAdd, toRemove := r.pool.Current().Diff(set)
	if err := r.pool.ApplyDiff(toAdd, toRemove); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialResolution, err)
	}
	r.last = set
	r.bootstrapped = true
	r.observe(ctx, Tick{
		Added:   toAdd.Len(),
		Removed: toRemove.Len(),
		Total:   r.pool.Current().Len(),
		Outcome: OutcomeOK,
	})
	return nil
}

// run is the reconciliation loop. Ticks are scheduled by start time: a
// resolution that overruns the probe interval is followed immediately by the
// next tick. The loop exits when ctx is cancelled; an in-flight resolution
// is cancelled with it.
func (r *reconciler) run(ctx context.Context) {
	defer close(r.done)

	// After an eager bootstrap a set was just applied; wait a full interval.
	// Lazy starts resolving immediately.
	var first time.Duration
	if r.bootstrapped {
		first = r.cfg.probeInterval
	}

	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		r.tick(ctx)

		wait := r.cfg.probeInterval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// tick performs one resolve-diff-apply pass.
func (r *reconciler) tick(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, r.cfg.resolutionTimeout)
	set, err := r.res.Resolve(rctx)
	cancel()

	if ctx.Err() != nil {
		// Shutdown raced the resolution; don't report a tick for it.
		return
	}

	if err != nil {
		r.observe(ctx, Tick{
			Total:   r.pool.Current().Len(),
			Outcome: OutcomeResolverError,
			Err:     err,
		})
		return
	}

	// An empty answer while endpoints are connected is more often a resolver
	// hiccup than a deliberate scale-to-zero; keep serving from the last
	// known set.
	if set.Len() == 0 && r.last.Len() > 0 {
		r.observe(ctx, Tick{
			Total:   r.pool.Current().Len(),
			Outcome: OutcomeEmptyIgnored,
		})
		return
	}

	toAdd, toRemove := r.pool.Current().Diff(set)
	if err := r.pool.ApplyDiff(toAdd, toRemove); err != nil {
		r.observe(ctx, Tick{
			Total:   r.pool.Current().Len(),
			Outcome: OutcomePoolError,
			Err:     err,
		})
		return
	}

	r.last = set
	r.observe(ctx, Tick{
		Added:   toAdd.Len(),
		Removed: toRemove.Len(),
		Total:   r.pool.Current().Len(),
		Outcome: OutcomeOK,
	})
}

// observe fans a tick event out to the metrics and the optional observer.
func (r *reconciler) observe(ctx context.Context, t Tick) {
	if r.m != nil {
		r.m.record(ctx, t)
	}
	if r.cfg.observer != nil {
		r.cfg.observer.ObserveTick(t)
	}
}
