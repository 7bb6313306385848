package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Defaults used when an AcquirerConfig field is left at its zero value.
const (
	DefaultTargetAccuracy  = 40.0
	DefaultDeadline        = 10 * time.Second
	DefaultMaxStaleness    = 30 * time.Second
	DefaultWatchTimeout    = 15 * time.Second
	DefaultFallbackTimeout = 5 * time.Second
	DefaultFallbackMaxAge  = 60 * time.Second
)

// AcquirerConfig holds the thresholds of a best-effort acquisition.
type AcquirerConfig struct {
	TargetAccuracy  float64       // Good-enough accuracy in meters; a fix at or below it ends the acquisition
	Deadline        time.Duration // Time budget of the continuous phase
	MaxStaleness    time.Duration // Continuous readings older than this are discarded
	WatchTimeout    time.Duration // Per-update timeout hint for the continuous subscription
	FallbackTimeout time.Duration // Sub-timeout of the single-shot fallback query
	FallbackMaxAge  time.Duration // Cached-fix window accepted by the fallback query
}

func (c AcquirerConfig) withDefaults() AcquirerConfig {
	if c.TargetAccuracy <= 0 {
		c.TargetAccuracy = DefaultTargetAccuracy
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.MaxStaleness <= 0 {
		c.MaxStaleness = DefaultMaxStaleness
	}
	if c.WatchTimeout <= 0 {
		c.WatchTimeout = DefaultWatchTimeout
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = DefaultFallbackTimeout
	}
	if c.FallbackMaxAge <= 0 {
		c.FallbackMaxAge = DefaultFallbackMaxAge
	}
	return c
}

// Acquirer produces the best available Reading from a Sensor within a bounded time.
// An Acquirer may be reused, but acquisitions on the same sensor must not overlap.
type Acquirer struct {
	sensor Sensor
	cfg    AcquirerConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewAcquirer creates an Acquirer. A nil sensor makes every acquisition fail with ErrCapabilityUnavailable.
func NewAcquirer(sensor Sensor, cfg AcquirerConfig, logger zerolog.Logger) *Acquirer {
	return &Acquirer{
		sensor: sensor,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (a *Acquirer) Config() AcquirerConfig {
	return a.cfg
}

// SetClock replaces the wall clock used for staleness checks.
func (a *Acquirer) SetClock(now func() time.Time) {
	a.now = now
}

type acquisitionState int

const (
	stateListening acquisitionState = iota
	stateDeciding
	stateFallingBack
	stateDone
)

func (s acquisitionState) String() string {
	switch s {
	case stateListening:
		return "listening"
	case stateDeciding:
		return "deciding"
	case stateFallingBack:
		return "falling_back"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// sensorEvent carries either a reading or an error from the continuous subscription.
type sensorEvent struct {
	reading Reading
	err     error
}

type fallbackResult struct {
	reading Reading
	err     error
}

// acquisition is the state of one Acquire call. Only the run loop mutates it.
type acquisition struct {
	a     *Acquirer
	state acquisitionState
	best  *Reading

	events chan sensorEvent
	done   chan struct{}

	release        func()
	cancelFallback context.CancelFunc
}

// Acquire races the continuous subscription against the deadline and, if nothing was
// observed, a relaxed single-shot query. It returns exactly once; the subscription is
// cleared exactly once on every path. Cancelling ctx aborts with ctx.Err().
func (a *Acquirer) Acquire(ctx context.Context) (Reading, error) {
	if a.sensor == nil {
		return Reading{}, ErrCapabilityUnavailable
	}

	q := &acquisition{
		a:      a,
		state:  stateListening,
		events: make(chan sensorEvent),
		done:   make(chan struct{}),
	}

	watchOpts := Options{
		HighAccuracy: true,
		MaximumAge:   a.cfg.MaxStaleness,
		Timeout:      a.cfg.WatchTimeout,
	}
	id, err := a.sensor.Watch(watchOpts, q.onUpdate, q.onError)
	switch {
	case err == nil:
		q.release = func() { a.sensor.ClearWatch(id) }
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrCapabilityUnavailable):
		return Reading{}, fmt.Errorf("open location watch: %w", err)
	default:
		a.logger.Warn().Err(err).Msg("Continuous location watch unavailable, using fallback query")
		q.state = stateFallingBack
	}

	return q.run(ctx)
}

func (q *acquisition) run(ctx context.Context) (Reading, error) {
	defer q.teardown()

	cfg := q.a.cfg
	deadline := time.NewTimer(cfg.Deadline)
	defer deadline.Stop()
	deadlineC := deadline.C

	var fallback <-chan fallbackResult
	var fallbackExpired <-chan struct{}
	if q.state == stateFallingBack {
		deadlineC = nil
		fallback, fallbackExpired = q.startFallback(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return q.fail(ctx.Err())

		case ev := <-q.events:
			if ev.err != nil {
				if errors.Is(ev.err, ErrPermissionDenied) {
					return q.fail(fmt.Errorf("location watch: %w", ev.err))
				}
				q.a.logger.Debug().Err(ev.err).Str("state", q.state.String()).Msg("Ignoring location sensor error")
				continue
			}
			if r, ok := q.observe(ev.reading); ok {
				return q.succeed(r)
			}

		case <-deadlineC:
			deadlineC = nil
			q.state = stateDeciding
			if q.best != nil {
				return q.succeed(*q.best)
			}
			q.state = stateFallingBack
			q.a.logger.Debug().Dur("deadline", cfg.Deadline).Msg("No fix before deadline, issuing fallback query")
			fallback, fallbackExpired = q.startFallback(ctx)

		case res := <-fallback:
			fallback = nil
			if res.err != nil {
				if ctx.Err() != nil {
					return q.fail(ctx.Err())
				}
				return q.noFix(res.err)
			}
			r := res.reading
			now := q.a.now()
			if r.CapturedAt.IsZero() {
				r.CapturedAt = now
			}
			if r.Age(now) > cfg.FallbackMaxAge {
				return q.noFix(fmt.Errorf("fallback reading is %s old", r.Age(now).Round(time.Millisecond)))
			}
			r.Provenance = ProvenanceFallback
			return q.succeed(r)

		case <-fallbackExpired:
			fallbackExpired = nil
			if ctx.Err() != nil {
				return q.fail(ctx.Err())
			}
			return q.noFix(fmt.Errorf("fallback query timed out after %s", cfg.FallbackTimeout))
		}
	}
}

// observe folds a continuous reading into the best-so-far and reports whether it is good enough.
func (q *acquisition) observe(r Reading) (Reading, bool) {
	now := q.a.now()
	if r.CapturedAt.IsZero() {
		r.CapturedAt = now
	}
	if math.IsNaN(r.Accuracy) || r.Accuracy < 0 {
		q.a.logger.Debug().Float64("accuracy", r.Accuracy).Msg("Discarding reading with invalid accuracy")
		return Reading{}, false
	}
	if age := r.Age(now); age > q.a.cfg.MaxStaleness {
		q.a.logger.Debug().Dur("age", age).Msg("Discarding stale reading")
		return Reading{}, false
	}
	r.Provenance = ProvenancePrimary

	if q.best == nil || r.Accuracy < q.best.Accuracy {
		best := r
		q.best = &best
	}
	q.a.logger.Debug().
		Float64("accuracy", r.Accuracy).
		Float64("best_accuracy", q.best.Accuracy).
		Msg("Location update received")

	return r, r.Accuracy <= q.a.cfg.TargetAccuracy
}

func (q *acquisition) succeed(r Reading) (Reading, error) {
	q.state = stateDone
	return r, nil
}

func (q *acquisition) fail(err error) (Reading, error) {
	q.state = stateDone
	return Reading{}, err
}

// noFix ends a failed fallback, preferring any fix that still arrived on the subscription.
func (q *acquisition) noFix(cause error) (Reading, error) {
	if q.best != nil {
		return q.succeed(*q.best)
	}
	return q.fail(fmt.Errorf("%w: %v", ErrNoFix, cause))
}

func (q *acquisition) startFallback(ctx context.Context) (<-chan fallbackResult, <-chan struct{}) {
	cfg := q.a.cfg
	fctx, cancel := context.WithTimeout(ctx, cfg.FallbackTimeout)
	q.cancelFallback = cancel

	out := make(chan fallbackResult, 1)
	opts := Options{
		HighAccuracy: false,
		MaximumAge:   cfg.FallbackMaxAge,
		Timeout:      cfg.FallbackTimeout,
	}
	go func() {
		r, err := q.a.sensor.CurrentPosition(fctx, opts)
		out <- fallbackResult{reading: r, err: err}
	}()
	return out, fctx.Done()
}

// teardown releases everything the acquisition holds. Callbacks blocked in deliver
// are let go before the subscription is cleared.
func (q *acquisition) teardown() {
	q.state = stateDone
	close(q.done)
	if q.cancelFallback != nil {
		q.cancelFallback()
	}
	if q.release != nil {
		q.release()
	}
}

func (q *acquisition) onUpdate(r Reading) {
	q.deliver(sensorEvent{reading: r})
}

func (q *acquisition) onError(err error) {
	q.deliver(sensorEvent{err: err})
}

func (q *acquisition) deliver(ev sensorEvent) {
	select {
	case q.events <- ev:
	case <-q.done:
	}
}
