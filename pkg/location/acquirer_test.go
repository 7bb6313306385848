package location

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSensor lets tests drive the continuous subscription by hand.
type fakeSensor struct {
	watchErr error
	current  func(ctx context.Context, opts Options) (Reading, error)

	watching chan struct{}
	cleared  atomic.Int32

	mu          sync.Mutex
	onUpdate    func(Reading)
	onError     func(error)
	watchOpts   Options
	currentOpts Options
	currentHits int
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{watching: make(chan struct{}, 1)}
}

func (f *fakeSensor) Watch(opts Options, onUpdate func(Reading), onError func(error)) (WatchID, error) {
	if f.watchErr != nil {
		return 0, f.watchErr
	}
	f.mu.Lock()
	f.onUpdate = onUpdate
	f.onError = onError
	f.watchOpts = opts
	f.mu.Unlock()
	f.watching <- struct{}{}
	return 7, nil
}

func (f *fakeSensor) ClearWatch(id WatchID) {
	if id == 7 {
		f.cleared.Add(1)
	}
}

func (f *fakeSensor) CurrentPosition(ctx context.Context, opts Options) (Reading, error) {
	f.mu.Lock()
	f.currentOpts = opts
	f.currentHits++
	fn := f.current
	f.mu.Unlock()
	if fn == nil {
		<-ctx.Done()
		return Reading{}, ctx.Err()
	}
	return fn(ctx, opts)
}

func (f *fakeSensor) emit(r Reading) {
	f.mu.Lock()
	fn := f.onUpdate
	f.mu.Unlock()
	fn(r)
}

func (f *fakeSensor) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

func (f *fakeSensor) waitWatching(t *testing.T) {
	t.Helper()
	select {
	case <-f.watching:
	case <-time.After(time.Second):
		t.Fatal("Watch was never called")
	}
}

func (f *fakeSensor) currentCalls() (int, Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentHits, f.currentOpts
}

type acquireResult struct {
	reading Reading
	err     error
	elapsed time.Duration
}

func startAcquire(ctx context.Context, a *Acquirer) <-chan acquireResult {
	out := make(chan acquireResult, 1)
	start := time.Now()
	go func() {
		r, err := a.Acquire(ctx)
		out <- acquireResult{reading: r, err: err, elapsed: time.Since(start)}
	}()
	return out
}

func waitResult(t *testing.T, ch <-chan acquireResult) acquireResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("acquisition did not terminate")
		return acquireResult{}
	}
}

func fix(acc float64) Reading {
	return Reading{Latitude: 52.37, Longitude: 4.89, Accuracy: acc, CapturedAt: time.Now()}
}

func testConfig() AcquirerConfig {
	return AcquirerConfig{
		TargetAccuracy:  40,
		Deadline:        100 * time.Millisecond,
		MaxStaleness:    30 * time.Second,
		WatchTimeout:    15 * time.Second,
		FallbackTimeout: 50 * time.Millisecond,
		FallbackMaxAge:  time.Minute,
	}
}

func TestAcquirerConfigDefaults(t *testing.T) {
	a := NewAcquirer(newFakeSensor(), AcquirerConfig{}, zerolog.Nop())
	cfg := a.Config()

	assert.Equal(t, DefaultTargetAccuracy, cfg.TargetAccuracy)
	assert.Equal(t, DefaultDeadline, cfg.Deadline)
	assert.Equal(t, DefaultMaxStaleness, cfg.MaxStaleness)
	assert.Equal(t, DefaultWatchTimeout, cfg.WatchTimeout)
	assert.Equal(t, DefaultFallbackTimeout, cfg.FallbackTimeout)
	assert.Equal(t, DefaultFallbackMaxAge, cfg.FallbackMaxAge)
}

func TestAcquire_NilSensor(t *testing.T) {
	a := NewAcquirer(nil, testConfig(), zerolog.Nop())

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestAcquire_WatchOptions(t *testing.T) {
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(fix(10))
	waitResult(t, res)

	sensor.mu.Lock()
	defer sensor.mu.Unlock()
	assert.Equal(t, Options{HighAccuracy: true, MaximumAge: 30 * time.Second, Timeout: 15 * time.Second}, sensor.watchOpts)
}

func TestAcquire_DecreasingAccuracyReturnsMinimum(t *testing.T) {
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	for _, acc := range []float64{300, 120, 90, 55} {
		sensor.emit(fix(acc))
	}

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 55.0, got.reading.Accuracy)
	assert.Equal(t, ProvenancePrimary, got.reading.Provenance)
	assert.Equal(t, int32(1), sensor.cleared.Load())

	calls, _ := sensor.currentCalls()
	assert.Zero(t, calls, "fallback must not run when a reading was observed")
}

func TestAcquire_BestKeepsEarlierOnTie(t *testing.T) {
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	first := fix(80)
	first.Latitude = 1
	second := fix(80)
	second.Latitude = 2
	sensor.emit(first)
	sensor.emit(second)
	sensor.emit(fix(95))

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 1.0, got.reading.Latitude)
}

func TestAcquire_GoodEnoughTerminatesImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(fix(120))
	sensor.emit(fix(40))

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 40.0, got.reading.Accuracy)
	assert.Less(t, got.elapsed, time.Second)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_FallbackSuccess(t *testing.T) {
	sensor := newFakeSensor()
	sensor.current = func(context.Context, Options) (Reading, error) {
		return fix(800), nil
	}
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	require.NoError(t, got.err)
	assert.Equal(t, 800.0, got.reading.Accuracy)
	assert.Equal(t, ProvenanceFallback, got.reading.Provenance)
	assert.GreaterOrEqual(t, got.elapsed, 100*time.Millisecond)
	assert.Equal(t, int32(1), sensor.cleared.Load())

	calls, opts := sensor.currentCalls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, Options{HighAccuracy: false, MaximumAge: time.Minute, Timeout: 50 * time.Millisecond}, opts)
}

func TestAcquire_FallbackFailure(t *testing.T) {
	sensor := newFakeSensor()
	sensor.current = func(context.Context, Options) (Reading, error) {
		return Reading{}, ErrPositionUnavailable
	}
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	assert.ErrorIs(t, got.err, ErrNoFix)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_FallbackTimesOut(t *testing.T) {
	sensor := newFakeSensor() // CurrentPosition blocks until its context ends
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	assert.ErrorIs(t, got.err, ErrNoFix)
	// deadline + fallback sub-timeout
	assert.GreaterOrEqual(t, got.elapsed, 150*time.Millisecond)
	assert.Less(t, got.elapsed, time.Second)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_FallbackStaleReadingIsNoFix(t *testing.T) {
	sensor := newFakeSensor()
	sensor.current = func(context.Context, Options) (Reading, error) {
		r := fix(500)
		r.CapturedAt = time.Now().Add(-2 * time.Minute)
		return r, nil
	}
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	assert.ErrorIs(t, got.err, ErrNoFix)
}

func TestAcquire_StaleUpdatesAreDiscarded(t *testing.T) {
	sensor := newFakeSensor()
	sensor.current = func(context.Context, Options) (Reading, error) {
		return Reading{}, ErrPositionUnavailable
	}
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	stale := fix(10)
	stale.CapturedAt = time.Now().Add(-time.Minute)
	sensor.emit(stale)

	got := waitResult(t, res)
	assert.ErrorIs(t, got.err, ErrNoFix)
}

func TestAcquire_InvalidAccuracyIsDiscarded(t *testing.T) {
	sensor := newFakeSensor()
	sensor.current = func(context.Context, Options) (Reading, error) {
		return fix(700), nil
	}
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(fix(-1))

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 700.0, got.reading.Accuracy)
}

func TestAcquire_PermissionErrorAfterReading(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(fix(150))
	assert.Zero(t, sensor.cleared.Load(), "watch must stay open before termination")
	sensor.fail(ErrPermissionDenied)

	got := waitResult(t, res)
	assert.ErrorIs(t, got.err, ErrPermissionDenied)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_TransientErrorsAreIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.fail(ErrTimeout)
	sensor.fail(ErrPositionUnavailable)
	sensor.emit(fix(20))

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 20.0, got.reading.Accuracy)
}

func TestAcquire_WatchPermissionDenied(t *testing.T) {
	sensor := newFakeSensor()
	sensor.watchErr = errors.Join(ErrPermissionDenied, errors.New("EACCES"))
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, sensor.cleared.Load())

	calls, _ := sensor.currentCalls()
	assert.Zero(t, calls)
}

func TestAcquire_WatchCapabilityUnavailable(t *testing.T) {
	sensor := newFakeSensor()
	sensor.watchErr = ErrCapabilityUnavailable
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	_, err := a.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestAcquire_WatchUnavailableFallsBackImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	sensor.watchErr = ErrPositionUnavailable
	sensor.current = func(context.Context, Options) (Reading, error) {
		return fix(1200), nil
	}
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	require.NoError(t, got.err)
	assert.Equal(t, 1200.0, got.reading.Accuracy)
	assert.Less(t, got.elapsed, time.Second)
	assert.Zero(t, sensor.cleared.Load(), "no watch was opened")
}

func TestAcquire_ContextCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	res := startAcquire(ctx, a)
	sensor.waitWatching(t)
	sensor.emit(fix(200))
	cancel()

	got := waitResult(t, res)
	assert.ErrorIs(t, got.err, context.Canceled)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_LateCallbacksAreNoOps(t *testing.T) {
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, testConfig(), zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(fix(5))
	got := waitResult(t, res)
	require.NoError(t, got.err)

	done := make(chan struct{})
	go func() {
		sensor.emit(fix(1))
		sensor.fail(ErrPermissionDenied)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback blocked after termination")
	}
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_ImprovingUpdatesScenario(t *testing.T) {
	// 10s deadline with updates at 2s, 4s and 6s, scaled down 10x.
	cfg := testConfig()
	cfg.Deadline = time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	for _, acc := range []float64{120, 55, 35} {
		time.Sleep(200 * time.Millisecond)
		sensor.emit(fix(acc))
	}

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 35.0, got.reading.Accuracy)
	assert.GreaterOrEqual(t, got.elapsed, 600*time.Millisecond)
	assert.Less(t, got.elapsed, time.Second)
}

func TestAcquire_SetClockDrivesStaleness(t *testing.T) {
	cfg := testConfig()
	cfg.Deadline = 10 * time.Second
	sensor := newFakeSensor()
	a := NewAcquirer(sensor, cfg, zerolog.Nop())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a.SetClock(func() time.Time { return base })

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	sensor.emit(Reading{Accuracy: 5, CapturedAt: base.Add(-time.Hour)})
	sensor.emit(Reading{Accuracy: 6, CapturedAt: base.Add(-time.Second)})

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 6.0, got.reading.Accuracy)
}

func TestAcquire_SerialFallbackReusesWatchPort(t *testing.T) {
	pr, _ := io.Pipe()
	var open, maxOpen atomic.Int32
	s := NewSerialSensor("/dev/ttyTEST", 9600, 0, zerolog.Nop())
	s.openPort = func(string, int) (io.ReadCloser, error) {
		if n := open.Add(1); n > maxOpen.Load() {
			maxOpen.Store(n)
		}
		return closeCounter{ReadCloser: pr, open: &open}, nil
	}
	a := NewAcquirer(s, testConfig(), zerolog.Nop())

	got := waitResult(t, startAcquire(context.Background(), a))
	assert.ErrorIs(t, got.err, ErrNoFix)
	assert.Equal(t, int32(1), maxOpen.Load())
	assert.Zero(t, open.Load())
}

type closeCounter struct {
	io.ReadCloser
	open *atomic.Int32
}

func (c closeCounter) Close() error {
	c.open.Add(-1)
	return c.ReadCloser.Close()
}

// blockingFallback returns a CurrentPosition stub that reports when it is entered
// and then waits for release or the end of its context.
func blockingFallback(result error) (fn func(context.Context, Options) (Reading, error), entered <-chan struct{}, release chan<- struct{}) {
	in := make(chan struct{}, 1)
	rel := make(chan struct{})
	fn = func(ctx context.Context, _ Options) (Reading, error) {
		in <- struct{}{}
		select {
		case <-rel:
			return Reading{}, result
		case <-ctx.Done():
			return Reading{}, ctx.Err()
		}
	}
	return fn, in, rel
}

func waitEntered(t *testing.T, entered <-chan struct{}) {
	t.Helper()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("fallback query never started")
	}
}

func TestAcquire_GoodEnoughUpdateDuringFallback(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackTimeout = 5 * time.Second
	sensor := newFakeSensor()
	current, entered, _ := blockingFallback(ErrPositionUnavailable)
	sensor.current = current
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	waitEntered(t, entered)
	sensor.emit(fix(25))

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 25.0, got.reading.Accuracy)
	assert.Equal(t, ProvenancePrimary, got.reading.Provenance)
	assert.Less(t, got.elapsed, time.Second)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_FailedFallbackReturnsLateUpdate(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackTimeout = 5 * time.Second
	sensor := newFakeSensor()
	current, entered, release := blockingFallback(ErrPositionUnavailable)
	sensor.current = current
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	waitEntered(t, entered)
	sensor.emit(fix(300))
	close(release)

	got := waitResult(t, res)
	require.NoError(t, got.err)
	assert.Equal(t, 300.0, got.reading.Accuracy)
	assert.Equal(t, ProvenancePrimary, got.reading.Provenance)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}

func TestAcquire_PermissionErrorDuringFallback(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackTimeout = 5 * time.Second
	sensor := newFakeSensor()
	current, entered, _ := blockingFallback(ErrPositionUnavailable)
	sensor.current = current
	a := NewAcquirer(sensor, cfg, zerolog.Nop())

	res := startAcquire(context.Background(), a)
	sensor.waitWatching(t)
	waitEntered(t, entered)
	sensor.fail(ErrPermissionDenied)

	got := waitResult(t, res)
	assert.ErrorIs(t, got.err, ErrPermissionDenied)
	assert.Empty(t, got.reading.Provenance)
	assert.Less(t, got.elapsed, time.Second)
	assert.Equal(t, int32(1), sensor.cleared.Load())
}
