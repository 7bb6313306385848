package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// DefaultUERE is the user equivalent range error in meters used to turn HDOP into an accuracy radius.
const DefaultUERE = 5.0

// SerialSensor reads NMEA sentences from a GPS receiver connected via serial port.
// GGA sentences carrying a valid fix become readings.
type SerialSensor struct {
	port     string  // Serial port to which the GPS device is connected
	baudRate int     // Baud rate for the serial communication
	uere     float64 // Multiplier applied to HDOP to estimate accuracy in meters
	logger   zerolog.Logger

	openPort func(name string, baud int) (io.ReadCloser, error)
	now      func() time.Time

	mu      sync.Mutex
	nextID  WatchID
	watches map[WatchID]*serialWatch
	waiters map[chan fixResult]struct{} // single-shot queries served by an active watch
	last    *Reading
}

type fixResult struct {
	reading Reading
	err     error
}

type serialWatch struct {
	stop chan struct{}
	port io.Closer
	wg   sync.WaitGroup
}

// NewSerialSensor creates a SerialSensor. A non-positive uere selects DefaultUERE.
func NewSerialSensor(port string, baudRate int, uere float64, logger zerolog.Logger) *SerialSensor {
	if uere <= 0 {
		uere = DefaultUERE
	}
	return &SerialSensor{
		port:     port,
		baudRate: baudRate,
		uere:     uere,
		logger:   logger,
		openPort: openSerialPort,
		now:      time.Now,
		watches:  make(map[WatchID]*serialWatch),
		waiters:  make(map[chan fixResult]struct{}),
	}
}

func openSerialPort(name string, baud int) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// open maps port errors onto the sensor error taxonomy.
func (s *SerialSensor) open() (io.ReadCloser, error) {
	p, err := s.openPort(s.port, s.baudRate)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: gps device %s: %v", ErrCapabilityUnavailable, s.port, err)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: gps device %s: %v", ErrPermissionDenied, s.port, err)
	default:
		return nil, fmt.Errorf("%w: gps device %s: %v", ErrPositionUnavailable, s.port, err)
	}
}

// Watch opens the port and streams fixes to onUpdate until ClearWatch is called.
// A fix younger than opts.MaximumAge from an earlier session is delivered first.
func (s *SerialSensor) Watch(opts Options, onUpdate func(Reading), onError func(error)) (WatchID, error) {
	port, err := s.open()
	if err != nil {
		return 0, err
	}

	w := &serialWatch{stop: make(chan struct{}), port: port}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watches[id] = w
	cached := s.cachedLocked(opts.MaximumAge)
	s.mu.Unlock()

	fixes := make(chan Reading)
	readErr := make(chan error, 1)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		s.readFixes(port, w.stop, fixes, readErr)
	}()
	go func() {
		defer w.wg.Done()
		s.dispatch(w.stop, opts.Timeout, cached, fixes, readErr, onUpdate, onError)
	}()

	s.logger.Info().Str("port", s.port).Int("baud_rate", s.baudRate).Uint64("watch_id", uint64(id)).Msg("GPS watch started")
	return id, nil
}

// ClearWatch stops the subscription and waits for its goroutines to exit.
func (s *SerialSensor) ClearWatch(id WatchID) {
	s.mu.Lock()
	w, ok := s.watches[id]
	delete(s.watches, id)
	if ok && len(s.watches) == 0 {
		s.wakeLocked(fixResult{err: fmt.Errorf("%w: gps watch cleared", ErrPositionUnavailable)})
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	close(w.stop)
	if err := w.port.Close(); err != nil {
		s.logger.Warn().Err(err).Str("port", s.port).Msg("Failed to close GPS port")
	}
	w.wg.Wait()
	s.logger.Info().Uint64("watch_id", uint64(id)).Msg("GPS watch cleared")
}

// CurrentPosition returns the cached fix if it is young enough, otherwise the next fix from the device.
// While a watch is open the fix is taken from its reader; the port is never opened twice.
func (s *SerialSensor) CurrentPosition(ctx context.Context, opts Options) (Reading, error) {
	s.mu.Lock()
	cached := s.cachedLocked(opts.MaximumAge)
	var wait chan fixResult
	if cached == nil && len(s.watches) > 0 {
		wait = make(chan fixResult, 1)
		s.waiters[wait] = struct{}{}
	}
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if wait != nil {
		select {
		case res := <-wait:
			return res.reading, res.err
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.waiters, wait)
			s.mu.Unlock()
			return Reading{}, contextError(ctx)
		}
	}

	port, err := s.open()
	if err != nil {
		return Reading{}, err
	}

	stop := make(chan struct{})
	fixes := make(chan Reading)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.readFixes(port, stop, fixes, readErr)
	}()
	defer func() {
		close(stop)
		_ = port.Close()
		wg.Wait()
	}()

	select {
	case r := <-fixes:
		s.remember(r)
		return r, nil
	case err := <-readErr:
		return Reading{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	case <-ctx.Done():
		return Reading{}, contextError(ctx)
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	return ctx.Err()
}

// readFixes scans the port line by line and forwards every usable fix.
func (s *SerialSensor) readFixes(port io.Reader, stop <-chan struct{}, fixes chan<- Reading, readErr chan<- error) {
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 0, 256), 4096)
	for scanner.Scan() {
		r, ok, err := s.parseFix(scanner.Text())
		if err != nil {
			s.logger.Debug().Err(err).Msg("Skipping malformed NMEA sentence")
			continue
		}
		if !ok {
			continue
		}
		select {
		case fixes <- r:
		case <-stop:
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	readErr <- err
}

func (s *SerialSensor) dispatch(stop <-chan struct{}, timeout time.Duration, cached *Reading,
	fixes <-chan Reading, readErr <-chan error, onUpdate func(Reading), onError func(error)) {
	var timerC <-chan time.Time
	var timer *time.Timer
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	if cached != nil {
		onUpdate(*cached)
	}

	for {
		select {
		case <-stop:
			return
		case r := <-fixes:
			s.remember(r)
			onUpdate(r)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(timeout)
			}
		case err := <-readErr:
			select {
			case <-stop:
				return
			default:
			}
			err = fmt.Errorf("%w: gps read stopped: %v", ErrPositionUnavailable, err)
			s.mu.Lock()
			s.wakeLocked(fixResult{err: err})
			s.mu.Unlock()
			onError(err)
			return
		case <-timerC:
			onError(fmt.Errorf("%w: no gps fix within %s", ErrTimeout, timeout))
			timer.Reset(timeout)
		}
	}
}

// parseFix turns a GGA sentence into a Reading. ok is false for other sentences and invalid fixes.
func (s *SerialSensor) parseFix(line string) (Reading, bool, error) {
	line = strings.TrimSpace(line)
	// Receivers may emit non-NMEA chatter on the same port.
	if !strings.HasPrefix(line, "$") {
		return Reading{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Reading{}, false, err
	}

	gga, ok := sentence.(nmea.GGA)
	if !ok || gga.FixQuality == nmea.Invalid || gga.HDOP <= 0 {
		return Reading{}, false, nil
	}

	return Reading{
		Latitude:   gga.Latitude,
		Longitude:  gga.Longitude,
		Accuracy:   gga.HDOP * s.uere,
		CapturedAt: s.now(),
	}, true, nil
}

// remember caches r and hands it to pending single-shot queries.
func (s *SerialSensor) remember(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
	s.wakeLocked(fixResult{reading: r})
}

func (s *SerialSensor) wakeLocked(res fixResult) {
	for w := range s.waiters {
		w <- res
		delete(s.waiters, w)
	}
}

func (s *SerialSensor) cachedLocked(maxAge time.Duration) *Reading {
	if s.last == nil || maxAge <= 0 {
		return nil
	}
	if s.last.Age(s.now()) > maxAge {
		return nil
	}
	r := *s.last
	return &r
}
