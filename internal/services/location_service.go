package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benmeehan/pin-locator/pkg/location"
	"github.com/rs/zerolog"
)

// ErrAcquisitionInProgress is returned when a position is requested while another acquisition runs.
var ErrAcquisitionInProgress = errors.New("a location acquisition is already in progress")

// PositionAcquirer produces one best-effort position per call.
type PositionAcquirer interface {
	Acquire(ctx context.Context) (location.Reading, error)
}

// LocationService serializes position acquisitions on a single sensor.
type LocationService struct {
	acquirer PositionAcquirer
	logger   zerolog.Logger

	busy atomic.Bool
}

// NewLocationService creates a LocationService around acquirer.
func NewLocationService(acquirer PositionAcquirer, logger zerolog.Logger) *LocationService {
	return &LocationService{
		acquirer: acquirer,
		logger:   logger,
	}
}

// Locate runs one acquisition. Overlapping calls fail fast with ErrAcquisitionInProgress.
func (l *LocationService) Locate(ctx context.Context) (location.Reading, error) {
	if !l.busy.CompareAndSwap(false, true) {
		l.logger.Warn().Msg("Location requested while an acquisition is running")
		return location.Reading{}, ErrAcquisitionInProgress
	}
	defer l.busy.Store(false)

	start := time.Now()
	reading, err := l.acquirer.Acquire(ctx)
	if err != nil {
		l.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Location acquisition failed")
		return location.Reading{}, err
	}

	l.logger.Info().
		Float64("latitude", reading.Latitude).
		Float64("longitude", reading.Longitude).
		Float64("accuracy", reading.Accuracy).
		Str("provenance", string(reading.Provenance)).
		Dur("duration", time.Since(start)).
		Msg("Location acquired")
	return reading, nil
}

// Busy reports whether an acquisition is running.
func (l *LocationService) Busy() bool {
	return l.busy.Load()
}
