package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/internal/store"
	"github.com/benmeehan/pin-locator/pkg/geocode"
	"github.com/benmeehan/pin-locator/pkg/location"
	"github.com/benmeehan/pin-locator/pkg/maplinks"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNoPins is returned by DeleteAll when there is nothing to delete.
	ErrNoPins = errors.New("there are no pins")
	// ErrNothingToExport is returned by Export when there are no pins.
	ErrNothingToExport = errors.New("there are no pins to export")
	// ErrInvalidImport is returned when import data is not a JSON array of pins.
	ErrInvalidImport = errors.New("invalid import file: expected a JSON array of pins")
	// ErrAddressLookup wraps reverse geocoding failures while recording.
	ErrAddressLookup = errors.New("could not fetch address")
)

// ExportFilePrefix starts every export file name.
const ExportFilePrefix = "Locaties"

// Locator returns the current position.
type Locator interface {
	Locate(ctx context.Context) (location.Reading, error)
}

// PinObserver is notified after every change to the pin collection.
// Implementations must not block.
type PinObserver interface {
	OnPinEvent(event models.PinEvent)
}

// PinService records and manages pins.
type PinService struct {
	locator  Locator
	geocoder geocode.Geocoder
	repo     store.PinRepository
	deviceID string
	logger   zerolog.Logger

	observers []PinObserver
	now       func() time.Time
	newID     func() string
}

// NewPinService creates a PinService. deviceID is stamped on published events.
func NewPinService(locator Locator, geocoder geocode.Geocoder, repo store.PinRepository, deviceID string, logger zerolog.Logger) *PinService {
	return &PinService{
		locator:  locator,
		geocoder: geocoder,
		repo:     repo,
		deviceID: deviceID,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// AddObserver registers an observer. It must be called before the service is used concurrently.
func (s *PinService) AddObserver(o PinObserver) {
	s.observers = append(s.observers, o)
}

// SetClock replaces the clock used for pin timestamps.
func (s *PinService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PinService) notify(typ models.PinEventType, pin *models.Pin, count int) {
	event := models.PinEvent{
		DeviceID:  s.deviceID,
		Timestamp: s.now().UTC(),
		Type:      typ,
		Pin:       pin,
		Count:     count,
	}
	for _, o := range s.observers {
		o.OnPinEvent(event)
	}
}

// Record acquires the current position, resolves its address and stores a new pin in front.
func (s *PinService) Record(ctx context.Context) (models.Pin, error) {
	reading, err := s.locator.Locate(ctx)
	if err != nil {
		return models.Pin{}, err
	}

	addr, err := s.geocoder.Reverse(ctx, reading.Latitude, reading.Longitude)
	if err != nil {
		s.logger.Error().Err(err).Str("geocoder", s.geocoder.Name()).Msg("Reverse geocoding failed")
		return models.Pin{}, fmt.Errorf("%w: %w", ErrAddressLookup, err)
	}

	now := s.now()
	pin := models.Pin{
		ID:          s.newID(),
		Latitude:    reading.Latitude,
		Longitude:   reading.Longitude,
		Address:     addr.Short,
		City:        addr.City,
		CountryCode: addr.CountryCode,
		Date:        now.Format(models.PinDateLayout),
		Time:        now.Format(models.PinTimeLayout),
		MapImageURL: maplinks.StaticMapURL(reading.Latitude, reading.Longitude),
		Accuracy:    reading.Accuracy,
		Source:      string(reading.Provenance),
		CreatedAt:   now.UTC(),
	}

	if err := s.repo.Add(ctx, pin); err != nil {
		return models.Pin{}, fmt.Errorf("store pin: %w", err)
	}

	s.logger.Info().
		Str("pin_id", pin.ID).
		Str("address", pin.Address).
		Float64("accuracy", pin.Accuracy).
		Str("source", pin.Source).
		Msg("Pin recorded")
	s.notify(models.PinCreated, &pin, 1)
	return pin, nil
}

// List returns all pins, newest first.
func (s *PinService) List(ctx context.Context) ([]models.Pin, error) {
	return s.repo.List(ctx)
}

// Get returns one pin.
func (s *PinService) Get(ctx context.Context, id string) (models.Pin, error) {
	return s.repo.Get(ctx, id)
}

// UpdateNote replaces the note of a pin.
func (s *PinService) UpdateNote(ctx context.Context, id, note string) (models.Pin, error) {
	pin, err := s.repo.UpdateNote(ctx, id, note)
	if err != nil {
		return models.Pin{}, err
	}
	s.logger.Debug().Str("pin_id", id).Msg("Pin note updated")
	s.notify(models.PinNoteUpdated, &pin, 1)
	return pin, nil
}

// Delete removes one pin.
func (s *PinService) Delete(ctx context.Context, id string) error {
	pin, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info().Str("pin_id", id).Msg("Pin deleted")
	s.notify(models.PinDeleted, &pin, 1)
	return nil
}

// DeleteAll removes every pin and returns how many were removed.
func (s *PinService) DeleteAll(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNoPins
	}
	s.logger.Info().Int("count", n).Msg("All pins deleted")
	s.notify(models.PinsCleared, nil, n)
	return n, nil
}

// Export returns the pins as an indented JSON array and the file name to save it under.
func (s *PinService) Export(ctx context.Context) ([]byte, string, error) {
	pins, err := s.repo.List(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(pins) == 0 {
		return nil, "", ErrNothingToExport
	}

	data, err := json.MarshalIndent(pins, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode export: %w", err)
	}
	return data, ExportFileName(s.now()), nil
}

// ExportFileName names an export taken at t, e.g. Locaties+2024-03-02+09-15-00.json.
func ExportFileName(t time.Time) string {
	return ExportFilePrefix + "+" + t.Format("2006-01-02+15-04-05") + ".json"
}

// Import merges a JSON array of pins into the collection. Pins without an ID get a new one;
// pins whose ID is already stored are skipped. It returns the number of pins added.
func (s *PinService) Import(ctx context.Context, data []byte) (int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return 0, ErrInvalidImport
	}

	var pins []models.Pin
	if err := json.Unmarshal(trimmed, &pins); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	for i := range pins {
		if pins[i].ID == "" {
			pins[i].ID = s.newID()
		}
		if pins[i].MapImageURL == "" {
			pins[i].MapImageURL = maplinks.StaticMapURL(pins[i].Latitude, pins[i].Longitude)
		}
	}

	n, err := s.repo.Merge(ctx, pins)
	if err != nil {
		return 0, fmt.Errorf("merge imported pins: %w", err)
	}

	s.logger.Info().Int("received", len(pins)).Int("added", n).Msg("Pins imported")
	if n > 0 {
		s.notify(models.PinsImported, nil, n)
	}
	return n, nil
}
