package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/internal/utils"
	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/rs/zerolog"
)

// JSONStore keeps the whole collection as one JSON array in a file.
// Every mutation rewrites the file atomically.
type JSONStore struct {
	path    string
	fileOps file.FileOperations
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewJSONStore creates a JSONStore backed by path. The file is created on the first write.
func NewJSONStore(path string, fileOps file.FileOperations, logger zerolog.Logger) *JSONStore {
	return &JSONStore{path: path, fileOps: fileOps, logger: logger}
}

func (s *JSONStore) load() ([]models.Pin, error) {
	var pins []models.Pin
	err := s.fileOps.ReadJsonFile(s.path, &pins)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Pin{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pin file %s: %w", s.path, err)
	}
	if pins == nil {
		pins = []models.Pin{}
	}
	return pins, nil
}

func (s *JSONStore) save(pins []models.Pin) error {
	if err := s.fileOps.WriteJsonFile(s.path, pins); err != nil {
		return fmt.Errorf("write pin file %s: %w", s.path, err)
	}
	return nil
}

func indexOf(pins []models.Pin, id string) int {
	for i := range pins {
		if pins[i].ID == id {
			return i
		}
	}
	return -1
}

// List implements PinRepository.
func (s *JSONStore) List(_ context.Context) ([]models.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get implements PinRepository.
func (s *JSONStore) Get(_ context.Context, id string) (models.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return models.Pin{}, err
	}
	i := indexOf(pins, id)
	if i < 0 {
		return models.Pin{}, ErrPinNotFound
	}
	return pins[i], nil
}

// Add implements PinRepository.
func (s *JSONStore) Add(_ context.Context, pin models.Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(pins, pin.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicatePin, pin.ID)
	}
	return s.save(append([]models.Pin{pin}, pins...))
}

// UpdateNote implements PinRepository.
func (s *JSONStore) UpdateNote(_ context.Context, id, note string) (models.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return models.Pin{}, err
	}
	i := indexOf(pins, id)
	if i < 0 {
		return models.Pin{}, ErrPinNotFound
	}
	pins[i].Note = note
	if err := s.save(pins); err != nil {
		return models.Pin{}, err
	}
	return pins[i], nil
}

// Delete implements PinRepository.
func (s *JSONStore) Delete(_ context.Context, id string) (models.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return models.Pin{}, err
	}
	i := indexOf(pins, id)
	if i < 0 {
		return models.Pin{}, ErrPinNotFound
	}
	removed := pins[i]
	pins = append(pins[:i], pins[i+1:]...)
	if err := s.save(pins); err != nil {
		return models.Pin{}, err
	}
	return removed, nil
}

// DeleteAll implements PinRepository. The backing file is removed.
func (s *JSONStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return 0, err
	}
	if err := s.fileOps.RemoveFile(s.path); err != nil {
		return 0, fmt.Errorf("remove pin file %s: %w", s.path, err)
	}
	return len(pins), nil
}

// Merge implements PinRepository.
func (s *JSONStore) Merge(_ context.Context, incoming []models.Pin) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, err := s.load()
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(pins))
	for i, p := range pins {
		ids[i] = p.ID
	}
	added := newPins(utils.SliceToSet(ids), incoming)
	if len(added) == 0 {
		return 0, nil
	}

	if err := s.save(append(added, pins...)); err != nil {
		return 0, err
	}
	s.logger.Debug().Int("added", len(added)).Int("skipped", len(incoming)-len(added)).Msg("Merged pins")
	return len(added), nil
}

// Close implements PinRepository.
func (s *JSONStore) Close() error {
	return nil
}
