package store

import (
	"context"
	"errors"

	"github.com/benmeehan/pin-locator/internal/models"
)

var (
	// ErrPinNotFound is returned when no pin has the requested ID.
	ErrPinNotFound = errors.New("pin not found")
	// ErrDuplicatePin is returned when adding a pin whose ID is already stored.
	ErrDuplicatePin = errors.New("pin already exists")
)

// PinRepository persists the ordered pin collection, newest first.
type PinRepository interface {
	// List returns all pins, newest first.
	List(ctx context.Context) ([]models.Pin, error)
	// Get returns the pin with the given ID or ErrPinNotFound.
	Get(ctx context.Context, id string) (models.Pin, error)
	// Add places a new pin at the front of the collection.
	Add(ctx context.Context, pin models.Pin) error
	// UpdateNote replaces the note of a pin and returns the updated pin.
	UpdateNote(ctx context.Context, id, note string) (models.Pin, error)
	// Delete removes a pin and returns it.
	Delete(ctx context.Context, id string) (models.Pin, error)
	// DeleteAll removes every pin and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
	// Merge adds the pins whose IDs are not stored yet ahead of the existing ones,
	// keeping their relative order. Repeated IDs within pins count once. It returns the number added.
	Merge(ctx context.Context, pins []models.Pin) (int, error)
	// Close releases the underlying resources.
	Close() error
}

// newPins filters incoming down to pins whose IDs are neither in existing nor repeated.
func newPins(existing map[string]struct{}, incoming []models.Pin) []models.Pin {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for id := range existing {
		seen[id] = struct{}{}
	}

	added := make([]models.Pin, 0, len(incoming))
	for _, p := range incoming {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		added = append(added, p)
	}
	return added
}
