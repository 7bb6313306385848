package mocks

import (
	"sync"

	"github.com/benmeehan/pin-locator/internal/models"
)

// RecordingObserver collects every pin event it receives.
type RecordingObserver struct {
	mu     sync.Mutex
	events []models.PinEvent
}

func (r *RecordingObserver) OnPinEvent(event models.PinEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the received events.
func (r *RecordingObserver) Events() []models.PinEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PinEvent(nil), r.events...)
}
