package location

import (
	"context"
	"time"
)

// WatchID identifies an active continuous subscription on a Sensor.
type WatchID uint64

// Options tune a single sensor request or subscription.
type Options struct {
	HighAccuracy bool          // Request the most precise source available
	MaximumAge   time.Duration // Accept a cached fix up to this age
	Timeout      time.Duration // Report ErrTimeout if no fix arrives within this window
}

// Sensor is the platform location capability consumed by the Acquirer.
//
// Callbacks passed to Watch may be invoked from any goroutine, but not from
// within Watch itself and never after ClearWatch for that subscription has
// returned. Callbacks may block. Errors handed to onError and
// returned by CurrentPosition wrap ErrPermissionDenied, ErrPositionUnavailable,
// ErrTimeout or ErrCapabilityUnavailable.
type Sensor interface {
	Watch(opts Options, onUpdate func(Reading), onError func(error)) (WatchID, error)
	ClearWatch(id WatchID)
	CurrentPosition(ctx context.Context, opts Options) (Reading, error)
}
