package location

import "errors"

var (
	// ErrCapabilityUnavailable means there is no usable location sensor.
	ErrCapabilityUnavailable = errors.New("location capability unavailable")
	// ErrPermissionDenied means the platform refused access to the sensor.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrNoFix means no usable reading arrived before the deadline and the fallback failed.
	ErrNoFix = errors.New("no location fix")

	// ErrPositionUnavailable is reported by sensors that are present but cannot produce a fix.
	ErrPositionUnavailable = errors.New("position unavailable")
	// ErrTimeout is reported by sensors when a fix did not arrive within Options.Timeout.
	ErrTimeout = errors.New("position timeout")
)
