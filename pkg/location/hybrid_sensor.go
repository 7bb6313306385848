package location

import (
	"context"
	"errors"
	"fmt"
)

// HybridSensor pairs a precise continuous source with a coarse network source.
// Subscriptions and high-accuracy queries go to the primary; low-accuracy queries
// go to the network source when one is configured.
type HybridSensor struct {
	primary Sensor
	network Sensor
}

// NewHybridSensor combines the two sources. Either may be nil, but not both.
func NewHybridSensor(primary, network Sensor) (*HybridSensor, error) {
	if primary == nil && network == nil {
		return nil, ErrCapabilityUnavailable
	}
	return &HybridSensor{primary: primary, network: network}, nil
}

// Watch subscribes to the primary source. When the primary is missing but a network source
// exists, the error is downgraded so the caller can still use the fallback query.
func (h *HybridSensor) Watch(opts Options, onUpdate func(Reading), onError func(error)) (WatchID, error) {
	if h.primary == nil {
		return 0, fmt.Errorf("%w: no continuous location source configured", ErrPositionUnavailable)
	}
	id, err := h.primary.Watch(opts, onUpdate, onError)
	if err != nil && h.network != nil && errors.Is(err, ErrCapabilityUnavailable) {
		return 0, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	return id, err
}

// ClearWatch clears a subscription created by Watch.
func (h *HybridSensor) ClearWatch(id WatchID) {
	if h.primary != nil {
		h.primary.ClearWatch(id)
	}
}

// CurrentPosition routes the query by opts.HighAccuracy.
func (h *HybridSensor) CurrentPosition(ctx context.Context, opts Options) (Reading, error) {
	if (!opts.HighAccuracy && h.network != nil) || h.primary == nil {
		return h.network.CurrentPosition(ctx, opts)
	}
	return h.primary.CurrentPosition(ctx, opts)
}
