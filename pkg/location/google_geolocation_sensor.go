package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationSensor estimates the position from nearby WiFi access points and the
// serving cell using the Google Maps Geolocation API. It only answers single-shot queries.
type GoogleGeolocationSensor struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int          // ModemManager index used for the cell tower lookup
	logger     zerolog.Logger

	run commandRunner
	now func() time.Time
}

// NewGoogleGeolocationSensor creates a new GoogleGeolocationSensor. Extra client options are
// passed to maps.NewClient.
func NewGoogleGeolocationSensor(apiKey string, modemIndex int, logger zerolog.Logger, opts ...maps.ClientOption) (*GoogleGeolocationSensor, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationSensor{
		client:     c,
		modemIndex: modemIndex,
		logger:     logger,
		run:        runCommand,
		now:        time.Now,
	}, nil
}

// Watch is not supported; network geolocation has no continuous stream.
func (g *GoogleGeolocationSensor) Watch(Options, func(Reading), func(error)) (WatchID, error) {
	return 0, fmt.Errorf("%w: network geolocation is single-shot only", ErrCapabilityUnavailable)
}

// ClearWatch is a no-op.
func (g *GoogleGeolocationSensor) ClearWatch(WatchID) {}

// CurrentPosition retrieves the device's location using the Google Maps Geolocation API.
// Missing WiFi or cell data is tolerated; the API then falls back to the public IP.
func (g *GoogleGeolocationSensor) CurrentPosition(ctx context.Context, opts Options) (Reading, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	wifiAPs, err := scanWiFiAccessPoints(ctx, g.run)
	if err != nil {
		g.logger.Debug().Err(err).Msg("WiFi scan unavailable for geolocation")
	}

	cellTowers, err := scanCellTowers(ctx, g.run, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Cell tower lookup unavailable for geolocation")
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Reading{}, fmt.Errorf("%w: geolocation request: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return Reading{}, err
		}
		return Reading{}, fmt.Errorf("%w: geolocation request: %v", ErrPositionUnavailable, err)
	}

	g.logger.Debug().
		Int("wifi_access_points", len(wifiAPs)).
		Int("cell_towers", len(cellTowers)).
		Float64("accuracy", resp.Accuracy).
		Msg("Network geolocation resolved")

	return Reading{
		Latitude:   resp.Location.Lat,
		Longitude:  resp.Location.Lng,
		Accuracy:   resp.Accuracy,
		CapturedAt: g.now(),
	}, nil
}
