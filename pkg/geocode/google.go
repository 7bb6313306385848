package geocode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// Google reverse-geocodes coordinates with the Google Maps Geocoding API.
type Google struct {
	client   *maps.Client
	language string
	logger   zerolog.Logger
}

// NewGoogle creates a Google geocoder. Extra client options are passed to maps.NewClient.
func NewGoogle(apiKey, language string, logger zerolog.Logger, opts ...maps.ClientOption) (*Google, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &Google{client: c, language: language, logger: logger}, nil
}

// Name implements Geocoder.
func (g *Google) Name() string {
	return "google"
}

// Reverse implements Geocoder using the most specific result.
func (g *Google) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: lat, Lng: lon},
		Language: g.language,
	})
	if err != nil {
		return Address{}, fmt.Errorf("google reverse: %w", err)
	}
	if len(results) == 0 {
		return Address{}, ErrNoAddress
	}

	best := results[0]
	parts := addressParts{DisplayName: best.FormattedAddress}
	for _, c := range best.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "route":
				parts.Road = c.LongName
			case "street_number":
				parts.HouseNumber = c.LongName
			case "locality":
				parts.City = c.LongName
			case "postal_town":
				parts.Town = c.LongName
			case "sublocality":
				parts.Village = c.LongName
			case "country":
				parts.CountryCode = c.ShortName
			}
		}
	}

	addr := parts.format()
	g.logger.Debug().Float64("lat", lat).Float64("lon", lon).Str("address", addr.Short).Msg("Reverse geocoded position")
	return addr, nil
}
