package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// UnknownCity is used when the geocoder knows no city, town or village for a position.
	UnknownCity = "Unknown city"
	// UnknownCountry is used when the geocoder returns no country code.
	UnknownCountry = "UN"
)

// ErrNoAddress is returned when the provider has no address for the coordinates.
var ErrNoAddress = errors.New("no address found for coordinates")

// Address is the human-readable description of a position.
type Address struct {
	Short       string `json:"short"`        // "Road 12, City", or the full display name when no road is known
	City        string `json:"city"`         // City, town or village; UnknownCity otherwise
	CountryCode string `json:"country_code"` // ISO 3166-1 alpha-2, upper-case; UnknownCountry otherwise
	DisplayName string `json:"display_name"` // Full provider-formatted address
}

// Geocoder turns coordinates into an Address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, error)
	Name() string
}

// AddressCache stores resolved addresses by coordinate key.
type AddressCache interface {
	Get(ctx context.Context, key string) (Address, bool, error)
	Put(ctx context.Context, key string, addr Address) error
}

// CacheKey rounds coordinates to 5 decimals (about a meter) so that nearby fixes share an entry.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// addressParts are the raw components every provider maps its response onto.
type addressParts struct {
	Road        string
	HouseNumber string
	City        string
	Town        string
	Village     string
	CountryCode string
	DisplayName string
}

func (p addressParts) format() Address {
	city := firstNonEmpty(p.City, p.Town, p.Village)
	if city == "" {
		city = UnknownCity
	}

	country := strings.ToUpper(strings.TrimSpace(p.CountryCode))
	if country == "" {
		country = UnknownCountry
	}

	short := p.DisplayName
	if road := strings.TrimSpace(p.Road); road != "" {
		short = strings.TrimSpace(road + " " + strings.TrimSpace(p.HouseNumber))
		if city != UnknownCity {
			short += ", " + city
		}
	}

	return Address{
		Short:       short,
		City:        city,
		CountryCode: country,
		DisplayName: p.DisplayName,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
