package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimConfig configures a Nominatim geocoder.
type NominatimConfig struct {
	BaseURL     string        // Instance URL, DefaultNominatimURL when empty
	UserAgent   string        // Identifying User-Agent required by the usage policy
	Language    string        // Optional Accept-Language value, e.g. "nl"
	Timeout     time.Duration // Per-request HTTP timeout
	MaxAttempts int           // Attempts for transient failures
	Backoff     time.Duration // Initial retry backoff, doubled after each attempt
}

// Nominatim reverse-geocodes coordinates with an OpenStreetMap Nominatim server.
type Nominatim struct {
	baseURL   string
	userAgent string
	language  string
	session   *http.Client
	retry     retryPolicy
	logger    zerolog.Logger
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		Road        string `json:"road"`
		HouseNumber string `json:"house_number"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// NewNominatim creates a Nominatim geocoder.
func NewNominatim(cfg NominatimConfig, logger zerolog.Logger) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		language:  cfg.Language,
		session:   &http.Client{Timeout: cfg.Timeout},
		retry:     retryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff},
		logger:    logger,
	}
}

// Name implements Geocoder.
func (n *Nominatim) Name() string {
	return "nominatim"
}

// Reverse implements Geocoder.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	endpoint := n.baseURL + "/reverse?" + q.Encode()

	resp, err := doWithRetry(ctx, n.session, n.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if n.userAgent != "" {
			req.Header.Set("User-Agent", n.userAgent)
		}
		if n.language != "" {
			req.Header.Set("Accept-Language", n.language)
		}
		return req, nil
	})
	if err != nil {
		return Address{}, fmt.Errorf("nominatim reverse: %w", err)
	}
	defer resp.Body.Close()

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Address{}, fmt.Errorf("nominatim reverse: decode response: %w", err)
	}
	if body.Error != "" || body.DisplayName == "" {
		return Address{}, fmt.Errorf("%w: %s", ErrNoAddress, body.Error)
	}

	addr := addressParts{
		Road:        body.Address.Road,
		HouseNumber: body.Address.HouseNumber,
		City:        body.Address.City,
		Town:        body.Address.Town,
		Village:     body.Address.Village,
		CountryCode: body.Address.CountryCode,
		DisplayName: body.DisplayName,
	}.format()

	n.logger.Debug().Float64("lat", lat).Float64("lon", lon).Str("address", addr.Short).Msg("Reverse geocoded position")
	return addr, nil
}
