package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/pin-locator/pkg/geocode"
)

// SQLiteGeocodeCache is a geocode.AddressCache in the geocode_cache table.
type SQLiteGeocodeCache struct {
	DB  *sql.DB
	now func() time.Time
}

// NewSQLiteGeocodeCache creates a cache on a database prepared by InitSchema.
func NewSQLiteGeocodeCache(db *sql.DB) *SQLiteGeocodeCache {
	return &SQLiteGeocodeCache{DB: db, now: time.Now}
}

// Get implements geocode.AddressCache.
func (c *SQLiteGeocodeCache) Get(ctx context.Context, key string) (geocode.Address, bool, error) {
	if c.DB == nil {
		return geocode.Address{}, false, errors.New("geocode cache: db is nil")
	}

	var a geocode.Address
	err := c.DB.QueryRowContext(ctx, `
	SELECT
		short,
		city,
		country_code,
		display_name
	FROM geocode_cache
	WHERE coord_key = ?;
	`, key).Scan(&a.Short, &a.City, &a.CountryCode, &a.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return geocode.Address{}, false, nil
	}
	if err != nil {
		return geocode.Address{}, false, fmt.Errorf("get geocode cache key=%q: %w", key, err)
	}
	return a, true, nil
}

// Put implements geocode.AddressCache.
func (c *SQLiteGeocodeCache) Put(ctx context.Context, key string, a geocode.Address) error {
	if c.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert geocode cache: empty key")
	}

	_, err := c.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO geocode_cache (
		coord_key,
		short,
		city,
		country_code,
		display_name,
		updated_at
	)
	VALUES (?, ?, ?, ?, ?, ?);
	`, key, a.Short, a.City, a.CountryCode, a.DisplayName, c.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert geocode cache key=%q: %w", key, err)
	}
	return nil
}
