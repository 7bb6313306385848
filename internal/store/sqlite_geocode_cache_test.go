package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/benmeehan/pin-locator/pkg/geocode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteGeocodeCache(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	cache := NewSQLiteGeocodeCache(db)
	ctx := context.Background()
	key := geocode.CacheKey(52.3731, 4.8926)

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := geocode.Address{Short: "Damrak 1, Amsterdam", City: "Amsterdam", CountryCode: "NL", DisplayName: "1, Damrak"}
	require.NoError(t, cache.Put(ctx, key, want))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	want.Short = "Damrak 2, Amsterdam"
	require.NoError(t, cache.Put(ctx, key, want))
	got, _, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Damrak 2, Amsterdam", got.Short)

	assert.Error(t, cache.Put(ctx, " ", want))
}

func TestSQLiteGeocodeCache_NilDB(t *testing.T) {
	cache := NewSQLiteGeocodeCache(nil)
	_, _, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, cache.Put(context.Background(), "k", geocode.Address{}))
}
