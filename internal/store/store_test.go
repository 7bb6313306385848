package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pin(id string) models.Pin {
	return models.Pin{
		ID:          id,
		Latitude:    52.3731,
		Longitude:   4.8926,
		Address:     "Damrak 1, Amsterdam",
		City:        "Amsterdam",
		CountryCode: "NL",
		Date:        "2-3-2024",
		Time:        "09:15",
		MapImageURL: "https://static-maps.yandex.ru/1.x/?ll=4.8926,52.3731",
		Accuracy:    12.5,
		Source:      "primary",
		CreatedAt:   time.Date(2024, 3, 2, 9, 15, 0, 0, time.UTC),
	}
}

func ids(pins []models.Pin) []string {
	out := make([]string, len(pins))
	for i, p := range pins {
		out[i] = p.ID
	}
	return out
}

type repoFactory func(t *testing.T) PinRepository

func repositories() map[string]repoFactory {
	return map[string]repoFactory{
		"json": func(t *testing.T) PinRepository {
			path := filepath.Join(t.TempDir(), "pins.json")
			return NewJSONStore(path, file.NewFileService(), zerolog.Nop())
		},
		"sqlite": func(t *testing.T) PinRepository {
			db, err := OpenSQLite(filepath.Join(t.TempDir(), "pins.db"))
			require.NoError(t, err)
			return NewSQLiteStore(db, zerolog.Nop())
		},
	}
}

func forEachRepository(t *testing.T, test func(t *testing.T, repo PinRepository)) {
	for name, factory := range repositories() {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			t.Cleanup(func() { _ = repo.Close() })
			test(t, repo)
		})
	}
}

func TestRepository_AddPrependsAndGet(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()

		pins, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, pins)

		require.NoError(t, repo.Add(ctx, pin("a")))
		require.NoError(t, repo.Add(ctx, pin("b")))
		require.NoError(t, repo.Add(ctx, pin("c")))

		pins, err = repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, ids(pins))

		got, err := repo.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, pin("b"), got)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrPinNotFound)

		assert.ErrorIs(t, repo.Add(ctx, pin("a")), ErrDuplicatePin)
	})
}

func TestRepository_UpdateNote(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Add(ctx, pin("a")))

		updated, err := repo.UpdateNote(ctx, "a", "Koffie bij de hoek")
		require.NoError(t, err)
		assert.Equal(t, "Koffie bij de hoek", updated.Note)

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Koffie bij de hoek", got.Note)

		_, err = repo.UpdateNote(ctx, "missing", "x")
		assert.ErrorIs(t, err, ErrPinNotFound)
	})
}

func TestRepository_DeleteAndDeleteAll(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, repo.Add(ctx, pin(id)))
		}

		removed, err := repo.Delete(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, "b", removed.ID)

		_, err = repo.Delete(ctx, "b")
		assert.ErrorIs(t, err, ErrPinNotFound)

		pins, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(pins))

		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		pins, err = repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, pins)

		n, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRepository_Merge(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Add(ctx, pin("a")))
		require.NoError(t, repo.Add(ctx, pin("b")))

		incoming := []models.Pin{pin("x"), pin("a"), pin("y"), pin("x")}
		n, err := repo.Merge(ctx, incoming)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		pins, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "b", "a"}, ids(pins))

		n, err = repo.Merge(ctx, incoming)
		require.NoError(t, err)
		assert.Zero(t, n)

		// later adds still go to the front
		require.NoError(t, repo.Add(ctx, pin("z")))
		pins, err = repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "z", pins[0].ID)
	})
}

func TestRepository_ZeroCreatedAtRoundTrips(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()
		p := pin("imported")
		p.CreatedAt = time.Time{}
		p.Accuracy = 0
		p.Source = ""

		_, err := repo.Merge(ctx, []models.Pin{p})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "imported")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.IsZero())
		assert.Equal(t, p, got)
	})
}

func TestRepository_ManyPins(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PinRepository) {
		ctx := context.Background()
		for i := 0; i < 25; i++ {
			require.NoError(t, repo.Add(ctx, pin(fmt.Sprintf("p%02d", i))))
		}
		pins, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, pins, 25)
		assert.Equal(t, "p24", pins[0].ID)
		assert.Equal(t, "p00", pins[24].ID)
	})
}
