package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/benmeehan/pin-locator/internal/constants"
	"github.com/benmeehan/pin-locator/internal/services"
	"github.com/benmeehan/pin-locator/internal/store"
	"github.com/benmeehan/pin-locator/internal/utils"
	"github.com/benmeehan/pin-locator/pkg/file"
	"github.com/benmeehan/pin-locator/pkg/geocode"
	"github.com/benmeehan/pin-locator/pkg/identity"
	"github.com/benmeehan/pin-locator/pkg/location"
	"github.com/rs/zerolog"
)

// cli carries what every command needs.
type cli struct {
	config     *utils.Config
	fileClient file.FileOperations
	logger     zerolog.Logger
	stdout     io.Writer
}

// app is the wired pin workflow.
type app struct {
	deviceInfo *identity.DeviceInfo
	pins       *services.PinService

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp loads the device identity and builds storage, geocoding and location around the pin service.
func (c *cli) newApp() (*app, error) {
	cfg := c.config
	a := &app{}

	a.deviceInfo = identity.NewDeviceInfo(cfg.Device.IdentityFile, c.fileClient)
	if err := a.deviceInfo.LoadOrCreate(cfg.Device.Name); err != nil {
		return nil, fmt.Errorf("failed to load device identity: %w", err)
	}
	c.logger = c.logger.With().Str("device_id", a.deviceInfo.GetDeviceID()).Logger()

	var db *sql.DB
	if cfg.Storage.Driver == constants.StorageSQLite || cfg.Geocoder.Cache {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLiteFile), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		var err error
		db, err = store.OpenSQLite(cfg.Storage.SQLiteFile)
		if err != nil {
			return nil, err
		}
	}

	var repo store.PinRepository
	switch cfg.Storage.Driver {
	case constants.StorageSQLite:
		repo = store.NewSQLiteStore(db, c.logger)
	default:
		repo = store.NewJSONStore(cfg.Storage.JSONFile, c.fileClient, c.logger)
		if db != nil {
			a.closers = append(a.closers, db.Close)
		}
	}
	a.closers = append(a.closers, repo.Close)

	geocoder, err := c.newGeocoder(db)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sensor, err := c.newSensor()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	acquirer := location.NewAcquirer(sensor, location.AcquirerConfig{
		TargetAccuracy:  cfg.Location.TargetAccuracy,
		Deadline:        cfg.Location.Deadline,
		MaxStaleness:    cfg.Location.MaxStaleness,
		WatchTimeout:    cfg.Location.WatchTimeout,
		FallbackTimeout: cfg.Location.FallbackTimeout,
		FallbackMaxAge:  cfg.Location.FallbackMaxAge,
	}, c.logger)
	locator := services.NewLocationService(acquirer, c.logger)

	a.pins = services.NewPinService(locator, geocoder, repo, a.deviceInfo.GetDeviceID(), c.logger)
	return a, nil
}

func (c *cli) newGeocoder(db *sql.DB) (geocode.Geocoder, error) {
	cfg := c.config
	var g geocode.Geocoder
	switch cfg.Geocoder.Provider {
	case constants.GeocoderGoogle:
		google, err := geocode.NewGoogle(cfg.Location.MapsAPIKey, cfg.Geocoder.Language, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google geocoder: %w", err)
		}
		g = google
	default:
		g = geocode.NewNominatim(geocode.NominatimConfig{
			BaseURL:     cfg.Geocoder.NominatimURL,
			UserAgent:   cfg.Geocoder.UserAgent,
			Language:    cfg.Geocoder.Language,
			Timeout:     cfg.Geocoder.Timeout,
			MaxAttempts: cfg.Geocoder.MaxAttempts,
		}, c.logger)
	}

	if cfg.Geocoder.Cache && db != nil {
		g = geocode.NewCached(g, store.NewSQLiteGeocodeCache(db), c.logger)
	}
	c.logger.Debug().Str("geocoder", g.Name()).Msg("Geocoder configured")
	return g, nil
}

func (c *cli) newSensor() (location.Sensor, error) {
	cfg := c.config.Location
	serialSensor := func() location.Sensor {
		return location.NewSerialSensor(cfg.GPSDevicePort, cfg.GPSBaudRate, cfg.UERE, c.logger)
	}
	networkSensor := func() (location.Sensor, error) {
		g, err := location.NewGoogleGeolocationSensor(cfg.MapsAPIKey, cfg.ModemIndex, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google geolocation sensor: %w", err)
		}
		return g, nil
	}

	switch cfg.Sensor {
	case constants.SensorGoogle:
		// Without a continuous source every acquisition goes straight to the single-shot query.
		network, err := networkSensor()
		if err != nil {
			return nil, err
		}
		return location.NewHybridSensor(nil, network)
	case constants.SensorHybrid:
		network, err := networkSensor()
		if err != nil {
			return nil, err
		}
		return location.NewHybridSensor(serialSensor(), network)
	default:
		return serialSensor(), nil
	}
}
