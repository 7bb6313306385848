package service_registry

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/benmeehan/pin-locator/internal/api"
	"github.com/benmeehan/pin-locator/internal/constants"
	"github.com/benmeehan/pin-locator/internal/registry"
	"github.com/benmeehan/pin-locator/internal/services"
	"github.com/benmeehan/pin-locator/internal/utils"
	"github.com/benmeehan/pin-locator/pkg/identity"
	"github.com/benmeehan/pin-locator/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Dependencies are the shared components the long-running services are built from.
type Dependencies struct {
	DeviceInfo identity.DeviceInfoInterface
	MqttClient mqtt.MQTTClient // nil when MQTT is disabled
	Pins       *services.PinService
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes an empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
// Observers are attached to deps.Pins, so it must run before the pin service is used.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	if config.MQTT.Enabled && deps.MqttClient == nil {
		return errors.New("mqtt is enabled but no client was provided")
	}
	deviceID := deps.DeviceInfo.GetDeviceID()

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "publisher",
			enabled: config.MQTT.Enabled,
			constructor: func() (registry.Service, error) {
				publisher := services.NewPublisherService(
					config.MQTT.Topic,
					deviceID,
					config.MQTT.QOS,
					config.MQTT.QueueSize,
					deps.MqttClient,
					sr.Logger,
				)
				deps.Pins.AddObserver(publisher)
				return publisher, nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.MQTT.Enabled && config.MQTT.HeartbeatInterval > 0,
			constructor: func() (registry.Service, error) {
				return services.NewHeartbeatService(
					config.MQTT.Topic,
					config.MQTT.HeartbeatInterval,
					deps.DeviceInfo,
					config.MQTT.QOS,
					deps.MqttClient,
					deps.Pins,
					storageDir(config),
					sr.Logger,
				), nil
			},
		},
		{
			name:    "http",
			enabled: true,
			constructor: func() (registry.Service, error) {
				hub := api.NewHub(sr.Logger)
				deps.Pins.AddObserver(hub)
				handler := api.NewHandler(deps.Pins, hub, deviceID, sr.Logger)
				return api.NewServer(api.ServerConfig{
					Address:         config.HTTP.Address,
					ReadTimeout:     config.HTTP.ReadTimeout,
					WriteTimeout:    config.HTTP.WriteTimeout,
					ShutdownTimeout: config.HTTP.ShutdownTimeout,
				}, api.NewRouter(handler, sr.Logger), hub, sr.Logger), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

// storageDir returns the directory holding the configured pin storage.
func storageDir(config *utils.Config) string {
	if config.Storage.Driver == constants.StorageSQLite {
		return filepath.Dir(config.Storage.SQLiteFile)
	}
	return filepath.Dir(config.Storage.JSONFile)
}
