package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/pkg/identity"
	"github.com/benmeehan/pin-locator/pkg/mqtt"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/disk"
)

// PinLister returns the stored pins.
type PinLister interface {
	List(ctx context.Context) ([]models.Pin, error)
}

// HeartbeatService periodically publishes the device status and pin count.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	DeviceInfo identity.DeviceInfoInterface
	QOS        int
	MqttClient mqtt.MQTTClient
	Pins       PinLister
	DiskPath   string // Directory whose filesystem usage is reported; empty skips it
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService publishing to baseTopic/deviceID/status.
// diskPath names the directory holding the pin storage.
func NewHeartbeatService(baseTopic string, interval time.Duration, deviceInfo identity.DeviceInfoInterface,
	qos int, mqttClient mqtt.MQTTClient, pins PinLister, diskPath string, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:   baseTopic + "/" + deviceInfo.GetDeviceID() + "/status",
		Interval:   interval,
		DeviceInfo: deviceInfo,
		QOS:        qos,
		MqttClient: mqttClient,
		Pins:       pins,
		DiskPath:   diskPath,
		Logger:     logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) beat() {
	status := models.DeviceStatus{
		DeviceID:  h.DeviceInfo.GetDeviceID(),
		Timestamp: time.Now().UTC(),
		Status:    models.StatusAlive,
	}
	if ident := h.DeviceInfo.GetDeviceIdentity(); ident != nil {
		status.DeviceName = ident.Name
	}

	pins, err := h.Pins.List(h.ctx)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("Failed to count pins for heartbeat")
	}
	status.PinCount = len(pins)

	if h.DiskPath != "" {
		usage, err := disk.Usage(h.DiskPath)
		if err != nil {
			h.Logger.Warn().Err(err).Str("path", h.DiskPath).Msg("Failed to get disk usage")
		} else {
			status.DiskUsedPercent = usage.UsedPercent
		}
	}

	payload, err := json.Marshal(status)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		h.Logger.Error().Msg("Timed out publishing heartbeat message")
		return
	}
	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.Logger.Debug().Int("pin_count", status.PinCount).Msg("Heartbeat published successfully")
	}
}
