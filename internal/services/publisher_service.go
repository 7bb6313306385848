package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/pkg/mqtt"
	"github.com/rs/zerolog"
)

// publishTimeout bounds how long one publish may wait for the broker.
const publishTimeout = 10 * time.Second

// PublisherService forwards pin events to an MQTT topic. Events are queued so that
// pin operations never wait on the broker; when the queue is full new events are dropped.
type PublisherService struct {
	PubTopic   string
	QOS        int
	MqttClient mqtt.MQTTClient
	Logger     zerolog.Logger

	queue   chan models.PinEvent
	dropped atomic.Int64

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisherService creates a PublisherService publishing to baseTopic/deviceID.
func NewPublisherService(baseTopic, deviceID string, qos, queueSize int, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *PublisherService {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &PublisherService{
		PubTopic:   baseTopic + "/" + deviceID,
		QOS:        qos,
		MqttClient: mqttClient,
		Logger:     logger,
		queue:      make(chan models.PinEvent, queueSize),
	}
}

// OnPinEvent queues the event for publishing.
func (p *PublisherService) OnPinEvent(event models.PinEvent) {
	select {
	case p.queue <- event:
	default:
		n := p.dropped.Add(1)
		p.Logger.Warn().Str("type", string(event.Type)).Int64("dropped", n).Msg("Publish queue full, dropping pin event")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *PublisherService) Dropped() int64 {
	return p.dropped.Load()
}

// Start launches the publish loop.
func (p *PublisherService) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		p.Logger.Warn().Msg("PublisherService is already running")
		return errors.New("publisher service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go func(ctx context.Context) {
		defer p.wg.Done()
		p.runPublishLoop(ctx)
	}(p.ctx)

	p.Logger.Info().Str("topic", p.PubTopic).Msg("PublisherService started successfully")
	return nil
}

// Stop ends the publish loop. Events still queued are not published.
func (p *PublisherService) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		p.Logger.Warn().Msg("PublisherService is not running")
		return errors.New("publisher service is not running")
	}

	p.cancel()
	p.wg.Wait()

	p.ctx = nil
	p.cancel = nil

	p.Logger.Info().Msg("PublisherService stopped successfully")
	return nil
}

func (p *PublisherService) runPublishLoop(ctx context.Context) {
	for {
		select {
		case event := <-p.queue:
			p.publish(event)
		case <-ctx.Done():
			p.Logger.Info().Msg("PublisherService stopping gracefully")
			return
		}
	}
}

func (p *PublisherService) publish(event models.PinEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error().Err(err).Msg("Failed to serialize pin event")
		return
	}

	token := p.MqttClient.Publish(p.PubTopic, byte(p.QOS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.Logger.Error().Str("type", string(event.Type)).Msg("Timed out publishing pin event")
		return
	}
	if err := token.Error(); err != nil {
		p.Logger.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to publish pin event")
		return
	}
	p.Logger.Debug().Str("type", string(event.Type)).Msg("Pin event published successfully")
}
