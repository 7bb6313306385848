package services_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/pin-locator/internal/mocks"
	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/benmeehan/pin-locator/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPublisherService_StartStop(t *testing.T) {
	p := services.NewPublisherService("pinlog/events", "dev", 1, 4, new(mocks.MockMQTTClient), zerolog.Nop())

	require.NoError(t, p.Start())
	err := p.Start()
	require.Error(t, err)
	assert.Equal(t, "publisher service is already running", err.Error())

	require.NoError(t, p.Stop())
	err = p.Stop()
	require.Error(t, err)
	assert.Equal(t, "publisher service is not running", err.Error())
}

func TestPublisherService_PublishesEvents(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	token := new(mocks.MockToken)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Error").Return(nil)

	published := make(chan []byte, 1)
	client.On("Publish", "pinlog/events/dev", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(token)

	p := services.NewPublisherService("pinlog/events", "dev", 1, 4, client, zerolog.Nop())
	require.NoError(t, p.Start())
	defer func() { _ = p.Stop() }()

	pin := models.Pin{ID: "p1", Address: "Somewhere 1"}
	p.OnPinEvent(models.PinEvent{DeviceID: "dev", Type: models.PinCreated, Pin: &pin, Count: 1})

	select {
	case payload := <-published:
		var got models.PinEvent
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, models.PinCreated, got.Type)
		assert.Equal(t, "dev", got.DeviceID)
		require.NotNil(t, got.Pin)
		assert.Equal(t, "p1", got.Pin.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
}

func TestPublisherService_PublishErrorKeepsRunning(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	token := new(mocks.MockToken)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Error").Return(errors.New("not connected"))

	calls := make(chan struct{}, 2)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls <- struct{}{} }).
		Return(token)

	p := services.NewPublisherService("t", "dev", 0, 4, client, zerolog.Nop())
	require.NoError(t, p.Start())
	defer func() { _ = p.Stop() }()

	p.OnPinEvent(models.PinEvent{Type: models.PinDeleted})
	p.OnPinEvent(models.PinEvent{Type: models.PinsCleared})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("publish %d not attempted", i+1)
		}
	}
}

func TestPublisherService_DropsWhenQueueFull(t *testing.T) {
	p := services.NewPublisherService("t", "dev", 0, 2, new(mocks.MockMQTTClient), zerolog.Nop())

	for i := 0; i < 5; i++ {
		p.OnPinEvent(models.PinEvent{Type: models.PinCreated})
	}
	assert.Equal(t, int64(3), p.Dropped())
}
