package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libmcu/ocpp-go/internal/engine"
	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TypeMessageFree)

	bus.Emit(TypeMessageFree, "chargepoint/CP-1", "req-1", map[string]interface{}{"id": "req-1"})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeMessageFree, ev.Type)
		assert.Equal(t, "req-1", ev.Subject)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()

	bus.Emit(TypeMessageIncoming, "src", "subj", nil)
	bus.Emit(TypeNoLink, "src", "subj2", nil)

	first := <-ch
	second := <-ch
	assert.Equal(t, TypeMessageIncoming, first.Type)
	assert.Equal(t, TypeNoLink, second.Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TypeMessageFree)
	bus.Unsubscribe(ch)

	bus.Emit(TypeMessageFree, "src", "subj", nil)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestSubscriberCount(t *testing.T) {
	bus := NewEventBus()
	assert.Equal(t, 0, bus.SubscriberCount())
	ch1 := bus.Subscribe(TypeMessageFree)
	bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())
	bus.Unsubscribe(ch1)
	assert.Equal(t, 1, bus.SubscriberCount())
}

func TestOCPPBridgePublishesEngineEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TypeMessageFree)
	bridge := NewOCPPBridge(bus, "CP-1")

	bridge.Callback(engine.EventMessageFree, engine.Message{
		ID: "req-9", Role: ocppmsg.Call, Type: ocppmsg.Heartbeat,
	})

	select {
	case ev := <-ch:
		require.Equal(t, "chargepoint/CP-1", ev.Source)
		assert.Equal(t, "req-9", ev.Subject)
		assert.Equal(t, "Heartbeat", ev.Data["type"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bridged event")
	}
}
