// Package events publishes Charge Point lifecycle events as CloudEvents to
// any number of in-process subscribers, decoupling the engine's event
// callback from whatever observes it (logging, a UI, a webhook dispatcher).
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/libmcu/ocpp-go/internal/engine"
)

// Event type strings published for each engine.EventKind, following the
// reverse-DNS CloudEvents type convention.
const (
	TypeMessageIncoming = "io.libmcu.ocpp.message.incoming"
	TypeMessageOutgoing = "io.libmcu.ocpp.message.outgoing"
	TypeMessageFree     = "io.libmcu.ocpp.message.free"
	TypeNoLink          = "io.libmcu.ocpp.error.no_link"
	TypeInvalid         = "io.libmcu.ocpp.error.invalid"
	TypeTransportError  = "io.libmcu.ocpp.error.transport"
)

func typeFor(kind engine.EventKind) string {
	switch kind {
	case engine.EventMessageIncoming:
		return TypeMessageIncoming
	case engine.EventMessageOutgoing:
		return TypeMessageOutgoing
	case engine.EventMessageFree:
		return TypeMessageFree
	case engine.EventNoLink:
		return TypeNoLink
	case engine.EventInvalid:
		return TypeInvalid
	case engine.EventTransportError:
		return TypeTransportError
	default:
		return "io.libmcu.ocpp.event.unknown"
	}
}

// EventEmitter is the interface for publishing CloudEvents. Both the
// in-memory EventBus and an OCPPBridge-driven emitter satisfy this
// interface.
type EventEmitter interface {
	Emit(eventType, source, subject string, data map[string]interface{})
}

// CloudEvent is the CloudEvents 1.0 envelope used for every Charge Point
// lifecycle event this package publishes, e.g. Type
// "io.libmcu.ocpp.message.free" with Subject set to the freed message's id.
type CloudEvent struct {
	SpecVersion string                 `json:"specversion"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	ID          string                 `json:"id"`
	Time        time.Time              `json:"time"`
	Subject     string                 `json:"subject,omitempty"`
	TenantID    string                 `json:"tenantid,omitempty"`
	Data        map[string]interface{} `json:"data"`
}

// NewCloudEvent creates a CloudEvents 1.0 compliant event. Source is
// conventionally "chargepoint/<id>"; eventType is one of the Type*
// constants above.
func NewCloudEvent(eventType, source, subject string, data map[string]interface{}) *CloudEvent {
	return &CloudEvent{
		SpecVersion: "1.0",
		Type:        eventType,
		Source:      source,
		ID:          fmt.Sprintf("ce-%d", time.Now().UnixNano()),
		Time:        time.Now(),
		Subject:     subject,
		Data:        data,
	}
}

// JSON serializes the event.
func (ce *CloudEvent) JSON() ([]byte, error) {
	return json.Marshal(ce)
}

// SSEFormat returns the event in Server-Sent Events format, for
// cmd/chargepoint's /events/stream endpoint.
func (ce *CloudEvent) SSEFormat() ([]byte, error) {
	data, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n", ce.Type, data, ce.ID)), nil
}

// EventBus is an in-process pub/sub event bus carrying Charge Point
// lifecycle events. Subscribers receive CloudEvents in real time.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *CloudEvent // eventType -> channels
	allSubs     []chan *CloudEvent            // subscribers to all events
	logger      *log.Logger
	bufferSize  int
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan *CloudEvent),
		allSubs:     make([]chan *CloudEvent, 0),
		logger:      log.New(log.Writer(), "[EVENTS] ", log.LstdFlags),
		bufferSize:  100,
	}
}

// Subscribe creates a channel that receives events of specific types.
// Pass empty eventTypes to receive ALL events.
func (eb *EventBus) Subscribe(eventTypes ...string) chan *CloudEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan *CloudEvent, eb.bufferSize)

	if len(eventTypes) == 0 {
		eb.allSubs = append(eb.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			eb.subscribers[et] = append(eb.subscribers[et], ch)
		}
	}

	return ch
}

// Unsubscribe removes a subscription channel.
func (eb *EventBus) Unsubscribe(ch chan *CloudEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Remove from type-specific subs
	for et, subs := range eb.subscribers {
		filtered := make([]chan *CloudEvent, 0)
		for _, s := range subs {
			if s != ch {
				filtered = append(filtered, s)
			}
		}
		eb.subscribers[et] = filtered
	}

	// Remove from all subs
	filtered := make([]chan *CloudEvent, 0)
	for _, s := range eb.allSubs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	eb.allSubs = filtered

	close(ch)
}

// Publish sends an event to all matching subscribers.
func (eb *EventBus) Publish(event *CloudEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Deliver to type-specific subscribers
	for _, ch := range eb.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}

	// Deliver to "all" subscribers
	for _, ch := range eb.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit is a convenience method to create and publish an event.
func (eb *EventBus) Emit(eventType, source, subject string, data map[string]interface{}) {
	event := NewCloudEvent(eventType, source, subject, data)
	eb.Publish(event)
}

// SubscriberCount returns the total number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	count := len(eb.allSubs)
	for _, subs := range eb.subscribers {
		count += len(subs)
	}
	return count
}

// OCPPBridge adapts engine.EventCallback invocations onto an EventEmitter,
// so subscribers see every message lifecycle transition as a CloudEvent
// instead of wiring directly into the engine.
type OCPPBridge struct {
	emitter       EventEmitter
	chargePointID string
}

// NewOCPPBridge returns a bridge that publishes under source
// "chargepoint/<chargePointID>".
func NewOCPPBridge(emitter EventEmitter, chargePointID string) *OCPPBridge {
	return &OCPPBridge{emitter: emitter, chargePointID: chargePointID}
}

// Callback is passed as the engine's onEvent collaborator.
func (b *OCPPBridge) Callback(kind engine.EventKind, msg engine.Message) {
	b.emitter.Emit(typeFor(kind), "chargepoint/"+b.chargePointID, msg.ID, map[string]interface{}{
		"id":   msg.ID,
		"role": msg.Role.String(),
		"type": msg.Type.String(),
	})
}
