// Package engine implements the OCPP 1.6 Charge Point client-side message
// engine: the single-threaded cooperative state machine that owns outbound
// requests, matches responses to in-flight calls, retries failed
// transactions, drives periodic heartbeats, and surfaces lifecycle events to
// an embedding application.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
	"github.com/libmcu/ocpp-go/internal/pool"
)

// Sentinel errors. Compare with errors.Is; package boundaries wrap these
// with fmt.Errorf("...: %w", ...).
var (
	ErrOutOfMemory = errors.New("engine: out of memory")
	ErrNoMessage   = errors.New("engine: no message")
	ErrNoLink      = errors.New("engine: no matching request")
	ErrInvalid     = errors.New("engine: invalid frame")
)

// Clock supplies the current wall-clock time, read on demand.
type Clock interface {
	Now() time.Time
}

// Config is a read-only view of the configuration keys the engine consumes.
// Values are read on demand; the engine holds no cached copies, so a caller
// may change configuration between ticks.
type Config interface {
	HeartbeatInterval() time.Duration
	TransactionMessageAttempts() int
	TransactionMessageRetryInterval() time.Duration
	TxTimeout() time.Duration
	MaxTxRetries() int
}

// IDGenerator is the host RNG collaborator that assigns message ids to
// outbound CALLs.
type IDGenerator interface {
	NewID() string
}

// Message is the engine-facing view of a slot: what transport and event
// callbacks see. Payload is never copied by the engine; it is the caller's
// buffer, borrowed for the lifetime of the slot.
type Message struct {
	ID      string
	Role    ocppmsg.Role
	Type    ocppmsg.Type
	Payload []byte
}

// Transport is the external collaborator that puts frames on the wire and
// pulls them off. Send returns nil on success, any non-nil error on a
// transient failure. Recv returns ErrNoMessage when nothing is pending.
type Transport interface {
	Send(msg Message) error
	Recv() (Message, error)
}

// EventKind classifies a callback invocation. Non-negative kinds mirror
// OCPP message lifecycle events; negative kinds carry an errno-class
// protocol or transport failure.
type EventKind int

const (
	EventMessageIncoming EventKind = 0
	EventMessageOutgoing EventKind = 1
	EventMessageFree     EventKind = 2

	EventNoLink         EventKind = -1
	EventInvalid        EventKind = -2
	EventTransportError EventKind = -3
)

// EventCallback is invoked with the engine lock released, so it may
// reentrantly call any public Engine method.
type EventCallback func(kind EventKind, msg Message)

// MetricsRecorder is the optional instrumentation collaborator: a send
// attempt (success or failure) and a slot drop, each keyed by message type.
// A nil MetricsRecorder passed to New disables instrumentation.
type MetricsRecorder interface {
	RecordSend(msgType string, err error)
	RecordDrop(msgType string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSend(string, error) {}
func (noopMetrics) RecordDrop(string)        {}

// Engine is the single owned engine handle: all state for one Charge Point
// message pump. The zero value is not usable; construct with New.
type Engine struct {
	mu sync.Mutex

	pool  *pool.Pool
	ready *pool.List
	wait  *pool.List
	timer *pool.List

	clock     Clock
	config    Config
	ids       IDGenerator
	transport Transport
	onEvent   EventCallback
	metrics   MetricsRecorder
	log       *slog.Logger

	lastTxTimestamp time.Time
	lastRxTimestamp time.Time
}

// New constructs an Engine with the given pool capacity and collaborators,
// equivalent to the source's ocpp_init: zero state, allocate the three
// queues, record the callback, and stamp both timestamps to now. metrics may
// be nil, in which case instrumentation is a no-op.
func New(capacity int, clock Clock, config Config, ids IDGenerator, transport Transport, onEvent EventCallback, metrics MetricsRecorder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	p := pool.New(capacity)
	now := clock.Now()
	return &Engine{
		pool:            p,
		ready:           pool.NewList(p),
		wait:            pool.NewList(p),
		timer:           pool.NewList(p),
		clock:           clock,
		config:          config,
		ids:             ids,
		transport:       transport,
		onEvent:         onEvent,
		metrics:         metrics,
		log:             log,
		lastTxTimestamp: now,
		lastRxTimestamp: now,
	}
}

// PushRequest allocates a CALL slot for type with the given payload and
// queues it at the tail of Ready. If the pool is full and force is true, the
// oldest evictable slot is freed and the push retried once.
func (e *Engine) PushRequest(typ ocppmsg.Type, payload []byte, force bool) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.allocCall(typ, payload)
	if err != nil {
		if !force {
			return "", err
		}
		if evictErr := e.evictOldestLocked(); evictErr != nil {
			return "", err
		}
		idx, err = e.allocCall(typ, payload)
		if err != nil {
			return "", err
		}
	}

	e.ready.PushTail(idx)
	e.log.Info("tx: queued", "type", typ.String(), "id", e.pool.Get(idx).ID)
	return e.pool.Get(idx).ID, nil
}

// PushRequestDefer allocates a CALL slot and queues it into Timer with an
// expiry of timerSec from now, or onto Ready immediately if timerSec is
// zero.
func (e *Engine) PushRequestDefer(typ ocppmsg.Type, payload []byte, timerSec time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.allocCall(typ, payload)
	if err != nil {
		return "", err
	}

	if timerSec <= 0 {
		e.ready.PushTail(idx)
		return e.pool.Get(idx).ID, nil
	}

	e.pool.Get(idx).Expiry = e.clock.Now().Add(timerSec)
	e.timer.PushTail(idx)
	return e.pool.Get(idx).ID, nil
}

// PushResponse allocates a CALLRESULT or CALLERROR slot copying reqID and
// reqType from the originating request, and queues it at the Ready tail.
func (e *Engine) PushResponse(reqID string, reqType ocppmsg.Type, payload []byte, isError bool) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.pool.Alloc()
	if err != nil {
		return "", fmt.Errorf("push response: %w", ErrOutOfMemory)
	}
	slot := e.pool.Get(idx)
	slot.ID = reqID
	slot.Type = reqType
	slot.Payload = payload
	if isError {
		slot.Role = ocppmsg.CallError
	} else {
		slot.Role = ocppmsg.CallResult
	}

	e.ready.PushTail(idx)
	return slot.ID, nil
}

// CountPendingRequests returns the combined size of Ready, Wait, and Timer.
func (e *Engine) CountPendingRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready.Count() + e.wait.Count() + e.timer.Count()
}

// ReadyCount returns the number of slots currently queued in Ready.
func (e *Engine) ReadyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready.Count()
}

// WaitCount returns the number of slots currently queued in Wait.
func (e *Engine) WaitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wait.Count()
}

// TimerCount returns the number of slots currently queued in Timer.
func (e *Engine) TimerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer.Count()
}

// DropPendingType frees every queued slot (in any of the three queues)
// matching typ and returns the number dropped.
func (e *Engine) DropPendingType(typ ocppmsg.Type) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, l := range []*pool.List{e.ready, e.wait, e.timer} {
		var drop []int
		l.ForEach(func(idx int) {
			if e.pool.Get(idx).Type == typ {
				drop = append(drop, idx)
			}
		})
		for _, idx := range drop {
			l.Remove(idx)
			e.freeSlot(idx)
			n++
		}
	}
	return n
}

// EvictOldest frees the oldest Ready slot whose type is not
// BootNotification, StartTransaction, or StopTransaction.
func (e *Engine) EvictOldest() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evictOldestLocked()
}

func (e *Engine) evictOldestLocked() error {
	victim := -1
	e.ready.ForEach(func(idx int) {
		if victim != -1 {
			return
		}
		if !e.pool.Get(idx).Type.EvictionProtected() {
			victim = idx
		}
	})
	if victim == -1 {
		return ErrOutOfMemory
	}
	typ := e.pool.Get(victim).Type
	e.ready.Remove(victim)
	e.freeSlot(victim)
	e.log.Warn("evicted oldest message", "type", typ.String())
	return nil
}

// TypeFromIDString looks up a Wait slot by id and returns its type, or
// ocppmsg.MsgMax if no Wait slot carries that id.
func (e *Engine) TypeFromIDString(id string) ocppmsg.Type {
	e.mu.Lock()
	defer e.mu.Unlock()

	found := ocppmsg.MsgMax
	e.wait.ForEach(func(idx int) {
		if e.pool.Get(idx).ID == id {
			found = e.pool.Get(idx).Type
		}
	})
	return found
}

func (e *Engine) allocCall(typ ocppmsg.Type, payload []byte) (int, error) {
	idx, err := e.pool.Alloc()
	if err != nil {
		return -1, fmt.Errorf("push request: %w", ErrOutOfMemory)
	}
	slot := e.pool.Get(idx)
	slot.Role = ocppmsg.Call
	slot.Type = typ
	slot.Payload = payload
	slot.ID = e.ids.NewID()
	return idx, nil
}

// freeSlot emits MESSAGE_FREE with the lock released, then returns the slot
// to the pool. Caller must have already removed idx from any queue.
func (e *Engine) freeSlot(idx int) {
	slot := e.pool.Get(idx)
	msg := Message{ID: slot.ID, Role: slot.Role, Type: slot.Type, Payload: slot.Payload}
	e.metrics.RecordDrop(slot.Type.String())
	e.emit(EventMessageFree, msg)
	e.pool.Release(idx)
}

// emit invokes the callback with the engine lock released, permitting
// reentrant public API calls from within the callback.
func (e *Engine) emit(kind EventKind, msg Message) {
	if e.onEvent == nil {
		return
	}
	e.mu.Unlock()
	e.onEvent(kind, msg)
	e.mu.Lock()
}
