package engine

import (
	"time"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
	"github.com/libmcu/ocpp-go/internal/pool"
)

// Step advances the engine one tick. It performs, in order: the Wait-queue
// timeout sweep, the serialization gate, one Ready drain, one ingress poll,
// heartbeat synthesis, and Timer promotion. The caller supplies now so that
// tests can drive the engine with a fake clock.
func (e *Engine) Step(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.processTxTimeout(now)

	// Serialization gate: do not start a new send while Wait is
	// non-empty. Ingress, heartbeat synthesis, and timer promotion still
	// run every tick — in particular, incoming frames must keep being
	// drained while a CALL is outstanding, or its response would never
	// be matched.
	if e.wait.Empty() {
		e.drainReady(now)
	}

	e.processIncoming(now)
	e.processHeartbeat(now)
	e.processTimerPromotion(now)
}

// processTxTimeout sweeps Wait for expired entries: a droppable slot whose
// attempts have exhausted MaxTxRetries is freed; anything else is retried by
// pushing it back to the head of Ready.
func (e *Engine) processTxTimeout(now time.Time) {
	var expired []int
	e.wait.ForEach(func(idx int) {
		if !e.pool.Get(idx).Expiry.After(now) {
			expired = append(expired, idx)
		}
	})

	for _, idx := range expired {
		e.wait.Remove(idx)
		slot := e.pool.Get(idx)
		if e.shouldDropOnTimeout(slot) {
			e.log.Info("dropping message", "type", slot.Type.String())
			e.freeSlot(idx)
			continue
		}
		e.log.Info("retrying message", "type", slot.Type.String())
		e.ready.PushHead(idx)
	}
}

// shouldDropOnTimeout applies the attempt-bounded drop policy: a droppable
// (non-undroppable) slot drops once it has used up MaxTxRetries attempts.
func (e *Engine) shouldDropOnTimeout(slot *pool.Slot) bool {
	if slot.Type.Undroppable() {
		return false
	}
	return slot.Attempts >= e.config.MaxTxRetries()
}

// drainReady sends exactly one Ready entry, matching the source's "do not
// send a message while one is outstanding" serialization gate (already
// enforced by the caller checking Wait is empty).
func (e *Engine) drainReady(now time.Time) {
	idx := e.ready.PopHead()
	if idx == -1 {
		return
	}
	e.sendMessage(idx, now)
}

// sendMessage increments attempts, stamps a flat timeout expiry, and hands
// the slot to the transport. A successful CALL moves to Wait; a successful
// CALLRESULT/CALLERROR is fire-and-forget and frees immediately. A failed
// send is retried via Wait when the slot has attempts left, is
// transaction-related, or is BootNotification; otherwise it is freed.
func (e *Engine) sendMessage(idx int, now time.Time) {
	slot := e.pool.Get(idx)
	slot.Attempts++
	slot.Expiry = now.Add(e.config.TxTimeout())

	msg := Message{ID: slot.ID, Role: slot.Role, Type: slot.Type, Payload: slot.Payload}
	e.log.Info("tx: request", "type", slot.Type.String(), "attempts", slot.Attempts)

	e.mu.Unlock()
	err := e.transport.Send(msg)
	e.mu.Lock()

	e.metrics.RecordSend(slot.Type.String(), err)

	if err == nil {
		if slot.Role == ocppmsg.Call {
			e.wait.PushTail(idx)
			return
		}
		e.freeSlot(idx)
		return
	}

	if e.retryableOnSendFailure(slot) {
		e.wait.PushTail(idx)
		return
	}
	e.freeSlot(idx)
}

// retryableOnSendFailure governs the first-failure parking decision: the
// slot gets one trip through Wait (and the subsequent timeout sweep) even
// when its attempt count has already reached MaxTxRetries, so that
// drop-after-retry is observable as two distinct steps — a send failure,
// then a timeout — rather than an immediate free. Transaction-related and
// BootNotification slots always retry regardless of attempt count.
func (e *Engine) retryableOnSendFailure(slot *pool.Slot) bool {
	if slot.Type.Undroppable() {
		return true
	}
	return slot.Attempts <= e.config.MaxTxRetries()
}

// processIncoming polls the transport once and routes the frame per its
// role: a CALL is forwarded as MESSAGE_INCOMING, a CALLRESULT/CALLERROR is
// matched against the single Wait slot by full id equality.
func (e *Engine) processIncoming(now time.Time) {
	e.mu.Unlock()
	frame, err := e.transport.Recv()
	e.mu.Lock()

	if err != nil {
		if err == ErrNoMessage {
			return
		}
		e.emit(EventTransportError, Message{})
		return
	}

	switch frame.Role {
	case ocppmsg.Call:
		e.log.Info("rx: request", "type", frame.Type.String())
		e.lastRxTimestamp = now
		e.emit(EventMessageIncoming, frame)
	case ocppmsg.CallResult, ocppmsg.CallError:
		e.processCentralResponse(frame, now)
	default:
		e.log.Error("invalid message role", "role", int(frame.Role))
		e.emit(EventInvalid, frame)
	}
}

// processCentralResponse matches an incoming CALLRESULT/CALLERROR against
// the Wait slot with the same id. A CALLERROR on a transaction-related slot
// that has not yet exhausted TransactionMessageAttempts is re-queued into
// Wait with linear backoff instead of being freed; everything else frees.
func (e *Engine) processCentralResponse(frame Message, now time.Time) {
	idx := e.findWaitByID(frame.ID)
	if idx == -1 {
		e.log.Error("no matching request for response", "type", frame.Type.String())
		e.emit(EventNoLink, frame)
		return
	}

	e.wait.Remove(idx)
	slot := e.pool.Get(idx)
	e.log.Info("rx: response", "type", slot.Type.String())

	if frame.Role == ocppmsg.CallError && slot.Type.Transactional() {
		maxAttempts := e.config.TransactionMessageAttempts()
		if slot.Attempts < maxAttempts {
			interval := e.config.TransactionMessageRetryInterval()
			slot.Expiry = now.Add(interval * time.Duration(slot.Attempts))
			e.wait.PushTail(idx)
			e.log.Info("will retry", "type", slot.Type.String(), "attempts", slot.Attempts, "max", maxAttempts)
			e.lastTxTimestamp = now
			e.lastRxTimestamp = now
			return
		}
	}

	e.freeSlot(idx)
	e.lastTxTimestamp = now
	e.lastRxTimestamp = now
}

func (e *Engine) findWaitByID(id string) int {
	found := -1
	e.wait.ForEach(func(idx int) {
		if found == -1 && e.pool.Get(idx).ID == id {
			found = idx
		}
	})
	return found
}

// processHeartbeat synthesizes a Heartbeat CALL when the link has been idle
// (no activity since last_tx_timestamp) for at least HeartbeatInterval and
// both Ready and Wait are empty, then immediately drains it.
func (e *Engine) processHeartbeat(now time.Time) {
	interval := e.config.HeartbeatInterval()
	if interval <= 0 {
		return
	}
	if now.Sub(e.lastTxTimestamp) < interval {
		return
	}
	if !e.ready.Empty() || !e.wait.Empty() {
		return
	}

	idx, err := e.pool.Alloc()
	if err != nil {
		return
	}
	slot := e.pool.Get(idx)
	slot.Role = ocppmsg.Call
	slot.Type = ocppmsg.Heartbeat
	slot.ID = e.ids.NewID()

	e.ready.PushTail(idx)
	e.drainReady(now)
}

// processTimerPromotion moves every expired Timer entry onto the Ready
// tail.
func (e *Engine) processTimerPromotion(now time.Time) {
	var expired []int
	e.timer.ForEach(func(idx int) {
		if !e.pool.Get(idx).Expiry.After(now) {
			expired = append(expired, idx)
		}
	})
	for _, idx := range expired {
		e.timer.Remove(idx)
		e.ready.PushTail(idx)
	}
}
