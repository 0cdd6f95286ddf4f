package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
	"github.com/libmcu/ocpp-go/internal/pool"
)

const (
	snapshotMagic   uint32 = 0x4f435050 // "OCPP"
	snapshotVersion uint16 = 1
	headerLen              = 4 + 2 + 4 // magic + version + body length
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSnapshotInvalid is returned by RestoreSnapshot when the header's magic,
// version, or declared length does not match the buffer.
var ErrSnapshotInvalid = errors.New("engine: invalid snapshot")

type snapshotSlot struct {
	ID       string        `json:"id"`
	Role     ocppmsg.Role  `json:"role"`
	Type     ocppmsg.Type  `json:"type"`
	Attempts int           `json:"attempts"`
	Expiry   time.Time     `json:"expiry"`
	Payload  []byte        `json:"payload,omitempty"`
	Queue    snapshotQueue `json:"queue"`
}

type snapshotQueue int

const (
	queueReady snapshotQueue = iota
	queueWait
	queueTimer
)

type snapshotBody struct {
	Capacity        int            `json:"capacity"`
	LastTxTimestamp time.Time      `json:"last_tx_timestamp"`
	LastRxTimestamp time.Time      `json:"last_rx_timestamp"`
	Slots           []snapshotSlot `json:"slots"`
}

// ComputeSnapshotSize returns the exact buffer size SaveSnapshot would
// produce for the current state.
func (e *Engine) ComputeSnapshotSize() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	body, err := json.Marshal(e.buildSnapshotBody())
	if err != nil {
		return 0, fmt.Errorf("compute snapshot size: %w", err)
	}
	return headerLen + len(body), nil
}

// SaveSnapshot serializes pool and queue state into an opaque buffer that
// begins with a validating header (magic, version, body length).
func (e *Engine) SaveSnapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.Marshal(e.buildSnapshotBody())
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf[0:4], snapshotMagic)
	binary.BigEndian.PutUint16(buf[4:6], snapshotVersion)
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(body)))
	copy(buf[headerLen:], body)
	return buf, nil
}

// RestoreSnapshot validates the header and replaces the engine's pool and
// queue state. It subsumes New's init step: timestamps are taken from the
// snapshot, not from Clock.
func (e *Engine) RestoreSnapshot(buf []byte) error {
	if len(buf) < headerLen {
		return ErrSnapshotInvalid
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	version := binary.BigEndian.Uint16(buf[4:6])
	bodyLen := binary.BigEndian.Uint32(buf[6:10])
	if magic != snapshotMagic || version != snapshotVersion {
		return ErrSnapshotInvalid
	}
	if int(bodyLen) != len(buf)-headerLen {
		return ErrSnapshotInvalid
	}

	var body snapshotBody
	if err := json.Unmarshal(buf[headerLen:], &body); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := pool.New(body.Capacity)
	e.pool = p
	e.ready = pool.NewList(p)
	e.wait = pool.NewList(p)
	e.timer = pool.NewList(p)
	e.lastTxTimestamp = body.LastTxTimestamp
	e.lastRxTimestamp = body.LastRxTimestamp

	for _, s := range body.Slots {
		idx, err := p.Alloc()
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", ErrOutOfMemory)
		}
		slot := p.Get(idx)
		slot.ID = s.ID
		slot.Role = s.Role
		slot.Type = s.Type
		slot.Attempts = s.Attempts
		slot.Expiry = s.Expiry
		slot.Payload = s.Payload

		switch s.Queue {
		case queueReady:
			e.ready.PushTail(idx)
		case queueWait:
			e.wait.PushTail(idx)
		case queueTimer:
			e.timer.PushTail(idx)
		}
	}

	return nil
}

func (e *Engine) buildSnapshotBody() snapshotBody {
	body := snapshotBody{
		Capacity:        e.pool.Capacity(),
		LastTxTimestamp: e.lastTxTimestamp,
		LastRxTimestamp: e.lastRxTimestamp,
	}

	appendQueue := func(l *pool.List, q snapshotQueue) {
		l.ForEach(func(idx int) {
			slot := e.pool.Get(idx)
			body.Slots = append(body.Slots, snapshotSlot{
				ID:       slot.ID,
				Role:     slot.Role,
				Type:     slot.Type,
				Attempts: slot.Attempts,
				Expiry:   slot.Expiry,
				Payload:  slot.Payload,
				Queue:    q,
			})
		})
	}
	appendQueue(e.ready, queueReady)
	appendQueue(e.wait, queueWait)
	appendQueue(e.timer, queueTimer)

	return body
}
