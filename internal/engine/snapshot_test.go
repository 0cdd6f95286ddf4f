package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
	"github.com/libmcu/ocpp-go/internal/pool"
)

type slotSnapshot struct {
	role     ocppmsg.Role
	typ      ocppmsg.Type
	attempts int
	expiry   time.Time
}

// collectSlots walks all three queues and returns a map keyed by id, so
// round-trip comparisons don't depend on queue iteration order. Expiry is
// normalized to UTC so the comparison is of the instant, not of the
// time.Location the JSON decoder happens to attach.
func collectSlots(e *Engine) map[string]slotSnapshot {
	out := make(map[string]slotSnapshot)
	for _, l := range []*pool.List{e.ready, e.wait, e.timer} {
		l.ForEach(func(idx int) {
			slot := e.pool.Get(idx)
			out[slot.ID] = slotSnapshot{
				role:     slot.Role,
				typ:      slot.Type,
				attempts: slot.Attempts,
				expiry:   slot.Expiry.UTC(),
			}
		})
	}
	return out
}

func TestSnapshotRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	cfg := defaultFakeConfig()
	transport := &fakeTransport{}
	e1 := New(8, clock, cfg, &fakeIDs{}, transport, nil, nil, nil)

	bootID, err := e1.PushRequest(ocppmsg.BootNotification, []byte(`{"vendor":"x"}`), false)
	require.NoError(t, err)
	e1.Step(clock.now) // moves BootNotification into Wait with attempts=1

	_, err = e1.PushRequestDefer(ocppmsg.Heartbeat, nil, 5*time.Second) // -> Timer
	require.NoError(t, err)

	_, err = e1.PushRequest(ocppmsg.DataTransfer, []byte("payload"), false) // stays in Ready
	require.NoError(t, err)

	require.Equal(t, 3, e1.CountPendingRequests())
	before := collectSlots(e1)
	require.Len(t, before, 3)
	require.Contains(t, before, bootID)
	assert.Equal(t, 1, before[bootID].attempts)

	buf, err := e1.SaveSnapshot()
	require.NoError(t, err)

	size, err := e1.ComputeSnapshotSize()
	require.NoError(t, err)
	assert.Equal(t, len(buf), size)

	e2 := New(8, clock, cfg, &fakeIDs{}, transport, nil, nil, nil)
	require.NoError(t, e2.RestoreSnapshot(buf))

	assert.Equal(t, e1.CountPendingRequests(), e2.CountPendingRequests())
	after := collectSlots(e2)
	assert.Equal(t, before, after)
}

func TestRestoreSnapshotRejectsBadHeader(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(2, clock, defaultFakeConfig(), &fakeIDs{}, &fakeTransport{}, nil, nil, nil)

	assert.ErrorIs(t, e.RestoreSnapshot([]byte("short")), ErrSnapshotInvalid)

	buf, err := e.SaveSnapshot()
	require.NoError(t, err)
	buf[0] ^= 0xff // corrupt magic
	assert.ErrorIs(t, e.RestoreSnapshot(buf), ErrSnapshotInvalid)
}
