package engine

import (
	"fmt"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeConfig struct {
	heartbeat       time.Duration
	txAttempts      int
	txRetryInterval time.Duration
	txTimeout       time.Duration
	maxRetries      int
}

func (c *fakeConfig) HeartbeatInterval() time.Duration               { return c.heartbeat }
func (c *fakeConfig) TransactionMessageAttempts() int                { return c.txAttempts }
func (c *fakeConfig) TransactionMessageRetryInterval() time.Duration { return c.txRetryInterval }
func (c *fakeConfig) TxTimeout() time.Duration                       { return c.txTimeout }
func (c *fakeConfig) MaxTxRetries() int                              { return c.maxRetries }

func defaultFakeConfig() *fakeConfig {
	return &fakeConfig{
		txAttempts:      3,
		txRetryInterval: 60 * time.Second,
		txTimeout:       10 * time.Second,
		maxRetries:      1,
	}
}

type fakeIDs struct {
	n int
}

func (f *fakeIDs) NewID() string {
	f.n++
	return fmt.Sprintf("id-%d", f.n)
}

// fakeTransport scripts Send/Recv results; each call consumes the next
// scripted result, repeating the last one once the script is exhausted.
type fakeTransport struct {
	sendResults []error
	sendCalls   []Message

	recvMsgs []Message
	recvErrs []error
	recvCall int
}

func (t *fakeTransport) Send(msg Message) error {
	t.sendCalls = append(t.sendCalls, msg)
	if len(t.sendResults) == 0 {
		return nil
	}
	if len(t.sendResults) == 1 {
		return t.sendResults[0]
	}
	err := t.sendResults[0]
	t.sendResults = t.sendResults[1:]
	return err
}

func (t *fakeTransport) Recv() (Message, error) {
	if t.recvCall >= len(t.recvMsgs) {
		return Message{}, ErrNoMessage
	}
	msg := t.recvMsgs[t.recvCall]
	err := t.recvErrs[t.recvCall]
	t.recvCall++
	return msg, err
}

// queueRecv appends a scripted Recv result.
func (t *fakeTransport) queueRecv(msg Message, err error) {
	t.recvMsgs = append(t.recvMsgs, msg)
	t.recvErrs = append(t.recvErrs, err)
}

// fakeMetrics records every RecordSend/RecordDrop call for assertion.
type fakeMetrics struct {
	sends []fakeMetricsSend
	drops []string
}

type fakeMetricsSend struct {
	msgType string
	err     error
}

func (m *fakeMetrics) RecordSend(msgType string, err error) {
	m.sends = append(m.sends, fakeMetricsSend{msgType: msgType, err: err})
}

func (m *fakeMetrics) RecordDrop(msgType string) {
	m.drops = append(m.drops, msgType)
}
