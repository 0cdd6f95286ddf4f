package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libmcu/ocpp-go/internal/engine"
	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

// newEchoServer starts a WebSocket server that echoes every frame it
// receives back to the client, standing in for a Central System during
// transport-level tests.
func newEchoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	if len(httpURL) > 5 && httpURL[:5] == "http:" {
		return "ws:" + httpURL[5:]
	}
	return httpURL
}

func TestClientSendRecvRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(wsURL(srv.URL), "CP-1", WithRecvTimeout(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	msg := engine.Message{ID: "id-1", Role: ocppmsg.Call, Type: ocppmsg.Heartbeat, Payload: []byte(`{}`)}
	require.NoError(t, c.Send(msg))

	got, err := c.Recv()
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, ocppmsg.Call, got.Role)
	assert.Equal(t, ocppmsg.Heartbeat, got.Type)
}

func TestClientRecvTimeoutReturnsNoMessage(t *testing.T) {
	srv := newEchoServer(t)
	c := NewClient(wsURL(srv.URL), "CP-1", WithRecvTimeout(100*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err := c.Recv()
	assert.ErrorIs(t, err, engine.ErrNoMessage)
}

func TestClientSendWithoutConnectReturnsNoMessage(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "CP-1")
	err := c.Send(engine.Message{ID: "x", Role: ocppmsg.Call, Type: ocppmsg.Heartbeat})
	assert.ErrorIs(t, err, engine.ErrNoMessage)
}

func TestClientConnectFailsOnBadURL(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "CP-1", WithDialTimeout(200*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	assert.Error(t, c.Connect(ctx))
}
