package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_SubscribeBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:0/ws", zap.NewNop())

	_, err := c.SubscribeBook("BTC", func(BookUpdate) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestClient_SubscribeDuringOutage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c := NewClient("ws"+strings.TrimPrefix(ts.URL, "http"), zap.NewNop())
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	serverConn := <-conns
	require.NoError(t, serverConn.Close())

	require.Eventually(t, func() bool { return !c.IsConnected() }, 2*time.Second, 10*time.Millisecond)

	// the dead socket must not receive writes while reconnecting
	_, err := c.SubscribeBook("BTC", func(BookUpdate) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
