package pricefeed

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
	"go.uber.org/zap/zaptest"
)

// wsPipe upgrades one connection through a throwaway server and returns both
// ends.
func wsPipe(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverConns <- nil
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-serverConns
	require.NotNil(t, serverConn)
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func TestHubBroadcastsToRegisteredClient(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go hub.Run(ctx)

	serverConn, clientConn := wsPipe(t)
	require.NotNil(t, NewClient(hub, serverConn), "registration handshake completes while the hub runs")

	hub.Publish(Snapshot{
		Market:    "0xabc",
		Question:  "Up or down?",
		Status:    "ongoing",
		Prices:    map[string]string{"Up": "0.5", "Down": "0.5"},
		Timestamp: time.Now(),
	})

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got Snapshot
	require.NoError(t, clientConn.ReadJSON(&got))
	assert.Equal(t, "0xabc", got.Market)
	assert.Equal(t, "0.5", got.Prices["Up"])
}

func TestNewClientAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(t.Context())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// An upgrade can still land while the HTTP server drains connections.
	serverConn, _ := wsPipe(t)
	result := make(chan *Client, 1)
	go func() { result <- NewClient(hub, serverConn) }()

	select {
	case client := <-result:
		assert.Nil(t, client, "stopped hub refuses the client")
	case <-time.After(2 * time.Second):
		t.Fatal("NewClient blocked against a stopped hub")
	}
}

func TestPublishAfterShutdownIsDiscarded(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(t.Context())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Must return immediately, not block or panic.
	hub.Publish(Snapshot{Market: "0xabc"})
}
