package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/predmarket/predmarket/internal/pricefeed"
	"github.com/predmarket/predmarket/pkg/httpserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFeedDeliversPublishedSnapshots(t *testing.T) {
	hub := pricefeed.NewHub(zap.NewNop())
	go hub.Run(t.Context())

	handler := httpserver.NewFeedHandler(hub, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(handler.HandleFeed))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	snapshot := pricefeed.Snapshot{
		Market:   "0x00000000000000000000000000000000deadbeef",
		Question: "Streamed?",
		Status:   "ongoing",
		Prices: map[string]string{
			"Yes": "0.500000",
			"No":  "0.500000",
		},
		Timestamp: time.Now().UTC(),
	}

	// The registration channel is unbuffered, so the dial above may still be
	// racing the hub loop. Retry until the subscriber sees a frame.
	received := make(chan pricefeed.Snapshot, 1)
	go func() {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var got pricefeed.Snapshot
		if json.Unmarshal(payload, &got) == nil {
			received <- got
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		hub.Publish(snapshot)
		select {
		case got := <-received:
			assert.Equal(t, snapshot.Market, got.Market)
			assert.Equal(t, snapshot.Question, got.Question)
			assert.Equal(t, snapshot.Prices, got.Prices)
			return
		case <-deadline:
			t.Fatal("no snapshot delivered before deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestFeedRejectsPlainHTTP(t *testing.T) {
	hub := pricefeed.NewHub(zap.NewNop())
	go hub.Run(t.Context())

	handler := httpserver.NewFeedHandler(hub, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(handler.HandleFeed))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode, "non-websocket request cannot upgrade")
}
