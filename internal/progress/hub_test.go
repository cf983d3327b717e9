package progress

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-genetic-lab/internal/domain"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n },
		2*time.Second, 10*time.Millisecond, "expected %d clients", n)
}

func TestHub_BroadcastsGenerations(t *testing.T) {
	var count atomic.Int64
	hub := NewHub(&HubConfig{OnClientsChanged: func(n int) { count.Store(int64(n)) }})
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	c1 := dial(t, server)
	defer c1.Close()
	c2 := dial(t, server)
	defer c2.Close()
	waitForClients(t, hub, 2)
	assert.Equal(t, int64(2), count.Load())

	hub.Publish(GenerationEvent("run-1", domain.GenerationStats{Generation: 3, Best: 1234.5, Mean: 1000}))

	for _, c := range []*websocket.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		require.NoError(t, err)

		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, EventGeneration, ev.Type)
		assert.Equal(t, "run-1", ev.RunID)
		require.NotNil(t, ev.Stats)
		assert.Equal(t, 3, ev.Stats.Generation)
		assert.Equal(t, 1234.5, ev.BestScore)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	c := dial(t, server)
	waitForClients(t, hub, 1)

	c.Close()
	waitForClients(t, hub, 0)

	// Publishing with no clients must not block or panic
	hub.Publish(Event{Type: EventRunFinished, RunID: "run-1"})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	c := dial(t, server)
	defer c.Close()
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.ClientCount())

	// Client observes the close frame
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)

	// Second close is a no-op; new connections are refused
	assert.NoError(t, hub.Close())
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_CloseDuringConnects(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
				if err != nil {
					continue // refused once the hub is closed
				}
				conn.Close()
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, hub.Close())
	wg.Wait()

	// No client may be admitted after Close returned.
	assert.Equal(t, 0, hub.ClientCount())
	_, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
}
