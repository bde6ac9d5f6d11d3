package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryHubBroadcastExcept(t *testing.T) {
	req := require.New(t)
	hub := NewMemoryHub()

	hub.Join("sess_1", "c1")
	hub.Join("sess_1", "c2")
	hub.BroadcastExcept("sess_1", "c1", "typing_start", nil)
	hub.Broadcast("sess_1", "conversation_ended", map[string]string{"reason": "time_limit"})

	req.Equal([]string{"conversation_ended"}, hub.Events("c1"))
	req.Equal([]string{"typing_start", "conversation_ended"}, hub.Events("c2"))
}

func TestMemoryHubDropStopsDelivery(t *testing.T) {
	req := require.New(t)
	hub := NewMemoryHub()

	hub.Join("sess_1", "c1")
	hub.Drop("c1")
	hub.Send("c1", "error", nil)
	hub.Broadcast("sess_1", "receive_message", nil)
	hub.Join("sess_1", "c1")

	req.Empty(hub.Frames("c1"))
	req.Empty(hub.Members("sess_1"))
}

func newTestServer(t *testing.T, hub *WSHub) (*httptest.Server, chan *Client) {
	t.Helper()
	registered := make(chan *Client, 4)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := hub.Register(conn)
		registered <- c
		c.WritePump(r.Context())
	}))
	t.Cleanup(srv.Close)
	return srv, registered
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSHubDeliversGroupFrames(t *testing.T) {
	req := require.New(t)
	hub := NewWSHub(DefaultOptions(), zap.NewNop())
	srv, registered := newTestServer(t, hub)

	connA := dial(t, srv)
	clientA := <-registered
	connB := dial(t, srv)
	clientB := <-registered

	hub.Join("sess_1", clientA.ID)
	hub.Join("sess_1", clientB.ID)
	hub.BroadcastExcept("sess_1", clientA.ID, "typing_start", nil)
	hub.Broadcast("sess_1", "match_found", map[string]string{"sessionId": "sess_1"})

	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}

	_ = connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	req.NoError(connA.ReadJSON(&frame))
	req.Equal("match_found", frame.Event)
	req.Equal("sess_1", frame.Data["sessionId"])

	_ = connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	req.NoError(connB.ReadJSON(&frame))
	req.Equal("typing_start", frame.Event)
	req.NoError(connB.ReadJSON(&frame))
	req.Equal("match_found", frame.Event)
}

func TestWSHubUnregisterIsIdempotent(t *testing.T) {
	req := require.New(t)
	hub := NewWSHub(DefaultOptions(), zap.NewNop())
	srv, registered := newTestServer(t, hub)

	dial(t, srv)
	client := <-registered
	hub.Join("sess_1", client.ID)
	req.Equal(1, hub.Len())

	hub.Unregister(client.ID)
	hub.Unregister(client.ID)
	hub.Send(client.ID, "error", nil)
	hub.Broadcast("sess_1", "receive_message", nil)

	req.Zero(hub.Len())
}

func TestWritePumpStopsOnContextCancel(t *testing.T) {
	hub := NewWSHub(DefaultOptions(), zap.NewNop())
	srv, registered := newTestServer(t, hub)
	dial(t, srv)
	client := <-registered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		client.WritePump(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions()
	opts.ReadLimit = 64
	hub := NewWSHub(opts, zap.NewNop())

	results := make(chan error, 4)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		c := hub.Register(conn)
		c.PrepareRead()
		for {
			var frame map[string]any
			err := c.ReadFrame(&frame)
			results <- err
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	await := func() error {
		select {
		case err := <-results:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("no frame read")
			return nil
		}
	}

	conn := dial(t, srv)
	req.NoError(conn.WriteJSON(map[string]string{"event": "typing_start"}))
	req.NoError(await())

	req.NoError(conn.WriteJSON(map[string]string{"event": "send_message", "text": strings.Repeat("x", 200)}))
	req.ErrorIs(await(), websocket.ErrReadLimit)
}
