package chat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/crossview/backend/internal/clock"
	surveyHandler "github.com/zhouzirui/crossview/backend/internal/handler/survey"
	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	chatService "github.com/zhouzirui/crossview/backend/internal/service/chat"
	"github.com/zhouzirui/crossview/backend/internal/service/scheduler"
	surveyService "github.com/zhouzirui/crossview/backend/internal/service/survey"
	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/internal/transport"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func setupServer(t *testing.T, limits Limits) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	sched := scheduler.New(clock.NewReal(), nil)
	reg := participant.NewMemoryRegistry()
	mem := store.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	hub := transport.NewWSHub(transport.DefaultOptions(), nil)

	chatSvc := chatService.NewService(chatService.Deps{
		Scheduler: sched,
		Hub:       hub,
		Store:     mem,
		Registry:  reg,
		Metrics:   m,
	}, chatService.DefaultConfig())
	surveySvc := surveyService.NewService(sched, reg, mem, participant.DefaultLabels(), m, nil)

	r := chi.NewRouter()
	surveyHandler.New(surveySvc).RegisterRoutes(r)
	New(chatSvc, hub, limits, m, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, m
}

func submit(t *testing.T, srv *httptest.Server, score int) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"responses": map[string]any{
			"climate_human_causation": score,
			"overall_perspective":     "views",
			"opinion_influences":      "factors",
		},
	})
	resp, err := http.Post(srv.URL+"/survey/submit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res surveyService.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res.ParticipantID
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// await reads frames until one named event arrives.
func await(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestOpposingParticipantsChatOverWebSocket(t *testing.T) {
	req := require.New(t)
	srv, m := setupServer(t, Limits{EventsPerSecond: 50, Burst: 50})

	p1 := submit(t, srv, 6)
	p2 := submit(t, srv, 2)
	c1 := dial(t, srv)
	c2 := dial(t, srv)

	emit(t, c1, chat.EventJoinQueue, map[string]string{"participantId": p1})
	var status chat.QueueStatus
	req.NoError(json.Unmarshal(await(t, c1, chat.EventQueueStatus).Data, &status))
	req.Equal(chat.QueueStatus{Position: 1, WaitingForGroup: "anti_climate"}, status)

	emit(t, c2, chat.EventJoinQueue, map[string]string{"participantId": p2})
	var m1, m2 chat.MatchFound
	req.NoError(json.Unmarshal(await(t, c1, chat.EventMatchFound).Data, &m1))
	req.NoError(json.Unmarshal(await(t, c2, chat.EventMatchFound).Data, &m2))
	req.Equal(m1.SessionID, m2.SessionID)

	emit(t, c1, chat.EventJoinSession, map[string]string{"sessionId": m1.SessionID, "participantId": p1})
	emit(t, c2, chat.EventJoinSession, map[string]string{"sessionId": m1.SessionID, "participantId": p2})
	var joined chat.SessionJoined
	req.NoError(json.Unmarshal(await(t, c1, chat.EventSessionJoined).Data, &joined))
	req.Equal("Participant A", joined.DisplayNames[p1])
	req.Equal("Participant B", joined.DisplayNames[p2])
	await(t, c2, chat.EventSessionJoined)

	emit(t, c1, chat.EventSendMessage, map[string]string{"sessionId": m1.SessionID, "text": "hello"})
	for _, conn := range []*websocket.Conn{c1, c2} {
		var msg chat.Message
		req.NoError(json.Unmarshal(await(t, conn, chat.EventReceiveMessage).Data, &msg))
		req.Equal(p1, msg.Sender)
		req.Equal("hello", msg.Text)
		req.Equal(5, msg.Length)
	}

	emit(t, c2, chat.EventTypingStart, map[string]string{"sessionId": m1.SessionID})
	await(t, c1, chat.EventTypingStart)

	emit(t, c2, chat.EventLeaveChatEarly, map[string]string{"sessionId": m1.SessionID})
	await(t, c1, chat.EventParticipantLeftEarly)
	var ended chat.ConversationEnded
	req.NoError(json.Unmarshal(await(t, c1, chat.EventConversationEnded).Data, &ended))
	req.Equal(chat.ReasonLeftEarly, ended.Reason)
	req.Equal(1.0, testutil.ToFloat64(m.MessagesRelayed))
}

func TestMalformedEventsKeepConnectionOpen(t *testing.T) {
	srv, _ := setupServer(t, Limits{EventsPerSecond: 50, Burst: 50})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var notice chat.ErrorNotice
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &notice))
	require.Equal(t, "Malformed event", notice.Message)

	emit(t, conn, chat.EventSendMessage, map[string]string{"sessionId": "sess_1"})
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &notice))
	require.Equal(t, "Invalid payload", notice.Message)

	emit(t, conn, "dance", nil)
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &notice))
	require.Equal(t, "Unknown event", notice.Message)

	emit(t, conn, chat.EventJoinQueue, map[string]string{"participantId": "p_missing"})
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &notice))
	require.Equal(t, "Participant not found", notice.Message)
}

func TestEventsAreRateLimited(t *testing.T) {
	srv, m := setupServer(t, Limits{EventsPerSecond: 0.001, Burst: 1})
	conn := dial(t, srv)

	emit(t, conn, chat.EventJoinQueue, map[string]string{"participantId": "p_missing"})
	emit(t, conn, chat.EventJoinQueue, map[string]string{"participantId": "p_missing"})

	var first, second chat.ErrorNotice
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &first))
	require.NoError(t, json.Unmarshal(await(t, conn, chat.EventError).Data, &second))
	require.Equal(t, "Participant not found", first.Message)
	require.Equal(t, "Too many events", second.Message)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))
}
