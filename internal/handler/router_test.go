package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/crossview/backend/internal/clock"
	"github.com/zhouzirui/crossview/backend/internal/handler/chat"
	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	chatService "github.com/zhouzirui/crossview/backend/internal/service/chat"
	"github.com/zhouzirui/crossview/backend/internal/service/scheduler"
	surveyService "github.com/zhouzirui/crossview/backend/internal/service/survey"
	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/internal/transport"
)

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sched := scheduler.New(clock.NewReal(), nil)
	participants := participant.NewMemoryRegistry()
	mem := store.NewMemoryStore()
	hub := transport.NewWSHub(transport.DefaultOptions(), nil)

	chatSvc := chatService.NewService(chatService.Deps{
		Scheduler: sched,
		Hub:       hub,
		Store:     mem,
		Registry:  participants,
		Metrics:   m,
	}, chatService.DefaultConfig())

	return NewRouter(Deps{
		ChatSvc:     chatSvc,
		SurveySvc:   surveyService.NewService(sched, participants, mem, participant.DefaultLabels(), m, nil),
		Hub:         hub,
		Store:       mem,
		Metrics:     m,
		Gatherer:    reg,
		Limits:      chat.Limits{EventsPerSecond: 10, Burst: 10},
		StaticDir:   staticDir,
		CORSOrigins: []string{"https://study.example.org"},
	})
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, "")

	code, body := get(t, r, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"status":"ok"`)

	code, body = get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "matchmaking_sessions_created_total")

	code, body = get(t, r, "/debug/data")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"totalRecords":0`)
}

func TestPagesServedFromStaticDir(t *testing.T) {
	dir := t.TempDir()
	for _, file := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("<p>"+file+"</p>"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))
	r := newTestRouter(t, dir)

	cases := map[string]string{
		"/":                   "index.html",
		"/consent":            "consent.html",
		"/survey":             "survey.html",
		"/waiting":            "waiting.html",
		"/chat/sess_1a2b3c4d": "chat.html",
		"/exit-survey":        "exit-survey.html",
	}
	for path, file := range cases {
		code, body := get(t, r, path)
		require.Equal(t, http.StatusOK, code, path)
		require.Equal(t, "<p>"+file+"</p>", body, path)
	}

	code, body := get(t, r, "/app.js")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.HasPrefix(body, "console.log"))
}

func TestPagesAbsentWithoutStaticDir(t *testing.T) {
	code, _ := get(t, newTestRouter(t, ""), "/consent")
	require.Equal(t, http.StatusNotFound, code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/survey/submit", nil)
	req.Header.Set("Origin", "https://study.example.org")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://study.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
