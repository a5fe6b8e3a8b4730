package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/recents/internal/auth"
	"github.com/btouchard/recents/internal/config"
	"github.com/btouchard/recents/internal/diag"
	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/loop"
	"github.com/btouchard/recents/internal/session"
	"github.com/btouchard/recents/internal/task"
)

type testEnv struct {
	router http.Handler
	reg    *host.Registry
	tasks  *task.Manager
	loop   *loop.Loop
	stop   func()
}

func newTestEnv(t *testing.T, verifier *auth.Verifier) *testEnv {
	t.Helper()

	l := loop.New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	stop := func() {
		cancel()
		<-l.Done()
	}
	t.Cleanup(stop)

	tm := task.NewManager(clockwork.NewFakeClock(), 10)
	reg := host.NewRegistry(l, host.Options{
		Sink:      diag.Discard{},
		Clock:     clockwork.NewFakeClock(),
		Describer: tm,
		Listeners: func(string) []dispatch.Listener {
			return []dispatch.Listener{task.NewTracker(tm)}
		},
	})

	return &testEnv{
		router: NewRouter(&Deps{
			Sessions: reg,
			Tasks:    tm,
			Verifier: verifier,
			Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("metrics"))
			}),
		}),
		reg:   reg,
		tasks: tm,
		loop:  l,
		stop:  stop,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeInfo(t *testing.T, rec *httptest.ResponseRecorder) host.Info {
	t.Helper()
	var info host.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info
}

const startBody = `{
	"targets": [
		{"task_id": 11, "mode": "closing", "role": "normal", "descriptor": {"label": "Mail", "package_name": "com.mail"}},
		{"task_id": 12, "mode": "opening", "role": "normal", "descriptor": {"label": "Mail", "package_name": "com.mail"}},
		{"task_id": 13, "mode": "opening", "role": "divider"}
	],
	"transition_info": {"id": "t-1"}
}`

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestRouter_SessionLifecycle(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	opened := decodeInfo(t, rec)
	assert.Equal(t, session.Pending, opened.State)

	rec = e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", startBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	started := decodeInfo(t, rec)
	assert.Equal(t, session.Active, started.State)
	assert.Equal(t, 2, started.Apps)
	assert.Equal(t, 1, started.NonApps)
	assert.Equal(t, 1, started.Closing)

	rec = e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/finish", `{"to_home": true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	finished := decodeInfo(t, rec)
	assert.Equal(t, session.Finished, finished.State)
	assert.True(t, finished.ToHome)
	require.Len(t, finished.FinishCalls, 1)

	rec = e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/finish", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []host.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = e.do(t, http.MethodDelete, "/api/sessions/"+opened.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/sessions/"+opened.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_StartWithoutClosingTargetsCancels(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	rec := e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", `{"targets": []}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	info := decodeInfo(t, rec)
	assert.Equal(t, session.CancelledBeforeStart, info.State)
	require.Len(t, info.FinishCalls, 1)
	assert.False(t, info.FinishCalls[0].ToHome)
}

func TestRouter_LegacyStart(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	rec := e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start-legacy",
		`{"apps": [{"task_id": 5, "mode": "closing", "role": "normal"}], "home_content_insets": {"top": 24}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, session.Active, decodeInfo(t, rec).State)
}

func TestRouter_CancelBeforeStart(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	rec := e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/cancel", `{"thumbnails": {"11": {"width": 10, "height": 20}}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, session.CancelledBeforeStart, decodeInfo(t, rec).State)

	rec = e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", startBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	info := decodeInfo(t, rec)
	assert.Equal(t, session.CancelledBeforeStart, info.State)
	assert.Len(t, info.FinishCalls, 1)
}

func TestRouter_TasksFeedRecentTasks(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", startBody).Code)
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/tasks",
		`{"targets": [{"task_id": 21, "role": "normal", "descriptor": {"label": "Maps", "package_name": "com.maps"}}]}`).Code)

	rec := e.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 3)

	rec = e.do(t, http.MethodGet, "/api/tasks?package=com.maps", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, 21, tasks[0].ID)

	rec = e.do(t, http.MethodGet, "/api/tasks/instances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"com.mail": 2, "com.maps": 1}`, rec.Body.String())
}

func TestRouter_SignalAnswersAfterListenersRan(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	require.True(t, e.loop.Post(func() { time.Sleep(50 * time.Millisecond) }))

	rec := e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", startBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/tasks?package=com.mail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 2)
}

func TestRouter_SignalWithStoppedLoopIsUnavailable(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))
	e.stop()

	rec := e.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/start", startBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_TasksEmptyList(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/tasks", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/tasks?limit=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	opened := decodeInfo(t, e.do(t, http.MethodPost, "/api/sessions", ""))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown get", http.MethodGet, "/api/sessions/nope", "", http.StatusNotFound},
		{"unknown start", http.MethodPost, "/api/sessions/nope/start", startBody, http.StatusNotFound},
		{"unknown delete", http.MethodDelete, "/api/sessions/nope", "", http.StatusNotFound},
		{"bad json", http.MethodPost, "/api/sessions/" + opened.ID + "/start", "{", http.StatusBadRequest},
		{"finish pending", http.MethodPost, "/api/sessions/" + opened.ID + "/finish", "", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.do(t, tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestRouter_RequiresTokenWhenConfigured(t *testing.T) {
	t.Parallel()
	v := auth.NewVerifier([]config.APITokenEntry{{Name: "launcher", TokenHash: auth.HashToken("s3cret")}})
	e := newTestEnv(t, v)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/sessions", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
