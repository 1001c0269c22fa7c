package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/livevote/internal/config"
	"github.com/pscheid92/livevote/internal/domain"
	"github.com/pscheid92/livevote/internal/report"
)

type fakeApp struct {
	status    *report.StatusPayload
	statusErr error

	blockRef      domain.UserRef
	blockDuration *time.Duration
	blockErr      error

	unblockRef domain.UserRef
	unblockErr error
}

func (f *fakeApp) StatusReport(ctx context.Context) (*report.StatusPayload, error) {
	return f.status, f.statusErr
}

func (f *fakeApp) BlockUser(ctx context.Context, ref domain.UserRef, duration *time.Duration) error {
	f.blockRef = ref
	f.blockDuration = duration
	return f.blockErr
}

func (f *fakeApp) UnblockUser(ctx context.Context, ref domain.UserRef) error {
	f.unblockRef = ref
	return f.unblockErr
}

type fakeBroadcaster struct {
	mu          sync.Mutex
	registered  int
	unregisters int
	registerErr error
}

func (f *fakeBroadcaster) Register(conn *ws.Conn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered++
	return nil
}

func (f *fakeBroadcaster) Unregister(conn *ws.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisters++
}

func (f *fakeBroadcaster) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered, f.unregisters
}

func testServer(t *testing.T, app *fakeApp, hub *fakeBroadcaster) *httptest.Server {
	t.Helper()
	cfg := &config.Config{Port: "0", MaxClients: 10}
	srv := NewServer(cfg, app, hub, nil, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleLiveness(t *testing.T) {
	ts := testServer(t, &fakeApp{}, &fakeBroadcaster{})

	resp, err := http.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleStatus(t *testing.T) {
	app := &fakeApp{status: &report.StatusPayload{
		Type:           "status",
		CountryRanking: []report.CountryRankPayload{},
		UserRanking:    []report.UserRankPayload{},
		LatestVotes:    []report.VotePayload{},
		LatestEvents:   []report.EventPayload{},
	}}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "status", payload["type"])
}

func TestHandleStatusError(t *testing.T) {
	app := &fakeApp{statusErr: errors.New("db down")}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleBlock(t *testing.T) {
	app := &fakeApp{}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp := postJSON(t, ts.URL+"/api/block", `{"user_id": "u1", "duration_seconds": 600}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "u1", app.blockRef.UserID)
	require.NotNil(t, app.blockDuration)
	assert.Equal(t, 10*time.Minute, *app.blockDuration)
}

func TestHandleBlockIndefinite(t *testing.T) {
	app := &fakeApp{}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp := postJSON(t, ts.URL+"/api/block", `{"user_name": "alice"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "alice", app.blockRef.Username)
	assert.Nil(t, app.blockDuration)
}

func TestHandleBlockMissingReference(t *testing.T) {
	ts := testServer(t, &fakeApp{}, &fakeBroadcaster{})

	resp := postJSON(t, ts.URL+"/api/block", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBlockUnknownUser(t *testing.T) {
	app := &fakeApp{blockErr: domain.ErrUserNotFound}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp := postJSON(t, ts.URL+"/api/block", `{"user_id": "ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleUnblock(t *testing.T) {
	app := &fakeApp{}
	ts := testServer(t, app, &fakeBroadcaster{})

	resp := postJSON(t, ts.URL+"/api/unblock", `{"user_id": "u1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", app.unblockRef.UserID)
}

func TestHandleWebSocketLifecycle(t *testing.T) {
	hub := &fakeBroadcaster{}
	ts := testServer(t, &fakeApp{}, hub)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		registered, _ := hub.counts()
		return registered == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		_, unregistered := hub.counts()
		return unregistered == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleWebSocketRegisterFailure(t *testing.T) {
	hub := &fakeBroadcaster{registerErr: errors.New("register command timed out")}
	ts := testServer(t, &fakeApp{}, hub)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	// The server closes the connection when registration fails.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	_, unregistered := hub.counts()
	assert.Equal(t, 0, unregistered)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testServer(t, &fakeApp{}, &fakeBroadcaster{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
