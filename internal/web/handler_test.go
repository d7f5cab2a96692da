package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/actionsum/wsbridge/internal/bridge"
	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/internal/config"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/models"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/actionsum/wsbridge/pkg/compositor/compositortest"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	fake   *compositortest.Protocol
	bridge *bridge.Bridge
	repo   *database.Repository
	server *httptest.Server
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newFixture(t *testing.T, withDB bool) *fixture {
	t.Helper()

	fake := compositortest.New()
	fake.SetWorkspaces(
		compositor.WorkspaceData{ID: 1, Name: "1", Monitor: "DP-1"},
		compositor.WorkspaceData{ID: 2, Name: "web", Monitor: "HDMI-A-1"},
	)
	fake.SetMonitors(compositor.Monitor{Name: "HDMI-A-1", ActiveWorkspaceID: 2})
	fake.SetActive(&compositor.WorkspaceData{ID: 1, Name: "1", Monitor: "DP-1"})
	fake.SetLayout("English (US)")

	b, err := bridge.New(context.Background(), fake, bridge.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	f := &fixture{fake: fake, bridge: b}
	if withDB {
		db, err := database.Connect(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		require.NoError(t, db.Initialize())
		t.Cleanup(func() { db.Close() })
		f.repo = database.NewRepository(db)
	}

	f.server = newTestServer(t, b, f.repo)
	return f
}

func newTestServer(t *testing.T, b Bridge, repo *database.Repository) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Compositor.Kind = "fake"

	h := NewHandler(cfg, b, repo, quietLogger())
	mux := http.NewServeMux()
	h.SetupRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		h.closeStreams()
		srv.Close()
	})
	return srv
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestWorkspacesSnapshot(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/api/workspaces")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workspaces []compositor.Workspace
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workspaces))
	assert.Equal(t, []compositor.Workspace{
		{ID: 1, Name: "1", Monitor: "DP-1", Visibility: compositor.Focused},
		{ID: 2, Name: "web", Monitor: "HDMI-A-1", Visibility: compositor.Visible},
	}, workspaces)
}

func TestWorkspacesSnapshotFailure(t *testing.T) {
	f := newFixture(t, false)
	f.fake.Fail(compositortest.OpWorkspaces, assert.AnError)

	resp := f.get(t, "/api/workspaces")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestFocusAndLayoutCommands(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusAccepted, f.post(t, "/api/focus?id=2").StatusCode)
	assert.Equal(t, http.StatusAccepted, f.post(t, "/api/layout/next").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/focus?id=two").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, f.get(t, "/api/focus?id=2").StatusCode)

	assert.Equal(t, []compositor.Command{
		compositor.FocusWorkspace{ID: 2},
		compositor.NextKeyboardLayout{},
	}, f.fake.Dispatched())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.repo.CreateSpan(&models.FocusSpan{
		Timestamp: time.Now(), WorkspaceID: 1, WorkspaceName: "1", Monitor: "DP-1", Compositor: "fake",
	}))

	resp := f.get(t, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, true, status["running"])
	assert.Equal(t, "fake", status["compositor"])
	assert.Equal(t, true, status["database_enabled"])
	assert.Contains(t, status, "stats")
	assert.Contains(t, status, "latest_span")

	active, ok := status["active_workspace"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "focused", active["visibility"])
}

func TestStatusAfterCompositorLost(t *testing.T) {
	f := newFixture(t, false)
	f.fake.Stream().Break(errors.New("socket gone"))

	select {
	case <-f.bridge.Done():
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}

	resp := f.get(t, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, false, status["running"])
	assert.Contains(t, status["error"], "socket gone")
}

func TestJournalEndpointsWithoutDatabase(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/api/report").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/api/errors").StatusCode)
}

func TestReport(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.repo.CreateSpan(&models.FocusSpan{
		Timestamp: time.Now(), WorkspaceID: 2, WorkspaceName: "web", Monitor: "HDMI-A-1", Duration: 600, Compositor: "fake",
	}))

	resp := f.get(t, "/api/report?period=day")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report models.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Len(t, report.Workspaces, 1)
	assert.Equal(t, "web", report.Workspaces[0].WorkspaceName)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/report?period=decade").StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/report", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	htmlResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer htmlResp.Body.Close()
	body, err := io.ReadAll(htmlResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<span class="workspace-name">web</span>`)
	assert.Contains(t, string(body), "Total: 10m")
}

func TestErrors(t *testing.T) {
	f := newFixture(t, true)
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, f.repo.CreateErrorLog(&models.ErrorLog{Timestamp: time.Now(), Kind: "query", ErrorMsg: msg}))
	}

	resp := f.get(t, "/api/errors?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.ErrorLog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	assert.Len(t, logs, 2)
}

func TestWorkspaceStream(t *testing.T) {
	f := newFixture(t, false)
	conn := dial(t, f.server, "/api/stream/workspaces")

	init := readMessage(t, conn)
	assert.Equal(t, "init", init["kind"])
	assert.Len(t, init["workspaces"], 2)

	require.NoError(t, f.fake.Emit(compositor.WorkspaceChanged{Name: "web"}))

	focus := readMessage(t, conn)
	assert.Equal(t, "focus", focus["kind"])
	assert.Equal(t, "1", focus["old"].(map[string]interface{})["name"])
	assert.Equal(t, "web", focus["new"].(map[string]interface{})["name"])
	assert.Equal(t, "focused", focus["new"].(map[string]interface{})["visibility"])

	urgent := readMessage(t, conn)
	assert.Equal(t, map[string]interface{}{"kind": "urgent", "id": float64(2), "urgent": false}, urgent)
}

func TestWorkspaceStreamEndsWhenBridgeCloses(t *testing.T) {
	f := newFixture(t, false)
	conn := dial(t, f.server, "/api/stream/workspaces")
	readMessage(t, conn)

	require.NoError(t, f.bridge.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestLayoutStreamEndsWhenCompositorLost(t *testing.T) {
	f := newFixture(t, false)
	conn := dial(t, f.server, "/api/stream/layout")
	readMessage(t, conn)

	f.fake.Stream().Break(errors.New("socket gone"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestLayoutStream(t *testing.T) {
	f := newFixture(t, false)
	conn := dial(t, f.server, "/api/stream/layout")

	assert.Equal(t, map[string]interface{}{"kind": "layout", "layout": "English (US)"}, readMessage(t, conn))

	require.NoError(t, f.fake.Emit(compositor.LayoutChanged{Keyboard: "kb", Layout: "German"}))
	assert.Equal(t, map[string]interface{}{"kind": "layout", "layout": "German"}, readMessage(t, conn))
}

// laggingBridge hands out a layout subscription that has already overflowed
type laggingBridge struct {
	Bridge
	hub *broadcast.Hub[compositor.KeyboardLayoutUpdate]
}

func (b *laggingBridge) SubscribeKeyboardLayout() *broadcast.Subscription[compositor.KeyboardLayoutUpdate] {
	sub := b.hub.Subscribe()
	for _, layout := range []string{"a", "b", "c"} {
		b.hub.Publish(compositor.KeyboardLayoutUpdate{Layout: layout})
	}
	return sub
}

func TestStreamReportsLag(t *testing.T) {
	f := newFixture(t, false)
	lagging := &laggingBridge{Bridge: f.bridge, hub: broadcast.New[compositor.KeyboardLayoutUpdate](1)}
	srv := newTestServer(t, lagging, nil)

	conn := dial(t, srv, "/api/stream/layout")

	assert.Equal(t, map[string]interface{}{"kind": "lagged", "missed": float64(2)}, readMessage(t, conn))
	assert.Equal(t, map[string]interface{}{"kind": "layout", "layout": "c"}, readMessage(t, conn))
}

func TestWorkspaceMessageEncoding(t *testing.T) {
	ws := compositor.Workspace{ID: 3, Name: "3", Monitor: "DP-1", Visibility: compositor.Hidden}

	assert.Equal(t, []compositor.Workspace{}, workspaceMessage(compositor.InitUpdate{})["workspaces"])
	assert.Equal(t, ws, workspaceMessage(compositor.MoveUpdate{Workspace: ws})["workspace"])
	assert.Equal(t, map[string]interface{}{"kind": "rename", "id": int64(3), "name": "mail"},
		workspaceMessage(compositor.RenameUpdate{ID: 3, Name: "mail"}))
	assert.Equal(t, map[string]interface{}{"kind": "remove", "id": int64(3)},
		workspaceMessage(compositor.RemoveUpdate{ID: 3}))
}
