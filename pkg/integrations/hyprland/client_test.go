package hyprland

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers requests on .socket.sock from a reply table and pushes
// lines to whoever connects to .socket2.sock
type fakeServer struct {
	dir string

	mu       sync.Mutex
	replies  map[string]string
	received []string

	events chan string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	// unix socket paths are limited to ~100 bytes, keep the directory short
	dir, err := os.MkdirTemp("", "hypr")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s := &fakeServer{
		dir:     dir,
		replies: make(map[string]string),
		events:  make(chan string, 16),
	}

	requests, err := net.Listen("unix", filepath.Join(dir, requestSocket))
	require.NoError(t, err)
	t.Cleanup(func() { requests.Close() })
	go s.serveRequests(requests)

	events, err := net.Listen("unix", filepath.Join(dir, eventSocket))
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })
	go s.serveEvents(events)

	return s
}

func (s *fakeServer) reply(cmd, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[cmd] = body
}

func (s *fakeServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *fakeServer) serveRequests(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			buf := make([]byte, 4096)
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			cmd := string(buf[:n])

			s.mu.Lock()
			s.received = append(s.received, cmd)
			body, ok := s.replies[cmd]
			s.mu.Unlock()

			if !ok {
				body = "unknown request"
			}
			_, _ = io.WriteString(conn, body)
		}(conn)
	}
}

func (s *fakeServer) serveEvents(l net.Listener) {
	conn, err := l.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	for line := range s.events {
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	c, err := New(WithSocketDir(s.dir), WithTimeout(time.Second))
	require.NoError(t, err)
	return c
}

func TestNewWithoutInstance(t *testing.T) {
	t.Setenv(SignatureEnv, "")

	_, err := New()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = New(WithSocketDir(t.TempDir()))
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSocketDirPrefersRuntimeDir(t *testing.T) {
	runtime := t.TempDir()
	dir := filepath.Join(runtime, "hypr", "abc_123")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, requestSocket), nil, 0o600))

	t.Setenv("XDG_RUNTIME_DIR", runtime)
	t.Setenv(SignatureEnv, "abc_123")

	got, err := SocketDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestQueries(t *testing.T) {
	s := newFakeServer(t)
	s.reply("j/workspaces", `[
		{"id":1,"name":"1","monitor":"DP-1","windows":2},
		{"id":-98,"name":"special:scratch","monitor":"DP-1","windows":1}
	]`)
	s.reply("j/activeworkspace", `{"id":1,"name":"1","monitor":"DP-1"}`)
	s.reply("j/monitors", `[
		{"id":0,"name":"DP-1","activeWorkspace":{"id":1,"name":"1"},"focused":true},
		{"id":1,"name":"HDMI-A-1","activeWorkspace":{"id":4,"name":"4"},"focused":false}
	]`)
	s.reply("j/clients", `[{"address":"0x55d1c0a3e2f0","workspace":{"id":4,"name":"4"}}]`)
	s.reply("j/devices", `{"keyboards":[
		{"name":"power-button","active_keymap":"English (US)","main":false},
		{"name":"at-translated-set-2-keyboard","active_keymap":"German","main":true}
	]}`)

	c := newTestClient(t, s)

	workspaces, err := c.Workspaces()
	require.NoError(t, err)
	assert.Equal(t, []compositor.WorkspaceData{
		{ID: 1, Name: "1", Monitor: "DP-1"},
		{ID: -98, Name: "special:scratch", Monitor: "DP-1"},
	}, workspaces)

	active, err := c.ActiveWorkspace()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, compositor.WorkspaceData{ID: 1, Name: "1", Monitor: "DP-1"}, *active)

	monitors, err := c.Monitors()
	require.NoError(t, err)
	assert.Equal(t, compositor.MonitorSnapshot{
		{ID: 0, Name: "DP-1", ActiveWorkspaceID: 1, Focused: true},
		{ID: 1, Name: "HDMI-A-1", ActiveWorkspaceID: 4},
	}, monitors)

	clients, err := c.Clients()
	require.NoError(t, err)
	assert.Equal(t, []compositor.Client{{Address: "0x55d1c0a3e2f0", WorkspaceID: 4}}, clients)

	layout, err := c.KeyboardLayout()
	require.NoError(t, err)
	assert.Equal(t, "German", layout)
}

func TestActiveWorkspaceMissing(t *testing.T) {
	s := newFakeServer(t)
	s.reply("j/activeworkspace", `{}`)

	active, err := newTestClient(t, s).ActiveWorkspace()
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestMalformedReply(t *testing.T) {
	s := newFakeServer(t)
	s.reply("j/workspaces", `not json`)

	_, err := newTestClient(t, s).Workspaces()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode workspaces reply")
}

func TestDispatch(t *testing.T) {
	s := newFakeServer(t)
	s.reply("dispatch workspace 3", "ok")
	s.reply("j/devices", `{"keyboards":[{"name":"kb","active_keymap":"US","main":true}]}`)
	s.reply("switchxkblayout kb next", "ok\n")

	c := newTestClient(t, s)
	require.NoError(t, c.Dispatch(compositor.FocusWorkspace{ID: 3}))
	require.NoError(t, c.Dispatch(compositor.NextKeyboardLayout{}))

	assert.Equal(t, []string{"dispatch workspace 3", "j/devices", "switchxkblayout kb next"}, s.commands())

	err := c.Dispatch(compositor.FocusWorkspace{ID: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request")
}

func TestDispatchWithoutMainKeyboard(t *testing.T) {
	s := newFakeServer(t)
	s.reply("j/devices", `{"keyboards":[]}`)

	err := newTestClient(t, s).Dispatch(compositor.NextKeyboardLayout{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main keyboard")
}

func TestEventStream(t *testing.T) {
	s := newFakeServer(t)
	c := newTestClient(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := c.Events(ctx)
	require.NoError(t, err)

	s.events <- "openwindow>>55d1c0a3e2f0,1,kitty,kitty"
	s.events <- "garbage"
	s.events <- "workspacev2>>2,2"
	s.events <- "focusedmon>>HDMI-A-1,"

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, compositor.WorkspaceChanged{Name: "2"}, ev)

	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, compositor.ActiveMonitorChanged{Monitor: "HDMI-A-1"}, ev)

	cancel()
	_, err = stream.Next()
	assert.ErrorIs(t, err, compositor.ErrStreamClosed)
}
