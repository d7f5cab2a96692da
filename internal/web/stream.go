package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const writeWait = 5 * time.Second

// streamSet tracks open websocket connections so Shutdown can end them;
// http.Server.Shutdown does not wait for hijacked connections
type streamSet struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]context.CancelFunc
}

func newStreamSet() *streamSet {
	return &streamSet{conns: make(map[*websocket.Conn]context.CancelFunc)}
}

func (s *streamSet) add(conn *websocket.Conn, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = cancel
}

func (s *streamSet) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *streamSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (h *Handler) closeStreams() {
	h.streams.mu.Lock()
	defer h.streams.mu.Unlock()
	for _, cancel := range h.streams.conns {
		cancel()
	}
}

func (h *Handler) handleWorkspaceStream(w http.ResponseWriter, r *http.Request) {
	sub, err := h.bridge.SubscribeWorkspaces()
	if err != nil {
		http.Error(w, "Failed to subscribe: "+err.Error(), http.StatusBadGateway)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	go serveStream(h, conn, sub, workspaceMessage)
}

func (h *Handler) handleLayoutStream(w http.ResponseWriter, r *http.Request) {
	sub := h.bridge.SubscribeKeyboardLayout()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	go serveStream(h, conn, sub, layoutMessage)
}

// serveStream writes every value of sub to conn until either side closes.
// A client that falls behind is told how many updates it missed and keeps
// receiving newer ones.
func serveStream[T any](h *Handler, conn *websocket.Conn, sub *broadcast.Subscription[T], encode func(T) map[string]interface{}) {
	ctx, cancel := context.WithCancel(context.Background())
	h.streams.add(conn, cancel)

	logger := h.logger.WithField("remote", conn.RemoteAddr().String())
	logger.Debug("Stream client connected")

	defer func() {
		cancel()
		sub.Close()
		h.streams.remove(conn)
		conn.Close()
		logger.Debug("Stream client disconnected")
	}()

	// the read side only exists to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Debug("Stream read failed")
				}
				return
			}
		}
	}()

	for {
		v, err := sub.Recv(ctx)
		var msg map[string]interface{}
		switch {
		case err == nil:
			msg = encode(v)
		case broadcast.IsLagged(err):
			var lagged *broadcast.LaggedError
			errors.As(err, &lagged)
			logger.WithField("missed", lagged.Missed).Warn("Stream client lagging")
			msg = map[string]interface{}{"kind": "lagged", "missed": lagged.Missed}
		case errors.Is(err, broadcast.ErrClosed):
			writeClose(conn, websocket.CloseGoingAway, "bridge closed")
			return
		default:
			writeClose(conn, websocket.CloseNormalClosure, "")
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.WithError(err).Debug("Stream write failed")
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func workspaceMessage(u compositor.WorkspaceUpdate) map[string]interface{} {
	msg := map[string]interface{}{"kind": u.Kind()}

	switch u := u.(type) {
	case compositor.InitUpdate:
		workspaces := u.Workspaces
		if workspaces == nil {
			workspaces = []compositor.Workspace{}
		}
		msg["workspaces"] = workspaces
	case compositor.AddUpdate:
		msg["workspace"] = u.Workspace
	case compositor.RemoveUpdate:
		msg["id"] = u.ID
	case compositor.MoveUpdate:
		msg["workspace"] = u.Workspace
	case compositor.RenameUpdate:
		msg["id"] = u.ID
		msg["name"] = u.Name
	case compositor.FocusUpdate:
		msg["old"] = u.Old
		msg["new"] = u.New
	case compositor.UrgentUpdate:
		msg["id"] = u.ID
		msg["urgent"] = u.Urgent
	}

	return msg
}

func layoutMessage(u compositor.KeyboardLayoutUpdate) map[string]interface{} {
	return map[string]interface{}{"kind": u.Kind(), "layout": u.Layout}
}
