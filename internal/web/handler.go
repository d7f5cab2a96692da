package web

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/actionsum/wsbridge/internal/bridge"
	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/internal/config"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/models"
	"github.com/actionsum/wsbridge/internal/reporter"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/actionsum/wsbridge/pkg/utils"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultErrorLimit = 50

// Bridge is the part of the workspace bridge the API serves
type Bridge interface {
	Snapshot() ([]compositor.Workspace, error)
	Active() *compositor.Workspace
	Stats() bridge.Stats
	FocusWorkspace(id int64)
	NextKeyboardLayout()
	SubscribeWorkspaces() (*broadcast.Subscription[compositor.WorkspaceUpdate], error)
	SubscribeKeyboardLayout() *broadcast.Subscription[compositor.KeyboardLayoutUpdate]
	Done() <-chan struct{}
	Err() error
}

type Handler struct {
	config   *config.Config
	bridge   Bridge
	repo     *database.Repository
	reporter *reporter.Reporter
	logger   *logrus.Entry
	started  time.Time

	upgrader websocket.Upgrader
	streams  *streamSet
}

func NewHandler(cfg *config.Config, b Bridge, repo *database.Repository, logger *logrus.Entry) *Handler {
	h := &Handler{
		config:  cfg,
		bridge:  b,
		repo:    repo,
		logger:  logger,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // status bars connect from anywhere on localhost
			},
		},
		streams: newStreamSet(),
	}
	if repo != nil {
		h.reporter = reporter.New(repo)
	}
	return h
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/workspaces", h.handleWorkspaces)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/focus", h.handleFocus)
	mux.HandleFunc("/api/layout/next", h.handleNextLayout)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/errors", h.handleErrors)

	mux.HandleFunc("/api/stream/workspaces", h.handleWorkspaceStream)
	mux.HandleFunc("/api/stream/layout", h.handleLayoutStream)

	mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workspaces, err := h.bridge.Snapshot()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch workspaces: %v", err), http.StatusBadGateway)
		return
	}

	respondJSON(w, workspaces)
}

func (h *Handler) handleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid workspace id", http.StatusBadRequest)
		return
	}

	// dispatch failures are reported by the bridge, never to the caller
	h.bridge.FocusWorkspace(id)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleNextLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.bridge.NextKeyboardLayout()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.reporter == nil {
		http.Error(w, "Focus journal is disabled", http.StatusServiceUnavailable)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		if errors.Is(err, reporter.ErrInvalidPeriod) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		respondReportHTML(w, report)
		return
	}

	respondJSON(w, report)
}

func respondReportHTML(w http.ResponseWriter, report *models.Report) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(report.Workspaces) == 0 {
		w.Write([]byte(`<div class="loading">No data available</div>`))
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="listing">`)
	for _, ws := range report.Workspaces {
		fmt.Fprintf(&b, `
		<div class="workspace-item" style="--bar-width: %.1f%%">
			<span class="workspace-name">%s</span>
			<div>
				<span class="workspace-time">%s</span>
				<span class="workspace-percentage">%.1f%%</span>
			</div>
		</div>`, ws.Percentage, html.EscapeString(ws.WorkspaceName), utils.FormatRoundedUnit(ws.TotalSeconds), ws.Percentage)
	}
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="total">Total: %s</div>`, utils.FormatRoundedUnit(report.TotalSeconds))

	w.Write([]byte(b.String()))
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.repo == nil {
		http.Error(w, "Focus journal is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultErrorLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	logs, err := h.repo.GetRecentErrors(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch errors: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, logs)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	running := true
	select {
	case <-h.bridge.Done():
		running = false
	default:
	}

	status := map[string]interface{}{
		"running":          running,
		"compositor":       h.config.Compositor.Kind,
		"uptime":           time.Since(h.started).Round(time.Second).String(),
		"buffer_size":      h.config.Bridge.BufferSize,
		"database_enabled": h.repo != nil,
		"stats":            h.bridge.Stats(),
		"streams":          h.streams.len(),
	}

	if err := h.bridge.Err(); err != nil {
		status["error"] = err.Error()
	}

	if active := h.bridge.Active(); active != nil {
		status["active_workspace"] = active
	}

	if h.repo != nil {
		status["database_path"] = h.config.Database.Path
		if latest, _ := h.repo.GetLatestSpan(); latest != nil {
			status["latest_span"] = map[string]interface{}{
				"workspace_name": latest.WorkspaceName,
				"monitor":        latest.Monitor,
				"timestamp":      latest.Timestamp,
			}
		}
	}

	respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode JSON: %v", err), http.StatusInternalServerError)
	}
}
