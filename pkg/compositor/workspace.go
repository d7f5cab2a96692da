package compositor

import (
	"fmt"
)

// Visibility classifies how a workspace is currently shown
type Visibility int

const (
	Hidden Visibility = iota
	Visible
	Focused
)

// IsFocused reports whether the workspace receives input
func (v Visibility) IsFocused() bool {
	return v == Focused
}

// IsVisible reports whether the workspace is shown on some monitor, focused or not
func (v Visibility) IsVisible() bool {
	return v == Visible || v == Focused
}

func (v Visibility) String() string {
	switch v {
	case Focused:
		return "focused"
	case Visible:
		return "visible"
	default:
		return "hidden"
	}
}

// MarshalText encodes the visibility as its lowercase name
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a lowercase visibility name
func (v *Visibility) UnmarshalText(text []byte) error {
	switch string(text) {
	case "focused":
		*v = Focused
	case "visible":
		*v = Visible
	case "hidden":
		*v = Hidden
	default:
		return fmt.Errorf("unknown visibility: %q", string(text))
	}
	return nil
}

// Workspace is a named virtual desktop as seen by bar widgets
type Workspace struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Monitor    string     `json:"monitor"`
	Visibility Visibility `json:"visibility"`
}

// WorkspaceData is a workspace as reported by the compositor, before visibility is derived
type WorkspaceData struct {
	ID      int64
	Name    string
	Monitor string
}

// Monitor is an output and the workspace it currently shows
type Monitor struct {
	ID                int64
	Name              string
	ActiveWorkspaceID int64
	Focused           bool
}

// MonitorSnapshot is the monitor list at one instant. It goes stale as soon as
// the compositor changes assignments, so it must not outlive one event.
type MonitorSnapshot []Monitor

// HasActive reports whether any monitor currently shows the workspace
func (s MonitorSnapshot) HasActive(workspaceID int64) bool {
	for _, m := range s {
		if m.ActiveWorkspaceID == workspaceID {
			return true
		}
	}
	return false
}

// Client is a compositor window, identified by its address
type Client struct {
	Address     string
	WorkspaceID int64
}

// ResolveVisibility derives the visibility of ws. active is the workspace
// currently known to be focused, or nil when none is known.
func ResolveVisibility(ws WorkspaceData, active *Workspace, monitors MonitorSnapshot) Visibility {
	if active != nil && ws.Name == active.Name {
		return Focused
	}
	if monitors.HasActive(ws.ID) {
		return Visible
	}
	return Hidden
}

// NewWorkspace combines raw workspace data with a resolved visibility
func NewWorkspace(ws WorkspaceData, visibility Visibility) Workspace {
	return Workspace{
		ID:         ws.ID,
		Name:       ws.Name,
		Monitor:    ws.Monitor,
		Visibility: visibility,
	}
}
