package compositor

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by EventStream.Next once the stream is closed
var ErrStreamClosed = errors.New("event stream closed")

// Event is a raw notification from the compositor. The set of implementations is closed.
type Event interface {
	event()
}

// WorkspaceAdded is sent when a workspace is created
type WorkspaceAdded struct {
	Name string
}

// WorkspaceChanged is sent when the active workspace switches
type WorkspaceChanged struct {
	Name string
}

// ActiveMonitorChanged is sent when input focus moves to another monitor.
// WorkspaceName is nil when the compositor did not say which workspace the monitor shows.
type ActiveMonitorChanged struct {
	Monitor       string
	WorkspaceName *string
}

// WorkspaceMoved is sent when a workspace is assigned to another monitor
type WorkspaceMoved struct {
	Name    string
	Monitor string
}

// WorkspaceRenamed is sent when a workspace gets a new name
type WorkspaceRenamed struct {
	ID   int64
	Name string
}

// WorkspaceDeleted is sent when a workspace is destroyed
type WorkspaceDeleted struct {
	ID int64
}

// UrgentStateChanged is sent when a client demands attention
type UrgentStateChanged struct {
	Address string
}

// LayoutChanged is sent when a keyboard switches layout
type LayoutChanged struct {
	Keyboard string
	Layout   string
}

func (WorkspaceAdded) event()       {}
func (WorkspaceChanged) event()     {}
func (ActiveMonitorChanged) event() {}
func (WorkspaceMoved) event()       {}
func (WorkspaceRenamed) event()     {}
func (WorkspaceDeleted) event()     {}
func (UrgentStateChanged) event()   {}
func (LayoutChanged) event()        {}

// Command is an instruction dispatched to the compositor. The set of implementations is closed.
type Command interface {
	command()
}

// FocusWorkspace switches to the workspace with the given id
type FocusWorkspace struct {
	ID int64
}

// NextKeyboardLayout advances the main keyboard to its next layout
type NextKeyboardLayout struct{}

func (FocusWorkspace) command()     {}
func (NextKeyboardLayout) command() {}

// EventStream yields raw compositor events in arrival order
type EventStream interface {
	// Next blocks until the next event arrives. It returns ErrStreamClosed
	// (or the underlying read error) once no more events will arrive.
	Next() (Event, error)

	// Close stops the stream and unblocks a pending Next
	Close() error
}

// Protocol is the capability the bridge needs from a compositor. Query
// methods are synchronous and always return fresh state.
type Protocol interface {
	// Name returns the compositor name
	Name() string

	// Events opens the event stream. An error means the listen loop cannot start.
	Events(ctx context.Context) (EventStream, error)

	// Workspaces returns all live workspaces in compositor order
	Workspaces() ([]WorkspaceData, error)

	// ActiveWorkspace returns the focused workspace, or nil if none is focused
	ActiveWorkspace() (*WorkspaceData, error)

	// Monitors returns all monitors with their active workspace
	Monitors() (MonitorSnapshot, error)

	// Clients returns all mapped clients
	Clients() ([]Client, error)

	// KeyboardLayout returns the active layout of the main keyboard
	KeyboardLayout() (string, error)

	// Dispatch sends a command to the compositor
	Dispatch(cmd Command) error

	// Close releases any resources held by the adapter
	Close() error
}
