package bridge

import (
	"fmt"
	"strings"

	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/pkg/errors"
)

// handle dispatches one raw event to its handler. Only the listener goroutine calls it.
func (b *Bridge) handle(ev compositor.Event) {
	switch ev := ev.(type) {
	case compositor.WorkspaceAdded:
		b.onWorkspaceAdded(ev)
	case compositor.WorkspaceChanged:
		b.onWorkspaceChanged(ev)
	case compositor.ActiveMonitorChanged:
		b.onActiveMonitorChanged(ev)
	case compositor.WorkspaceMoved:
		b.onWorkspaceMoved(ev)
	case compositor.WorkspaceRenamed:
		b.onWorkspaceRenamed(ev)
	case compositor.WorkspaceDeleted:
		b.onWorkspaceDeleted(ev)
	case compositor.UrgentStateChanged:
		b.onUrgentStateChanged(ev)
	case compositor.LayoutChanged:
		b.onLayoutChanged(ev)
	default:
		b.logger.WithField("event", fmt.Sprintf("%T", ev)).Debug("Ignoring unhandled event")
	}
}

func (b *Bridge) onWorkspaceAdded(ev compositor.WorkspaceAdded) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("workspace", ev.Name).Debug("Added workspace")

	if ws, ok := b.resolve(ev.Name); ok {
		b.publish(compositor.AddUpdate{Workspace: ws})
	}
}

func (b *Bridge) onWorkspaceChanged(ev compositor.WorkspaceChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("workspace", ev.Name).WithField("previous", b.activeName()).
		Debug("Received workspace change")

	ws, ok := b.resolve(ev.Name)
	if !ok {
		return
	}
	// compositors repeat this event for the workspace that already has focus
	if ws.Visibility.IsFocused() {
		return
	}
	b.changeFocus(ws)
}

func (b *Bridge) onActiveMonitorChanged(ev compositor.ActiveMonitorChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.WorkspaceName == nil {
		b.report(errors.Wrapf(ErrMissingWorkspaceName, "unable to locate workspace on monitor %s", ev.Monitor))
		return
	}
	name := *ev.WorkspaceName

	b.logger.WithField("workspace", name).WithField("previous", b.activeName()).
		Debug("Received active monitor change")

	ws, ok := b.resolve(name)
	if !ok {
		return
	}
	if ws.Visibility.IsFocused() {
		b.report(errors.Wrapf(ErrWorkspaceNotFound, "workspace %q on monitor %s is already focused", name, ev.Monitor))
		return
	}
	b.changeFocus(ws)
}

func (b *Bridge) onWorkspaceMoved(ev compositor.WorkspaceMoved) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("workspace", ev.Name).WithField("monitor", ev.Monitor).Debug("Received workspace move")

	ws, ok := b.resolve(ev.Name)
	if !ok {
		return
	}
	b.publish(compositor.MoveUpdate{Workspace: ws})

	if !ws.Visibility.IsFocused() {
		b.changeFocus(ws)
	}
}

func (b *Bridge) onWorkspaceRenamed(ev compositor.WorkspaceRenamed) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("id", ev.ID).WithField("workspace", ev.Name).Debug("Received workspace rename")
	b.publish(compositor.RenameUpdate{ID: ev.ID, Name: ev.Name})
}

func (b *Bridge) onWorkspaceDeleted(ev compositor.WorkspaceDeleted) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("id", ev.ID).Debug("Received workspace destroy")
	b.publish(compositor.RemoveUpdate{ID: ev.ID})
}

func (b *Bridge) onUrgentStateChanged(ev compositor.UrgentStateChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.WithField("address", ev.Address).Debug("Received urgent state")

	clients, err := b.protocol.Clients()
	if err != nil {
		b.report(errors.Wrap(err, "failed to get clients"))
		return
	}

	want := normalizeAddress(ev.Address)
	for _, c := range clients {
		if normalizeAddress(c.Address) == want {
			b.publish(compositor.UrgentUpdate{ID: c.WorkspaceID, Urgent: true})
			return
		}
	}
	b.report(errors.Wrapf(ErrClientNotFound, "address %s", ev.Address))
}

// onLayoutChanged does not touch the workspace cache; it only takes the layout lock
func (b *Bridge) onLayoutChanged(ev compositor.LayoutChanged) {
	b.logger.WithField("keyboard", ev.Keyboard).WithField("layout", ev.Layout).Debug("Received layout")

	b.layoutMu.Lock()
	defer b.layoutMu.Unlock()
	b.layouts.Publish(compositor.KeyboardLayoutUpdate{Layout: ev.Layout})
}

// changeFocus announces ws as the new focused workspace. The Focus update
// always precedes the urgency clear, and the cache is updated last.
func (b *Bridge) changeFocus(ws compositor.Workspace) {
	ws.Visibility = compositor.Focused

	// Old must not alias the cache
	var old *compositor.Workspace
	if b.active != nil {
		o := *b.active
		old = &o
	}
	b.active = nil

	b.publish(compositor.FocusUpdate{Old: old, New: ws})
	b.publish(compositor.UrgentUpdate{ID: ws.ID, Urgent: false})

	b.active = &ws
}

// resolve looks a workspace up by name in a fresh snapshot. It reports why
// when the workspace cannot be resolved. Must be called with mu held.
func (b *Bridge) resolve(name string) (compositor.Workspace, bool) {
	workspaces, err := b.protocol.Workspaces()
	if err != nil {
		b.report(errors.Wrap(err, "failed to get workspaces"))
		return compositor.Workspace{}, false
	}

	for _, w := range workspaces {
		if w.Name == name {
			visibility := compositor.ResolveVisibility(w, b.active, b.monitors())
			return compositor.NewWorkspace(w, visibility), true
		}
	}

	b.report(errors.Wrapf(ErrWorkspaceNotFound, "workspace %q", name))
	return compositor.Workspace{}, false
}

func (b *Bridge) publish(u compositor.WorkspaceUpdate) {
	n := b.workspaces.Publish(u)
	b.logger.WithField("update", u.Kind()).WithField("subscribers", n).Trace("Published workspace update")
}

func (b *Bridge) activeName() string {
	if b.active == nil {
		return ""
	}
	return b.active.Name
}

// normalizeAddress makes "0xABC" and "abc" compare equal
func normalizeAddress(addr string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(addr)), "0x")
}
