package compositor

// WorkspaceUpdate is a normalized change published to workspace subscribers.
// The set of implementations is closed.
type WorkspaceUpdate interface {
	Kind() string
	workspaceUpdate()
}

// InitUpdate carries the full workspace list at subscription time
type InitUpdate struct {
	Workspaces []Workspace `json:"workspaces"`
}

// AddUpdate announces a newly created workspace
type AddUpdate struct {
	Workspace Workspace `json:"workspace"`
}

// RemoveUpdate announces a destroyed workspace
type RemoveUpdate struct {
	ID int64 `json:"id"`
}

// MoveUpdate announces a workspace assigned to another monitor
type MoveUpdate struct {
	Workspace Workspace `json:"workspace"`
}

// RenameUpdate announces a new name for a workspace
type RenameUpdate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FocusUpdate announces a focus transition. Old is nil when no workspace was
// known to be focused before.
type FocusUpdate struct {
	Old *Workspace `json:"old,omitempty"`
	New Workspace  `json:"new"`
}

// UrgentUpdate sets or clears the urgency flag of a workspace
type UrgentUpdate struct {
	ID     int64 `json:"id"`
	Urgent bool  `json:"urgent"`
}

func (InitUpdate) Kind() string   { return "init" }
func (AddUpdate) Kind() string    { return "add" }
func (RemoveUpdate) Kind() string { return "remove" }
func (MoveUpdate) Kind() string   { return "move" }
func (RenameUpdate) Kind() string { return "rename" }
func (FocusUpdate) Kind() string  { return "focus" }
func (UrgentUpdate) Kind() string { return "urgent" }

func (InitUpdate) workspaceUpdate()   {}
func (AddUpdate) workspaceUpdate()    {}
func (RemoveUpdate) workspaceUpdate() {}
func (MoveUpdate) workspaceUpdate()   {}
func (RenameUpdate) workspaceUpdate() {}
func (FocusUpdate) workspaceUpdate()  {}
func (UrgentUpdate) workspaceUpdate() {}

// KeyboardLayoutUpdate carries the active layout name of the main keyboard
type KeyboardLayoutUpdate struct {
	Layout string `json:"layout"`
}

// Kind returns "layout"
func (KeyboardLayoutUpdate) Kind() string { return "layout" }
