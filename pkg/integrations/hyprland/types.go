package hyprland

import "github.com/actionsum/wsbridge/pkg/compositor"

type workspaceRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type workspaceJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
}

func (w workspaceJSON) data() compositor.WorkspaceData {
	return compositor.WorkspaceData{ID: w.ID, Name: w.Name, Monitor: w.Monitor}
}

type monitorJSON struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	ActiveWorkspace workspaceRef `json:"activeWorkspace"`
	Focused         bool         `json:"focused"`
}

type clientJSON struct {
	Address   string       `json:"address"`
	Workspace workspaceRef `json:"workspace"`
}

type keyboardJSON struct {
	Name         string `json:"name"`
	ActiveKeymap string `json:"active_keymap"`
	Main         bool   `json:"main"`
}

type devicesJSON struct {
	Keyboards []keyboardJSON `json:"keyboards"`
}
