package compositor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVisibility(t *testing.T) {
	monitors := MonitorSnapshot{
		{ID: 0, Name: "DP-1", ActiveWorkspaceID: 1, Focused: true},
		{ID: 1, Name: "HDMI-A-1", ActiveWorkspaceID: 4},
	}
	active := &Workspace{ID: 1, Name: "1", Monitor: "DP-1", Visibility: Focused}

	tests := []struct {
		name     string
		ws       WorkspaceData
		active   *Workspace
		monitors MonitorSnapshot
		want     Visibility
	}{
		{
			name:     "active name is focused",
			ws:       WorkspaceData{ID: 1, Name: "1", Monitor: "DP-1"},
			active:   active,
			monitors: monitors,
			want:     Focused,
		},
		{
			name:     "shown on another monitor is visible",
			ws:       WorkspaceData{ID: 4, Name: "4", Monitor: "HDMI-A-1"},
			active:   active,
			monitors: monitors,
			want:     Visible,
		},
		{
			name:     "not shown anywhere is hidden",
			ws:       WorkspaceData{ID: 2, Name: "2", Monitor: "DP-1"},
			active:   active,
			monitors: monitors,
			want:     Hidden,
		},
		{
			name:     "no active workspace falls back to monitors",
			ws:       WorkspaceData{ID: 1, Name: "1", Monitor: "DP-1"},
			active:   nil,
			monitors: monitors,
			want:     Visible,
		},
		{
			name:     "match is by name not id",
			ws:       WorkspaceData{ID: 9, Name: "1", Monitor: "DP-1"},
			active:   active,
			monitors: nil,
			want:     Focused,
		},
		{
			name:     "empty monitor snapshot",
			ws:       WorkspaceData{ID: 4, Name: "4"},
			active:   active,
			monitors: nil,
			want:     Hidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveVisibility(tt.ws, tt.active, tt.monitors))
		})
	}
}

func TestVisibilityPredicates(t *testing.T) {
	assert.True(t, Focused.IsFocused())
	assert.True(t, Focused.IsVisible())
	assert.False(t, Visible.IsFocused())
	assert.True(t, Visible.IsVisible())
	assert.False(t, Hidden.IsVisible())
}

func TestWorkspaceJSON(t *testing.T) {
	ws := Workspace{ID: 3, Name: "web", Monitor: "DP-1", Visibility: Visible}

	data, err := json.Marshal(ws)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"web","monitor":"DP-1","visibility":"visible"}`, string(data))

	var decoded Workspace
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ws, decoded)

	var v Visibility
	assert.Error(t, v.UnmarshalText([]byte("sideways")))
}

func TestUpdateKinds(t *testing.T) {
	updates := map[string]WorkspaceUpdate{
		"init":   InitUpdate{},
		"add":    AddUpdate{},
		"remove": RemoveUpdate{},
		"move":   MoveUpdate{},
		"rename": RenameUpdate{},
		"focus":  FocusUpdate{},
		"urgent": UrgentUpdate{},
	}
	for kind, u := range updates {
		assert.Equal(t, kind, u.Kind())
	}
}
