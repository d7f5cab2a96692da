// Package hyprland talks to a running Hyprland instance over its two IPC
// sockets: .socket.sock answers one request per connection, .socket2.sock
// streams events as "name>>data" lines.
package hyprland

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// SignatureEnv is set by Hyprland for every process it spawns
	SignatureEnv = "HYPRLAND_INSTANCE_SIGNATURE"

	requestSocket = ".socket.sock"
	eventSocket   = ".socket2.sock"

	defaultTimeout = 2 * time.Second
)

// ErrNotRunning means no Hyprland instance could be located
var ErrNotRunning = errors.New("hyprland is not running")

// Client implements compositor.Protocol for Hyprland
type Client struct {
	socketDir string
	timeout   time.Duration
	logger    *logrus.Entry
}

var _ compositor.Protocol = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithSocketDir overrides the directory holding the IPC sockets
func WithSocketDir(dir string) Option {
	return func(c *Client) {
		c.socketDir = dir
	}
}

// WithTimeout bounds each request round trip
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger entry
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the Hyprland instance found in the environment,
// unless WithSocketDir names one explicitly
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: defaultTimeout,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.socketDir == "" {
		dir, err := SocketDir()
		if err != nil {
			return nil, err
		}
		c.socketDir = dir
	}

	if _, err := os.Stat(filepath.Join(c.socketDir, requestSocket)); err != nil {
		return nil, errors.Wrapf(ErrNotRunning, "no request socket in %s", c.socketDir)
	}

	return c, nil
}

// SocketDir locates the socket directory of the current instance. Recent
// releases use $XDG_RUNTIME_DIR/hypr, older ones /tmp/hypr.
func SocketDir() (string, error) {
	signature := os.Getenv(SignatureEnv)
	if signature == "" {
		return "", errors.Wrapf(ErrNotRunning, "%s is not set", SignatureEnv)
	}

	candidates := []string{filepath.Join("/tmp/hypr", signature)}
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		candidates = append([]string{filepath.Join(runtime, "hypr", signature)}, candidates...)
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, requestSocket)); err == nil {
			return dir, nil
		}
	}
	return "", errors.Wrapf(ErrNotRunning, "no sockets for instance %s", signature)
}

func (c *Client) Name() string {
	return "hyprland"
}

// request sends one command and reads the reply until the server closes the connection
func (c *Client) request(cmd string) ([]byte, error) {
	conn, err := net.DialTimeout("unix", filepath.Join(c.socketDir, requestSocket), c.timeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to hyprland")
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, errors.Wrap(err, "failed to set deadline")
	}

	if _, err := io.WriteString(conn, cmd); err != nil {
		return nil, errors.Wrapf(err, "failed to send %q", cmd)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read reply to %q", cmd)
	}
	return reply, nil
}

func (c *Client) requestJSON(cmd string, v interface{}) error {
	reply, err := c.request("j/" + cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s reply", cmd)
	}
	return nil
}

func (c *Client) Workspaces() ([]compositor.WorkspaceData, error) {
	var workspaces []workspaceJSON
	if err := c.requestJSON("workspaces", &workspaces); err != nil {
		return nil, err
	}

	result := make([]compositor.WorkspaceData, 0, len(workspaces))
	for _, w := range workspaces {
		result = append(result, w.data())
	}
	return result, nil
}

func (c *Client) ActiveWorkspace() (*compositor.WorkspaceData, error) {
	var ws workspaceJSON
	if err := c.requestJSON("activeworkspace", &ws); err != nil {
		return nil, err
	}
	// a compositor with no outputs reports an empty object
	if ws.Name == "" {
		return nil, nil
	}
	data := ws.data()
	return &data, nil
}

func (c *Client) Monitors() (compositor.MonitorSnapshot, error) {
	var monitors []monitorJSON
	if err := c.requestJSON("monitors", &monitors); err != nil {
		return nil, err
	}

	snapshot := make(compositor.MonitorSnapshot, 0, len(monitors))
	for _, m := range monitors {
		snapshot = append(snapshot, compositor.Monitor{
			ID:                m.ID,
			Name:              m.Name,
			ActiveWorkspaceID: m.ActiveWorkspace.ID,
			Focused:           m.Focused,
		})
	}
	return snapshot, nil
}

func (c *Client) Clients() ([]compositor.Client, error) {
	var clients []clientJSON
	if err := c.requestJSON("clients", &clients); err != nil {
		return nil, err
	}

	result := make([]compositor.Client, 0, len(clients))
	for _, cl := range clients {
		result = append(result, compositor.Client{
			Address:     cl.Address,
			WorkspaceID: cl.Workspace.ID,
		})
	}
	return result, nil
}

// KeyboardLayout returns the active keymap of the main keyboard
func (c *Client) KeyboardLayout() (string, error) {
	kb, err := c.mainKeyboard()
	if err != nil {
		return "", err
	}
	return kb.ActiveKeymap, nil
}

func (c *Client) mainKeyboard() (*keyboardJSON, error) {
	var devices devicesJSON
	if err := c.requestJSON("devices", &devices); err != nil {
		return nil, err
	}

	for i := range devices.Keyboards {
		if devices.Keyboards[i].Main {
			return &devices.Keyboards[i], nil
		}
	}
	return nil, errors.New("failed to get main keyboard")
}

func (c *Client) Dispatch(cmd compositor.Command) error {
	var line string
	switch cmd := cmd.(type) {
	case compositor.FocusWorkspace:
		line = fmt.Sprintf("dispatch workspace %d", cmd.ID)
	case compositor.NextKeyboardLayout:
		kb, err := c.mainKeyboard()
		if err != nil {
			return err
		}
		line = fmt.Sprintf("switchxkblayout %s next", kb.Name)
	default:
		return errors.Errorf("unsupported command %T", cmd)
	}

	reply, err := c.request(line)
	if err != nil {
		return err
	}
	if reply := bytes.TrimSpace(reply); !bytes.Equal(reply, []byte("ok")) {
		return errors.Errorf("%s: %s", line, reply)
	}
	return nil
}

// Events connects to the event socket. The stream is closed when ctx is done.
func (c *Client) Events(ctx context.Context) (compositor.EventStream, error) {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "unix", filepath.Join(c.socketDir, eventSocket))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to hyprland event socket")
	}

	c.logger.WithField("socket_dir", c.socketDir).Debug("Connected to event socket")
	return newEventStream(ctx, conn, c.logger), nil
}

// Close is a no-op: every request uses its own connection and event streams
// are closed by their owners
func (c *Client) Close() error {
	return nil
}
