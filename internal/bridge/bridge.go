// Package bridge keeps a local model of compositor workspaces and keyboard
// layout and republishes normalized updates to any number of subscribers.
//
// A single goroutine owns the compositor's blocking event loop. Every
// workspace event is handled while holding the bridge lock, so handlers run
// in arrival order and the cached focused workspace is always the one the
// previous Focus update announced.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Bridge connects one compositor to workspace and keyboard layout subscribers
type Bridge struct {
	protocol   compositor.Protocol
	logger     *logrus.Entry
	reporter   ErrorReporter
	bufferSize int

	workspaces *broadcast.Hub[compositor.WorkspaceUpdate]
	layouts    *broadcast.Hub[compositor.KeyboardLayoutUpdate]

	// mu guards active and serializes event handling with subscription snapshots
	mu     sync.Mutex
	active *compositor.Workspace

	// layoutMu serializes layout publishes with layout subscription snapshots
	layoutMu sync.Mutex

	stream compositor.EventStream
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	handled  atomic.Uint64
	reported atomic.Uint64
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger entry
func WithLogger(logger *logrus.Entry) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithReporter sets the sink for recoverable errors
func WithReporter(r ErrorReporter) Option {
	return func(b *Bridge) {
		b.reporter = r
	}
}

// WithBufferSize sets the per-subscriber queue length
func WithBufferSize(n int) Option {
	return func(b *Bridge) {
		b.bufferSize = n
	}
}

// Stats are counters describing the bridge since it started
type Stats struct {
	EventsHandled    uint64 `json:"events_handled"`
	ErrorsReported   uint64 `json:"errors_reported"`
	WorkspaceSubs    int    `json:"workspace_subscribers"`
	LayoutSubs       int    `json:"layout_subscribers"`
	WorkspaceDropped uint64 `json:"workspace_dropped"`
	LayoutDropped    uint64 `json:"layout_dropped"`
}

// New caches the focused workspace, opens the event stream and starts the
// listener goroutine. Failure of either step is fatal: the bridge would have
// no sound state to diff against.
func New(ctx context.Context, protocol compositor.Protocol, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		protocol:   protocol,
		logger:     logrus.NewEntry(logrus.StandardLogger()),
		bufferSize: broadcast.DefaultCapacity,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.workspaces = broadcast.New[compositor.WorkspaceUpdate](b.bufferSize)
	b.layouts = broadcast.New[compositor.KeyboardLayoutUpdate](b.bufferSize)

	// the compositor never tells us the previous workspace, so remember it
	active, err := protocol.ActiveWorkspace()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active workspace")
	}
	if active != nil {
		ws := compositor.NewWorkspace(*active, compositor.Focused)
		b.active = &ws
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := protocol.Events(ctx)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to start event listener")
	}
	b.stream = stream
	b.cancel = cancel

	b.logger.WithField("compositor", protocol.Name()).Info("Starting compositor event listener")
	go b.listen(ctx)

	return b, nil
}

func (b *Bridge) listen(ctx context.Context) {
	defer close(b.done)

	for {
		ev, err := b.stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Debug("Compositor event listener stopped")
				return
			}
			b.err = errors.Wrap(err, "compositor event stream failed")
			b.logger.WithError(err).Error("Compositor event stream ended")
			b.workspaces.Close()
			b.layouts.Close()
			return
		}

		b.handle(ev)
		b.handled.Add(1)
	}
}

// Done is closed when the listener goroutine exits
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns why the listener stopped, or nil while it runs or after Close
func (b *Bridge) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Close stops the listener and closes every subscription
func (b *Bridge) Close() error {
	b.cancel()
	err := b.stream.Close()
	<-b.done
	b.workspaces.Close()
	b.layouts.Close()
	return err
}

// SubscribeWorkspaces returns a subscription whose first value is an
// InitUpdate built from a fresh query, followed by every update published
// after it. The snapshot and registration happen under the bridge lock, so no
// update can fall between them.
func (b *Bridge) SubscribeWorkspaces() (*broadcast.Subscription[compositor.WorkspaceUpdate], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	workspaces, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	return b.workspaces.Subscribe(compositor.InitUpdate{Workspaces: workspaces}), nil
}

// SubscribeKeyboardLayout returns a subscription that starts with the current
// layout when it can be queried. The query and registration happen under the
// layout lock, so no layout change can fall between them.
func (b *Bridge) SubscribeKeyboardLayout() *broadcast.Subscription[compositor.KeyboardLayoutUpdate] {
	b.layoutMu.Lock()
	defer b.layoutMu.Unlock()

	layout, err := b.protocol.KeyboardLayout()
	if err != nil {
		b.report(errors.Wrap(err, "failed to get current keyboard layout"))
		return b.layouts.Subscribe()
	}
	return b.layouts.Subscribe(compositor.KeyboardLayoutUpdate{Layout: layout})
}

// Snapshot returns the live workspace list with visibility, as an Init would carry it
func (b *Bridge) Snapshot() ([]compositor.Workspace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Active returns the cached focused workspace, or nil if none is known
func (b *Bridge) Active() *compositor.Workspace {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == nil {
		return nil
	}
	ws := *b.active
	return &ws
}

// FocusWorkspace asks the compositor to switch workspace. Failures are
// reported, never returned or retried.
func (b *Bridge) FocusWorkspace(id int64) {
	if err := b.protocol.Dispatch(compositor.FocusWorkspace{ID: id}); err != nil {
		b.report(dispatchError(fmt.Sprintf("couldn't focus workspace %d", id), err))
	}
}

// NextKeyboardLayout asks the compositor to advance the main keyboard layout.
// Failures are reported, never returned or retried.
func (b *Bridge) NextKeyboardLayout() {
	if err := b.protocol.Dispatch(compositor.NextKeyboardLayout{}); err != nil {
		b.report(dispatchError("failed to switch keyboard layout", err))
	}
}

// Stats returns a copy of the bridge counters
func (b *Bridge) Stats() Stats {
	return Stats{
		EventsHandled:    b.handled.Load(),
		ErrorsReported:   b.reported.Load(),
		WorkspaceSubs:    b.workspaces.Subscribers(),
		LayoutSubs:       b.layouts.Subscribers(),
		WorkspaceDropped: b.workspaces.Dropped(),
		LayoutDropped:    b.layouts.Dropped(),
	}
}

// snapshot must be called with mu held
func (b *Bridge) snapshot() ([]compositor.Workspace, error) {
	workspaces, err := b.protocol.Workspaces()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get workspaces")
	}

	active := b.active
	queried, err := b.protocol.ActiveWorkspace()
	if err != nil {
		b.report(errors.Wrap(err, "failed to get active workspace, using cached value"))
	} else if queried == nil {
		active = nil
	} else {
		ws := compositor.NewWorkspace(*queried, compositor.Focused)
		active = &ws
	}

	monitors := b.monitors()

	result := make([]compositor.Workspace, 0, len(workspaces))
	for _, w := range workspaces {
		result = append(result, compositor.NewWorkspace(w, compositor.ResolveVisibility(w, active, monitors)))
	}
	return result, nil
}

// monitors takes the per-event monitor snapshot. A failed query yields an
// empty snapshot, which classifies every unfocused workspace as hidden.
func (b *Bridge) monitors() compositor.MonitorSnapshot {
	monitors, err := b.protocol.Monitors()
	if err != nil {
		b.report(errors.Wrap(err, "failed to get monitors"))
		return nil
	}
	return monitors
}

func (b *Bridge) report(err error) {
	b.reported.Add(1)
	b.logger.WithError(err).Error("Compositor error")
	if b.reporter != nil {
		b.reporter.Report(err)
	}
}
