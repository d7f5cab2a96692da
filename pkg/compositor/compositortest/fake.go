// Package compositortest provides a scriptable in-memory compositor for tests.
package compositortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/actionsum/wsbridge/pkg/compositor"
)

// Op names a Protocol method for error injection and call counting
type Op string

const (
	OpEvents          Op = "events"
	OpWorkspaces      Op = "workspaces"
	OpActiveWorkspace Op = "activeworkspace"
	OpMonitors        Op = "monitors"
	OpClients         Op = "clients"
	OpKeyboardLayout  Op = "keyboardlayout"
	OpDispatch        Op = "dispatch"
)

// EmitTimeout bounds how long Emit waits for the consumer to handle an event
var EmitTimeout = 2 * time.Second

// Protocol is a fake compositor whose state is set directly by the test
type Protocol struct {
	mu         sync.Mutex
	workspaces []compositor.WorkspaceData
	active     *compositor.WorkspaceData
	monitors   compositor.MonitorSnapshot
	clients    []compositor.Client
	layout     string
	errs       map[Op]error
	calls      map[Op]int
	dispatched []compositor.Command
	stream     *Stream
}

var _ compositor.Protocol = (*Protocol)(nil)

// New creates an empty fake compositor
func New() *Protocol {
	return &Protocol{
		errs:  make(map[Op]error),
		calls: make(map[Op]int),
	}
}

// SetWorkspaces replaces the live workspace list
func (p *Protocol) SetWorkspaces(ws ...compositor.WorkspaceData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workspaces = append([]compositor.WorkspaceData(nil), ws...)
}

// AddWorkspace appends a workspace to the live list
func (p *Protocol) AddWorkspace(ws compositor.WorkspaceData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workspaces = append(p.workspaces, ws)
}

// SetActive sets the workspace reported as focused; nil means none
func (p *Protocol) SetActive(ws *compositor.WorkspaceData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = ws
}

// SetMonitors replaces the monitor snapshot
func (p *Protocol) SetMonitors(m ...compositor.Monitor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitors = append(compositor.MonitorSnapshot(nil), m...)
}

// SetClients replaces the client list
func (p *Protocol) SetClients(c ...compositor.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients = append([]compositor.Client(nil), c...)
}

// SetLayout sets the active keyboard layout
func (p *Protocol) SetLayout(layout string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layout = layout
}

// Fail makes every following call of op return err; a nil err clears it
func (p *Protocol) Fail(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

// Calls returns how many times op was invoked
func (p *Protocol) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// ResetCalls zeroes all call counters
func (p *Protocol) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = make(map[Op]int)
}

// Dispatched returns the commands received so far
func (p *Protocol) Dispatched() []compositor.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]compositor.Command(nil), p.dispatched...)
}

// Stream returns the most recently opened event stream
func (p *Protocol) Stream() *Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

// Emit delivers ev on the open stream and waits until it has been handled
func (p *Protocol) Emit(ev compositor.Event) error {
	s := p.Stream()
	if s == nil {
		return fmt.Errorf("no event stream open")
	}
	return s.Emit(ev)
}

func (p *Protocol) enter(op Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	return p.errs[op]
}

func (p *Protocol) Name() string { return "fake" }

func (p *Protocol) Events(ctx context.Context) (compositor.EventStream, error) {
	if err := p.enter(OpEvents); err != nil {
		return nil, err
	}
	s := newStream()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	p.mu.Lock()
	p.stream = s
	p.mu.Unlock()
	return s, nil
}

func (p *Protocol) Workspaces() ([]compositor.WorkspaceData, error) {
	if err := p.enter(OpWorkspaces); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]compositor.WorkspaceData(nil), p.workspaces...), nil
}

func (p *Protocol) ActiveWorkspace() (*compositor.WorkspaceData, error) {
	if err := p.enter(OpActiveWorkspace); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil, nil
	}
	ws := *p.active
	return &ws, nil
}

func (p *Protocol) Monitors() (compositor.MonitorSnapshot, error) {
	if err := p.enter(OpMonitors); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(compositor.MonitorSnapshot(nil), p.monitors...), nil
}

func (p *Protocol) Clients() ([]compositor.Client, error) {
	if err := p.enter(OpClients); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]compositor.Client(nil), p.clients...), nil
}

func (p *Protocol) KeyboardLayout() (string, error) {
	if err := p.enter(OpKeyboardLayout); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layout, nil
}

func (p *Protocol) Dispatch(cmd compositor.Command) error {
	err := p.enter(OpDispatch)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatched = append(p.dispatched, cmd)
	return err
}

func (p *Protocol) Close() error {
	if s := p.Stream(); s != nil {
		return s.Close()
	}
	return nil
}

// Stream is a synchronous event stream. Emit returns only after the consumer
// has finished with the event and asked for the next one.
type Stream struct {
	events  chan compositor.Event
	handled chan struct{}
	failure chan error
	done    chan struct{}
	once    sync.Once

	// touched only by the consuming goroutine
	pending bool
}

func newStream() *Stream {
	return &Stream{
		events:  make(chan compositor.Event),
		handled: make(chan struct{}),
		failure: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *Stream) Next() (compositor.Event, error) {
	if s.pending {
		s.pending = false
		select {
		case s.handled <- struct{}{}:
		case <-s.done:
			return nil, compositor.ErrStreamClosed
		}
	}

	select {
	case ev := <-s.events:
		s.pending = true
		return ev, nil
	case err := <-s.failure:
		return nil, err
	case <-s.done:
		return nil, compositor.ErrStreamClosed
	}
}

// Emit hands ev to the consumer and waits until it has been handled
func (s *Stream) Emit(ev compositor.Event) error {
	timeout := time.NewTimer(EmitTimeout)
	defer timeout.Stop()

	select {
	case s.events <- ev:
	case <-s.done:
		return compositor.ErrStreamClosed
	case <-timeout.C:
		return fmt.Errorf("event %T not consumed within %v", ev, EmitTimeout)
	}

	select {
	case <-s.handled:
		return nil
	case <-s.done:
		return nil
	case <-timeout.C:
		return fmt.Errorf("event %T not handled within %v", ev, EmitTimeout)
	}
}

// Break makes the pending or next Next call return err
func (s *Stream) Break(err error) {
	select {
	case s.failure <- err:
	default:
	}
}

func (s *Stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
