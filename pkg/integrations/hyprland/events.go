package hyprland

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type eventStream struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *logrus.Entry

	once   sync.Once
	closed chan struct{}
}

func newEventStream(ctx context.Context, conn net.Conn, logger *logrus.Entry) *eventStream {
	s := &eventStream{
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: logger,
		closed: make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.closed:
		}
	}()

	return s
}

// Next blocks until an event the bridge understands arrives. Other events
// and malformed lines are skipped.
func (s *eventStream) Next() (compositor.Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			select {
			case <-s.closed:
				return nil, compositor.ErrStreamClosed
			default:
			}
			return nil, errors.Wrap(err, "failed to read hyprland event")
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		ev, err := ParseEvent(line)
		if err != nil {
			s.logger.WithError(err).WithField("line", line).Warn("Skipping malformed event")
			continue
		}
		if ev == nil {
			continue
		}
		return ev, nil
	}
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

// ParseEvent decodes one "name>>data" line. Events the bridge does not
// consume yield a nil event and no error.
func ParseEvent(line string) (compositor.Event, error) {
	name, data, ok := strings.Cut(line, ">>")
	if !ok {
		return nil, errors.Errorf("missing separator in %q", line)
	}

	switch name {
	case "createworkspacev2":
		_, wsName, err := splitIDName(data)
		if err != nil {
			return nil, err
		}
		return compositor.WorkspaceAdded{Name: wsName}, nil

	case "workspacev2":
		_, wsName, err := splitIDName(data)
		if err != nil {
			return nil, err
		}
		return compositor.WorkspaceChanged{Name: wsName}, nil

	case "focusedmon":
		monitor, wsName, ok := strings.Cut(data, ",")
		if !ok {
			return nil, errors.Errorf("focusedmon: malformed data %q", data)
		}
		ev := compositor.ActiveMonitorChanged{Monitor: monitor}
		if wsName != "" {
			ev.WorkspaceName = &wsName
		}
		return ev, nil

	case "moveworkspacev2":
		// id,name,monitor where the name itself may contain commas
		i := strings.LastIndex(data, ",")
		if i < 0 {
			return nil, errors.Errorf("moveworkspacev2: malformed data %q", data)
		}
		_, wsName, err := splitIDName(data[:i])
		if err != nil {
			return nil, err
		}
		return compositor.WorkspaceMoved{Name: wsName, Monitor: data[i+1:]}, nil

	case "renameworkspace":
		id, wsName, err := splitIDName(data)
		if err != nil {
			return nil, err
		}
		return compositor.WorkspaceRenamed{ID: id, Name: wsName}, nil

	case "destroyworkspacev2":
		id, _, err := splitIDName(data)
		if err != nil {
			return nil, err
		}
		return compositor.WorkspaceDeleted{ID: id}, nil

	case "urgent":
		if data == "" {
			return nil, errors.New("urgent: empty address")
		}
		return compositor.UrgentStateChanged{Address: data}, nil

	case "activelayout":
		keyboard, layout, ok := strings.Cut(data, ",")
		if !ok {
			return nil, errors.Errorf("activelayout: malformed data %q", data)
		}
		return compositor.LayoutChanged{Keyboard: keyboard, Layout: layout}, nil
	}

	return nil, nil
}

func splitIDName(data string) (int64, string, error) {
	rawID, name, ok := strings.Cut(data, ",")
	if !ok {
		return 0, "", errors.Errorf("expected id,name in %q", data)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return 0, "", errors.Wrapf(err, "invalid workspace id %q", rawID)
	}
	return id, name, nil
}
