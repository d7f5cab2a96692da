// Package tracker journals workspace focus to the database. It is an
// ordinary bridge subscriber: every Focus update closes the running span and
// opens the next one.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/actionsum/wsbridge/internal/broadcast"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/models"
	"github.com/actionsum/wsbridge/pkg/compositor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultFlushInterval = 30 * time.Second

// WorkspaceSource provides workspace update subscriptions
type WorkspaceSource interface {
	SubscribeWorkspaces() (*broadcast.Subscription[compositor.WorkspaceUpdate], error)
}

type Service struct {
	source     WorkspaceSource
	repo       *database.Repository
	compositor string
	logger     *logrus.Entry
	flush      time.Duration
	now        func() time.Time

	mu       sync.Mutex
	current  *models.FocusSpan
	running  bool
	stopChan chan struct{}
}

// Option configures a Service
type Option func(*Service)

// WithFlushInterval sets how often the open span's duration is saved
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flush = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger entry
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(source WorkspaceSource, repo *database.Repository, compositorName string, opts ...Option) *Service {
	s := &Service{
		source:     source,
		repo:       repo,
		compositor: compositorName,
		logger:     logrus.NewEntry(logrus.StandardLogger()),
		flush:      defaultFlushInterval,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start journals focus changes until ctx is done, Stop is called or the
// bridge closes the subscription
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("tracker is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.closeSpan()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	sub, err := s.source.SubscribeWorkspaces()
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to workspace updates")
	}
	defer sub.Close()

	s.logger.WithField("flush_interval", s.flush).Info("Starting focus journal")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.flush)
	defer ticker.Stop()

	updates := make(chan compositor.WorkspaceUpdate)
	recvErr := make(chan error, 1)
	go func() {
		for {
			u, err := sub.Recv(ctx)
			if err != nil {
				if broadcast.IsLagged(err) {
					s.logger.WithError(err).Warn("Focus journal fell behind, spans may be merged")
					continue
				}
				recvErr <- err
				return
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			select {
			case <-s.stopChan:
				s.logger.Info("Focus journal stopped")
				return nil
			default:
			}
			s.logger.Info("Focus journal stopped by context")
			return ctx.Err()

		case err := <-recvErr:
			if errors.Is(err, broadcast.ErrClosed) {
				s.logger.Info("Workspace updates closed, stopping focus journal")
				return nil
			}
			if ctx.Err() != nil {
				continue
			}
			return err

		case <-ticker.C:
			s.flushSpan()

		case u := <-updates:
			s.apply(u)
		}
	}
}

// Stop ends a running Start
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		select {
		case <-s.stopChan:
		default:
			close(s.stopChan)
		}
	}
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Current returns a copy of the open span, or nil
func (s *Service) Current() *models.FocusSpan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	span := *s.current
	span.Duration = s.elapsed(&span)
	return &span
}

func (s *Service) apply(u compositor.WorkspaceUpdate) {
	switch u := u.(type) {
	case compositor.InitUpdate:
		for _, ws := range u.Workspaces {
			if ws.Visibility.IsFocused() {
				s.openSpan(ws)
				return
			}
		}
	case compositor.FocusUpdate:
		s.closeSpan()
		s.openSpan(u.New)
	case compositor.RemoveUpdate:
		s.mu.Lock()
		gone := s.current != nil && s.current.WorkspaceID == u.ID
		s.mu.Unlock()
		if gone {
			s.closeSpan()
		}
	}
}

func (s *Service) openSpan(ws compositor.Workspace) {
	span := &models.FocusSpan{
		Timestamp:     s.now(),
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
		Monitor:       ws.Monitor,
		Compositor:    s.compositor,
	}

	if err := s.repo.CreateSpan(span); err != nil {
		s.storeError(errors.Wrap(err, "failed to save focus span"))
		return
	}

	s.mu.Lock()
	s.current = span
	s.mu.Unlock()

	s.logger.WithField("workspace", ws.Name).WithField("monitor", ws.Monitor).Debug("Opened focus span")
}

func (s *Service) closeSpan() {
	s.mu.Lock()
	span := s.current
	s.current = nil
	s.mu.Unlock()

	if span == nil {
		return
	}
	duration := s.elapsed(span)
	if err := s.repo.UpdateDuration(span.ID, duration); err != nil {
		s.storeError(errors.Wrap(err, "failed to close focus span"))
		return
	}
	s.logger.WithField("workspace", span.WorkspaceName).WithField("seconds", duration).Debug("Closed focus span")
}

func (s *Service) flushSpan() {
	s.mu.Lock()
	span := s.current
	s.mu.Unlock()

	if span == nil {
		return
	}
	if err := s.repo.UpdateDuration(span.ID, s.elapsed(span)); err != nil {
		s.storeError(errors.Wrap(err, "failed to flush focus span"))
	}
}

func (s *Service) elapsed(span *models.FocusSpan) int64 {
	return int64(s.now().Sub(span.Timestamp) / time.Second)
}

func (s *Service) storeError(err error) {
	errorLog := &models.ErrorLog{
		Timestamp: s.now(),
		Kind:      KindJournal,
		ErrorMsg:  err.Error(),
	}

	if dbErr := s.repo.CreateErrorLog(errorLog); dbErr != nil {
		s.logger.WithError(dbErr).WithField("original_error", err.Error()).Error("Failed to store error in database")
	} else {
		s.logger.WithError(err).Warn("Error logged to database")
	}
}
