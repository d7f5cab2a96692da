package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/actionsum/wsbridge/internal/bridge"
	"github.com/actionsum/wsbridge/internal/database"
	"github.com/actionsum/wsbridge/internal/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Error log kinds
const (
	KindWorkspace = "workspace"
	KindClient    = "client"
	KindDispatch  = "dispatch"
	KindQuery     = "query"
	KindJournal   = "journal"
)

const errorQueueSize = 64

// ErrorSink persists errors reported by the bridge. Report never blocks the
// bridge: when the queue is full the error is only logged.
type ErrorSink struct {
	repo   *database.Repository
	logger *logrus.Entry
	queue  chan models.ErrorLog

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

var _ bridge.ErrorReporter = (*ErrorSink)(nil)

// NewErrorSink starts the writer goroutine. It exits when ctx is done or
// Close is called, after draining what was queued.
func NewErrorSink(ctx context.Context, repo *database.Repository, logger *logrus.Entry) *ErrorSink {
	s := &ErrorSink{
		repo:    repo,
		logger:  logger,
		queue:   make(chan models.ErrorLog, errorQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Classify maps a reported error to an error log kind
func Classify(err error) string {
	switch {
	case errors.Is(err, bridge.ErrWorkspaceNotFound), errors.Is(err, bridge.ErrMissingWorkspaceName):
		return KindWorkspace
	case errors.Is(err, bridge.ErrClientNotFound):
		return KindClient
	case errors.Is(err, bridge.ErrDispatchFailed):
		return KindDispatch
	default:
		return KindQuery
	}
}

func (s *ErrorSink) Report(err error) {
	entry := models.ErrorLog{
		Timestamp: time.Now(),
		Kind:      Classify(err),
		ErrorMsg:  err.Error(),
	}

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- entry:
	default:
		s.logger.WithError(err).Warn("Error log queue full, not persisting")
	}
}

// Close stops the writer and waits until queued entries are flushed
func (s *ErrorSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *ErrorSink) run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case entry := <-s.queue:
			s.store(entry)
		case <-ctx.Done():
			s.drain()
			return
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *ErrorSink) drain() {
	for {
		select {
		case entry := <-s.queue:
			s.store(entry)
		default:
			return
		}
	}
}

func (s *ErrorSink) store(entry models.ErrorLog) {
	if err := s.repo.CreateErrorLog(&entry); err != nil {
		s.logger.WithError(err).WithField("original_error", entry.ErrorMsg).Error("Failed to store error in database")
	}
}
