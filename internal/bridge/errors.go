package bridge

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrWorkspaceNotFound means a workspace named by an event is not in the live snapshot
	ErrWorkspaceNotFound = errors.New("unable to locate workspace")

	// ErrMissingWorkspaceName means a monitor focus event did not name its workspace
	ErrMissingWorkspaceName = errors.New("monitor event has no workspace name")

	// ErrClientNotFound means an urgency event referenced an unknown client address
	ErrClientNotFound = errors.New("unable to locate client")

	// ErrDispatchFailed means the compositor rejected a command
	ErrDispatchFailed = errors.New("dispatch failed")
)

// ErrorReporter receives recoverable errors. Reports are diagnostics only;
// the event or command that caused them has already been dropped.
type ErrorReporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to ErrorReporter
type ReporterFunc func(err error)

// Report calls f(err)
func (f ReporterFunc) Report(err error) {
	f(err)
}

func dispatchError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDispatchFailed, what, err)
}
