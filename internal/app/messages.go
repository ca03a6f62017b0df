package app

import "github.com/jwulff/steno/notes/internal/daemon"

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, status)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Response daemon.Response
}

// StartResponseMsg carries the response to a start command.
type StartResponseMsg struct {
	Response daemon.Response
}

// StopResponseMsg carries the response to a stop command.
type StopResponseMsg struct {
	Response daemon.Response
}

// PersistErrorMsg reports a failed note write.
type PersistErrorMsg struct {
	Err error
}

// TranscriptWrittenMsg reports the outcome of a queued transcript write.
// Saved is set for an explicit save of the edited transcript.
type TranscriptWrittenMsg struct {
	Saved bool
	Err   error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
