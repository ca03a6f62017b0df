// Package daemon provides the client and protocol types for talking to the
// transcription daemon over a Unix socket using NDJSON.
package daemon

import "github.com/jwulff/steno/notes/internal/transcript"

// Command names.
const (
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdStatus    = "status"
	CmdSubscribe = "subscribe"
)

// Event names.
const (
	EventWord    = "word"
	EventPartial = "partial"
	EventStatus  = "status"
	EventError   = "error"
	EventLevel   = "level"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd       string   `json:"cmd"`
	SessionID string   `json:"sessionId,omitempty"`
	Locale    string   `json:"locale,omitempty"`
	Device    string   `json:"device,omitempty"`
	Events    []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
	Words     *int   `json:"words,omitempty"`
	Error     string `json:"error,omitempty"`
	Status    string `json:"status,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
//
// A word event carries newly committed words; a partial event carries the
// provisional tail that the next word event will replace. At is the event
// time in unix seconds.
type Event struct {
	Event     string            `json:"event"`
	SessionID string            `json:"sessionId,omitempty"`
	Words     []transcript.Word `json:"words,omitempty"`
	Mic       *float32          `json:"mic,omitempty"`
	Recording *bool             `json:"recording,omitempty"`
	At        *float64          `json:"at,omitempty"`
	Message   string            `json:"message,omitempty"`
	Transient *bool             `json:"transient,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building events.
func BoolPtr(b bool) *bool { return &b }
