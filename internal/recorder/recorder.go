// Package recorder writes the daemon's word stream and recording window
// into a stored session.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jwulff/steno/notes/internal/daemon"
	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

// Writer is the durable side the recorder writes to.
type Writer interface {
	session.TranscriptWriter
	session.RecordWriter
}

// EventSource yields daemon events. Close must unblock ReadEvent.
type EventSource interface {
	ReadEvent() (daemon.Event, error)
	Close() error
}

// Recorder applies daemon events for one session.
type Recorder struct {
	w         Writer
	sessionID string
	logger    *log.Logger
	now       func() time.Time
}

// New returns a recorder for sessionID. A nil logger discards output.
func New(w Writer, sessionID string, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Recorder{w: w, sessionID: sessionID, logger: logger, now: time.Now}
}

// Handle applies ev. Events for other sessions are ignored, as are events
// that carry nothing durable (partials, levels).
func (r *Recorder) Handle(ctx context.Context, ev daemon.Event) error {
	if ev.SessionID != "" && ev.SessionID != r.sessionID {
		return nil
	}

	switch ev.Event {
	case daemon.EventWord:
		words := r.committable(ev.Words)
		if len(words) == 0 {
			return nil
		}
		if err := r.w.AppendWords(ctx, r.sessionID, words); err != nil {
			return fmt.Errorf("append words: %w", err)
		}

	case daemon.EventStatus:
		if ev.Recording == nil {
			return nil
		}
		at := r.eventTime(ev)
		if *ev.Recording {
			if err := r.w.SetRecordStart(ctx, r.sessionID, at); err != nil {
				return fmt.Errorf("set record start: %w", err)
			}
			r.logger.Printf("recorder: %s started at %s", r.sessionID, at.Format(time.RFC3339))
		} else {
			if err := r.w.SetRecordEnd(ctx, r.sessionID, at); err != nil {
				return fmt.Errorf("set record end: %w", err)
			}
			r.logger.Printf("recorder: %s stopped at %s", r.sessionID, at.Format(time.RFC3339))
		}

	case daemon.EventError:
		r.logger.Printf("recorder: daemon error: %s", ev.Message)
	}
	return nil
}

// committable drops words the store would reject, so one bad word does
// not lose the rest of its batch.
func (r *Recorder) committable(words []transcript.Word) []transcript.Word {
	out := make([]transcript.Word, 0, len(words))
	for _, w := range words {
		if err := w.Validate(); err != nil {
			r.logger.Printf("recorder: dropping word %q: %v", w.Text, err)
			continue
		}
		out = append(out, w)
	}
	return out
}

func (r *Recorder) eventTime(ev daemon.Event) time.Time {
	if ev.At == nil {
		return r.now()
	}
	sec := int64(*ev.At)
	nsec := int64((*ev.At - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Run handles events from src until ctx is cancelled or the daemon hangs
// up, both of which return nil. Storage errors stop the loop.
func (r *Recorder) Run(ctx context.Context, src EventSource) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			src.Close()
		case <-done:
		}
	}()

	for {
		ev, err := src.ReadEvent()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, daemon.ErrClosed) {
				return nil
			}
			return err
		}
		if err := r.Handle(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Printf("recorder: %v", err)
			return err
		}
	}
}
