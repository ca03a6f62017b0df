package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

const (
	// DefaultDelay is the quiet period before a debounced write.
	DefaultDelay = 500 * time.Millisecond

	maxAttempts = 3
)

// Tab is the active editor tab.
type Tab string

const (
	TabNotes      Tab = "notes"
	TabTranscript Tab = "transcript"
)

// NoteView selects which memo the notes tab shows.
type NoteView string

const (
	ViewRaw        NoteView = "raw"
	ViewEnhanced   NoteView = "enhanced"
	ViewPreMeeting NoteView = "pre_meeting"
)

// Memo returns the memo HTML that v shows.
func (s Session) Memo(v NoteView) string {
	switch v {
	case ViewEnhanced:
		return s.EnhancedMemoHTML
	case ViewPreMeeting:
		return s.PreMeetingMemoHTML
	default:
		return s.RawMemoHTML
	}
}

// State is the store's in-memory state.
type State struct {
	Session Session
	Tab     Tab
	View    NoteView
}

// Options configures a Store.
type Options struct {
	// Delay is the debounce quiet period. Zero means DefaultDelay.
	Delay time.Duration
	// Logger receives persistence diagnostics. Nil discards them.
	Logger *log.Logger
	// OnError receives errors from debounced writes, which have no caller
	// left to return to. They are also returned by the next Flush.
	// OnError must not call back into the Store.
	OnError func(error)
}

// Store holds one session and persists it. Durable reads and writes made
// by a Store are serialized: at most one read-merge-write is in flight.
type Store struct {
	repo   Repository
	logger *log.Logger

	mu    sync.Mutex
	state State

	writeMu  sync.Mutex
	debounce *debouncer
}

// New wraps an already-loaded session.
func New(repo Repository, s Session, opts Options) *Store {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	st := &Store{
		repo:   repo,
		logger: opts.Logger,
		state:  State{Session: s, Tab: TabNotes, View: ViewRaw},
	}
	st.debounce = newDebouncer(opts.Delay, st.persist, opts.OnError)
	return st
}

// Open loads session id from repo. It never creates a session.
func Open(ctx context.Context, repo Repository, id string, opts Options) (*Store, error) {
	s, err := repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if s == nil {
		return nil, fmt.Errorf("load session %s: %w", id, ErrNotFound)
	}
	return New(repo, *s, opts), nil
}

// State returns a snapshot of the in-memory state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the in-memory session.
func (s *Store) Session() Session { return s.State().Session }

// SetTab switches the active tab.
func (s *Store) SetTab(t Tab) {
	s.mu.Lock()
	s.state.Tab = t
	s.mu.Unlock()
}

// SetView switches between the raw and enhanced memo.
func (s *Store) SetView(v NoteView) {
	s.mu.Lock()
	s.state.View = v
	s.mu.Unlock()
}

// UpdateTitle sets the title and schedules a write.
func (s *Store) UpdateTitle(ctx context.Context, title string) error {
	next := s.mutate(func(st *State) { st.Session.Title = title })
	return s.PersistSession(ctx, &next, false)
}

// UpdatePreMeetingNote sets the pre-meeting memo and schedules a write.
func (s *Store) UpdatePreMeetingNote(ctx context.Context, html string) error {
	next := s.mutate(func(st *State) { st.Session.PreMeetingMemoHTML = html })
	return s.PersistSession(ctx, &next, false)
}

// UpdateRawNote sets the raw memo and schedules a write.
func (s *Store) UpdateRawNote(ctx context.Context, html string) error {
	next := s.mutate(func(st *State) { st.Session.RawMemoHTML = html })
	return s.PersistSession(ctx, &next, false)
}

// UpdateEnhancedNote sets the enhanced memo, switches the view to it and
// schedules a write.
func (s *Store) UpdateEnhancedNote(ctx context.Context, html string) error {
	next := s.mutate(func(st *State) {
		st.Session.EnhancedMemoHTML = html
		st.View = ViewEnhanced
	})
	return s.PersistSession(ctx, &next, false)
}

// UpdateNote sets the memo that v shows.
func (s *Store) UpdateNote(ctx context.Context, v NoteView, html string) error {
	switch v {
	case ViewEnhanced:
		return s.UpdateEnhancedNote(ctx, html)
	case ViewPreMeeting:
		return s.UpdatePreMeetingNote(ctx, html)
	default:
		return s.UpdateRawNote(ctx, html)
	}
}

// mutate applies fn to the state and returns the resulting session.
func (s *Store) mutate(fn func(*State)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	s.state = next
	return next.Session
}

// PersistSession writes sess, or the in-memory session when sess is nil.
// Forced writes run immediately and return once the durable write
// completes. A forced write of the in-memory session supersedes any
// pending debounced write; a forced write of an explicit sess leaves it
// queued, since sess may predate edits the pending write carries. Other
// writes are coalesced and run after the quiet period.
func (s *Store) PersistSession(ctx context.Context, sess *Session, force bool) error {
	next := s.Session()
	if sess != nil {
		next = *sess
	}
	if !force {
		s.debounce.Call(next)
		return nil
	}
	if sess == nil {
		s.debounce.Cancel()
	}
	return s.persist(ctx, next)
}

// persist is the read-merge-write cycle. The id always comes from the
// in-memory state, never from next. A version conflict means another
// writer (the recorder) got in between the read and the write, so the
// cycle is retried against a fresh read.
func (s *Store) persist(ctx context.Context, next Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id := s.Session().ID
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.readMergeWrite(ctx, id, next)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		s.logger.Printf("session: write %s conflicted (attempt %d)", id, attempt)
	}
	return err
}

func (s *Store) readMergeWrite(ctx context.Context, id string, next Session) error {
	durable, err := s.repo.GetSession(ctx, id)
	if err != nil {
		s.logger.Printf("session: fetch %s failed: %v", id, err)
		return fmt.Errorf("fetch session %s: %w", id, err)
	}

	merged := Merge(id, durable, next)
	if err := s.repo.UpsertSession(ctx, merged); err != nil {
		if !errors.Is(err, ErrConflict) {
			s.logger.Printf("session: write %s failed: %v", id, err)
		}
		return fmt.Errorf("upsert session %s: %w", id, err)
	}
	s.logger.Printf("session: wrote %s (%d words kept)", id, len(merged.Words))
	return nil
}

// Pending reports whether a debounced write is waiting.
func (s *Store) Pending() bool { return s.debounce.Pending() }

// Flush runs any pending debounced write now and reports its error, or
// the last error from an earlier debounced write.
func (s *Store) Flush(ctx context.Context) error {
	return s.debounce.Flush(ctx)
}

// Close flushes pending work. The store stays usable.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}
