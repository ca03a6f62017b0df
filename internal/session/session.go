// Package session owns one note's in-memory state and reconciles it with
// durable storage through a debounced read-merge-write cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/steno/notes/internal/transcript"
)

var (
	// ErrNotFound is returned when the durable store has no row for an id.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by UpsertSession when the stored version no
	// longer matches the version the write was based on.
	ErrConflict = errors.New("session version conflict")
)

// Session is the note/meeting aggregate.
type Session struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	PreMeetingMemoHTML string            `json:"pre_meeting_memo_html"`
	RawMemoHTML        string            `json:"raw_memo_html"`
	EnhancedMemoHTML   string            `json:"enhanced_memo_html"`
	RecordStart        *time.Time        `json:"record_start"`
	RecordEnd          *time.Time        `json:"record_end"`
	Words              []transcript.Word `json:"words"`
	CreatedAt          time.Time         `json:"created_at"`
	// Version counts durable writes to the row. Every writer bumps it.
	Version int64 `json:"version"`
}

// Summary is a session row without its transcript, for listings.
type Summary struct {
	ID          string
	Title       string
	CreatedAt   time.Time
	RecordStart *time.Time
	RecordEnd   *time.Time
	WordCount   int
}

// Repository is the durable session store.
type Repository interface {
	// GetSession returns nil, nil when no row exists for id.
	GetSession(ctx context.Context, id string) (*Session, error)
	// UpsertSession persists s as the canonical state for s.ID. It fails
	// with ErrConflict unless s.Version equals the stored version (0 for a
	// new row).
	UpsertSession(ctx context.Context, s Session) error
}

// TranscriptWriter is the transcript write path, separate from the
// debounced note path.
type TranscriptWriter interface {
	AppendWords(ctx context.Context, id string, words []transcript.Word) error
	ReplaceWords(ctx context.Context, id string, words []transcript.Word) error
}

// RecordWriter stores the recording window.
type RecordWriter interface {
	SetRecordStart(ctx context.Context, id string, t time.Time) error
	SetRecordEnd(ctx context.Context, id string, t time.Time) error
}

// Lister lists stored sessions, newest first.
type Lister interface {
	ListSessions(ctx context.Context) ([]Summary, error)
}

// Backend is everything a storage driver provides.
type Backend interface {
	Repository
	TranscriptWriter
	RecordWriter
	Lister
	Close() error
}

// Merge composes the record written for id. Title and memo fields come
// from next. The recording window and words always come from durable when
// a durable row exists: the recorder owns them and this path never writes
// them. Without a durable row the window is taken from next.
func Merge(id string, durable *Session, next Session) Session {
	merged := Session{
		ID:                 id,
		Title:              next.Title,
		PreMeetingMemoHTML: next.PreMeetingMemoHTML,
		RawMemoHTML:        next.RawMemoHTML,
		EnhancedMemoHTML:   next.EnhancedMemoHTML,
		RecordStart:        next.RecordStart,
		RecordEnd:          next.RecordEnd,
		CreatedAt:          next.CreatedAt,
	}
	if durable == nil {
		return merged
	}
	merged.RecordStart = durable.RecordStart
	merged.RecordEnd = durable.RecordEnd
	if !durable.CreatedAt.IsZero() {
		merged.CreatedAt = durable.CreatedAt
	}
	merged.Words = durable.Words
	merged.Version = durable.Version
	return merged
}

// Create stores a new, empty session. It fails with ErrConflict if id is
// already taken.
func Create(ctx context.Context, repo Repository, id, title string) (*Session, error) {
	s := Session{ID: id, Title: title, CreatedAt: time.Now()}
	if err := repo.UpsertSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	return repo.GetSession(ctx, id)
}
