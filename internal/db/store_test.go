package db

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

// createTestDB opens an in-memory database with the notes schema.
func createTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSession(t *testing.T, store *Store, sess session.Session) {
	t.Helper()
	if err := store.UpsertSession(context.Background(), sess); err != nil {
		t.Fatalf("seed %s: %v", sess.ID, err)
	}
}

func sampleWords() []transcript.Word {
	return []transcript.Word{
		{Text: "hello", Speaker: transcript.Unassigned(0), Confidence: transcript.Float(0.9), StartMS: transcript.Ms(0), EndMS: transcript.Ms(400)},
		{Text: "there", Speaker: transcript.Unassigned(0), StartMS: transcript.Ms(400), EndMS: transcript.Ms(800)},
		{Text: "hi", Speaker: transcript.Assigned("p-1", "Ada")},
		{Text: "anyone"},
	}
}

func TestGetSessionMissing(t *testing.T) {
	store := createTestDB(t)

	sess, err := store.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil, got %+v", sess)
	}
}

func TestUpsertRoundTrip(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	created := time.Unix(1700000000, 0)
	start := time.Unix(1700000100, 0)
	seedSession(t, store, session.Session{
		ID:                 "sess-1",
		Title:              "Standup",
		PreMeetingMemoHTML: "<p>agenda</p>",
		RawMemoHTML:        "<p>raw</p>",
		EnhancedMemoHTML:   "<p>enhanced</p>",
		RecordStart:        &start,
		Words:              sampleWords(),
		CreatedAt:          created,
	})

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "Standup" || got.RawMemoHTML != "<p>raw</p>" || got.EnhancedMemoHTML != "<p>enhanced</p>" {
		t.Errorf("fields = %+v", got)
	}
	if got.PreMeetingMemoHTML != "<p>agenda</p>" {
		t.Errorf("pre-meeting memo = %q", got.PreMeetingMemoHTML)
	}
	if got.RecordStart == nil || !got.RecordStart.Equal(start) {
		t.Errorf("record_start = %v, want %v", got.RecordStart, start)
	}
	if got.RecordEnd != nil {
		t.Errorf("record_end = %v, want nil", got.RecordEnd)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if !reflect.DeepEqual(got.Words, sampleWords()) {
		t.Errorf("words = %+v, want %+v", got.Words, sampleWords())
	}
}

func TestUpsertVersionCheck(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	seedSession(t, store, session.Session{ID: "sess-1", Title: "v1"})

	// A second create of the same id is stale.
	err := store.UpsertSession(ctx, session.Session{ID: "sess-1", Title: "again"})
	if !errors.Is(err, session.ErrConflict) {
		t.Fatalf("create over existing = %v, want ErrConflict", err)
	}

	if err := store.UpsertSession(ctx, session.Session{ID: "sess-1", Title: "v2", Version: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetSession(ctx, "sess-1")
	if got.Title != "v2" || got.Version != 2 {
		t.Errorf("after update = %q v%d, want v2 v2", got.Title, got.Version)
	}

	if err := store.UpsertSession(ctx, session.Session{ID: "sess-1", Title: "late", Version: 1}); !errors.Is(err, session.ErrConflict) {
		t.Errorf("stale update = %v, want ErrConflict", err)
	}
	if err := store.UpsertSession(ctx, session.Session{ID: "gone", Version: 3}); !errors.Is(err, session.ErrConflict) {
		t.Errorf("update of missing row = %v, want ErrConflict", err)
	}
}

func TestUpsertRejectsInvalidWords(t *testing.T) {
	store := createTestDB(t)

	err := store.UpsertSession(context.Background(), session.Session{
		ID:    "sess-1",
		Words: []transcript.Word{{Text: "  "}},
	})
	if !errors.Is(err, transcript.ErrInvalidWord) {
		t.Fatalf("err = %v, want ErrInvalidWord", err)
	}
	if sess, _ := store.GetSession(context.Background(), "sess-1"); sess != nil {
		t.Error("invalid upsert should not create a row")
	}
}

func TestAppendAndReplaceWords(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	seedSession(t, store, session.Session{ID: "sess-1", Words: sampleWords()[:1]})

	if err := store.AppendWords(ctx, "sess-1", sampleWords()[1:]); err != nil {
		t.Fatalf("AppendWords: %v", err)
	}
	got, _ := store.GetSession(ctx, "sess-1")
	if !reflect.DeepEqual(got.Words, sampleWords()) {
		t.Errorf("after append = %+v", got.Words)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}

	replacement := []transcript.Word{{Text: "edited", Speaker: transcript.Unassigned(2)}}
	if err := store.ReplaceWords(ctx, "sess-1", replacement); err != nil {
		t.Fatalf("ReplaceWords: %v", err)
	}
	got, _ = store.GetSession(ctx, "sess-1")
	if !reflect.DeepEqual(got.Words, replacement) {
		t.Errorf("after replace = %+v", got.Words)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}

	if err := store.AppendWords(ctx, "missing", replacement); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("append to missing = %v, want ErrNotFound", err)
	}
	if err := store.ReplaceWords(ctx, "missing", nil); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("replace on missing = %v, want ErrNotFound", err)
	}
}

func TestRecordWindow(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	seedSession(t, store, session.Session{ID: "sess-1"})

	start := time.Unix(1700000000, 0)
	end := start.Add(90 * time.Second)
	if err := store.SetRecordStart(ctx, "sess-1", start); err != nil {
		t.Fatalf("SetRecordStart: %v", err)
	}
	if err := store.SetRecordEnd(ctx, "sess-1", end); err != nil {
		t.Fatalf("SetRecordEnd: %v", err)
	}

	got, _ := store.GetSession(ctx, "sess-1")
	if got.RecordStart == nil || !got.RecordStart.Equal(start) {
		t.Errorf("record_start = %v, want %v", got.RecordStart, start)
	}
	if got.RecordEnd == nil || !got.RecordEnd.Equal(end) {
		t.Errorf("record_end = %v, want %v", got.RecordEnd, end)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}

	if err := store.SetRecordEnd(ctx, "missing", end); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSessions(t *testing.T) {
	store := createTestDB(t)
	now := time.Unix(1700000000, 0)

	seedSession(t, store, session.Session{ID: "sess-old", Title: "Old", CreatedAt: now.Add(-time.Hour), Words: sampleWords()})
	seedSession(t, store, session.Session{ID: "sess-new", Title: "New", CreatedAt: now})

	list, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d sessions, want 2", len(list))
	}
	if list[0].ID != "sess-new" || list[1].ID != "sess-old" {
		t.Errorf("order = %s, %s; want newest first", list[0].ID, list[1].ID)
	}
	if list[1].WordCount != 4 {
		t.Errorf("word count = %d, want 4", list[1].WordCount)
	}
}

// The session store's merge cycle runs against SQLite and keeps words a
// concurrent writer appended.
func TestSessionStoreOverSQLite(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	seedSession(t, store, session.Session{ID: "sess-1", Title: "draft"})

	notes, err := session.Open(ctx, store, "sess-1", session.Options{Delay: time.Hour})
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	if err := notes.UpdateTitle(ctx, "final"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if err := store.AppendWords(ctx, "sess-1", sampleWords()); err != nil {
		t.Fatalf("AppendWords: %v", err)
	}
	if err := notes.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, _ := store.GetSession(ctx, "sess-1")
	if got.Title != "final" {
		t.Errorf("title = %q, want final", got.Title)
	}
	if len(got.Words) != 4 {
		t.Errorf("words = %d, want the 4 appended", len(got.Words))
	}
}
