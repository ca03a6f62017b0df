package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jwulff/steno/notes/internal/db"
	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

func newTestApp(t *testing.T) (*App, *db.Store) {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, nil), store
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res.Content[0].(mcp.TextContent).Text, res.IsError
}

func seed(t *testing.T, store *db.Store) {
	t.Helper()
	err := store.UpsertSession(context.Background(), session.Session{
		ID:    "s1",
		Title: "Planning",
		Words: []transcript.Word{
			{Text: "ship", Speaker: transcript.Unassigned(0)},
			{Text: "it", Speaker: transcript.Unassigned(0)},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestListSessions(t *testing.T) {
	app, store := newTestApp(t)

	text, _ := call(t, app.listSessionsHandler, nil)
	if text != "No sessions found." {
		t.Errorf("empty list = %q", text)
	}

	seed(t, store)
	text, isErr := call(t, app.listSessionsHandler, nil)
	if isErr || !strings.Contains(text, "[s1] Planning") || !strings.Contains(text, "words: 2") {
		t.Errorf("list = %q", text)
	}
}

func TestGetSessionAndTranscript(t *testing.T) {
	app, store := newTestApp(t)
	seed(t, store)

	text, isErr := call(t, app.getSessionHandler, map[string]any{"id": "s1"})
	if isErr || !strings.HasPrefix(text, "# Planning") {
		t.Errorf("get_session = %q", text)
	}

	text, isErr = call(t, app.getTranscriptHandler, map[string]any{"id": "s1"})
	if isErr || text != "Speaker 1: ship it\n\n" {
		t.Errorf("get_transcript = %q", text)
	}

	if _, isErr := call(t, app.getSessionHandler, map[string]any{"id": "nope"}); !isErr {
		t.Error("missing session should be a tool error")
	}
	if _, isErr := call(t, app.getTranscriptHandler, map[string]any{}); !isErr {
		t.Error("missing id should be a tool error")
	}
}

func TestUpdatesKeepTranscript(t *testing.T) {
	app, store := newTestApp(t)
	seed(t, store)

	if text, isErr := call(t, app.updateTitleHandler, map[string]any{"id": "s1", "title": " Roadmap "}); isErr {
		t.Fatalf("update_title: %s", text)
	}
	if text, isErr := call(t, app.updateEnhancedNoteHandler, map[string]any{"id": "s1", "html": "<p>summary</p>"}); isErr {
		t.Fatalf("update_enhanced_note: %s", text)
	}

	got, err := store.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "Roadmap" {
		t.Errorf("title = %q", got.Title)
	}
	if got.EnhancedMemoHTML != "<p>summary</p>" {
		t.Errorf("enhanced = %q", got.EnhancedMemoHTML)
	}
	if len(got.Words) != 2 {
		t.Errorf("words = %d, want transcript untouched", len(got.Words))
	}

	if _, isErr := call(t, app.updateTitleHandler, map[string]any{"id": "nope", "title": "x"}); !isErr {
		t.Error("update of missing session should be a tool error")
	}
	if _, isErr := call(t, app.updateEnhancedNoteHandler, map[string]any{"id": "s1"}); !isErr {
		t.Error("missing html should be a tool error")
	}
}

func TestCreateSession(t *testing.T) {
	app, store := newTestApp(t)

	text, isErr := call(t, app.createSessionHandler, map[string]any{"title": "Kickoff"})
	if isErr {
		t.Fatalf("create_session: %s", text)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(text, "Created session "), ".")

	got, err := store.GetSession(context.Background(), id)
	if err != nil || got == nil {
		t.Fatalf("GetSession(%q) = %v, %v", id, got, err)
	}
	if got.Title != "Kickoff" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestServerRegistersTools(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Server() == nil {
		t.Fatal("Server returned nil")
	}
}
