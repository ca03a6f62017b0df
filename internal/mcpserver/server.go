// Package mcpserver exposes stored sessions to assistants as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jwulff/steno/notes/internal/export"
	"github.com/jwulff/steno/notes/internal/session"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Backend is the storage the tools read and write.
type Backend interface {
	session.Repository
	session.Lister
}

// App holds the tool handlers.
type App struct {
	backend Backend
	logger  *log.Logger
}

// New returns handlers over backend. A nil logger discards output.
func New(backend Backend, logger *log.Logger) *App {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &App{backend: backend, logger: logger}
}

// Server registers every tool on a new MCP server.
func (a *App) Server() *server.MCPServer {
	s := server.NewMCPServer("steno-notes", Version)

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("Lists stored notes, newest first, with their ids."),
	), a.listSessionsHandler)

	s.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Returns a note as Markdown: title, notes and transcript."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
	), a.getSessionHandler)

	s.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Returns only the speaker-grouped transcript of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
	), a.getTranscriptHandler)

	s.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Creates an empty note and returns its id."),
		mcp.WithString("title", mcp.Description("Optional title")),
	), a.createSessionHandler)

	s.AddTool(mcp.NewTool("update_title",
		mcp.WithDescription("Renames a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
	), a.updateTitleHandler)

	s.AddTool(mcp.NewTool("update_enhanced_note",
		mcp.WithDescription("Replaces the enhanced (AI-written) notes of a note with HTML."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("html", mcp.Required(), mcp.Description("Enhanced notes as HTML")),
	), a.updateEnhancedNoteHandler)

	return s
}

// ServeStdio serves the tools over stdin/stdout until the client leaves.
func (a *App) ServeStdio() error {
	a.logger.Printf("mcp: serving on stdio")
	return server.ServeStdio(a.Server())
}

func (a *App) listSessionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := a.backend.ListSessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No sessions found."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sessions (%d total):\n\n", len(list)))
	for _, s := range list {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", s.ID, title))
		sb.WriteString(fmt.Sprintf("  Created: %s, words: %d\n", s.CreatedAt.Format("2006-01-02 15:04"), s.WordCount))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (a *App) getSessionHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := a.lookup(ctx, request)
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(export.RenderMarkdown(*sess)), nil
}

func (a *App) getTranscriptHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := a.lookup(ctx, request)
	if res != nil {
		return res, nil
	}
	if len(sess.Words) == 0 {
		return mcp.NewToolResultText("No transcript yet."), nil
	}
	return mcp.NewToolResultText(export.RenderTranscript(sess.Words)), nil
}

// lookup loads the session named by the id argument, or returns the
// error result to send instead.
func (a *App) lookup(ctx context.Context, request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	args, _ := request.Params.Arguments.(map[string]any)
	id, _ := args["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, mcp.NewToolResultError("id is required")
	}
	sess, err := a.backend.GetSession(ctx, id)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to load session: %v", err))
	}
	if sess == nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Session %q not found", id))
	}
	return sess, nil
}

func (a *App) createSessionHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	title, _ := args["title"].(string)

	sess, err := session.Create(ctx, a.backend, uuid.NewString(), strings.TrimSpace(title))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create session: %v", err)), nil
	}
	a.logger.Printf("mcp: created %s", sess.ID)
	return mcp.NewToolResultText(fmt.Sprintf("Created session %s.", sess.ID)), nil
}

func (a *App) updateTitleHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	title, ok := args["title"].(string)
	if !ok {
		return mcp.NewToolResultError("title is required and must be a string"), nil
	}
	return a.edit(ctx, request, func(st *session.Store) error {
		return st.UpdateTitle(ctx, strings.TrimSpace(title))
	})
}

func (a *App) updateEnhancedNoteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	html, ok := args["html"].(string)
	if !ok {
		return mcp.NewToolResultError("html is required and must be a string"), nil
	}
	return a.edit(ctx, request, func(st *session.Store) error {
		return st.UpdateEnhancedNote(ctx, html)
	})
}

// edit opens the session through a Store, so the change goes through the
// same merge as the editor's. Nothing fires before Close flushes it.
func (a *App) edit(ctx context.Context, request mcp.CallToolRequest, fn func(*session.Store) error) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	id, _ := args["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	st, err := session.Open(ctx, a.backend, id, session.Options{Delay: time.Hour, Logger: a.logger})
	if errors.Is(err, session.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Session %q not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load session: %v", err)), nil
	}
	if err := fn(st); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update session: %v", err)), nil
	}
	if err := st.Close(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save session: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s updated.", id)), nil
}
