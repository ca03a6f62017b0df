package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwulff/steno/notes/internal/app"
	"github.com/jwulff/steno/notes/internal/daemon"
	"github.com/jwulff/steno/notes/internal/export"
	"github.com/jwulff/steno/notes/internal/mcpserver"
	"github.com/jwulff/steno/notes/internal/recorder"
	"github.com/jwulff/steno/notes/internal/session"
)

// parseID parses flags and returns the single session id argument.
func parseID(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one session id", fs.Name())
	}
	return fs.Arg(0), nil
}

func runNew(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	title := fs.String("title", "", "note title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := session.Create(ctx, e.backend, uuid.NewString(), *title)
	if err != nil {
		return err
	}
	e.log.Printf("steno-notes: created %s", s.ID)
	fmt.Println(s.ID)
	return nil
}

func runList(ctx context.Context, e *env, args []string) error {
	list, err := e.backend.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No notes yet. Create one with: steno-notes new")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tWORDS\tTITLE")
	for _, s := range list {
		title := s.Title
		if title == "" {
			title = "Untitled note"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.WordCount, title)
	}
	return w.Flush()
}

func runEdit(ctx context.Context, e *env, args []string) error {
	id, err := parseID(flag.NewFlagSet("edit", flag.ContinueOnError), args)
	if err != nil {
		return err
	}

	// Debounced write errors arrive on timer goroutines.
	var program atomic.Pointer[tea.Program]
	store, err := session.Open(ctx, e.backend, id, session.Options{
		Delay:  e.cfg.Persist.Debounce,
		Logger: e.log.Logger,
		OnError: func(err error) {
			if p := program.Load(); p != nil {
				p.Send(app.PersistErrorMsg{Err: err})
			}
		},
	})
	if err != nil {
		return err
	}

	m := app.New(app.Options{
		Store:      store,
		Words:      e.backend,
		SocketPath: e.cfg.Daemon.Socket,
		Logger:     e.log.Logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	program.Store(p)

	final, runErr := p.Run()
	if fm, ok := final.(app.Model); ok {
		m = fm
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, m.Close(closeCtx))
}

func runListen(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	start := fs.Bool("start", false, "ask the daemon to start recording into the note")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	if s, err := e.backend.GetSession(ctx, id); err != nil {
		return err
	} else if s == nil {
		return fmt.Errorf("listen %s: %w", id, session.ErrNotFound)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := daemon.Connect(e.cfg.Daemon.Socket)
	if err != nil {
		return err
	}
	defer events.Close()
	if err := events.Subscribe(daemon.EventWord, daemon.EventStatus, daemon.EventError); err != nil {
		return err
	}

	if *start {
		client, err := daemon.Connect(e.cfg.Daemon.Socket)
		if err != nil {
			return err
		}
		defer client.Close()
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStart, SessionID: id})
		if err != nil {
			return err
		}
		if err := resp.Err(); err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		defer func() {
			if _, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStop}); err != nil {
				e.log.Printf("steno-notes: stop recording: %v", err)
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "Recording into %s. Press Ctrl+C to stop.\n", id)
	rec := recorder.New(e.backend, id, e.log.Logger)
	return rec.Run(ctx, events)
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", "", "output file (default stdout)")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	s, err := e.backend.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("export %s: %w", id, session.ErrNotFound)
	}

	md := export.RenderMarkdown(*s)
	if *out == "" {
		_, err := fmt.Print(md)
		return err
	}
	if err := os.WriteFile(*out, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	return nil
}

func runMCP(ctx context.Context, e *env, args []string) error {
	return mcpserver.New(e.backend, e.log.Logger).ServeStdio()
}
