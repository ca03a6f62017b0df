package app

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/steno/notes/internal/daemon"
	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

// startFakeDaemon serves commands on a Unix socket. A subscribe gets an OK
// followed by events; start and stop toggle recording.
func startFakeDaemon(t *testing.T, events []daemon.Event) (string, <-chan daemon.Command) {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	cmds := make(chan daemon.Command, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFake(conn, events, cmds)
		}
	}()
	return sockPath, cmds
}

func serveFake(conn net.Conn, events []daemon.Event, cmds chan<- daemon.Command) {
	defer conn.Close()
	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd daemon.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			return
		}
		cmds <- cmd

		switch cmd.Cmd {
		case daemon.CmdSubscribe:
			enc.Encode(daemon.Response{OK: true})
			for _, ev := range events {
				enc.Encode(ev)
			}
		case daemon.CmdStart:
			enc.Encode(daemon.Response{OK: true, SessionID: cmd.SessionID, Recording: daemon.BoolPtr(true), Device: "Test Mic"})
		case daemon.CmdStop:
			enc.Encode(daemon.Response{OK: true, Recording: daemon.BoolPtr(false)})
		default:
			enc.Encode(daemon.Response{OK: true, Recording: daemon.BoolPtr(false), Status: "idle"})
		}
	}
}

func nextCommand(t *testing.T, cmds <-chan daemon.Command, want string) daemon.Command {
	t.Helper()
	for cmd := range cmds {
		if cmd.Cmd == want {
			return cmd
		}
	}
	t.Fatalf("no %s command", want)
	return daemon.Command{}
}

// TestDaemonFlow drives the model through connect, record, a word event
// and stop against a fake daemon, then checks what reached storage.
func TestDaemonFlow(t *testing.T) {
	events := []daemon.Event{
		{Event: daemon.EventPartial, SessionID: "s1", Words: []transcript.Word{{Text: "hel"}}},
		{Event: daemon.EventWord, SessionID: "s1", Words: []transcript.Word{
			{Text: "hello", Speaker: transcript.Unassigned(0), StartMS: transcript.Ms(0), EndMS: transcript.Ms(400)},
			{Text: "world", Speaker: transcript.Unassigned(0), StartMS: transcript.Ms(400), EndMS: transcript.Ms(900)},
		}},
	}
	sockPath, cmds := startFakeDaemon(t, events)

	m, backend, _ := newTestModel(t, session.Session{})
	m.socketPath = sockPath
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	msg := m.Init()()
	connected, ok := msg.(DaemonConnectedMsg)
	if !ok {
		t.Fatalf("Init message = %T (%v)", msg, msg)
	}
	m, _ = applyUpdate(m, connected)
	if !m.connected {
		t.Fatal("expected connected")
	}

	// Record into this session.
	_, cmd := applyUpdate(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	start := cmd().(StartResponseMsg)
	if got := nextCommand(t, cmds, daemon.CmdStart); got.SessionID != "s1" {
		t.Errorf("start sessionId = %q, want s1", got.SessionID)
	}
	m, _ = applyUpdate(m, start)
	if !m.recording || m.deviceName != "Test Mic" {
		t.Errorf("recording=%v device=%q", m.recording, m.deviceName)
	}

	// Subscribe and read both events.
	ev := subscribeCmd(m.evClient)().(DaemonEventMsg)
	m, _ = applyUpdate(m, ev)
	if len(m.partial) != 1 {
		t.Errorf("partial = %v", m.partial)
	}
	ev = readEventCmd(m.evClient)().(DaemonEventMsg)
	m, _ = applyUpdate(m, ev)
	if len(m.partial) != 0 {
		t.Error("word event should clear the partial")
	}
	if !strings.Contains(m.View(), "hello world") {
		t.Error("view should show the committed words")
	}

	_, cmd = applyUpdate(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = applyUpdate(m, cmd().(StopResponseMsg))
	if m.recording {
		t.Error("expected recording stopped")
	}

	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	got := storedWords(t, backend, "s1")
	if len(got) != 2 || got[1].Text != "world" || *got[1].EndMS != 900 {
		t.Errorf("stored words = %+v", got)
	}
}
