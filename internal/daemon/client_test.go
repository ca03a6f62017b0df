package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwulff/steno/notes/internal/transcript"
)

// startMockDaemon creates a Unix socket that accepts one connection,
// reads a command, and writes back a canned response.
func startMockDaemon(t *testing.T, response Response) (string, <-chan Command, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	got := make(chan Command, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd Command
		json.Unmarshal(line, &cmd)
		got <- cmd

		data, _ := json.Marshal(response)
		conn.Write(append(data, '\n'))
	}()

	return sockPath, got, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientSendCommand(t *testing.T) {
	resp := Response{OK: true, SessionID: "sess-1", Recording: BoolPtr(true)}

	sockPath, sent, cleanup := startMockDaemon(t, resp)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	got, err := client.SendCommand(Command{Cmd: CmdStart, SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.OK {
		t.Error("ok = false, want true")
	}
	if got.SessionID != "sess-1" {
		t.Errorf("sessionId = %q, want %q", got.SessionID, "sess-1")
	}
	if cmd := <-sent; cmd.Cmd != CmdStart || cmd.SessionID != "sess-1" {
		t.Errorf("daemon received %+v", cmd)
	}
}

func TestClientConnectFailure(t *testing.T) {
	_, err := Connect("/nonexistent/path/steno.sock")
	if err == nil {
		t.Error("expected error connecting to nonexistent socket")
	}
}

func TestClientSubscribeRejected(t *testing.T) {
	sockPath, _, cleanup := startMockDaemon(t, Response{OK: false, Error: "busy"})
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(EventWord); err == nil {
		t.Error("expected subscribe error")
	}
}

// startMockEventStream creates a daemon that sends a subscribe response
// then streams events and hangs up.
func startMockEventStream(t *testing.T, events []Event) (string, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
			return
		}

		resp, _ := json.Marshal(Response{OK: true})
		conn.Write(append(resp, '\n'))

		for _, ev := range events {
			data, _ := json.Marshal(ev)
			conn.Write(append(data, '\n'))
		}
	}()

	return sockPath, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientReadEvents(t *testing.T) {
	events := []Event{
		{Event: EventPartial, Words: []transcript.Word{{Text: "hel"}}},
		{Event: EventWord, SessionID: "sess-1", Words: []transcript.Word{{Text: "hello", Speaker: transcript.Unassigned(0)}}},
	}

	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev1, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 1: %v", err)
	}
	if ev1.Event != EventPartial || len(ev1.Words) != 1 || ev1.Words[0].Text != "hel" {
		t.Errorf("event1 = %+v", ev1)
	}

	ev2, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 2: %v", err)
	}
	if ev2.Event != EventWord || ev2.Words[0].Text != "hello" {
		t.Errorf("event2 = %+v", ev2)
	}

	if _, err := client.ReadEvent(); !errors.Is(err, ErrClosed) {
		t.Errorf("after hangup err = %v, want ErrClosed", err)
	}
}

func TestCloseUnblocksReadEvent(t *testing.T) {
	sockPath, cleanup := startMockEventStream(t, nil)
	defer cleanup()

	// The mock waits for a command that never comes, so ReadEvent blocks
	// until Close.
	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := client.ReadEvent()
		done <- err
	}()

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("ReadEvent after Close = %v, want ErrClosed", err)
	}
}

func TestConnectContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ConnectContext(ctx, filepath.Join(t.TempDir(), "none.sock")); err == nil {
		t.Error("expected error from cancelled dial")
	}
}

func TestResponseErr(t *testing.T) {
	tests := []struct {
		resp Response
		want string
	}{
		{Response{OK: true}, ""},
		{Response{Error: "no microphone"}, "daemon: no microphone"},
		{Response{}, "daemon refused command"},
	}
	for _, tt := range tests {
		err := tt.resp.Err()
		got := ""
		if err != nil {
			got = err.Error()
		}
		if got != tt.want {
			t.Errorf("%+v.Err() = %q, want %q", tt.resp, got, tt.want)
		}
	}
}
