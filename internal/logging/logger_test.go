package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "steno-notes.log")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Printf("session: wrote %s", "s1")
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	l.Printf("recorder: started")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2", lines)
	}
	if !strings.HasSuffix(lines[0], "session: wrote s1") || !strings.HasSuffix(lines[1], "recorder: started") {
		t.Errorf("lines = %q", lines)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Printf("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
