package export

import (
	"strings"
	"testing"
	"time"

	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

func TestRenderTranscript(t *testing.T) {
	words := []transcript.Word{
		{Text: "hello", Speaker: transcript.Unassigned(0), StartMS: transcript.Ms(1000), EndMS: transcript.Ms(1500)},
		{Text: "all", Speaker: transcript.Unassigned(0), StartMS: transcript.Ms(1500), EndMS: transcript.Ms(62000)},
		{Text: "thanks", Speaker: transcript.Assigned("p-1", "Ada")},
	}

	got := RenderTranscript(words)
	want := "[00:01-01:02] Speaker 1: hello all\n\nAda: thanks\n\n"
	if got != want {
		t.Errorf("RenderTranscript =\n%q\nwant\n%q", got, want)
	}
}

func TestMsToTS(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00"},
		{59999, "00:59"},
		{61000, "01:01"},
		{3725000, "01:02:05"},
	}
	for _, tt := range tests {
		if got := msToTS(tt.ms); got != tt.want {
			t.Errorf("msToTS(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"paragraphs", "<p>first  line</p><p>second</p>", "first line\nsecond"},
		{"list", "<ul><li>one</li><li><b>two</b></li></ul>", "- one\n- two"},
		{"entities", "<p>a &amp; b</p>", "a & b"},
		{"break", "x<br>y", "x\ny"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.in); got != tt.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)
	s := session.Session{
		Title:              "Design review",
		PreMeetingMemoHTML: "<p>agenda item</p>",
		RawMemoHTML:        "<p>raw jot</p>",
		RecordStart:        &start,
		RecordEnd:          &end,
		Words:              []transcript.Word{{Text: "ok", Speaker: transcript.Unassigned(1)}},
	}

	got := RenderMarkdown(s)
	for _, want := range []string{
		"# Design review\n",
		"- Duration: 1m35s\n",
		"## Agenda\n\nagenda item\n",
		"## Notes\n\nraw jot\n",
		"## Transcript\n\nSpeaker 2: ok\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q:\n%s", want, got)
		}
	}

	s.EnhancedMemoHTML = "<p>polished</p>"
	if got := RenderMarkdown(s); !strings.Contains(got, "## Notes\n\npolished\n") || strings.Contains(got, "raw jot") {
		t.Errorf("enhanced notes should replace raw notes:\n%s", got)
	}

	if got := RenderMarkdown(session.Session{}); !strings.HasPrefix(got, "# Untitled note\n") || strings.Contains(got, "## Transcript") {
		t.Errorf("empty session markdown:\n%s", got)
	}
}
