// Package export renders sessions as Markdown documents.
package export

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
)

// RenderMarkdown renders the title, recording metadata, notes and the
// speaker-grouped transcript of s.
func RenderMarkdown(s session.Session) string {
	var b strings.Builder
	if s.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", s.Title)
	} else {
		b.WriteString("# Untitled note\n\n")
	}
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04"))
	}
	if s.RecordStart != nil {
		fmt.Fprintf(&b, "- Recorded: %s\n", s.RecordStart.Format("2006-01-02 15:04"))
		if s.RecordEnd != nil && s.RecordEnd.After(*s.RecordStart) {
			fmt.Fprintf(&b, "- Duration: %s\n", s.RecordEnd.Sub(*s.RecordStart).Truncate(time.Second))
		}
	}
	b.WriteString("\n---\n\n")

	if text := HTMLToText(s.PreMeetingMemoHTML); text != "" {
		fmt.Fprintf(&b, "## Agenda\n\n%s\n\n", text)
	}
	notes := s.EnhancedMemoHTML
	if strings.TrimSpace(HTMLToText(notes)) == "" {
		notes = s.RawMemoHTML
	}
	if text := HTMLToText(notes); text != "" {
		fmt.Fprintf(&b, "## Notes\n\n%s\n\n", text)
	}
	if len(s.Words) > 0 {
		b.WriteString("## Transcript\n\n")
		b.WriteString(RenderTranscript(s.Words))
	}
	return b.String()
}

// RenderTranscript renders one paragraph per speaker segment:
// "[mm:ss-mm:ss] Speaker: text". The time range is left out when the
// segment has no timing.
func RenderTranscript(words []transcript.Word) string {
	var b strings.Builder
	for _, seg := range transcript.WordsToSegments(words) {
		ts := ""
		if seg.StartMS != nil && seg.EndMS != nil {
			ts = fmt.Sprintf("[%s-%s] ", msToTS(*seg.StartMS), msToTS(*seg.EndMS))
		}
		fmt.Fprintf(&b, "%s%s: %s\n\n", ts, seg.Speaker.DisplayName(), seg.Text())
	}
	return b.String()
}

func msToTS(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// HTMLToText flattens memo HTML into plain text lines. List items become
// "- " bullets; other markup is dropped.
func HTMLToText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(src))
	var lines []string
	var cur strings.Builder

	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			return strings.Join(lines, "\n")
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if blockTags[tag] {
				flush()
			}
			if tag == "li" {
				cur.WriteString("- ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				flush()
			}
		}
	}
}
