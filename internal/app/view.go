package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/steno/notes/internal/editor"
	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"
	"github.com/jwulff/steno/notes/internal/ui"
)

const (
	appName    = "STENO NOTES"
	titleLabel = "  Title: "
	caretGlyph = "▌"
)

var viewLabels = map[session.NoteView]string{
	session.ViewRaw:        "raw",
	session.ViewEnhanced:   "enhanced",
	session.ViewPreMeeting: "agenda",
}

func (m Model) titleWidth() int {
	if m.width == 0 {
		return 40
	}
	return max(10, m.width-lipgloss.Width(appName)-lipgloss.Width(titleLabel)-1)
}

func (m Model) notesPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*40/100)
}

func (m Model) transcriptPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.notesPanelWidth()-1)
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + divider(1) + divider(1) + error(1) + footer(1) + padding
	return max(5, m.height-7)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.renderMainContent(),
		divider,
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	label := ui.DimStyle.Render(titleLabel)
	if m.focus == FocusTitle {
		label = ui.PanelTitleActiveStyle.Render(titleLabel)
	}
	return ui.TitleStyle.Render(appName) + label + m.title.View()
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.recording {
		dot = ui.RecordingDotStyle.Render("● REC")
	} else {
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	var levels string
	if m.recording {
		levels = "  " + renderLevelMeter("MIC", m.micLevel)
	}

	var device string
	if m.deviceName != "" {
		device = ui.DimStyle.Render("  " + m.deviceName)
	}

	badge := ui.SavedBadgeStyle.Render("  ✓ saved")
	if m.buffer.Dirty() || m.saveFailed {
		badge = ui.DirtyBadgeStyle.Render("  ● unsaved")
	}

	status := ui.DimStyle.Render("  " + m.statusText)
	return dot + levels + device + badge + status
}

func renderLevelMeter(label string, level float32) string {
	const barLen = 8
	filled := min(int(level*barLen), barLen)

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		switch {
		case i >= filled:
			bar.WriteString(ui.LevelGrayStyle.Render("░"))
		case float32(i)/float32(barLen) > 0.6:
			bar.WriteString(ui.LevelYellowStyle.Render("█"))
		default:
			bar.WriteString(ui.LevelGreenStyle.Render("█"))
		}
	}
	return ui.MicLabelStyle.Render(label) + " " + bar.String()
}

func (m Model) renderMainContent() string {
	notesW := m.notesPanelWidth()
	contentH := m.contentHeight()

	notesLines := m.renderNotesPanel(notesW, contentH)
	transcriptLines := m.renderTranscriptPanel(m.transcriptPanelWidth(), contentH)
	divider := ui.DividerStyle.Render("│")

	rows := make([]string, contentH)
	for i := range rows {
		rows[i] = padRight(notesLines[i], notesW) + divider + transcriptLines[i]
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderNotesPanel(width, height int) []string {
	title := fmt.Sprintf("NOTES · %s", viewLabels[m.store.State().View])
	header := ui.PanelTitleStyle.Render(title)
	if m.focus == FocusNotes {
		header = ui.PanelTitleActiveStyle.Render(title)
	}

	lines := []string{header}
	lines = append(lines, strings.Split(m.notes.View(), "\n")...)
	return fitHeight(lines, height, width)
}

func (m Model) renderTranscriptPanel(width, height int) []string {
	title := fmt.Sprintf("TRANSCRIPT (%d words)", len(m.buffer.Words()))
	header := ui.PanelTitleStyle.Render(title)
	if m.focus == FocusTranscript {
		header = ui.PanelTitleActiveStyle.Render(title)
	}
	lines := []string{header}

	body, caretLine := m.transcriptLines(max(10, width-2))
	contentH := height - 1

	switch {
	case len(body) == 0 && !m.connected && m.reconnecting:
		lines = append(lines, "", ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
	case len(body) == 0 && !m.connected && m.connError != "":
		lines = append(lines, "",
			ui.ErrorStyle.Render("  Daemon not running."),
			ui.DimStyle.Render("  Start with: steno-daemon run"))
	case len(body) == 0:
		lines = append(lines, "", ui.DimStyle.Render("  Press ctrl+r to start recording"))
	default:
		start := 0
		if len(body) > contentH {
			start = len(body) - contentH
			if m.focus == FocusTranscript && caretLine >= 0 {
				start = min(max(0, caretLine-contentH/2), len(body)-contentH)
			}
		}
		for _, l := range body[start:min(len(body), start+contentH)] {
			lines = append(lines, "  "+l)
		}
	}
	return fitHeight(lines, height, 0)
}

// transcriptLines renders the buffer one speaker block at a time, with
// the caret and selection when the transcript has focus, followed by any
// partial words. It returns the index of the line holding the caret.
func (m Model) transcriptLines(width int) ([]string, int) {
	doc := m.buffer.Document()
	sel := m.buffer.Selection()
	from, to := sel.Range()
	showCaret := m.focus == FocusTranscript
	styles := speakerStyles(doc)

	var lines []string
	caretLine := -1
	for bi, block := range doc.Content {
		if block.Type != editor.TypeSpeaker {
			continue
		}
		speaker := block.Attrs.Speaker()
		lines = append(lines, styles(speaker).Render(speaker.DisplayName()))

		var tokens []string
		hasCaret := false
		for wi, n := range block.Content {
			if n.Type != editor.TypeWord {
				continue
			}
			at := editor.Pos{Block: bi, Word: wi}
			caretHere := showCaret && sel.Empty() && sel.Head.Block == bi && sel.Head.Word == wi
			if n.Text == "" && !caretHere {
				continue
			}

			text := n.Text
			if caretHere {
				runes := []rune(text)
				off := min(sel.Head.Offset, len(runes))
				text = string(runes[:off]) + ui.CaretStyle.Render(caretGlyph) + string(runes[off:])
				hasCaret = true
			}
			end := editor.Pos{Block: bi, Word: wi, Offset: len([]rune(n.Text))}
			if showCaret && !sel.Empty() && from.Before(end) && at.Before(to) {
				text = ui.SelectedStyle.Render(text)
			}
			tokens = append(tokens, text)
		}
		if showCaret && sel.Empty() && sel.Head.Block == bi && sel.Head.Word >= len(block.Content) {
			tokens = append(tokens, ui.CaretStyle.Render(caretGlyph))
			hasCaret = true
		}

		wrapped := wrapTokens(tokens, width)
		if hasCaret {
			for i, l := range wrapped {
				if strings.Contains(l, caretGlyph) {
					caretLine = len(lines) + i
					break
				}
			}
		}
		lines = append(lines, wrapped...)
	}

	if len(m.partial) > 0 {
		var tokens []string
		for _, w := range m.partial {
			tokens = append(tokens, ui.PartialTextStyle.Render(w.Text))
		}
		lines = append(lines, wrapTokens(tokens, width)...)
	}
	return lines, caretLine
}

// speakerStyles assigns label colours: diarization slots by index,
// participants in order of first appearance after the slots.
func speakerStyles(doc editor.Document) func(*transcript.Speaker) lipgloss.Style {
	assigned := map[string]int{}
	slots := 0
	for _, b := range doc.Content {
		if s := b.Attrs.Speaker(); s != nil && s.Kind == transcript.SpeakerUnassigned {
			slots = max(slots, s.Index+1)
		}
	}
	for _, b := range doc.Content {
		if s := b.Attrs.Speaker(); s != nil && s.Kind == transcript.SpeakerAssigned {
			if _, ok := assigned[s.ID]; !ok {
				assigned[s.ID] = slots + len(assigned)
			}
		}
	}
	return func(s *transcript.Speaker) lipgloss.Style {
		switch {
		case s == nil:
			return ui.SpeakerStyle(-1)
		case s.Kind == transcript.SpeakerAssigned:
			return ui.SpeakerStyle(assigned[s.ID])
		default:
			return ui.SpeakerStyle(s.Index)
		}
	}
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	var parts []string
	if m.connected {
		if m.recording {
			parts = append(parts, key("^R", "Stop"))
		} else {
			parts = append(parts, key("^R", "Record"))
		}
	}
	parts = append(parts, key("Tab", "Focus"), key("^E", "View"))
	if m.focus == FocusTranscript {
		parts = append(parts, key("^N", "Speaker"))
	}
	parts = append(parts, key("^S", "Save"), key("^C", "Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

// fitHeight pads or cuts lines to exactly height, padding each line to
// width when width is positive.
func fitHeight(lines []string, height, width int) []string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	lines = lines[:height]
	if width > 0 {
		for i, l := range lines {
			lines[i] = padRight(l, width)
		}
	}
	return lines
}

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// wrapTokens joins styled tokens with spaces, breaking lines at width
// visible cells.
func wrapTokens(tokens []string, width int) []string {
	var lines []string
	var cur strings.Builder
	curW := 0
	for _, tok := range tokens {
		w := lipgloss.Width(tok)
		if curW > 0 && curW+1+w > width {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(tok)
		curW += w
	}
	if curW > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
