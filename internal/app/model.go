package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/jwulff/steno/notes/internal/daemon"
	"github.com/jwulff/steno/notes/internal/editor"
	"github.com/jwulff/steno/notes/internal/export"
	"github.com/jwulff/steno/notes/internal/recorder"
	"github.com/jwulff/steno/notes/internal/session"
	"github.com/jwulff/steno/notes/internal/transcript"

	tea "github.com/charmbracelet/bubbletea"
)

// Focus tracks which panel has keyboard focus.
type Focus int

const (
	FocusTitle Focus = iota
	FocusNotes
	FocusTranscript
)

var viewOrder = []session.NoteView{session.ViewRaw, session.ViewEnhanced, session.ViewPreMeeting}

// Options wires a Model to its collaborators.
type Options struct {
	// Store holds the open session. Required.
	Store *session.Store
	// Words receives transcript writes: words appended while recording
	// and the edited transcript on save. Nil makes the transcript
	// read-only.
	Words recorder.Writer
	// SocketPath is the daemon socket. Empty means daemon.SocketPath().
	SocketPath string
	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger
}

// Model is the root bubbletea model for one session's editor.
type Model struct {
	store  *session.Store
	words  recorder.Writer
	rec    *recorder.Recorder
	queue  *writeQueue
	logger *log.Logger

	// Connection state
	socketPath string
	client     *daemon.Client // command connection
	evClient   *daemon.Client // event subscription connection
	connected  bool
	connError  string

	// Recording state
	recording  bool
	deviceName string
	micLevel   float32

	// Editing state
	title      textinput.Model
	notes      textarea.Model
	notesText  string
	buffer     *editor.Buffer
	partial    []transcript.Word
	saveFailed bool

	// UI state
	focus  Focus
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a Model for the session held by opts.Store.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = daemon.SocketPath()
	}

	st := opts.Store.State()
	m := Model{
		store:      opts.Store,
		words:      opts.Words,
		logger:     logger,
		socketPath: socketPath,
		buffer:     editor.NewBuffer(editor.FromWords(st.Session.Words)),
		statusText: "Connecting to steno-daemon...",
		focus:      FocusTranscript,
		queue:      newWriteQueue(),
	}
	if opts.Words != nil {
		m.rec = recorder.New(opts.Words, st.Session.ID, logger)
	}

	m.title = textinput.New()
	m.title.Prompt = ""
	m.title.Placeholder = "Untitled note"
	m.title.SetValue(st.Session.Title)

	m.notes = textarea.New()
	m.notes.ShowLineNumbers = false
	m.notes.CharLimit = 0
	m.notes.MaxHeight = 0
	m.notes.MaxWidth = 0
	m.notes.Placeholder = "Type your notes..."
	m.loadNotes(st.View)

	opts.Store.SetTab(session.TabTranscript)
	return m
}

// Init returns the initial command: connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.socketPath)
}

// Close drains queued transcript writes, saves unsaved transcript edits,
// flushes the note and hangs up on the daemon. Call it with the final
// model once the program exits.
func (m Model) Close(ctx context.Context) error {
	m.queue.close()

	var errs []error
	if m.words != nil && (m.buffer.Dirty() || m.saveFailed) {
		if err := m.words.ReplaceWords(ctx, m.sessionID(), m.buffer.Words()); err != nil {
			errs = append(errs, fmt.Errorf("save transcript: %w", err))
		} else {
			m.buffer.MarkClean()
		}
	}
	if err := m.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush note: %w", err))
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.evClient != nil {
		m.evClient.Close()
	}
	return errors.Join(errs...)
}

func (m Model) sessionID() string { return m.store.Session().ID }

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd subscribes the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// statusCmd fetches daemon status.
func statusCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Response: resp}
	}
}

// startCmd asks the daemon to record into sessionID.
func startCmd(client *daemon.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStart, SessionID: sessionID})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StartResponseMsg{Response: resp}
	}
}

// stopCmd sends a stop recording command.
func stopCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStop})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StopResponseMsg{Response: resp}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s .. 16s
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.title.Width = m.titleWidth()
		m.notes.SetWidth(m.notesPanelWidth())
		m.notes.SetHeight(max(3, m.contentHeight()-1))
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		return m, tea.Batch(
			subscribeCmd(m.evClient),
			statusCmd(m.client),
		)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StatusResponseMsg:
		r := msg.Response
		if r.Recording != nil {
			m.recording = *r.Recording && (r.SessionID == "" || r.SessionID == m.sessionID())
			if *r.Recording && !m.recording {
				m.statusText = "Daemon is recording another session"
			}
		}
		if r.Device != "" {
			m.deviceName = r.Device
		}
		if r.Status != "" && m.statusText == "Connected" {
			m.statusText = r.Status
		}
		return m, nil

	case StartResponseMsg:
		r := msg.Response
		if !r.OK {
			cmd := m.showTransient(r.Error)
			return m, cmd
		}
		m.recording = true
		m.statusText = "Recording"
		if r.Device != "" {
			m.deviceName = r.Device
		}
		return m, nil

	case StopResponseMsg:
		r := msg.Response
		if !r.OK {
			m.errorMessage = r.Error
			return m, nil
		}
		m.recording = false
		m.partial = nil
		m.statusText = "Idle"
		return m, nil

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		if m.evClient == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		m.partial = nil
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath)

	case PersistErrorMsg:
		m.errorMessage = "save note: " + msg.Err.Error()
		m.errorTransient = false
		return m, nil

	case TranscriptWrittenMsg:
		if msg.Err != nil {
			m.logger.Printf("app: transcript write failed: %v", msg.Err)
			m.errorMessage = "save transcript: " + msg.Err.Error()
			m.errorTransient = false
			if msg.Saved {
				m.saveFailed = true
			}
			return m, nil
		}
		if msg.Saved {
			m.saveFailed = false
			m.statusText = "Saved"
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	if ev.SessionID != "" && ev.SessionID != m.sessionID() {
		if ev.Event == daemon.EventLevel && ev.Mic != nil {
			m.micLevel = *ev.Mic
		}
		return nil
	}

	switch ev.Event {
	case daemon.EventPartial:
		m.partial = ev.Words

	case daemon.EventWord:
		m.partial = nil
		words := committable(ev.Words)
		if len(words) == 0 {
			return nil
		}
		m.buffer.AppendWords(words)
		return m.record(ev)

	case daemon.EventLevel:
		if ev.Mic != nil {
			m.micLevel = *ev.Mic
		}

	case daemon.EventStatus:
		if ev.Recording == nil {
			return nil
		}
		m.recording = *ev.Recording
		if m.recording {
			m.statusText = "Recording"
		} else {
			m.statusText = "Idle"
			m.partial = nil
		}
		return m.record(ev)

	case daemon.EventError:
		m.errorMessage = ev.Message
		if ev.Transient != nil && *ev.Transient {
			m.errorTransient = true
			return clearTransientErrorCmd()
		}
	}

	return nil
}

// record queues the durable side of ev behind earlier transcript writes.
func (m *Model) record(ev daemon.Event) tea.Cmd {
	if m.rec == nil {
		return nil
	}
	rec := m.rec
	return m.queue.submit(false, func(ctx context.Context) error {
		return rec.Handle(ctx, ev)
	})
}

// committable keeps the words the recorder will store, so the editor
// never shows a word that was not written.
func committable(words []transcript.Word) []transcript.Word {
	out := make([]transcript.Word, 0, len(words))
	for _, w := range words {
		if w.Validate() == nil {
			out = append(out, w)
		}
	}
	return out
}

func (m *Model) showTransient(text string) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// handleKey processes key presses. Global bindings come first; the rest
// go to the focused panel.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Paste {
		return m.updateFocused(msg)
	}

	switch msg.String() {
	case KeyQuit:
		return m, tea.Quit

	case KeyNextFocus:
		cmd := m.setFocus((m.focus + 1) % 3)
		return m, cmd

	case KeyPrevFocus:
		cmd := m.setFocus((m.focus + 2) % 3)
		return m, cmd

	case KeyRecord:
		if !m.connected {
			cmd := m.showTransient("steno-daemon is not connected")
			return m, cmd
		}
		if m.recording {
			return m, stopCmd(m.client)
		}
		return m, startCmd(m.client, m.sessionID())

	case KeyCycleView:
		m.cycleView()
		return m, nil

	case KeySave:
		cmd := m.save()
		return m, cmd
	}

	return m.updateFocused(msg)
}

// setFocus moves keyboard focus and mirrors it as the store's tab.
func (m *Model) setFocus(f Focus) tea.Cmd {
	m.focus = f
	m.title.Blur()
	m.notes.Blur()

	switch f {
	case FocusTitle:
		m.store.SetTab(session.TabNotes)
		return m.title.Focus()
	case FocusNotes:
		m.store.SetTab(session.TabNotes)
		return m.notes.Focus()
	default:
		m.store.SetTab(session.TabTranscript)
		return nil
	}
}

func (m *Model) cycleView() {
	cur := m.store.State().View
	next := viewOrder[0]
	for i, v := range viewOrder {
		if v == cur {
			next = viewOrder[(i+1)%len(viewOrder)]
			break
		}
	}
	m.store.SetView(next)
	m.loadNotes(next)
}

// loadNotes shows the memo for v in the notes panel.
func (m *Model) loadNotes(v session.NoteView) {
	m.notesText = export.HTMLToText(m.store.Session().Memo(v))
	m.notes.SetValue(m.notesText)
}

// save commits the edited transcript and flushes the pending note write.
func (m *Model) save() tea.Cmd {
	if m.words == nil {
		return m.showTransient("transcript is read-only")
	}
	words := m.buffer.Words()
	m.buffer.MarkClean()
	id, store, w := m.sessionID(), m.store, m.words
	m.statusText = "Saving..."
	return m.queue.submit(true, func(ctx context.Context) error {
		if err := w.ReplaceWords(ctx, id, words); err != nil {
			return err
		}
		return store.Flush(ctx)
	})
}

// updateFocused routes msg to the focused panel.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case FocusTitle:
		m.title, cmd = m.title.Update(msg)
		if v := m.title.Value(); v != m.store.Session().Title {
			if err := m.store.UpdateTitle(context.Background(), v); err != nil {
				m.errorMessage = "save note: " + err.Error()
			}
		}

	case FocusNotes:
		m.notes, cmd = m.notes.Update(msg)
		if v := m.notes.Value(); v != m.notesText {
			m.notesText = v
			view := m.store.State().View
			if err := m.store.UpdateNote(context.Background(), view, textToHTML(v)); err != nil {
				m.errorMessage = "save note: " + err.Error()
			}
		}

	case FocusTranscript:
		if key, ok := msg.(tea.KeyMsg); ok {
			m.editTranscript(key)
		}
	}
	return m, cmd
}

// editTranscript applies a key to the transcript buffer. Space and paste
// go through the word splitter first; everything else is plain editing.
func (m *Model) editTranscript(msg tea.KeyMsg) {
	if m.words == nil {
		return
	}
	b := m.buffer

	if msg.Paste {
		text := string(msg.Runes)
		if !editor.HandlePaste(b, text) {
			b.InsertText(strings.TrimSpace(text))
		}
		return
	}

	switch msg.String() {
	case KeySpace:
		if editor.HandleSpace(b) {
			return
		}
		if !b.Selection().Empty() {
			b.DeleteSelection()
			editor.HandleSpace(b)
		}
	case KeyBackspace:
		b.Backspace()
	case KeyLeft:
		b.MoveLeft(false)
	case KeyRight:
		b.MoveRight(false)
	case KeyShiftLeft:
		b.MoveLeft(true)
	case KeyShiftRight:
		b.MoveRight(true)
	case KeyUp:
		b.MoveUp()
	case KeyDown:
		b.MoveDown()
	case KeyCycleSpeaker:
		m.cycleSpeaker()
	default:
		if msg.Type == tea.KeyRunes {
			b.InsertText(string(msg.Runes))
		}
	}
}

// cycleSpeaker moves the caret's block to the next diarization slot,
// one past the highest slot in use wrapping back to the first.
func (m *Model) cycleSpeaker() {
	doc := m.buffer.Document()
	block := m.buffer.Selection().Head.Block
	if block < 0 || block >= len(doc.Content) {
		return
	}

	highest := -1
	for _, b := range doc.Content {
		if s := b.Attrs.Speaker(); s != nil && s.Kind == transcript.SpeakerUnassigned {
			highest = max(highest, s.Index)
		}
	}
	next := 0
	if s := doc.Content[block].Attrs.Speaker(); s != nil && s.Kind == transcript.SpeakerUnassigned {
		next = (s.Index + 1) % (highest + 2)
	}
	if m.buffer.AssignSpeaker(block, transcript.Unassigned(next)) {
		m.buffer.Normalize()
	}
}

// textToHTML renders plain note text as one paragraph per line.
func textToHTML(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}
