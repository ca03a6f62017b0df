package app

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// writeQueue runs transcript writes one at a time in submission order.
// Appends from the daemon and saves of the edited transcript both touch
// the words table, so their order must match the order Update saw them.
type writeQueue struct {
	ops chan queuedWrite
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

var errQueueClosed = errors.New("write queue closed")

type queuedWrite struct {
	fn   func(context.Context) error
	done chan error
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{ops: make(chan queuedWrite, 256)}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *writeQueue) loop() {
	defer q.wg.Done()
	for op := range q.ops {
		op.done <- op.fn(context.Background())
	}
}

// submit queues fn and returns a command that reports its result.
func (q *writeQueue) submit(saved bool, fn func(context.Context) error) tea.Cmd {
	done := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return func() tea.Msg { return TranscriptWrittenMsg{Saved: saved, Err: errQueueClosed} }
	}
	q.ops <- queuedWrite{fn: fn, done: done}
	q.mu.Unlock()
	return func() tea.Msg {
		return TranscriptWrittenMsg{Saved: saved, Err: <-done}
	}
}

// close waits for queued writes to finish.
func (q *writeQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
