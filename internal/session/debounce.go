package session

import (
	"context"
	"sync"
	"time"
)

// debouncer coalesces bursts of calls into one trailing invocation of fn
// with the most recent argument.
type debouncer struct {
	delay time.Duration
	fn    func(context.Context, Session) error
	onErr func(error)

	// run is held while fn runs from a timer or Flush, so Cancel and Flush
	// never return while an older call is still writing.
	run sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending *Session
	gen     uint64
	err     error
}

func newDebouncer(delay time.Duration, fn func(context.Context, Session) error, onErr func(error)) *debouncer {
	return &debouncer{delay: delay, fn: fn, onErr: onErr}
}

// Call schedules fn(s) after the quiet period, replacing any pending call.
func (d *debouncer) Call(s Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = &s
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen uint64) {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	s := *d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if err := d.fn(context.Background(), s); err != nil {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		if d.onErr != nil {
			d.onErr(err)
		}
	}
}

// Cancel drops the pending call, if any, and waits out a call already
// running.
func (d *debouncer) Cancel() bool {
	d.run.Lock()
	defer d.run.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked() != nil
}

func (d *debouncer) cancelLocked() *Session {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	s := d.pending
	d.pending = nil
	return s
}

// Flush runs the pending call now. It returns that call's error, or else
// the last unreturned error from a trailing call.
func (d *debouncer) Flush(ctx context.Context) error {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	s := d.cancelLocked()
	err := d.err
	d.err = nil
	d.mu.Unlock()

	if s != nil {
		if ferr := d.fn(ctx, *s); ferr != nil {
			return ferr
		}
	}
	return err
}

// Pending reports whether a call is waiting for its quiet period.
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
