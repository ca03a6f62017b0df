package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when the daemon hangs up or the client was closed.
var ErrClosed = errors.New("connection closed")

const (
	dialTimeout = 2 * time.Second
	// commandTimeout bounds the wait for a command's response line.
	commandTimeout = 10 * time.Second
	maxLine        = 1024 * 1024
)

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "Steno", "steno.sock")
}

// Err turns a refused command into an error.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("daemon refused command")
	}
	return fmt.Errorf("daemon: %s", r.Error)
}

// Client talks NDJSON to the daemon over one Unix socket connection. A
// connection carries either commands or, after Subscribe, events.
type Client struct {
	conn   net.Conn
	lines  *bufio.Scanner
	mu     sync.Mutex
	closed atomic.Bool
}

// Connect dials the daemon socket.
func Connect(socketPath string) (*Client, error) {
	return ConnectContext(context.Background(), socketPath)
}

// ConnectContext dials the daemon socket, giving up when ctx ends or the
// dial times out.
func ConnectContext(ctx context.Context, socketPath string) (*Client, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	lines := bufio.NewScanner(conn)
	lines.Buffer(make([]byte, 64*1024), maxLine) // word batches can be long
	return &Client{conn: conn, lines: lines}, nil
}

// Close hangs up. A blocked ReadEvent returns ErrClosed. Closing twice is
// a no-op.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// SendCommand writes cmd and waits for its response line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s: %w", cmd.Cmd, err)
	}

	c.conn.SetDeadline(time.Now().Add(commandTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Response{}, c.readErr(fmt.Errorf("write %s: %w", cmd.Cmd, err))
	}

	line, err := c.next()
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode %s response: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// Subscribe asks for the named events, or all events when none are given.
// Afterwards the connection only carries events; read them with ReadEvent.
func (c *Client) Subscribe(events ...string) error {
	resp, err := c.SendCommand(Command{Cmd: CmdSubscribe, Events: events})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// ReadEvent blocks for the next event.
func (c *Client) ReadEvent() (Event, error) {
	line, err := c.next()
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

func (c *Client) next() ([]byte, error) {
	if c.lines.Scan() {
		return c.lines.Bytes(), nil
	}
	if err := c.lines.Err(); err != nil {
		return nil, c.readErr(fmt.Errorf("read: %w", err))
	}
	return nil, ErrClosed
}

// readErr reports I/O failures caused by our own Close as ErrClosed.
func (c *Client) readErr(err error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return err
}
