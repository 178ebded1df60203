package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/lfgchat/internal/chat"
)

const frameTimeout = 2 * time.Second

var errConnClosed = errors.New("fake conn closed")

type inboundFrame struct {
	text   string
	isText bool
}

// fakeConn is an in-memory chat.Conn. Frames written by the session land in
// out; frames pushed with send are returned by ReadMessage.
type fakeConn struct {
	addr   string
	in     chan inboundFrame
	out    chan string
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	writeErr error
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{
		addr:   addr,
		in:     make(chan inboundFrame, 16),
		out:    make(chan string, 512),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (string, bool, error) {
	select {
	case f := <-c.in:
		return f.text, f.isText, nil
	case <-c.closed:
		return "", false, io.EOF
	}
}

func (c *fakeConn) WriteText(text string) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.out <- text:
		return nil
	case <-c.closed:
		return errConnClosed
	}
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) send(text string) { c.in <- inboundFrame{text: text, isText: true} }

func (c *fakeConn) sendBinary() { c.in <- inboundFrame{isText: false} }

// next returns the next frame written by the session.
func (c *fakeConn) next(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-c.out:
		return frame
	case <-time.After(frameTimeout):
		t.Fatalf("%s: timed out waiting for a frame", c.addr)
		return ""
	}
}

// expect skips frames until one equals want.
func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(frameTimeout)
	for {
		select {
		case frame := <-c.out:
			if frame == want {
				return
			}
		case <-deadline:
			t.Fatalf("%s: timed out waiting for %q", c.addr, want)
		}
	}
}

// expectNone fails if any frame containing substr arrives within d.
func (c *fakeConn) expectNone(t *testing.T, substr string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case frame := <-c.out:
			if strings.Contains(frame, substr) {
				t.Fatalf("%s: unexpected frame %q", c.addr, frame)
			}
		case <-deadline:
			return
		}
	}
}

type runningSession struct {
	conn   *fakeConn
	errCh  chan error
	cancel context.CancelFunc
}

// wait returns the error Run ended with.
func (r *runningSession) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(frameTimeout):
		t.Fatal("session did not stop")
		return nil
	}
}

// startSession runs a session against rooms and completes the username
// handshake including the three greeting frames.
func startSession(t *testing.T, rooms chat.Directory, username string, opts chat.Options) *runningSession {
	t.Helper()

	conn := newFakeConn(username + "-addr")
	ctx, cancel := context.WithCancel(context.Background())
	session := chat.NewSession(conn, rooms, opts)

	errCh := make(chan error, 1)
	go func() { errCh <- session.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		conn.Close()
	})

	conn.send(username)
	require.True(t, strings.HasPrefix(conn.next(t), chat.RoomListPrefix))
	require.Contains(t, conn.next(t), "Welcome to LFG, "+username+"!")
	require.True(t, strings.HasPrefix(conn.next(t), "Welcome to the room: "))

	return &runningSession{conn: conn, errCh: errCh, cancel: cancel}
}

func waitForMembers(t *testing.T, reg *chat.Registry, name string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		room, ok := reg.Lookup(name)
		return ok && room.SubscriberCount() == n
	}, frameTimeout, 5*time.Millisecond, "room %s never reached %d members", name, n)
}
