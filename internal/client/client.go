// Package client is a line-oriented terminal client for the LFG chat server.
// It reads a username and then chat lines from an input stream and prints
// every frame the server sends.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultUsername is sent when no username is entered.
const DefaultUsername = "Guest"

const closeGrace = time.Second

// Options configures Run.
type Options struct {
	URL              string
	Origin           string
	HandshakeTimeout time.Duration
}

type line struct {
	text string
	err  error
	eof  bool
}

// Run connects to the server and relays in to the server and server frames
// to out until either side ends or ctx is cancelled. A clean end of input or
// a normal close from the server returns nil.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Enter your username:")
	username := DefaultUsername
	if scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			username = text
		}
	}

	conn, err := dial(ctx, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(username)); err != nil {
		return fmt.Errorf("send username: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- printFrames(conn, out)
	}()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan line)
	go readLines(scanner, lines, done)

	for {
		select {
		case <-ctx.Done():
			closeConn(conn)
			return ctx.Err()

		case err := <-serverErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read from server: %w", err)

		case l := <-lines:
			if l.eof {
				closeConn(conn)
				drain(serverErr)
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("read input: %w", l.err)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(l.text)); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
}

func dial(ctx context.Context, opts Options) (*websocket.Conn, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	headers := http.Header{}
	if opts.Origin != "" {
		headers.Set("Origin", opts.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.URL, err)
	}
	return conn, nil
}

func printFrames(conn *websocket.Conn, out io.Writer) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType == websocket.TextMessage {
			fmt.Fprintf(out, "From server: %s\n", data)
		}
	}
}

// readLines stays blocked in Scan while the input blocks; for stdin that
// goroutine lives until the process exits.
func readLines(scanner *bufio.Scanner, lines chan<- line, done <-chan struct{}) {
	send := func(l line) bool {
		select {
		case lines <- l:
			return true
		case <-done:
			return false
		}
	}

	for scanner.Scan() {
		if !send(line{text: scanner.Text()}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		send(line{err: err})
		return
	}
	send(line{eof: true})
}

func closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// drain waits briefly for the server to answer our close frame so frames
// already in flight are still printed.
func drain(serverErr <-chan error) {
	select {
	case <-serverErr:
	case <-time.After(closeGrace):
	}
}
