package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultRoom is the room every session starts in.
	DefaultRoom = "General"
	// DefaultRoomCapacity is the buffer size of the default room.
	DefaultRoomCapacity = 16
	// RoomCapacity is the buffer size of rooms created by /create and /join.
	RoomCapacity = 32
)

// Conn is the text-frame view of one client connection. Implementations must
// unblock ReadMessage with an error once the connection is closed.
type Conn interface {
	// ReadMessage blocks for the next frame. isText is false for frames that
	// carry no text, such as binary frames.
	ReadMessage() (text string, isText bool, err error)
	WriteText(text string) error
	RemoteAddr() string
}

// Directory is the part of the room registry a session needs.
type Directory interface {
	GetOrCreate(name string) *Room
	GetOrCreateWithCapacity(name string, capacity int) *Room
	Lookup(name string) (*Room, bool)
	Names() []string
}

// Tracker receives session lifecycle events for diagnostics.
type Tracker interface {
	Track(id, username, addr string)
	SetRoom(id, room string)
	Untrack(id string)
}

// Options configures a Session. Zero values fall back to the package defaults.
type Options struct {
	ID                  string
	DefaultRoom         string
	DefaultRoomCapacity int
	Tracker             Tracker
	Logger              *zap.Logger
}

// Session drives one connection from the username handshake until the
// connection fails. It is subscribed to exactly one room at a time.
type Session struct {
	id          string
	conn        Conn
	rooms       Directory
	tracker     Tracker
	logger      *zap.Logger
	defaultRoom string
	defaultCap  int

	username string
	sub      *Subscription
	lagged   uint64
}

type frame struct {
	text   string
	isText bool
	err    error
}

// NewSession binds a connection to a room directory.
func NewSession(conn Conn, rooms Directory, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = DefaultRoom
	}
	if opts.DefaultRoomCapacity <= 0 {
		opts.DefaultRoomCapacity = DefaultRoomCapacity
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Session{
		id:          opts.ID,
		conn:        conn,
		rooms:       rooms,
		tracker:     opts.Tracker,
		logger:      opts.Logger.With(zap.String("session", opts.ID), zap.String("addr", conn.RemoteAddr())),
		defaultRoom: opts.DefaultRoom,
		defaultCap:  opts.DefaultRoomCapacity,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run performs the username handshake, enters the default room and then
// multiplexes inbound frames and room messages until the connection fails,
// the current room is closed or ctx is cancelled. The caller owns the
// connection and must close it after Run returns.
func (s *Session) Run(ctx context.Context) error {
	username, err := s.awaitUsername()
	if err != nil {
		return err
	}
	s.username = username
	s.logger = s.logger.With(zap.String("username", username))

	if s.tracker != nil {
		s.tracker.Track(s.id, username, s.conn.RemoteAddr())
		defer s.tracker.Untrack(s.id)
	}

	done := make(chan struct{})
	defer close(done)
	frames := s.readFrames(done)

	defer func() {
		if s.sub != nil {
			s.sub.Close()
		}
	}()
	if err := s.enterDefaultRoom(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f := <-frames:
			if f.err != nil {
				return fmt.Errorf("read frame: %w", f.err)
			}
			if !f.isText {
				continue
			}
			if err := s.handle(ParseCommand(f.text)); err != nil {
				return err
			}

		case msg, ok := <-s.sub.Messages():
			if !ok {
				return ErrRoomClosed
			}
			s.checkLag()
			if err := s.send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Session) awaitUsername() (string, error) {
	text, isText, err := s.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoUsername, err)
	}
	if !isText {
		return "", ErrNoUsername
	}
	return text, nil
}

// readFrames pumps the connection into a channel so the main loop can select
// on it alongside the room subscription.
func (s *Session) readFrames(done <-chan struct{}) <-chan frame {
	frames := make(chan frame)
	go func() {
		for {
			text, isText, err := s.conn.ReadMessage()
			select {
			case frames <- frame{text: text, isText: isText, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return frames
}

func (s *Session) enterDefaultRoom() error {
	if err := s.greet(); err != nil {
		return err
	}

	room := s.rooms.GetOrCreateWithCapacity(s.defaultRoom, s.defaultCap)
	s.sub = room.Subscribe()
	s.lagged = 0
	if s.tracker != nil {
		s.tracker.SetRoom(s.id, room.Name())
	}
	s.logger.Debug("entered room", zap.String("room", room.Name()))

	return s.send(roomGreeting(room.Name()))
}

func (s *Session) handle(cmd Command) error {
	switch cmd := cmd.(type) {
	case CreateCommand:
		return s.create(cmd.Name)
	case JoinCommand:
		return s.join(cmd.Name)
	case ChatText:
		s.say(cmd.Text)
	}
	return nil
}

func (s *Session) create(name string) error {
	if name == "" {
		return s.send(emptyRoomNameNotice)
	}
	s.rooms.GetOrCreate(name)
	return s.send("Room created: " + name)
}

func (s *Session) join(name string) error {
	if name == "" {
		return s.send(emptyRoomNameNotice)
	}

	current := s.sub.Room().Name()
	if name == current {
		return s.send("You are already in the room: " + name)
	}

	s.logger.Info("switching room", zap.String("from", current), zap.String("to", name))

	if old, ok := s.rooms.Lookup(current); ok {
		s.publish(old, s.username+" has left the room.")
	}

	next := s.rooms.GetOrCreate(name)
	sub := next.Subscribe()
	s.sub.Close()
	s.sub = sub
	s.lagged = 0
	if s.tracker != nil {
		s.tracker.SetRoom(s.id, name)
	}

	s.publish(next, s.username+" has joined the room.")

	if err := s.send("Changing to room: " + name); err != nil {
		return err
	}
	if err := s.greet(); err != nil {
		return err
	}
	return s.send(roomGreeting(name))
}

func (s *Session) say(text string) {
	room, ok := s.rooms.Lookup(s.sub.Room().Name())
	if !ok {
		s.logger.Debug("current room missing from registry; message dropped")
		return
	}
	s.publish(room, s.username+": "+text)
}

// publish is best effort: an empty room or a closed room simply loses the
// message.
func (s *Session) publish(room *Room, msg string) {
	if _, err := room.Publish(msg); err != nil && !errors.Is(err, ErrNoSubscribers) {
		s.logger.Debug("publish failed", zap.String("room", room.Name()), zap.Error(err))
	}
}

// greet sends the room listing followed by the welcome text.
func (s *Session) greet() error {
	listing, err := json.Marshal(s.rooms.Names())
	if err != nil {
		return fmt.Errorf("encode room list: %w", err)
	}
	if err := s.send(RoomListPrefix + string(listing)); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("Welcome to LFG, %s! Create or join a room and send messages!", s.username))
}

func (s *Session) checkLag() {
	dropped := s.sub.Dropped()
	if dropped > s.lagged {
		s.logger.Warn("subscriber lagged behind room",
			zap.String("room", s.sub.Room().Name()),
			zap.Uint64("dropped", dropped-s.lagged))
		s.lagged = dropped
	}
}

func (s *Session) send(text string) error {
	if err := s.conn.WriteText(text); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// RoomListPrefix starts the frame that carries the JSON room listing.
const RoomListPrefix = "rooms:"

const emptyRoomNameNotice = "Room name cannot be empty"

func roomGreeting(room string) string {
	return "Welcome to the room: " + room
}
