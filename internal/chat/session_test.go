package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/chat"
)

const quietPeriod = 150 * time.Millisecond

func newTestRegistry() *chat.Registry {
	return chat.NewRegistry(chat.RoomCapacity, zap.NewNop())
}

// TestSessionGreeting verifies the frames a client receives right after the
// username handshake and that it lands in the default room.
func TestSessionGreeting(t *testing.T) {
	reg := newTestRegistry()
	conn := newFakeConn("alice-addr")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()

	go func() { _ = chat.NewSession(conn, reg, chat.Options{}).Run(ctx) }()

	conn.send("alice")
	assert.Equal(t, "rooms:[]", conn.next(t), "listing is taken before General exists")
	assert.Equal(t, "Welcome to LFG, alice! Create or join a room and send messages!", conn.next(t))
	assert.Equal(t, "Welcome to the room: General", conn.next(t))

	waitForMembers(t, reg, chat.DefaultRoom, 1)
	room, _ := reg.Lookup(chat.DefaultRoom)
	assert.Equal(t, chat.DefaultRoomCapacity, room.Capacity())

	startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)
}

// TestSessionListingIncludesExistingRooms verifies the rooms frame is valid
// JSON listing every known room.
func TestSessionListingIncludesExistingRooms(t *testing.T) {
	reg := newTestRegistry()
	reg.GetOrCreate("Lounge")
	reg.GetOrCreateWithCapacity(chat.DefaultRoom, chat.DefaultRoomCapacity)

	conn := newFakeConn("alice-addr")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()
	go func() { _ = chat.NewSession(conn, reg, chat.Options{}).Run(ctx) }()

	conn.send("alice")
	assert.Equal(t, `rooms:["General","Lounge"]`, conn.next(t))
}

// TestSessionChatFanOut verifies a plain message reaches every member of the
// sender's room, the sender included.
func TestSessionChatFanOut(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)

	alice.conn.send("hello")

	bob.conn.expect(t, "alice: hello")
	alice.conn.expect(t, "alice: hello")
}

// TestSessionCreateDoesNotSwitch verifies /create registers the room, replies
// only to the sender and keeps the sender in its current room.
func TestSessionCreateDoesNotSwitch(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)

	alice.conn.send("/create Lounge")
	alice.conn.expect(t, "Room created: Lounge")

	room, ok := reg.Lookup("Lounge")
	require.True(t, ok)
	assert.Equal(t, chat.RoomCapacity, room.Capacity())
	assert.Equal(t, 0, room.SubscriberCount())
	assert.Contains(t, reg.Names(), "Lounge")

	bob.conn.expectNone(t, "Room created", quietPeriod)

	bob.conn.send("still general")
	alice.conn.expect(t, "bob: still general")

	t.Run("creating an existing room is idempotent", func(t *testing.T) {
		alice.conn.send("/create Lounge")
		alice.conn.expect(t, "Room created: Lounge")
		again, _ := reg.Lookup("Lounge")
		assert.Same(t, room, again)
	})
}

// TestSessionJoinSameRoom verifies that joining the current room is rejected
// and leaves membership untouched.
func TestSessionJoinSameRoom(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)

	alice.conn.send("/join Lounge")
	alice.conn.expect(t, "Welcome to the room: Lounge")

	alice.conn.send("/join Lounge")
	alice.conn.expect(t, "You are already in the room: Lounge")
	waitForMembers(t, reg, "Lounge", 1)
	waitForMembers(t, reg, chat.DefaultRoom, 1)

	bob.conn.send("/join General")
	bob.conn.expect(t, "You are already in the room: General")
	bob.conn.expectNone(t, "has joined", quietPeriod)
	waitForMembers(t, reg, chat.DefaultRoom, 1)
}

// TestSessionSwitchRoom verifies the notices and stream swap of a room switch.
func TestSessionSwitchRoom(t *testing.T) {
	reg := newTestRegistry()
	carol := startSession(t, reg, "carol", chat.Options{})
	carol.conn.send("/join Lounge")
	carol.conn.expect(t, "Welcome to the room: Lounge")

	alice := startSession(t, reg, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)
	waitForMembers(t, reg, "Lounge", 1)

	alice.conn.send("/join Lounge")

	assert.Equal(t, "Changing to room: Lounge", alice.conn.next(t))
	assert.Equal(t, `rooms:["General","Lounge"]`, alice.conn.next(t))
	assert.Equal(t, "Welcome to LFG, alice! Create or join a room and send messages!", alice.conn.next(t))
	assert.Equal(t, "Welcome to the room: Lounge", alice.conn.next(t))
	alice.conn.expect(t, "alice has joined the room.")

	bob.conn.expect(t, "alice has left the room.")
	carol.conn.expect(t, "alice has joined the room.")
	waitForMembers(t, reg, chat.DefaultRoom, 1)
	waitForMembers(t, reg, "Lounge", 2)

	bob.conn.send("anyone?")
	bob.conn.expect(t, "bob: anyone?")
	alice.conn.expectNone(t, "bob:", quietPeriod)

	alice.conn.send("hi lounge")
	carol.conn.expect(t, "alice: hi lounge")
	bob.conn.expectNone(t, "alice:", quietPeriod)
}

// TestSessionRoomIsolation verifies that a message published in one room is
// never delivered to members of another room.
func TestSessionRoomIsolation(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})

	bob.conn.send("/join Other")
	bob.conn.expect(t, "Welcome to the room: Other")
	waitForMembers(t, reg, "Other", 1)
	waitForMembers(t, reg, chat.DefaultRoom, 1)

	for i := 0; i < 10; i++ {
		alice.conn.send("general only")
	}
	for i := 0; i < 10; i++ {
		alice.conn.expect(t, "alice: general only")
	}
	bob.conn.expectNone(t, "general only", quietPeriod)
}

// TestSessionEmptyRoomName verifies commands without a room name are refused.
func TestSessionEmptyRoomName(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})

	alice.conn.send("/create ")
	alice.conn.expect(t, "Room name cannot be empty")
	alice.conn.send("/join ")
	alice.conn.expect(t, "Room name cannot be empty")

	assert.Equal(t, []string{chat.DefaultRoom}, reg.Names())
}

// TestSessionCommandLookalikes verifies that text that only resembles a
// command is published as chat.
func TestSessionCommandLookalikes(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})

	alice.conn.send("/join")
	alice.conn.expect(t, "alice: /join")
	alice.conn.send("/lounge")
	alice.conn.expect(t, "alice: /lounge")
	assert.Equal(t, []string{chat.DefaultRoom}, reg.Names())
}

// TestSessionIgnoresBinaryFrames verifies non-text frames after the username
// neither end the session nor produce output.
func TestSessionIgnoresBinaryFrames(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})

	alice.conn.sendBinary()
	alice.conn.send("after binary")
	assert.Equal(t, "alice: after binary", alice.conn.next(t))
}

// TestSessionUsernameHandshake verifies that sessions without a usable first
// frame end before entering any room.
func TestSessionUsernameHandshake(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakeConn)
	}{
		{
			name:  "binary first frame",
			setup: func(c *fakeConn) { c.sendBinary() },
		},
		{
			name:  "connection closed before username",
			setup: func(c *fakeConn) { c.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			conn := newFakeConn("anon")
			defer conn.Close()
			tt.setup(conn)

			err := chat.NewSession(conn, reg, chat.Options{}).Run(context.Background())

			assert.ErrorIs(t, err, chat.ErrNoUsername)
			assert.Empty(t, reg.Names())
			assert.Empty(t, conn.out)
		})
	}
}

// TestSessionEndsOnTransportError verifies that read and write failures end
// the session and release its subscription.
func TestSessionEndsOnTransportError(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		reg := newTestRegistry()
		alice := startSession(t, reg, "alice", chat.Options{})
		waitForMembers(t, reg, chat.DefaultRoom, 1)

		alice.conn.Close()

		err := alice.wait(t)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read frame")
		waitForMembers(t, reg, chat.DefaultRoom, 0)
	})

	t.Run("write failure", func(t *testing.T) {
		reg := newTestRegistry()
		alice := startSession(t, reg, "alice", chat.Options{})
		writeErr := errors.New("broken pipe")
		alice.conn.failWrites(writeErr)

		alice.conn.send("/create Lounge")

		err := alice.wait(t)
		assert.ErrorIs(t, err, writeErr)
		waitForMembers(t, reg, chat.DefaultRoom, 0)
	})
}

// TestSessionEndsWhenRoomCloses verifies a closed subscription ends the
// session with ErrRoomClosed.
func TestSessionEndsWhenRoomCloses(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})

	reg.Close()

	assert.ErrorIs(t, alice.wait(t), chat.ErrRoomClosed)
}

// TestSessionContextCancel verifies cancelling the context stops the session.
func TestSessionContextCancel(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{})

	alice.cancel()

	assert.ErrorIs(t, alice.wait(t), context.Canceled)
}

// TestSessionOptions verifies custom default room settings are honoured.
func TestSessionOptions(t *testing.T) {
	reg := newTestRegistry()
	startSession(t, reg, "alice", chat.Options{
		DefaultRoom:         "Lobby",
		DefaultRoomCapacity: 4,
	})

	room, ok := reg.Lookup("Lobby")
	require.True(t, ok)
	assert.Equal(t, 4, room.Capacity())
	_, ok = reg.Lookup(chat.DefaultRoom)
	assert.False(t, ok)
}

type trackerEvent struct {
	kind string
	id   string
	arg  string
}

type recordingTracker struct {
	mu     sync.Mutex
	events []trackerEvent
}

func (r *recordingTracker) Track(id, username, _ string) { r.add("track", id, username) }
func (r *recordingTracker) SetRoom(id, room string)     { r.add("room", id, room) }
func (r *recordingTracker) Untrack(id string)           { r.add("untrack", id, "") }

func (r *recordingTracker) add(kind, id, arg string) {
	r.mu.Lock()
	r.events = append(r.events, trackerEvent{kind: kind, id: id, arg: arg})
	r.mu.Unlock()
}

func (r *recordingTracker) snapshot() []trackerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trackerEvent(nil), r.events...)
}

// TestSessionTracker verifies the lifecycle events reported to the tracker.
func TestSessionTracker(t *testing.T) {
	reg := newTestRegistry()
	tracker := &recordingTracker{}
	alice := startSession(t, reg, "alice", chat.Options{ID: "s-1", Tracker: tracker})

	alice.conn.send("/join Lounge")
	alice.conn.expect(t, "Welcome to the room: Lounge")
	alice.conn.Close()
	_ = alice.wait(t)

	assert.Equal(t, []trackerEvent{
		{kind: "track", id: "s-1", arg: "alice"},
		{kind: "room", id: "s-1", arg: chat.DefaultRoom},
		{kind: "room", id: "s-1", arg: "Lounge"},
		{kind: "untrack", id: "s-1"},
	}, tracker.snapshot())
}

// hidingDirectory wraps a registry but pretends every room is missing on
// lookup.
type hidingDirectory struct {
	*chat.Registry
}

func (hidingDirectory) Lookup(string) (*chat.Room, bool) { return nil, false }

// TestSessionDropsMessageForMissingRoom verifies plain text is silently
// dropped when the current room cannot be found in the directory.
func TestSessionDropsMessageForMissingRoom(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, hidingDirectory{reg}, "alice", chat.Options{})
	bob := startSession(t, reg, "bob", chat.Options{})
	waitForMembers(t, reg, chat.DefaultRoom, 2)

	alice.conn.send("lost")
	bob.conn.expectNone(t, "lost", quietPeriod)
	alice.conn.expectNone(t, "lost", quietPeriod)

	alice.conn.send("/create Still")
	alice.conn.expect(t, "Room created: Still")
}

// TestSessionLaggingSubscriberKeepsRunning verifies that overflowing a
// member's buffer loses old messages without ending the session.
func TestSessionLaggingSubscriberKeepsRunning(t *testing.T) {
	reg := newTestRegistry()
	alice := startSession(t, reg, "alice", chat.Options{DefaultRoomCapacity: 2})
	room, ok := reg.Lookup(chat.DefaultRoom)
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		_, err := room.Publish("flood")
		require.NoError(t, err)
	}
	_, err := room.Publish("last")
	require.NoError(t, err)

	alice.conn.expect(t, "last")
	alice.conn.send("still here")
	alice.conn.expect(t, "alice: still here")
}
