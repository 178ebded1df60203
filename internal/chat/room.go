package chat

import (
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/lfgchat/internal/metrics"
)

// Room is a named broadcast topic. Every subscriber owns a bounded buffer;
// when a buffer is full the oldest undelivered message is discarded so a slow
// reader never blocks the publisher or the other members.
type Room struct {
	name     string
	capacity int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one receive cursor on a Room. It only sees messages
// published after it was created.
type Subscription struct {
	room    *Room
	ch      chan string
	dropped atomic.Uint64
	once    sync.Once
}

func newRoom(name string, capacity int) *Room {
	if capacity <= 0 {
		capacity = 1
	}
	return &Room{
		name:     name,
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// Capacity returns the per-subscriber buffer size.
func (r *Room) Capacity() int {
	return r.capacity
}

// SubscriberCount reports how many receivers are currently attached.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Subscribe attaches a new receiver. Subscribing to a closed room returns a
// subscription whose channel is already closed.
func (r *Room) Subscribe() *Subscription {
	sub := &Subscription{
		room: r,
		ch:   make(chan string, r.capacity),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	r.subs[sub] = struct{}{}
	return sub
}

// Publish delivers msg to every current subscriber and returns how many
// received it. It fails with ErrNoSubscribers when the room is empty and with
// ErrRoomClosed after Close.
func (r *Room) Publish(msg string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomClosed
	}
	if len(r.subs) == 0 {
		return 0, ErrNoSubscribers
	}

	for sub := range r.subs {
		sub.deliver(msg)
	}
	metrics.MessagePublished()
	return len(r.subs), nil
}

// Close detaches and closes every subscription. Later publishes fail with
// ErrRoomClosed.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for sub := range r.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(r.subs, sub)
	}
}

func (r *Room) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

// deliver must be called with the room lock held. Publishers are serialized by
// that lock, so after evicting one message the second send cannot fail.
func (s *Subscription) deliver(msg string) {
	select {
	case s.ch <- msg:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
		metrics.MessageDropped()
	default:
	}

	select {
	case s.ch <- msg:
	default:
		s.dropped.Add(1)
		metrics.MessageDropped()
	}
}

// Messages returns the receive side of the subscription. The channel is
// closed when the subscription or its room is closed.
func (s *Subscription) Messages() <-chan string {
	return s.ch
}

// Room returns the room this subscription belongs to.
func (s *Subscription) Room() *Room {
	return s.room
}

// Dropped returns how many messages were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from its room and closes its channel.
// Close is idempotent.
func (s *Subscription) Close() {
	s.room.unsubscribe(s)
}
