package chat

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/metrics"
)

// RoomStats is a point-in-time view of one room used by the diagnostics API.
type RoomStats struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Registry maps room names to rooms. A single mutex covers lookup and insert
// so concurrent first references to a name share one Room. The lock is never
// held while publishing.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	capacity int
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. capacity is the buffer size used for
// rooms created through GetOrCreate.
func NewRegistry(capacity int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		capacity: capacity,
		logger:   logger,
	}
}

// GetOrCreate returns the room called name, creating it with the registry's
// default capacity if it does not exist yet.
func (g *Registry) GetOrCreate(name string) *Room {
	return g.GetOrCreateWithCapacity(name, g.capacity)
}

// GetOrCreateWithCapacity is GetOrCreate with an explicit buffer size for a
// newly created room. The capacity of an existing room is left untouched.
func (g *Registry) GetOrCreateWithCapacity(name string, capacity int) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room, ok := g.rooms[name]; ok {
		return room
	}

	room := newRoom(name, capacity)
	g.rooms[name] = room
	metrics.SetRooms(len(g.rooms))
	g.logger.Info("room created", zap.String("room", name), zap.Int("capacity", room.capacity))
	return room
}

// Lookup returns the room called name without creating it.
func (g *Registry) Lookup(name string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[name]
	return room, ok
}

// Names returns a sorted snapshot of the known room names.
func (g *Registry) Names() []string {
	g.mu.Lock()
	names := make([]string, 0, len(g.rooms))
	for name := range g.rooms {
		names = append(names, name)
	}
	g.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len returns the number of rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Stats returns name and member count for every room, sorted by name.
func (g *Registry) Stats() []RoomStats {
	rooms := g.snapshot()
	stats := make([]RoomStats, 0, len(rooms))
	for _, room := range rooms {
		stats = append(stats, RoomStats{Name: room.name, Members: room.SubscriberCount()})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Close closes every room so that subscribed sessions observe ErrRoomClosed.
func (g *Registry) Close() {
	rooms := g.snapshot()
	for _, room := range rooms {
		room.Close()
	}
	g.logger.Info("registry closed", zap.Int("rooms", len(rooms)))
}

// snapshot copies the rooms out so per-room locks are taken without the
// registry lock held.
func (g *Registry) snapshot() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
