package server

import (
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/lfgchat/internal/metrics"
)

// SessionInfo describes one live session for the diagnostics API.
type SessionInfo struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Addr        string    `json:"addr"`
	Room        string    `json:"room"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// SessionTable is the connection-to-username side-table. It is only read by
// diagnostics and never consulted by the chat logic itself.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
}

// NewSessionTable creates an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*SessionInfo)}
}

// Track records a session after its username handshake.
func (t *SessionTable) Track(id, username, addr string) {
	t.mu.Lock()
	t.sessions[id] = &SessionInfo{
		ID:          id,
		Username:    username,
		Addr:        addr,
		ConnectedAt: time.Now(),
	}
	t.mu.Unlock()

	metrics.SessionOpened()
}

// SetRoom updates the room a session is currently in.
func (t *SessionTable) SetRoom(id, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, ok := t.sessions[id]; ok {
		info.Room = room
	}
}

// Untrack forgets a session.
func (t *SessionTable) Untrack(id string) {
	t.mu.Lock()
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()

	if ok {
		metrics.SessionClosed()
	}
}

// Get returns a copy of one session's info.
func (t *SessionTable) Get(id string) (SessionInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return *info, true
}

// Len returns the number of tracked sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Snapshot returns copies of all sessions ordered by connect time.
func (t *SessionTable) Snapshot() []SessionInfo {
	t.mu.RLock()
	out := make([]SessionInfo, 0, len(t.sessions))
	for _, info := range t.sessions {
		out = append(out, *info)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
