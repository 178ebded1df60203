// Package chat implements the room engine of the LFG chat server: the room
// registry, lossy fan-out rooms, the inbound command grammar and the
// per-connection session state machine.
//
// The package knows nothing about WebSockets. A session talks to its client
// through the Conn interface and to the shared rooms through Directory, so it
// can be driven in tests by in-memory fakes.
package chat
