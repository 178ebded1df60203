// Package server implements the HTTP and WebSocket front end of LFG chat.
//
// The implementation is organized into specialized files for configuration,
// origin checks, connection adaptation, routing, and HTTP handlers. The room
// engine itself lives in package chat; this package only upgrades
// connections and hands them to chat sessions.
package server
