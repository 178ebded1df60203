// Package server exposes HTTP handlers, including health checks, the room
// and session diagnostics API, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tyrowin/lfgchat/internal/chat"
)

const healthMessage = "LFG chat server is running!"

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, healthMessage)
}

type roomsResponse struct {
	Rooms []chat.RoomStats `json:"rooms"`
}

type sessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// RoomsHandler lists every room with its current member count.
func (s *Server) RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, roomsResponse{Rooms: s.registry.Stats()})
}

// SessionsHandler lists live sessions from the diagnostics side-table.
func (s *Server) SessionsHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, sessionsResponse{Sessions: s.sessions.Snapshot()})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("error writing JSON response", zap.Error(err))
	}
}

// TestPageHandler serves an HTML test page for trying the chat from a
// browser: pick a username, then type messages or /create and /join commands.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>LFG Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #rooms { color: #555; margin: 10px 0; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>LFG Chat Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="usernameInput" placeholder="Username">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div id="rooms">Rooms: -</div>
    <div>
        <input type="text" id="messageInput" placeholder="Message, /create name or /join name" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const roomsDiv = document.getElementById('rooms');
        const usernameInput = document.getElementById('usernameInput');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'black';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            usernameInput.disabled = connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                ws.send(usernameInput.value.trim() || 'Guest');
                updateStatus(true);
            };

            ws.onmessage = function(event) {
                if (event.data.startsWith('rooms:')) {
                    roomsDiv.textContent = 'Rooms: ' + JSON.parse(event.data.slice(6)).join(', ');
                    return;
                }
                addMessage(event.data, 'green');
            };

            ws.onclose = function() {
                addMessage('Connection closed', 'gray');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const message = messageInput.value;
            if (message.trim() && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
