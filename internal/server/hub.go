package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Line dashboards are served from other hosts on the plant network.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message types pushed to websocket clients.
const (
	MessageCycle     = "cycle"
	MessageStatus    = "status"
	MessageTriggered = "triggered"
	MessageBusy      = "busy"
	MessageError     = "error"
)

// Message is the envelope for everything sent to websocket clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ClientRequest is a command sent by a websocket client: "trigger" runs a
// cycle, "status" asks for the current state.
type ClientRequest struct {
	Type   string `json:"type"`
	Serial string `json:"serial,omitempty"`
}

type client struct {
	send chan []byte
}

// Hub fans cycle results out to connected websocket clients. It implements
// cycle.Sink. Clients that fall behind miss messages rather than stall the
// cycle.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Name implements cycle.Sink.
func (h *Hub) Name() string { return "websocket" }

// Emit implements cycle.Sink.
func (h *Hub) Emit(_ context.Context, res *cycle.Result) error {
	data, err := json.Marshal(Message{Type: MessageCycle, Payload: res})
	if err != nil {
		return fmt.Errorf("marshal cycle result: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// Broadcast queues data for every client and returns how many accepted it.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			n++
		default:
			websocketDroppedTotal.Inc()
		}
	}
	return n
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) register() *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &client{send: make(chan []byte, sendBuffer)}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// sendTo queues data for a single client.
func (h *Hub) sendTo(c *client, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		websocketDroppedTotal.Inc()
		return false
	}
}

// wsHandler upgrades the connection and streams cycle results.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	c := s.hub.register()
	if c == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	websocketConnections.Inc()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	go writePump(conn, c)
	s.readPump(conn, c)
}

// readPump handles client commands until the connection fails.
func (s *Server) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		s.hub.unregister(c)
		websocketConnections.Dec()
		_ = conn.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		reply := s.handleClientRequest(data)
		out, err := json.Marshal(reply)
		if err != nil {
			slog.Error("Failed to marshal WebSocket reply", "error", err)
			continue
		}
		s.hub.sendTo(c, out)
	}
}

func (s *Server) handleClientRequest(data []byte) Message {
	var req ClientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Message{Type: MessageError, Error: fmt.Sprintf("invalid request: %v", err)}
	}

	switch req.Type {
	case "status":
		return Message{Type: MessageStatus, Payload: StatusResponse{State: s.orch.State().String(), Last: s.orch.Last()}}
	case "trigger":
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		res, err := s.orch.Trigger(ctx, cycle.Request{Serial: req.Serial, Trigger: "websocket"})
		if errors.Is(err, cycle.ErrBusy) {
			return Message{Type: MessageBusy, Error: err.Error()}
		}
		if err != nil {
			return Message{Type: MessageError, Error: err.Error()}
		}
		return Message{Type: MessageTriggered, Payload: map[string]string{"id": res.ID.String()}}
	default:
		return Message{Type: MessageError, Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
}

// writePump drains the client queue and keeps the connection alive.
func writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
