package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/service"
)

// WebSocket message types. Job events use the spooler event names.
const (
	EventPrint    = "print"
	EventResponse = "response"
	EventError    = "error"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// WSMessage is sent to clients
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsRequest is received from clients
type wsRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
}

// Hub tracks connected clients for broadcasts
type Hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]bool
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*WSClient]bool),
		logger:  logger,
	}
}

func (h *Hub) add(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

// remove unregisters client and closes its send channel
func (h *Hub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// deliver queues msg for client and drops it when the buffer is full.
// The caller must hold h.mu.
func (h *Hub) deliver(client *WSClient, msg WSMessage) {
	select {
	case client.send <- msg:
	default:
		h.logger.Warn("WebSocket send buffer full, dropping message", zap.String("event", msg.Event))
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJobEvent sends a job event to all connected clients
func (h *Hub) BroadcastJobEvent(event printer.JobEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	message := WSMessage{Event: event.Type, Data: event.Job}
	for client := range h.clients {
		h.deliver(client, message)
	}
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		server: s,
	}

	s.hub.add(client)
	s.logger.Info("WebSocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.server.logger.Warn("WebSocket write error", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.hub.remove(c)
		c.conn.Close()
		c.server.logger.Info("WebSocket client disconnected")
	}()

	for {
		var msg wsRequest
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) handleMessage(msg *wsRequest) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

// handlePrintEvent queues a print. Progress arrives as job events.
func (c *WSClient) handlePrintEvent(data json.RawMessage) {
	var req service.PrintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(fmt.Sprintf("invalid print request: %v", err))
		return
	}

	job, err := c.server.service.Submit(req)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.reply(WSMessage{
		Event: EventResponse,
		Data: map[string]any{
			"success": true,
			"job_id":  job.ID,
		},
	})
}

func (c *WSClient) sendError(message string) {
	c.reply(WSMessage{
		Event: EventError,
		Data:  map[string]any{"error": message},
	})
}

func (c *WSClient) reply(msg WSMessage) {
	hub := c.server.hub
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.clients[c] {
		hub.deliver(c, msg)
	}
}
