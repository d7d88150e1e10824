package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one learner connection bound to a live attempt. The attempt id
// follows retries of the same session.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	LearnerID string

	mu        sync.Mutex
	attemptID string
	closed    bool
	unwatch   func()
	logger    *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, learnerID, attemptID string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		LearnerID: learnerID,
		attemptID: attemptID,
		logger:    hub.logger.With("learner_id", learnerID),
	}
}

func (c *Client) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

func (c *Client) setAttemptID(id string) {
	c.mu.Lock()
	c.attemptID = id
	c.mu.Unlock()
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendError("Invalid message format")
			continue
		}
		// handled inline so one learner's actions apply in order
		c.Hub.dispatch(c, msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WebSocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage never blocks. A full buffer drops the message; the next state
// tick resynchronises the client.
func (c *Client) SendMessage(msgType MessageType, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		c.logger.Error("Failed to marshal message", "type", msgType, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.logger.Warn("Client send buffer full, dropping message", "type", msgType)
	}
}

func (c *Client) SendError(message string) {
	c.SendMessage(MessageTypeError, ErrorPayload{Message: message})
}

func (c *Client) close() {
	c.mu.Lock()
	unwatch := c.unwatch
	c.unwatch = nil
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}
