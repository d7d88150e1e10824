package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/services"
)

const (
	DefaultTick    = time.Second
	requestTimeout = 30 * time.Second
)

// Hub owns the live player connections. It pushes session events as they
// happen and a state snapshot every tick so countdowns stay current.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client

	player services.PlayerService
	tick   time.Duration
	logger *slog.Logger

	mu   sync.RWMutex
	done chan struct{}
}

func NewHub(player services.PlayerService, tick time.Duration, logger *slog.Logger) *Hub {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		player:     player,
		tick:       tick,
		logger:     logger.With("component", "websocket_hub"),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.broadcastState()

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Add hands c to the running hub. It reports false once Run has returned,
// in which case the caller still owns the connection.
func (h *Hub) Add(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Connected reports the number of registered clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	unwatch, err := h.player.Watch(ctx, c.LearnerID, c.AttemptID(), func(e attempt.Event) {
		h.forward(c, e)
	})
	if err != nil {
		c.logger.Warn("Failed to watch attempt", "attempt_id", c.AttemptID(), "error", err)
		c.SendError(err.Error())
		c.close()
		return
	}
	c.mu.Lock()
	c.unwatch = unwatch
	c.mu.Unlock()

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	c.logger.Info("Client registered", "attempt_id", c.AttemptID())
	if view, err := h.player.Snapshot(ctx, c.LearnerID, c.AttemptID()); err == nil {
		c.SendMessage(MessageTypeConnected, view)
	}
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.close()
		c.logger.Info("Client unregistered", "attempt_id", c.AttemptID())
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) broadcastState() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	ctx := context.Background()
	for _, c := range clients {
		view, err := h.player.Snapshot(ctx, c.LearnerID, c.AttemptID())
		if err != nil {
			continue
		}
		c.SendMessage(MessageTypeState, view)
	}
}

// forward runs on the session's event delivery path; it must not block.
func (h *Hub) forward(c *Client, e attempt.Event) {
	if e.Type == attempt.EventRetried {
		c.setAttemptID(e.AttemptID)
	}
	c.SendMessage(MessageTypeEvent, e)
}

func (h *Hub) dispatch(c *Client, msg inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	learnerID, attemptID := c.LearnerID, c.AttemptID()

	var (
		reply   MessageType
		payload any
		err     error
	)
	switch msg.Type {
	case MessageTypeSignal:
		var sig proctoring.Signal
		if err = decode(msg.Payload, &sig); err == nil {
			reply = MessageTypeSignalResult
			payload, err = h.player.RecordSignal(ctx, learnerID, attemptID, sig)
		}

	case MessageTypeAnswer:
		var p AnswerPayload
		if err = decode(msg.Payload, &p); err == nil {
			reply = MessageTypeState
			payload, err = h.player.Answer(ctx, learnerID, attemptID, &services.AnswerRequest{Index: p.Index, Answer: p.Answer})
		}

	case MessageTypeNext:
		reply = MessageTypeStep
		payload, err = h.player.Next(ctx, learnerID, attemptID)

	case MessageTypeBack:
		reply = MessageTypeState
		payload, err = h.player.Navigate(ctx, learnerID, attemptID, &services.NavigateRequest{Back: true})

	case MessageTypeGoTo:
		var p GoToPayload
		if err = decode(msg.Payload, &p); err == nil {
			reply = MessageTypeState
			payload, err = h.player.Navigate(ctx, learnerID, attemptID, &services.NavigateRequest{Index: &p.Index})
		}

	case MessageTypeSubmit:
		reply = MessageTypeResult
		payload, err = h.player.Submit(ctx, learnerID, attemptID)

	case MessageTypeRetry:
		var p RetryPayload
		if err = decode(msg.Payload, &p); err == nil {
			var view *attempt.View
			view, err = h.player.Retry(ctx, learnerID, attemptID, &services.RetryRequest{Force: p.Force})
			if err == nil {
				c.setAttemptID(view.AttemptID)
			}
			reply, payload = MessageTypeState, view
		}

	case MessageTypeSnapshot:
		reply = MessageTypeState
		payload, err = h.player.Snapshot(ctx, learnerID, attemptID)

	case MessageTypePing:
		c.SendMessage(MessageTypePong, nil)
		return

	default:
		c.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type))
		return
	}

	if err != nil {
		c.logger.Debug("WebSocket action failed", "type", msg.Type, "attempt_id", attemptID, "error", err)
		c.SendError(err.Error())
		return
	}
	c.SendMessage(reply, payload)
}

var errMissingPayload = errors.New("missing payload")

func decode(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		if _, ok := dest.(*RetryPayload); ok {
			return nil
		}
		return errMissingPayload
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
