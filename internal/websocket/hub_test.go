package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/services"
)

// stubPlayer implements the calls the hub makes; anything else panics.
type stubPlayer struct {
	services.PlayerService

	mu       sync.Mutex
	listener func(attempt.Event)
	signals  []proctoring.Signal
}

func (p *stubPlayer) Watch(ctx context.Context, learnerID, attemptID string, fn func(attempt.Event)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if attemptID == "missing" {
		return nil, services.ErrAttemptNotFound
	}
	p.listener = fn
	return func() {}, nil
}

func (p *stubPlayer) Snapshot(ctx context.Context, learnerID, attemptID string) (*attempt.View, error) {
	return &attempt.View{AttemptID: attemptID, Status: models.AttemptInProgress, TotalQuestions: 3}, nil
}

func (p *stubPlayer) RecordSignal(ctx context.Context, learnerID, attemptID string, sig proctoring.Signal) (*services.SignalResponse, error) {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	return &services.SignalResponse{
		Observation: proctoring.Observation{Kind: models.ViolationTabSwitch, Signal: sig.Type, Effective: true},
		Effective:   true,
	}, nil
}

func (p *stubPlayer) recorded() []proctoring.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]proctoring.Signal(nil), p.signals...)
}

func (p *stubPlayer) emit(e attempt.Event) {
	p.mu.Lock()
	fn := p.listener
	p.mu.Unlock()
	fn(e)
}

type received struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T, tick time.Duration, attemptID string) (*stubPlayer, *websocket.Conn) {
	t.Helper()
	player := &stubPlayer{}
	hub := NewHub(player, tick, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, "learner-1", attemptID)
		if !hub.Add(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return player, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msgType MessageType, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Message{Type: msgType, Payload: payload}))
}

func TestHubConversation(t *testing.T) {
	player, conn := startHub(t, time.Hour, "attempt-1")

	connected := readMessage(t, conn)
	assert.Equal(t, MessageTypeConnected, connected.Type)
	var view attempt.View
	require.NoError(t, json.Unmarshal(connected.Payload, &view))
	assert.Equal(t, "attempt-1", view.AttemptID)

	send(t, conn, MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

	send(t, conn, MessageTypeSignal, proctoring.Signal{Type: proctoring.SignalVisibilityHidden})
	result := readMessage(t, conn)
	assert.Equal(t, MessageTypeSignalResult, result.Type)
	var resp services.SignalResponse
	require.NoError(t, json.Unmarshal(result.Payload, &resp))
	assert.True(t, resp.Effective)
	signals := player.recorded()
	require.Len(t, signals, 1)
	assert.Equal(t, proctoring.SignalVisibilityHidden, signals[0].Type)

	send(t, conn, MessageTypeSignal, nil)
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	send(t, conn, "dance", nil)
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)
}

func TestHubFollowsRetriedAttempt(t *testing.T) {
	player, conn := startHub(t, time.Hour, "attempt-1")
	require.Equal(t, MessageTypeConnected, readMessage(t, conn).Type)

	player.emit(attempt.Event{Type: attempt.EventRetried, AttemptID: "attempt-2", PreviousAttemptID: "attempt-1"})
	event := readMessage(t, conn)
	assert.Equal(t, MessageTypeEvent, event.Type)

	send(t, conn, MessageTypeSnapshot, nil)
	state := readMessage(t, conn)
	assert.Equal(t, MessageTypeState, state.Type)
	var view attempt.View
	require.NoError(t, json.Unmarshal(state.Payload, &view))
	assert.Equal(t, "attempt-2", view.AttemptID)
}

func TestHubTicksState(t *testing.T) {
	_, conn := startHub(t, 20*time.Millisecond, "attempt-1")
	require.Equal(t, MessageTypeConnected, readMessage(t, conn).Type)

	assert.Equal(t, MessageTypeState, readMessage(t, conn).Type)
	assert.Equal(t, MessageTypeState, readMessage(t, conn).Type)
}

func TestHubRejectsUnknownAttempt(t *testing.T) {
	_, conn := startHub(t, time.Hour, "missing")

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubAddAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub(&stubPlayer{}, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	added := make(chan bool, 1)
	go func() { added <- hub.Add(NewClient(hub, nil, "learner-1", "attempt-1")) }()

	select {
	case ok := <-added:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Add blocked on a stopped hub")
	}
	assert.Zero(t, hub.Connected())
}
