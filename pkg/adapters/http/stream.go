package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/runner"
)

// subscriberBuffer bounds how far a slow client may fall behind before events are dropped.
const subscriberBuffer = 64

// StreamEvent is one server-sent event.
type StreamEvent struct {
	Name string
	Data string
}

// TokenEvent is the payload of a "token" event.
type TokenEvent struct {
	MessageID string `json:"message_id"`
	Token     string `json:"token"`
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	delay  time.Duration
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan<- StreamEvent]struct{} // SessionID -> Set of Channels
	streamers   map[string]*runner.Streamer
}

// NewStreamManager creates a manager that streams replies with the given per-token delay.
func NewStreamManager(delay time.Duration, logger *slog.Logger) *StreamManager {
	return &StreamManager{
		delay:       delay,
		logger:      logger,
		subscribers: make(map[string]map[chan<- StreamEvent]struct{}),
		streamers:   make(map[string]*runner.Streamer),
	}
}

// Subscribe registers a listener for sessionID. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan StreamEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan StreamEvent, subscriberBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- StreamEvent]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		subs, ok := sm.subscribers[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(sm.subscribers, sessionID)
			if st, ok := sm.streamers[sessionID]; ok {
				st.Stop()
				delete(sm.streamers, sessionID)
			}
		}
	}
}

// HasSubscribers reports whether anyone listens to sessionID.
func (sm *StreamManager) HasSubscribers(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID]) > 0
}

// Broadcast sends ev to every subscriber of sessionID, dropping it for clients whose buffer is full.
func (sm *StreamManager) Broadcast(sessionID string, ev StreamEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID, "event", ev.Name)
		}
	}
}

// Publish broadcasts the diff between two snapshots and then streams the newest
// assistant reply token by token. A new Publish for the same session cancels the
// token stream of the previous one.
func (sm *StreamManager) Publish(prev, next *domain.Session) {
	if next == nil || !sm.HasSubscribers(next.ID) {
		return
	}

	diff := domain.Diff(prev, next)
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("failed to encode diff", "session_id", next.ID, "err", err)
		return
	}
	sm.Broadcast(next.ID, StreamEvent{Name: "diff", Data: string(data)})

	var reply *domain.Message
	for i := len(diff.Messages) - 1; i >= 0; i-- {
		if diff.Messages[i].Role == domain.RoleAssistant {
			reply = &diff.Messages[i]
			break
		}
	}
	if reply == nil {
		return
	}

	tokens, ok := sm.begin(next.ID, reply.Content)
	if !ok {
		return
	}
	go func(id, messageID string) {
		for tok := range tokens {
			payload, _ := json.Marshal(TokenEvent{MessageID: messageID, Token: tok})
			sm.Broadcast(id, StreamEvent{Name: "token", Data: string(payload)})
		}
	}(next.ID, reply.ID)
}

// begin starts streaming text on the session's streamer. The subscriber check,
// the streamer lookup and Begin share one critical section with unsubscribe, so a
// streamer only exists while the session has listeners and the last unsubscribe
// always stops it.
func (sm *StreamManager) begin(sessionID, text string) (<-chan string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.subscribers[sessionID]) == 0 {
		return nil, false
	}
	st, ok := sm.streamers[sessionID]
	if !ok {
		st = runner.NewStreamer(sm.delay)
		sm.streamers[sessionID] = st
	}
	return st.Begin(context.Background(), text), true
}
