// Package hub is the real-time notification fabric: a registry of live
// connections per user with best-effort, at-most-once fan-out. It knows
// nothing about rides.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/observability"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied
// by *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session serializes writes to one connection so concurrent fan-outs
// never interleave frames.
type session struct {
	conn Conn
	mu   sync.Mutex
}

func (s *session) send(v interface{}, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteJSON(v)
}

// Hub maps userID to that user's open connections. A user may hold
// several (multi-device); a user with none has no entry at all.
//
// The registry lock guards only map membership. Actual sends happen
// outside it against per-session mutexes, so one slow connection never
// blocks unrelated users.
type Hub struct {
	mu           sync.RWMutex
	users        map[string]map[Conn]*session
	writeTimeout time.Duration
	logger       *slog.Logger
}

func New(logger *slog.Logger, writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		users:        make(map[string]map[Conn]*session),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Register adds a connection for userID. Registering the same
// connection twice is a no-op.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.users[userID]
	if !ok {
		bucket = make(map[Conn]*session)
		h.users[userID] = bucket
	}
	if _, ok := bucket[conn]; !ok {
		bucket[conn] = &session{conn: conn}
		observability.WSConnections.Inc()
	}
}

// Unregister drops the connection and removes the user's bucket when it
// was the last one.
func (h *Hub) Unregister(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.users[userID]
	if !ok {
		return
	}
	if _, ok := bucket[conn]; ok {
		delete(bucket, conn)
		observability.WSConnections.Dec()
	}
	if len(bucket) == 0 {
		delete(h.users, userID)
	}
}

// SendTo delivers event to every live connection of userID. A failed
// send marks the connection dead: it is closed and unregistered, never
// retried. Failures are absorbed here and surfaced only as metrics and
// warn logs.
func (h *Hub) SendTo(userID string, event interface{}) {
	h.mu.RLock()
	sessions := make(map[Conn]*session, len(h.users[userID]))
	for c, s := range h.users[userID] {
		sessions[c] = s
	}
	h.mu.RUnlock()

	for conn, s := range sessions {
		if err := s.send(event, h.writeTimeout); err != nil {
			h.prune(userID, conn, err)
			continue
		}
		observability.NotificationsSent.Inc()
	}
}

// Broadcast delivers event to every registered user, with the same
// dead-connection cleanup as SendTo.
func (h *Hub) Broadcast(event interface{}) {
	h.mu.RLock()
	targets := make(map[string]map[Conn]*session, len(h.users))
	for userID, bucket := range h.users {
		copied := make(map[Conn]*session, len(bucket))
		for c, s := range bucket {
			copied[c] = s
		}
		targets[userID] = copied
	}
	h.mu.RUnlock()

	for userID, bucket := range targets {
		for conn, s := range bucket {
			if err := s.send(event, h.writeTimeout); err != nil {
				h.prune(userID, conn, err)
				continue
			}
			observability.NotificationsSent.Inc()
		}
	}
}

// Connected reports whether userID has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Users returns the number of users with live connections.
func (h *Hub) Users() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) prune(userID string, conn Conn, err error) {
	observability.NotificationsFailed.Inc()
	if h.logger != nil {
		h.logger.Warn("dropping dead connection", "user_id", userID, "error", err)
	}
	h.Unregister(userID, conn)
	_ = conn.Close()
}
