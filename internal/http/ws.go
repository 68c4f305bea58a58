package httpapi

import (
	"net/http"

	"github.com/example/ride-dispatch/internal/models"
)

// handleWS upgrades the connection and binds it to the authenticated
// user for the lifetime of the socket. The token rides in the query
// string because browser websocket clients cannot set headers.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	p, err := s.auth.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	s.hub.Register(p.UserID, conn)
	s.logger.Info("ws connected", "user_id", p.UserID)

	// Read loop keeps the connection alive and echoes client text back
	// wrapped in the message envelope. Exiting for any reason
	// unregisters the connection immediately.
	defer func() {
		s.hub.Unregister(p.UserID, conn)
		_ = conn.Close()
		s.logger.Info("ws disconnected", "user_id", p.UserID)
	}()
	conn.SetReadLimit(64 << 10)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.SendTo(p.UserID, models.MessageEvent{Type: models.EventMessage, Data: string(data)})
	}
}
