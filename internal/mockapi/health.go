// ABOUTME: Fake liveness endpoints: GET /health and the health WebSocket
// ABOUTME: The socket pushes a status frame per interval and can be told to close with a chosen code

package mockapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/coven-console/internal/client"
)

// status builds the current health report
func (s *Server) status() (client.HealthStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	llm := "unconfigured"
	for _, c := range s.llmConfigs {
		if c.IsActive {
			llm = c.Name
		}
	}

	st := client.HealthStatus{
		Status:    "ok",
		Version:   Version,
		Timestamp: s.now().UTC(),
		Services: map[string]string{
			"database": "ok",
			"llm":      llm,
		},
	}
	if !s.healthy {
		st.Status = "unhealthy"
		st.Services["database"] = "down"
	}
	return st, s.healthy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, healthy := s.status()
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (s *Server) handleHealthSocket(w http.ResponseWriter, r *http.Request) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		if _, err := s.authenticate(tok); err != nil {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
	}

	s.mu.Lock()
	closeCode, closeNow := 0, false
	if len(s.closeQueue) > 0 {
		closeCode, closeNow = s.closeQueue[0], true
		s.closeQueue = s.closeQueue[1:]
	}
	signal := s.closeSignal
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("health socket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if closeNow {
		s.closeWith(conn, closeCode)
		return
	}

	// Drain client frames so control messages are processed and disconnects noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		st, _ := s.status()
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(st)
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(s.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-signal:
			s.mu.Lock()
			code := s.activeClose
			s.mu.Unlock()
			s.closeWith(conn, code)
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}

// closeWith ends a socket with code. 1006 cannot be sent on the wire, so the TCP connection is dropped instead.
func (s *Server) closeWith(conn *websocket.Conn, code int) {
	s.logger.Debug("closing health socket", "code", code)
	if code == websocket.CloseAbnormalClosure {
		_ = conn.Close()
		return
	}
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
