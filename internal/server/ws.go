package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
)

const (
	// WriteWait is the timeout for writing to a WebSocket.
	WriteWait = 10 * time.Second

	// PongWait is the timeout for pong responses.
	PongWait = 60 * time.Second

	// PingPeriod is how often to send ping frames.
	PingPeriod = (PongWait * 9) / 10
)

// GET /ws
//
// Each text frame is a process request; each reply is the response JSON.
// Requests on one connection are processed in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(WriteWait))
		return conn.WriteMessage(messageType, data)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var payload any
		var req orchestrator.Request
		if err := json.Unmarshal(data, &req); err != nil {
			payload = ErrBadRequest.WithDetails(err.Error())
		} else if err := validateRequest(req); err != nil {
			payload = ErrBadRequest.WithDetails(err.Error())
		} else {
			payload = s.svc.Process(ctx, req)
		}

		out, err := json.Marshal(payload)
		if err != nil {
			log.Warn().Err(err).Msg("failed to encode websocket reply")
			return
		}
		// processing may outlast PongWait
		conn.SetReadDeadline(time.Now().Add(PongWait))
		if err := write(websocket.TextMessage, out); err != nil {
			return
		}
	}
}
