package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/pda"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleStream pushes committed TxEvents as JSON text frames. The optional
// program query parameter keeps only events of that program id.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var program string
	if raw := r.URL.Query().Get("program"); raw != "" {
		id, err := pda.ParseAddress(raw)
		if err != nil {
			s.writeError(w, r, errBadRequest("program: %v", err))
			return
		}
		program = id.String()
	}

	// Subscribe first so no commit between the handshake and the first read is lost.
	events, cancel := s.ledger.Subscribe(s.buffer)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		cancel()
		return
	}

	clientID := uuid.NewString()
	log := s.logger.With(zap.String("client_id", clientID), zap.String("request_id", RequestID(r.Context())))
	observability.AddStreamSubscribers(1)
	log.Info("stream opened", zap.String("program", program))

	defer func() {
		cancel()
		observability.AddStreamSubscribers(-1)
		conn.Close()
		log.Info("stream closed")
	}()

	// Drain client frames so pongs and close frames are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !matches(e, program) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func matches(e domain.TxEvent, program string) bool {
	return program == "" || e.Program == program
}
