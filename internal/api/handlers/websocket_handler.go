package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/query"
	"github.com/askdata/backend/pkg/logger"
)

type WebSocketHandler struct {
	service *query.Service
}

func NewWebSocketHandler(service *query.Service) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

type wsRequest struct {
	Type      string `json:"type"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// HandleConnection serves one chat session. A connection without an
// explicit session ID gets a generated one so follow-up questions share
// history.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	connSession := uuid.NewString()
	logger.Info("WebSocket connection established", zap.String("session_id", connSession))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", connSession))
	}()

	for {
		var req wsRequest
		if err := c.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if req.Type != "question" || req.Question == "" {
			h.send(c, wsMessage{Type: "error", Message: "Expected a 'question' message"})
			continue
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = connSession
		}

		h.send(c, wsMessage{Type: "status", Message: "Answering..."})

		resp, err := h.service.Ask(context.Background(), req.Question, sessionID)
		if errors.Is(err, query.ErrNoDataset) {
			h.send(c, wsMessage{Type: "error", Message: query.ErrNoDataset.Error()})
			continue
		}
		if err != nil {
			logger.Error("WebSocket question failed", zap.Error(err))
			h.send(c, wsMessage{Type: "error", Message: "Failed to answer question"})
			continue
		}

		h.send(c, wsMessage{Type: "result", Payload: resp})
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg wsMessage) {
	if err := c.WriteJSON(msg); err != nil {
		logger.Warn("Failed to write WebSocket message", zap.Error(err))
	}
}
