// Package ws provides the WebSocket binding of the streaming chat API.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
)

// Handler serves chat over WebSocket. Frames on one connection are handled in
// order, so at most one reply streams per connection at a time.
type Handler struct {
	service  *service.Service
	cfg      *config.Config
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler.
func NewHandler(svc *service.Service, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		cfg:     cfg,
		log:     log.With("handler", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/chat/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and serves chat frames until it closes.
// GET /v1/chat/ws
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := &connection{ws: ws, writeTimeout: h.cfg.WSWriteTimeout}
	if h.cfg.WSMaxMessageSize > 0 {
		ws.SetReadLimit(h.cfg.WSMaxMessageSize)
	}

	go h.readPump(conn)
	return nil
}

func (h *Handler) readPump(conn *connection) {
	defer conn.ws.Close()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		h.handleMessage(conn, data)
	}
}

func (h *Handler) handleMessage(conn *connection, data []byte) {
	var frame domain.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		_ = conn.send(domain.StreamFrame{Type: domain.FrameError, Message: "invalid JSON message"})
		return
	}
	if frame.Type != domain.FrameChat {
		_ = conn.send(domain.StreamFrame{Type: domain.FrameError, Message: "unknown message type: " + frame.Type})
		return
	}

	res, err := h.service.Relay(context.Background(), &frame.ChatRequest, &frameWriter{conn: conn})
	if err != nil {
		errFrame := domain.StreamFrame{Type: domain.FrameError, Message: err.Error()}
		var denied *service.DeniedError
		if errors.As(err, &denied) {
			errFrame.Message = service.ErrPolicyDenied.Error()
			errFrame.Reasons = denied.Reasons
		}
		_ = conn.send(errFrame)
		return
	}

	if res.GenerationErr != nil {
		_ = conn.send(domain.StreamFrame{Type: domain.FrameError, ConversationID: res.ConversationID, Message: res.GenerationErr.Error()})
		return
	}
	_ = conn.send(domain.StreamFrame{Type: domain.FrameDone, ConversationID: res.ConversationID, Text: res.Text})
}

// connection serializes writes to one socket.
type connection struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *connection) send(frame domain.StreamFrame) error {
	frame.Ts = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteJSON(frame)
}

// frameWriter adapts a connection to service.StreamWriter.
type frameWriter struct {
	conn *connection
}

func (w *frameWriter) Begin(conversationID string) error {
	return w.conn.send(domain.StreamFrame{Type: domain.FrameConversation, ConversationID: conversationID})
}

func (w *frameWriter) Write(fragment string) error {
	return w.conn.send(domain.StreamFrame{Type: domain.FrameDelta, Text: fragment})
}
