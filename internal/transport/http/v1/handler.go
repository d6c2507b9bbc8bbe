// Package v1 provides the versioned HTTP handlers for the chat relay.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With("handler", "v1"),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Streaming chat
	e.POST("/v1/chat", h.Chat)

	// Conversations
	e.GET("/v1/conversations", h.ListConversations)
	e.POST("/v1/conversations", h.CreateConversation)
	e.DELETE("/v1/conversations", h.DeleteAllConversations)
	e.GET("/v1/conversations/:id", h.GetConversation)
	e.PATCH("/v1/conversations/:id", h.RenameConversation)
	e.DELETE("/v1/conversations/:id", h.DeleteConversation)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorJSON maps service errors onto status codes.
func (h *Handler) errorJSON(c echo.Context, err error) error {
	var denied *service.DeniedError
	switch {
	case errors.As(err, &denied):
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: service.ErrPolicyDenied.Error(), Reasons: denied.Reasons})
	case errors.Is(err, service.ErrConversationNotFound):
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidTitle):
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	}
}
