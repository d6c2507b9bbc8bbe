package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// ListConversations lists conversations, most recently updated first.
// GET /v1/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	conversations, err := h.service.ListConversations(c.Request().Context())
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": conversations,
	})
}

// CreateConversation creates an empty conversation.
// POST /v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	var req domain.CreateConversationRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
		}
	}

	conv, err := h.service.CreateConversation(c.Request().Context(), req.Title)
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// GetConversation returns a conversation and its messages.
// GET /v1/conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	detail, err := h.service.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// RenameConversation updates a conversation's title.
// PATCH /v1/conversations/:id
func (h *Handler) RenameConversation(c echo.Context) error {
	var req domain.RenameConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}

	conv, err := h.service.RenameConversation(c.Request().Context(), c.Param("id"), req.Title)
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation and its messages.
// DELETE /v1/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	if err := h.service.DeleteConversation(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAllConversations clears every conversation and message.
// DELETE /v1/conversations
func (h *Handler) DeleteAllConversations(c echo.Context) error {
	if err := h.service.DeleteAllConversations(c.Request().Context()); err != nil {
		return h.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
