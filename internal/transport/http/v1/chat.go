package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// Chat streams a generated reply as plain text.
// POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}

	w := &textStreamWriter{c: c}
	res, err := h.service.Relay(c.Request().Context(), &req, w)
	if err != nil {
		return h.errorJSON(c, err)
	}

	if res.GenerationErr != nil {
		// The status line is gone; the trailer is the only place left for it.
		c.Response().Header().Set(domain.TrailerStreamError, res.GenerationErr.Error())
	}
	return nil
}

// textStreamWriter writes fragments to the response body as they arrive.
type textStreamWriter struct {
	c       echo.Context
	flusher http.Flusher
}

func (w *textStreamWriter) Begin(conversationID string) error {
	header := w.c.Response().Header()
	header.Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	header.Set("Cache-Control", "no-cache")
	header.Set(domain.HeaderConversationID, conversationID)
	header.Set("Trailer", domain.TrailerStreamError)
	w.c.Response().WriteHeader(http.StatusOK)

	if flusher, ok := w.c.Response().Writer.(http.Flusher); ok {
		w.flusher = flusher
		flusher.Flush()
	}
	return w.c.Request().Context().Err()
}

func (w *textStreamWriter) Write(fragment string) error {
	if err := w.c.Request().Context().Err(); err != nil {
		return err
	}
	if _, err := w.c.Response().Write([]byte(fragment)); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
