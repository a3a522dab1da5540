package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medichain/medichain/internal/platform/completion"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat", h.Chat)
	api.POST("/chat/insight", h.Insight)
}

type chatRequest struct {
	Summary  string          `json:"summary"`
	Messages json.RawMessage `json:"messages"`
}

func (h *Handler) Chat(c echo.Context) error {
	if !h.svc.Configured() {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "OPENAI_API_KEY not configured on server"})
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	// messages is decoded separately so a present-but-non-array value gets
	// its own message instead of the generic body error.
	var messages []completion.Message
	if len(req.Messages) > 0 && string(req.Messages) != "null" {
		if err := json.Unmarshal(req.Messages, &messages); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "messages must be an array"})
		}
	}

	reply, err := h.svc.Chat(c.Request().Context(), req.Summary, messages)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingSummary):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "summary is required"})
		case errors.Is(err, ErrMissingMessages):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "messages must be an array"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get chat response"})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}

type insightRequest struct {
	Summary  string `json:"summary"`
	Question string `json:"question"`
}

func (h *Handler) Insight(c echo.Context) error {
	if !h.svc.Configured() {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "OPENAI_API_KEY not configured on server"})
	}

	var req insightRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	insight, err := h.svc.Insight(c.Request().Context(), req.Summary, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingSummary):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "summary is required"})
		case errors.Is(err, ErrMissingQuestion):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get insight"})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"insight": insight})
}
