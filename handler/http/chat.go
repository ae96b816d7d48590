package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"datachat/src/core/chat"
)

// Chat godoc
// @Summary Answer a question with retrieved context
// @Tags chat
// @Accept json
// @Produce json
// @Param body body chat.Request true "Chat request"
// @Success 200 {object} chat.Response
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, resp)
}

// ChatStream godoc
// @Summary Answer a question, streaming the response as server-sent events
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Param body body chat.Request true "Chat request"
// @Failure 400 {object} ErrorResponse
// @Router /chat/stream [post]
func (h *Handler) ChatStream(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	err := h.chatService.ChatStream(c.Request.Context(), req, func(event chat.StreamEvent) error {
		c.SSEvent(event.Type, event)
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		// Headers are already sent; report the failure in-stream.
		c.SSEvent("error", ErrorResponse{Code: "STREAM_ERROR", Message: err.Error()})
		c.Writer.Flush()
	}
}

type chatHistoryResponse struct {
	UserName string      `json:"user_name"`
	Turns    []chat.Turn `json:"turns"`
}

// GetChatHistory godoc
// @Summary Get a user's recent conversation turns, oldest first
// @Tags chat
// @Produce json
// @Param user path string true "User name"
// @Param limit query int false "Maximum turns to return"
// @Success 200 {object} chatHistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/history/{user} [get]
func (h *Handler) GetChatHistory(c *gin.Context) {
	userName := c.Param("user")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			sendError(c, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", raw))
			return
		}
		limit = parsed
	}

	turns, err := h.chatService.History(c.Request.Context(), userName, limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, chatHistoryResponse{
		UserName: userName,
		Turns:    turns,
	})
}
