package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthStatus struct {
	Status    string `json:"status"`
	IndexSize int    `json:"index_size"`
	LLMModels int    `json:"llm_models"`
}

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} healthStatus
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	ctx := c.Request.Context()

	size, err := h.sink.IndexSize(ctx)
	if err != nil {
		sendError(c, http.StatusServiceUnavailable, err)
		return
	}

	models, err := h.ollamaClient.Models(ctx)
	if err != nil {
		sendError(c, http.StatusServiceUnavailable, err)
		return
	}

	sendJSON(c, http.StatusOK, healthStatus{
		Status:    "ok",
		IndexSize: size,
		LLMModels: len(models),
	})
}
