package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datachat/src/llm"
)

type switchProviderRequest struct {
	Model     string `json:"model" binding:"required"`
	ServerURL string `json:"server_url,omitempty"`
}

type switchProviderResponse struct {
	Model     string `json:"model"`
	ServerURL string `json:"server_url"`
}

// SwitchProvider godoc
// @Summary Switch the reasoning model serving chat requests
// @Tags llm
// @Accept json
// @Produce json
// @Param body body switchProviderRequest true "Model to switch to"
// @Success 200 {object} switchProviderResponse
// @Failure 400 {object} ErrorResponse
// @Router /llm/switch [post]
func (h *Handler) SwitchProvider(c *gin.Context) {
	var req switchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	serverURL := req.ServerURL
	if serverURL == "" {
		serverURL = h.llmServerURL
	}

	provider, err := llm.NewOllamaProvider(serverURL, req.Model)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	h.chatService.SwapProvider(provider)

	sendJSON(c, http.StatusOK, switchProviderResponse{
		Model:     req.Model,
		ServerURL: serverURL,
	})
}
