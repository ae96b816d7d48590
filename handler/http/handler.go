package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"datachat/src/core/chat"
	"datachat/src/embedding"
	"datachat/src/infrastructure/integrations/ollama"
	"datachat/src/infrastructure/job"
	"datachat/src/source"
	"datachat/src/storage/minioctrl"
)

type Handler struct {
	chatService  *chat.Service
	jobService   *job.Service
	ingestTask   *job.IngestTask
	sink         *embedding.Sink
	storage      *minioctrl.MinioService
	ollamaClient *ollama.Client
	llmServerURL string
}

func NewHandler(
	chatService *chat.Service,
	jobService *job.Service,
	ingestTask *job.IngestTask,
	sink *embedding.Sink,
	storage *minioctrl.MinioService,
	ollamaClient *ollama.Client,
	llmServerURL string,
) *Handler {
	return &Handler{
		chatService:  chatService,
		jobService:   jobService,
		ingestTask:   ingestTask,
		sink:         sink,
		storage:      storage,
		ollamaClient: ollamaClient,
		llmServerURL: llmServerURL,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Chat routes
	v1.POST("/chat", h.Chat)
	v1.POST("/chat/stream", h.ChatStream)
	v1.GET("/chat/history/:user", h.GetChatHistory)

	// LLM routes
	v1.POST("/llm/switch", h.SwitchProvider)

	// Ingestion routes
	v1.POST("/ingest", h.Ingest)
	v1.POST("/ingest/sync", h.IngestSync)
	v1.POST("/ingest/upload", h.UploadSource)
	v1.GET("/ingest/:batchId", h.GetIngestStatus)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, embedding.ErrNotInitialized):
		code = "NOT_READY"
		status = http.StatusServiceUnavailable
	case errors.Is(err, source.ErrNotFound):
		code = "SOURCE_NOT_FOUND"
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrConnection):
		code = "SOURCE_UNAVAILABLE"
		status = http.StatusBadGateway
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
