package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"datachat/src/infrastructure/job"
	"datachat/src/storage/minioctrl"
)

// Ingest godoc
// @Summary Enqueue an ingestion batch
// @Tags ingestion
// @Accept json
// @Produce json
// @Param body body job.IngestPayload true "Source and schema configuration"
// @Success 202 {object} job.IngestionJob
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /ingest [post]
func (h *Handler) Ingest(c *gin.Context) {
	var payload job.IngestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	if err := validatePayload(payload); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	queued, err := h.jobService.Enqueue(c.Request.Context(), payload)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusAccepted, queued)
}

type syncIngestResponse struct {
	Indexed int `json:"indexed"`
}

// IngestSync godoc
// @Summary Run an ingestion batch inline and wait for it
// @Tags ingestion
// @Accept json
// @Produce json
// @Param body body job.IngestPayload true "Source and schema configuration"
// @Success 200 {object} syncIngestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /ingest/sync [post]
func (h *Handler) IngestSync(c *gin.Context) {
	var payload job.IngestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	if err := validatePayload(payload); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	raw, err := payloadJSON(payload)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	indexed, err := h.ingestTask.HandleIngestion(c.Request.Context(), raw, nil)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, syncIngestResponse{Indexed: indexed})
}

// GetIngestStatus godoc
// @Summary Get the status of a queued ingestion batch
// @Tags ingestion
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} job.IngestionJob
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /ingest/{batchId} [get]
func (h *Handler) GetIngestStatus(c *gin.Context) {
	batchID := c.Param("batchId")

	status, err := h.jobService.Status(c.Request.Context(), batchID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if status == nil {
		sendError(c, http.StatusNotFound, fmt.Errorf("unknown batch id: %s", batchID))
		return
	}

	sendJSON(c, http.StatusOK, status)
}

type uploadSourceResponse struct {
	Bucket string `json:"bucket"`
	Object string `json:"object"`
}

// UploadSource godoc
// @Summary Upload a source file to staging storage for later ingestion
// @Tags ingestion
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Source file"
// @Success 201 {object} uploadSourceResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /ingest/upload [post]
func (h *Handler) UploadSource(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.storage.EnsureBucketExists(ctx, minioctrl.SourcesBucket); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	object := uuid.New().String() + "-" + filepath.Base(fileHeader.Filename)
	if err := h.storage.PutObject(ctx, minioctrl.SourcesBucket, object, data); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusCreated, uploadSourceResponse{
		Bucket: minioctrl.SourcesBucket,
		Object: object,
	})
}

func payloadJSON(payload job.IngestPayload) (json.RawMessage, error) {
	return json.Marshal(payload)
}

func validatePayload(payload job.IngestPayload) error {
	if err := payload.Source.Validate(); err != nil {
		return err
	}
	return payload.Ingestion.Validate()
}
