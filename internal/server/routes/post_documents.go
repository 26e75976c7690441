package routes

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trellis-kg/trellis/internal/queue"
	"github.com/trellis-kg/trellis/internal/server/middleware"
	"github.com/trellis-kg/trellis/internal/storage"
	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/logger"
)

// IngestDocumentsHandler accepts documents for a dataset, parks the
// payloads in object storage and enqueues the cognify run. The response
// carries the run id for polling.
func IngestDocumentsHandler(c echo.Context) error {
	type documentBody struct {
		Name     string `json:"name" validate:"required"`
		MimeType string `json:"mime_type"`
		Content  string `json:"content" validate:"required"`
	}

	type ingestBody struct {
		Dataset   string         `param:"dataset" validate:"required"`
		Pipeline  string         `json:"pipeline"`
		Documents []documentBody `json:"documents" validate:"required,min=1,dive"`
	}

	type ingestResponse struct {
		Message string `json:"message"`
		RunID   string `json:"run_id,omitempty"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if data.Pipeline == "" {
		data.Pipeline = "cognify"
	}

	run, err := datapoint.NewPipelineRun(data.Dataset, data.Pipeline)
	if err != nil {
		logger.Error("Failed to create run", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	refs := make([]queue.DocumentRef, 0, len(data.Documents))
	for _, doc := range data.Documents {
		content, err := base64.StdEncoding.DecodeString(doc.Content)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ingestResponse{
				Message: "Document content must be base64 encoded",
			})
		}

		mimeType := doc.MimeType
		if mimeType == "" {
			mimeType = "text/plain"
		}

		key, err := storage.PutDocument(ctx, app.S3, data.Dataset, datapoint.ContentHash(content), mimeType, content)
		if err != nil {
			logger.Error("Failed to upload document", "name", doc.Name, "err", err)
			return c.JSON(http.StatusInternalServerError, ingestResponse{
				Message: "Internal server error",
			})
		}
		refs = append(refs, queue.DocumentRef{
			Name:     doc.Name,
			MimeType: mimeType,
			Key:      key,
		})
	}

	if err := app.Stores.Relational.SaveRun(ctx, *run); err != nil {
		logger.Error("Failed to save run", "run_id", run.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.IngestMessage{
		RunID:     run.ID,
		Dataset:   data.Dataset,
		Pipeline:  data.Pipeline,
		Documents: refs,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.Publish(app.Queue, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("Failed to publish ingest message", "run_id", run.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message: "Documents queued for ingestion",
		RunID:   run.ID,
	})
}
