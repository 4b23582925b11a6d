package routes

import (
	"encoding/json"
	"net/http"

	"github.com/MohammadH3218/encryptgate-copilot/internal/queue"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// IngestMessageHandler accepts a normalized message record and queues it
// for enrichment. Ingestion is fire-and-forget: the graph write happens in
// the worker.
func IngestMessageHandler(c echo.Context) error {
	type ingestResponse struct {
		Message   string `json:"message"`
		MessageID string `json:"message_id,omitempty"`
	}

	data := new(common.EmailMessage)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if data.MessageID == "" || data.Sender == "" {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "message_id and sender are required",
		})
	}

	body, err := json.Marshal(data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	app := c.(*middleware.AppContext).App
	if err := queue.PublishFIFO(app.Queue, queue.EnrichQueue, body); err != nil {
		logger.Error("Failed to queue message for enrichment", "message_id", data.MessageID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Failed to queue message",
		})
	}

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message:   "Message queued for enrichment",
		MessageID: data.MessageID,
	})
}
