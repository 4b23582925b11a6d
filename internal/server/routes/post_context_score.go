package routes

import (
	"net/http"

	"github.com/MohammadH3218/encryptgate-copilot/internal/metrics"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// ContextScoreHandler computes the anomaly score for a sender/recipients
// pairing. It always answers 200: graph-store failures degrade to the
// scorer's neutral prior instead of an error.
func ContextScoreHandler(c echo.Context) error {
	type contextScoreBody struct {
		Sender     string   `json:"sender" validate:"required"`
		Recipients []string `json:"recipients" validate:"required,min=1"`
		MessageID  string   `json:"message_id"`
	}

	data := new(contextScoreBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"message": "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"message": "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	score := app.Scorer.Score(c.Request().Context(), data.Sender, data.Recipients, data.MessageID)
	metrics.ContextScores.Observe(score.ContextScore)

	return c.JSON(http.StatusOK, score)
}
