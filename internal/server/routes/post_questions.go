package routes

import (
	"net/http"

	"github.com/MohammadH3218/encryptgate-copilot/internal/metrics"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"

	"github.com/labstack/echo/v4"
)

// AskQuestionHandler answers one analyst question synchronously.
func AskQuestionHandler(c echo.Context) error {
	type askQuestionBody struct {
		SessionID string                    `json:"session_id"`
		Question  string                    `json:"question" validate:"required"`
		Context   *query.TranslationContext `json:"context"`
	}

	data := new(askQuestionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, query.AskResult{
			Error: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, query.AskResult{
			Error: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	result := app.Query.Ask(ctx, query.AskParams{
		SessionID: data.SessionID,
		Question:  data.Question,
		Context:   data.Context,
	})

	mode := "cypher"
	if query.IsGlobalQuestion(data.Question) {
		mode = "global"
	}
	metrics.Questions.WithLabelValues(mode).Inc()

	return c.JSON(http.StatusOK, result)
}
