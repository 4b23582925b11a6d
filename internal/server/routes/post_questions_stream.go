package routes

import (
	"encoding/json"
	"net/http"

	"github.com/MohammadH3218/encryptgate-copilot/internal/metrics"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"

	"github.com/labstack/echo/v4"
)

// AskQuestionStreamHandler runs a question through the agent loop and
// streams progress events as NDJSON. A client disconnect cancels the
// request context and stops the loop before the next hop.
func AskQuestionStreamHandler(c echo.Context) error {
	type askStreamBody struct {
		SessionID string                    `json:"session_id"`
		Question  string                    `json:"question" validate:"required"`
		Context   *query.TranslationContext `json:"context"`
	}

	data := new(askStreamBody)
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
	ctx := c.Request().Context()

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)
	enc := json.NewEncoder(c.Response())

	hops := 0
	events := app.Query.AskStream(ctx, query.AskParams{
		SessionID: data.SessionID,
		Question:  data.Question,
		Context:   data.Context,
	})

	for ev := range events {
		if ev.Type == query.EventThinking {
			hops = ev.Hop
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
		c.Response().Flush()
	}

	metrics.Questions.WithLabelValues("agent").Inc()
	if hops > 0 {
		metrics.AgentHops.Observe(float64(hops))
	}
	return nil
}
