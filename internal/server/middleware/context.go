package middleware

import (
	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/graph"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

// App bundles the services shared by all request handlers. It is
// constructed once at startup; per-session state lives in the query
// client's session store, never here.
type App struct {
	Graph    store.GraphStore
	AiClient ai.CopilotAIClient
	Query    *query.CopilotQueryClient
	Scorer   *graph.ContextScorer
	Queue    *amqp091.Channel

	APIKey string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
