package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MohammadH3218/encryptgate-copilot/internal/queue"
	mid "github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"
	"github.com/MohammadH3218/encryptgate-copilot/internal/util"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	oai "github.com/MohammadH3218/encryptgate-copilot/pkg/ai/ollama"
	gai "github.com/MohammadH3218/encryptgate-copilot/pkg/ai/openai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/graph"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"
	graphdb "github.com/MohammadH3218/encryptgate-copilot/pkg/store/neo4j"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graphStore, err := graphdb.NewGraphDBClient(ctx, graphdb.NewGraphDBClientParams{
		URI:      util.GetEnv("NEO4J_URI"),
		Username: util.GetEnv("NEO4J_USER"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to graph store", "err", err)
	}
	defer graphStore.Close(context.Background())

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, []string{queue.EnrichQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	aiClient := NewAIClient()

	var sessions query.SessionStore
	if redisURL := util.GetEnvString("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "err", err)
		}
		sessions = query.NewRedisSessionStore(redis.NewClient(redisOpts))
	} else {
		logger.Warn("REDIS_URL not set, using in-process session store")
		sessions = query.NewMemorySessionStore()
	}

	queryClient := query.NewCopilotQueryClient(aiClient, graphStore, sessions,
		query.WithMaxHops(int(util.GetEnvNumeric("AGENT_MAX_HOPS", 8))),
		query.WithCallTimeout(time.Duration(util.GetEnvNumeric("AI_CALL_TIMEOUT_SECONDS", 30))*time.Second),
	)

	app := &mid.App{
		Graph:    graphStore,
		AiClient: aiClient,
		Query:    queryClient,
		Scorer:   graph.NewContextScorer(graphStore),
		Queue:    ch,
		APIKey:   util.GetEnv("API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("8M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// NewAIClient builds the model client selected by AI_ADAPTER. The default
// is any OpenAI-compatible endpoint; "ollama" targets self-hosted
// deployments.
func NewAIClient() ai.CopilotAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewCopilotOllamaClient(oai.NewCopilotOllamaClientParams{
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewCopilotOpenAIClient(gai.NewCopilotOpenAIClientParams{
			ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			ChatURL: util.GetEnv("AI_CHAT_URL"),
			ChatKey: util.GetEnv("AI_CHAT_KEY"),
		})
	}
}
