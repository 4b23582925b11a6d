package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MohammadH3218/encryptgate-copilot/internal/queue"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server"
	"github.com/MohammadH3218/encryptgate-copilot/internal/util"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/graph"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger/console"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"
	graphdb "github.com/MohammadH3218/encryptgate-copilot/pkg/store/neo4j"

	"github.com/redis/go-redis/v9"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// graph store
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

	aiClient := server.NewAIClient()

	var sessions query.SessionStore
	if redisURL := util.GetEnvString("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "err", err)
		}
		sessions = query.NewRedisSessionStore(redis.NewClient(redisOpts))
	} else {
		logger.Warn("REDIS_URL not set, community snapshots will not reach the server")
		sessions = query.NewMemorySessionStore()
	}

	enricher := graph.NewEnricher(graphStore)
	extractor := graph.NewExtractor(aiClient, util.GetEnv("AI_EXTRACT_MODEL"), int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)))
	globalHandler := query.NewGlobalHandler(aiClient)

	// rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.EnrichQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.EnrichQueue,
		"enrich_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.EnrichQueue, "err", err)
	}

	logger.Info("Listening for messages")

	// Messages enriched since the last rebuild. A rebuild runs when the
	// batch grows large enough or on the timer, whichever comes first.
	var (
		batchLock sync.Mutex
		batch     []common.EmailMessage
	)
	batchSize := int(util.GetEnvNumeric("REBUILD_BATCH_SIZE", 25))
	rebuildInterval := time.Duration(util.GetEnvNumeric("REBUILD_INTERVAL_MINUTES", 10)) * time.Minute

	rebuild := func() {
		batchLock.Lock()
		pending := batch
		batch = nil
		batchLock.Unlock()

		if len(pending) == 0 {
			return
		}
		if err := queue.RebuildAnalyticalLayer(ctx, extractor, globalHandler, sessions, pending); err != nil {
			logger.Error("Analytical rebuild failed", "err", err)
			// Put the messages back so the next cycle retries them.
			batchLock.Lock()
			batch = append(pending, batch...)
			batchLock.Unlock()
		}
	}

	go func() {
		ticker := time.NewTicker(rebuildInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rebuild()
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed")
					return
				}

				startTime := time.Now()
				enriched, err := queue.ProcessEnrichMessage(ctx, enricher, msg.Body)
				if err != nil {
					logger.Error("Error processing message", "queue", queue.EnrichQueue, "err", err)
					queue.HandleProcessingError(consumerCh, msg, queue.EnrichQueue)
					continue
				}

				if ackErr := msg.Ack(false); ackErr != nil {
					logger.Error("Failed to ack message", "err", ackErr)
				}
				logger.Info("Message enriched",
					"message_id", enriched.MessageID,
					"duration", time.Since(startTime).Round(time.Millisecond),
				)

				batchLock.Lock()
				batch = append(batch, *enriched)
				full := len(batch) >= batchSize
				batchLock.Unlock()

				if full {
					rebuild()
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
