package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohammadH3218/encryptgate-copilot/internal/metrics"
	"github.com/MohammadH3218/encryptgate-copilot/internal/util"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/graph"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/query"
)

// ProcessEnrichMessage unmarshals one queued message and merges it into the
// graph. The parsed message is returned so the worker can batch it for the
// next analytical rebuild.
func ProcessEnrichMessage(
	ctx context.Context,
	enricher *graph.Enricher,
	body []byte,
) (*common.EmailMessage, error) {
	msg := new(common.EmailMessage)
	if err := json.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal enrich message: %w", err)
	}

	if err := enricher.EnrichMessage(ctx, *msg); err != nil {
		metrics.EnrichmentFailures.Inc()
		return msg, err
	}

	metrics.MessagesEnriched.Inc()
	return msg, nil
}

// RebuildAnalyticalLayer recomputes the ephemeral entity/community layer
// from a batch of enriched messages and publishes the summarized snapshot
// through the session store. Per-community summarization failures are
// logged and skipped; the snapshot is still saved.
func RebuildAnalyticalLayer(
	ctx context.Context,
	extractor *graph.Extractor,
	handler *query.GlobalHandler,
	sessions query.SessionStore,
	messages []common.EmailMessage,
) error {
	if len(messages) == 0 {
		return nil
	}

	result, err := extractor.ExtractBatch(ctx, messages)
	if err != nil {
		return fmt.Errorf("extraction batch failed: %w", err)
	}

	communities := graph.DetectCommunities(result.Entities, result.Relationships)

	summarized := 0
	for i := range communities {
		if communities[i].Level != 1 {
			continue
		}
		if err := handler.Summarize(ctx, &communities[i]); err != nil {
			logger.Warn("community summarization failed, skipping", "community", communities[i].ID, "err", err)
			continue
		}
		summarized++
	}

	// The snapshot store is remote in multi-process deployments; transient
	// save failures should not discard a finished rebuild.
	saveSnapshot := func(ctx context.Context) error {
		return sessions.SaveCommunities(ctx, communities)
	}
	if err := util.RetryErrWithContext(ctx, 3, saveSnapshot); err != nil {
		return fmt.Errorf("failed to save community snapshot: %w", err)
	}

	metrics.CommunityRebuilds.Inc()
	metrics.CommunitiesDetected.Set(float64(len(communities)))

	logger.Info("Rebuilt analytical layer",
		"messages", len(messages),
		"entities", len(result.Entities),
		"communities", len(communities),
		"summarized", summarized,
	)
	return nil
}
