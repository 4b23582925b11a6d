package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"
)

// maxBodyTokens bounds how much of a message body goes into an extraction
// prompt.
const maxBodyTokens = 2000

// ExtractionResult is the flattened output of one extraction batch. It is
// the input of community detection and is never persisted to the graph
// store.
type ExtractionResult struct {
	Entities      []common.Entity       `json:"entities"`
	Relationships []common.Relationship `json:"relationships"`
	Claims        []common.Claim        `json:"claims"`
}

// Extractor turns message content into typed entities, relationships and
// claims with one model call per message. Extraction is best-effort and
// lossy: malformed model output and per-message model failures are skipped,
// never fatal to the batch.
type Extractor struct {
	ai          ai.CopilotAIClient
	model       string
	concurrency int
}

// NewExtractor creates an Extractor. model selects the extraction model;
// empty means the client's default. concurrency bounds in-flight model
// calls per batch, defaulting to 4.
func NewExtractor(client ai.CopilotAIClient, model string, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Extractor{
		ai:          client,
		model:       model,
		concurrency: concurrency,
	}
}

// ExtractBatch extracts from all messages concurrently and returns the
// merged result. Entities with the same name are merged across messages.
func (x *Extractor) ExtractBatch(ctx context.Context, messages []common.EmailMessage) (*ExtractionResult, error) {
	var (
		mu     sync.Mutex
		result ExtractionResult
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(x.concurrency)

	for _, msg := range messages {
		group.Go(func() error {
			prompt := fmt.Sprintf(ai.ExtractPrompt, msg.Sender, msg.Subject, truncateBody(msg.Body))

			opts := []ai.GenerateOption{ai.WithTemperature(0.1)}
			if x.model != "" {
				opts = append(opts, ai.WithModel(x.model))
			}

			raw, err := x.ai.GenerateCompletion(gctx, prompt, opts...)
			if err != nil {
				logger.Warn("extraction failed for message, skipping", "message_id", msg.MessageID, "error", err)
				return nil
			}

			entities, relationships, claims := parseExtraction(raw, msg.MessageID)

			mu.Lock()
			result.Entities = append(result.Entities, entities...)
			result.Relationships = append(result.Relationships, relationships...)
			result.Claims = append(result.Claims, claims...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result.Entities = mergeEntities(result.Entities)
	return &result, nil
}

// parseExtraction parses the three pipe-delimited sections of a model
// response. Lines with the wrong field count or unparseable numbers are
// skipped.
func parseExtraction(raw, messageID string) ([]common.Entity, []common.Relationship, []common.Claim) {
	var (
		entities      []common.Entity
		relationships []common.Relationship
		claims        []common.Claim
	)

	section := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.ToUpper(line) {
		case "ENTITIES", "RELATIONSHIPS", "CLAIMS":
			section = strings.ToUpper(line)
			continue
		}

		fields := strings.Split(line, "|")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		switch section {
		case "ENTITIES":
			if len(fields) != 4 {
				continue
			}
			if _, err := strconv.ParseFloat(fields[3], 64); err != nil {
				continue
			}
			entities = append(entities, common.Entity{
				Name:        strings.ToUpper(fields[0]),
				Type:        strings.ToUpper(fields[1]),
				Description: fields[2],
				MessageIDs:  []string{messageID},
			})

		case "RELATIONSHIPS":
			if len(fields) != 5 {
				continue
			}
			strength, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				continue
			}
			relationships = append(relationships, common.Relationship{
				Source:      strings.ToUpper(fields[0]),
				Target:      strings.ToUpper(fields[1]),
				Type:        fields[2],
				Description: fields[3],
				Strength:    strength,
			})

		case "CLAIMS":
			if len(fields) != 6 {
				continue
			}
			confidence, err := strconv.ParseFloat(fields[5], 64)
			if err != nil {
				continue
			}
			source := fields[4]
			if source == "MESSAGE" {
				source = messageID
			}
			claims = append(claims, common.Claim{
				Subject:     strings.ToUpper(fields[0]),
				Predicate:   fields[1],
				Object:      strings.ToUpper(fields[2]),
				Description: fields[3],
				MessageID:   source,
				Confidence:  confidence,
			})
		}
	}

	return entities, relationships, claims
}

// mergeEntities collapses same-named entities, unioning their message IDs
// and keeping the most detailed description. Output is sorted by name.
func mergeEntities(entities []common.Entity) []common.Entity {
	byName := make(map[string]*common.Entity)
	for _, e := range entities {
		existing, ok := byName[e.Name]
		if !ok {
			copy := e
			byName[e.Name] = &copy
			continue
		}
		if len(e.Description) > len(existing.Description) {
			existing.Description = e.Description
		}
		for _, id := range e.MessageIDs {
			if !contains(existing.MessageIDs, id) {
				existing.MessageIDs = append(existing.MessageIDs, id)
			}
		}
	}

	merged := make([]common.Entity, 0, len(byName))
	for _, e := range byName {
		merged = append(merged, *e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func truncateBody(body string) string {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		if len(body) > 8000 {
			return body[:8000]
		}
		return body
	}
	tokens := enc.Encode(body, nil, nil)
	if len(tokens) <= maxBodyTokens {
		return body
	}
	return enc.Decode(tokens[:maxBodyTokens])
}
