package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
)

// NoRelevantDataAnswer is returned for global questions no community can
// answer. It is a fixed string; no synthesis call is made to produce it.
const NoRelevantDataAnswer = "No relevant information was found in the analyzed communications to answer this question."

// notRelevantMarker is the sentinel a community-level answer uses to opt
// out.
const notRelevantMarker = "NOT_RELEVANT"

// maxKeptAnswers caps how many community answers feed the synthesis call.
const maxKeptAnswers = 10

// globalKeywords classify a question as global when any of them appears as
// a case-insensitive substring.
var globalKeywords = []string{
	"overall",
	"main themes",
	"across all",
	"organizational structure",
	"big picture",
	"in general",
	"common patterns",
	"communication patterns",
	"most common",
	"summary of all",
	"entire dataset",
	"trends",
}

// IsGlobalQuestion reports whether a question asks about aggregate patterns
// across the whole dataset rather than a specific message or actor.
func IsGlobalQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range globalKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// GlobalHandler answers broad analytical questions by consulting each
// summarized community, scoring the partial answers by relevance, and
// synthesizing the best ones into a single response.
type GlobalHandler struct {
	ai ai.CopilotAIClient
}

// NewGlobalHandler creates a GlobalHandler over the given model client.
func NewGlobalHandler(client ai.CopilotAIClient) *GlobalHandler {
	return &GlobalHandler{ai: client}
}

type scoredAnswer struct {
	answer    string
	relevance float64
}

// Answer runs the map/score/synthesize pipeline over the given communities.
// Communities without a summary are skipped; per-community model failures
// are logged and skipped.
func (h *GlobalHandler) Answer(ctx context.Context, question string, communities []common.Community) (string, error) {
	var candidates []scoredAnswer

	for _, c := range communities {
		if c.Summary == "" {
			continue
		}

		answer, err := h.ai.GenerateCompletion(ctx,
			fmt.Sprintf(ai.CommunityAnswerPrompt, c.Summary, question),
			ai.WithTemperature(0.2),
		)
		if err != nil {
			logger.Warn("community answer failed, skipping", "community", c.ID, "error", err)
			continue
		}

		answer = strings.TrimSpace(answer)
		if answer == "" || strings.Contains(answer, notRelevantMarker) {
			continue
		}

		if relevance := relevanceScore(question, answer); relevance > 0 {
			candidates = append(candidates, scoredAnswer{answer: answer, relevance: relevance})
		}
	}

	if len(candidates) == 0 {
		return NoRelevantDataAnswer, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})
	if len(candidates) > maxKeptAnswers {
		candidates = candidates[:maxKeptAnswers]
	}

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.answer
	}

	return h.ai.GenerateCompletion(ctx,
		fmt.Sprintf(ai.SynthesisPrompt, question, strings.Join(parts, "\n\n")),
		ai.WithTemperature(0.3),
	)
}

// Summarize populates a community's summary from its entities and
// relationships with one model call.
func (h *GlobalHandler) Summarize(ctx context.Context, c *common.Community) error {
	relLines := make([]string, 0, len(c.Relationships))
	for _, r := range c.Relationships {
		relLines = append(relLines, fmt.Sprintf("%s -%s-> %s: %s", r.Source, r.Type, r.Target, r.Description))
	}

	summary, err := h.ai.GenerateCompletion(ctx,
		fmt.Sprintf(ai.CommunitySummaryPrompt, strings.Join(c.Entities, ", "), strings.Join(relLines, "\n")),
		ai.WithTemperature(0.3),
	)
	if err != nil {
		return err
	}

	c.Summary = strings.TrimSpace(summary)
	return nil
}

// relevanceScore measures token overlap between question and answer, scaled
// by answer length so one-liners do not outrank substantive answers.
// Answers shorter than 10 characters score zero outright.
func relevanceScore(question, answer string) float64 {
	if len(answer) < 10 {
		return 0
	}

	questionWords := wordSet(question)
	if len(questionWords) == 0 {
		return 0
	}
	answerWords := wordSet(answer)

	overlap := 0
	for w := range questionWords {
		if answerWords[w] {
			overlap++
		}
	}

	lengthFactor := min(1.0, float64(len(answer))/100.0)
	return float64(overlap) / float64(len(questionWords)) * lengthFactor
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
