package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

// maxAttempts is the total generate/execute budget of the retry loop.
const maxAttempts = 3

// maxSummaryRows caps how many result rows are shown to the model when
// summarizing a successful query.
const maxSummaryRows = 20

// attemptState models the phases of the translate/execute/correct loop.
type attemptState int

const (
	stateGenerate attemptState = iota
	stateExecute
	stateCorrect
	stateSuccess
	stateFailed
)

// TranslationContext is the optional message context attached to an analyst
// question. MessageID is an opaque literal and is passed into prompts
// verbatim.
type TranslationContext struct {
	MessageID  string   `json:"message_id,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Sender     string   `json:"sender,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// TranslationResult is the outcome of a successful translate/execute cycle.
type TranslationResult struct {
	Query    string           `json:"query"`
	Rows     []map[string]any `json:"rows"`
	Answer   string           `json:"answer"`
	Attempts int              `json:"attempts"`
}

// Translator turns natural-language questions into Cypher, executes them,
// and repairs failing queries with up to three attempts at escalating
// temperature.
type Translator struct {
	ai    ai.CopilotAIClient
	store store.GraphStore
}

// NewTranslator creates a Translator over the given model client and graph
// store.
func NewTranslator(client ai.CopilotAIClient, s store.GraphStore) *Translator {
	return &Translator{ai: client, store: s}
}

// Ask translates the question, executes the query, and summarizes the
// results. On execution failure it regenerates the query from the error
// message; after three failed executions it returns a terminal error naming
// the last underlying error and issues no further model calls.
func (t *Translator) Ask(ctx context.Context, question string, qctx *TranslationContext) (*TranslationResult, error) {
	var (
		state     = stateGenerate
		userMsg   = buildQuestion(question, qctx)
		cypher    string
		rows      []map[string]any
		attempts  int
		lastError error
	)

	for state != stateSuccess && state != stateFailed {
		switch state {
		case stateGenerate, stateCorrect:
			if attempts >= maxAttempts {
				state = stateFailed
				continue
			}

			system := ai.CypherPrompt
			if state == stateCorrect {
				system = fmt.Sprintf(ai.CypherCorrectionPrompt, cypher, lastError)
			}

			raw, err := t.ai.GenerateCompletion(ctx, userMsg,
				ai.WithSystemPrompts(system),
				ai.WithTemperature(attemptTemperature(attempts)),
			)
			attempts++
			if err != nil {
				lastError = err
				state = stateCorrect
				continue
			}

			cypher = SanitizeCypher(raw)
			state = stateExecute

		case stateExecute:
			result, err := t.store.Query(ctx, cypher, nil)
			if err != nil {
				logger.Warn("generated query failed, correcting", "attempt", attempts, "error", err)
				lastError = err
				state = stateCorrect
				continue
			}
			rows = result
			state = stateSuccess
		}
	}

	if state == stateFailed {
		return nil, fmt.Errorf("query translation failed after %d attempts: %w", maxAttempts, lastError)
	}

	answer, err := t.summarize(ctx, question, cypher, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize query results: %w", err)
	}

	return &TranslationResult{
		Query:    cypher,
		Rows:     rows,
		Answer:   answer,
		Attempts: attempts,
	}, nil
}

func (t *Translator) summarize(ctx context.Context, question, cypher string, rows []map[string]any) (string, error) {
	shown := rows
	if len(shown) > maxSummaryRows {
		shown = shown[:maxSummaryRows]
	}
	rowsJSON, err := json.Marshal(shown)
	if err != nil {
		return "", err
	}

	return t.ai.GenerateCompletion(ctx,
		fmt.Sprintf(ai.AnswerPrompt, question, cypher, string(rowsJSON)),
		ai.WithTemperature(0.3),
	)
}

// attemptTemperature escalates sampling temperature with each retry so the
// model does not regenerate the same broken query.
func attemptTemperature(attempt int) float64 {
	return min(0.2+float64(attempt)*0.1, 0.8)
}

var (
	fenceRe = regexp.MustCompile("(?s)```(?:cypher|sql)?\\s*(.*?)```")
	limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// SanitizeCypher strips markdown fences from model output and appends a
// LIMIT 50 when the query has none. The raw text is otherwise untouched, so
// any message-ID literal inside it survives character for character.
func SanitizeCypher(raw string) string {
	cypher := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(cypher); m != nil {
		cypher = strings.TrimSpace(m[1])
	}
	cypher = strings.TrimSuffix(cypher, ";")

	if !limitRe.MatchString(cypher) {
		cypher += "\nLIMIT 50"
	}
	return cypher
}

func buildQuestion(question string, qctx *TranslationContext) string {
	if qctx == nil {
		return question
	}

	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nMessage context:")
	if qctx.MessageID != "" {
		fmt.Fprintf(&b, "\nMessage ID: %s", qctx.MessageID)
	}
	if qctx.Subject != "" {
		fmt.Fprintf(&b, "\nSubject: %s", qctx.Subject)
	}
	if qctx.Sender != "" {
		fmt.Fprintf(&b, "\nSender: %s", qctx.Sender)
	}
	if len(qctx.Recipients) > 0 {
		fmt.Fprintf(&b, "\nRecipients: %s", strings.Join(qctx.Recipients, ", "))
	}
	return b.String()
}
