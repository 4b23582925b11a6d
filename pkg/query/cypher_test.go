package query

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
)

func TestTranslatorSucceedsFirstAttempt(t *testing.T) {
	client := &fakeAI{
		completionFn: func(prompt string, opts ai.GenerateOptions) (string, error) {
			if strings.Contains(prompt, "Query results") {
				return "Alice received two messages.", nil
			}
			return "```cypher\nMATCH (m:Message) RETURN m LIMIT 10\n```", nil
		},
	}
	graph := &fakeGraph{
		queryFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			if strings.Contains(cypher, "```") {
				t.Errorf("fences were not stripped: %q", cypher)
			}
			return []map[string]any{{"m": "x"}}, nil
		},
	}

	result, err := NewTranslator(client, graph).Ask(context.Background(), "Who emailed alice?", nil)
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if result.Answer != "Alice received two messages." {
		t.Errorf("answer = %q", result.Answer)
	}

	calls := client.completions()
	if got := calls[0].opts.Temperature; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("first attempt temperature = %v, want 0.2", got)
	}
}

func TestTranslatorCorrectsFailedQuery(t *testing.T) {
	generation := 0
	client := &fakeAI{}
	client.completionFn = func(prompt string, opts ai.GenerateOptions) (string, error) {
		if strings.Contains(prompt, "Query results") {
			return "done", nil
		}
		generation++
		if generation == 1 {
			return "MATCH (m:Msg) RETURN m", nil
		}
		return "MATCH (m:Message) RETURN m", nil
	}

	graph := &fakeGraph{
		queryFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			if strings.Contains(cypher, ":Msg)") {
				return nil, errors.New("unknown label Msg")
			}
			return nil, nil
		},
	}

	result, err := NewTranslator(client, graph).Ask(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}

	calls := client.completions()
	// Second generation runs with the correction prompt carrying the failed
	// query and the literal error, at escalated temperature.
	correction := calls[1]
	if len(correction.opts.SystemPrompts) == 0 ||
		!strings.Contains(correction.opts.SystemPrompts[0], "MATCH (m:Msg) RETURN m") ||
		!strings.Contains(correction.opts.SystemPrompts[0], "unknown label Msg") {
		t.Error("correction prompt must embed the failing query and error message")
	}
	if math.Abs(correction.opts.Temperature-0.3) > 1e-9 {
		t.Errorf("correction temperature = %v, want 0.3", correction.opts.Temperature)
	}
}

func TestTranslatorTerminalAfterThreeAttempts(t *testing.T) {
	client := &fakeAI{
		completionFn: func(string, ai.GenerateOptions) (string, error) {
			return "MATCH (m) RETURN m", nil
		},
	}
	graph := &fakeGraph{
		queryFn: func(string, map[string]any) ([]map[string]any, error) {
			return nil, errors.New("persistent syntax error")
		},
	}

	_, err := NewTranslator(client, graph).Ask(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !strings.Contains(err.Error(), "persistent syntax error") {
		t.Errorf("terminal error must name the last underlying error, got %v", err)
	}

	// Exactly 3 generation calls, no summary call afterwards.
	if calls := client.completions(); len(calls) != 3 {
		t.Errorf("model calls = %d, want 3", len(calls))
	}
}

func TestTranslatorPreservesMessageIDInContext(t *testing.T) {
	const messageID = "<CAF=weird+id@mail.example.com>"

	client := &fakeAI{
		completionFn: func(prompt string, opts ai.GenerateOptions) (string, error) {
			if strings.Contains(prompt, "Query results") {
				return "done", nil
			}
			if !strings.Contains(prompt, messageID) {
				t.Errorf("prompt lost the verbatim message ID: %q", prompt)
			}
			return "MATCH (m:Message {messageId: '" + messageID + "'}) RETURN m", nil
		},
	}

	result, err := NewTranslator(client, &fakeGraph{}).Ask(context.Background(), "Is this message suspicious?",
		&TranslationContext{MessageID: messageID})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !strings.Contains(result.Query, messageID) {
		t.Errorf("final query lost the message ID: %q", result.Query)
	}
}

func TestSanitizeCypher(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced",
			raw:  "```cypher\nMATCH (m) RETURN m LIMIT 5\n```",
			want: "MATCH (m) RETURN m LIMIT 5",
		},
		{
			name: "bare fence and semicolon",
			raw:  "```\nMATCH (m) RETURN m LIMIT 5;\n```",
			want: "MATCH (m) RETURN m LIMIT 5",
		},
		{
			name: "missing limit",
			raw:  "MATCH (m) RETURN m",
			want: "MATCH (m) RETURN m\nLIMIT 50",
		},
		{
			name: "limit after order by",
			raw:  "MATCH (m) RETURN m ORDER BY m.timestamp DESC",
			want: "MATCH (m) RETURN m ORDER BY m.timestamp DESC\nLIMIT 50",
		},
		{
			name: "existing limit untouched",
			raw:  "MATCH (m) RETURN m ORDER BY m.timestamp LIMIT 25",
			want: "MATCH (m) RETURN m ORDER BY m.timestamp LIMIT 25",
		},
		{
			name: "message id untouched",
			raw:  "MATCH (m:Message {messageId: '<a=b+c@x>'}) RETURN m LIMIT 1",
			want: "MATCH (m:Message {messageId: '<a=b+c@x>'}) RETURN m LIMIT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeCypher(tt.raw); got != tt.want {
				t.Errorf("SanitizeCypher() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttemptTemperature(t *testing.T) {
	tests := []struct {
		attempt int
		want    float64
	}{
		{0, 0.2},
		{1, 0.3},
		{2, 0.4},
		{6, 0.8},
		{10, 0.8},
	}

	for _, tt := range tests {
		if got := attemptTemperature(tt.attempt); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("attemptTemperature(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
