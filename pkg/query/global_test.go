package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
)

func TestIsGlobalQuestion(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"What are the overall communication patterns?", true},
		{"What are the main themes across the dataset?", true},
		{"Describe the organizational structure", true},
		{"Who emailed alice yesterday?", false},
		{"Is message <x@y> phishing?", false},
		{"ACROSS ALL departments, who talks to whom?", true},
	}

	for _, tt := range tests {
		if got := IsGlobalQuestion(tt.question); got != tt.want {
			t.Errorf("IsGlobalQuestion(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

func summarized(id, summary string) common.Community {
	return common.Community{ID: id, Level: 1, Entities: []string{"A"}, Summary: summary}
}

func TestGlobalAnswerNoSummarizedCommunities(t *testing.T) {
	client := &fakeAI{
		completionFn: func(string, ai.GenerateOptions) (string, error) {
			t.Error("no model call expected")
			return "", nil
		},
	}
	handler := NewGlobalHandler(client)

	communities := []common.Community{
		{ID: "c1", Level: 1, Entities: []string{"A"}}, // no summary
	}

	answer, err := handler.Answer(context.Background(), "overall patterns?", communities)
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != NoRelevantDataAnswer {
		t.Errorf("answer = %q, want fixed no-data answer", answer)
	}
}

func TestGlobalAnswerFiltersNotRelevant(t *testing.T) {
	client := &fakeAI{}
	client.completionFn = func(prompt string, opts ai.GenerateOptions) (string, error) {
		switch {
		case strings.Contains(prompt, "Partial answers"):
			return "synthesized final answer", nil
		case strings.Contains(prompt, "summary-relevant"):
			return "The phishing campaign targets payroll credentials across several communication patterns in the dataset.", nil
		default:
			return "NOT_RELEVANT", nil
		}
	}
	handler := NewGlobalHandler(client)

	communities := []common.Community{
		summarized("c1", "summary-relevant"),
		summarized("c2", "summary-other"),
		summarized("c3", "summary-other"),
	}

	answer, err := handler.Answer(context.Background(), "What communication patterns exist?", communities)
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != "synthesized final answer" {
		t.Errorf("answer = %q", answer)
	}

	// 3 community calls + 1 synthesis call.
	if calls := client.completions(); len(calls) != 4 {
		t.Errorf("model calls = %d, want 4", len(calls))
	}
}

func TestGlobalAnswerAllShortAnswersScoreZero(t *testing.T) {
	client := &fakeAI{
		completionFn: func(prompt string, opts ai.GenerateOptions) (string, error) {
			if strings.Contains(prompt, "Partial answers") {
				t.Error("synthesis must not run when every candidate scores zero")
			}
			return "yes", nil // under 10 characters
		},
	}
	handler := NewGlobalHandler(client)

	answer, err := handler.Answer(context.Background(), "patterns?", []common.Community{summarized("c1", "s")})
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if answer != NoRelevantDataAnswer {
		t.Errorf("answer = %q, want fixed no-data answer", answer)
	}
}

func TestGlobalAnswerKeepsTopTen(t *testing.T) {
	client := &fakeAI{}
	var synthesisPrompt string
	client.completionFn = func(prompt string, opts ai.GenerateOptions) (string, error) {
		if strings.Contains(prompt, "Partial answers") {
			synthesisPrompt = prompt
			return "final", nil
		}
		return "marker-answer: the communication patterns involve phishing attempts against the organization over many weeks of traffic.", nil
	}
	handler := NewGlobalHandler(client)

	communities := make([]common.Community, 12)
	for i := range communities {
		communities[i] = summarized(fmt.Sprintf("c%d", i), fmt.Sprintf("summary %d", i))
	}

	if _, err := handler.Answer(context.Background(), "communication patterns", communities); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if got := strings.Count(synthesisPrompt, "marker-answer"); got != 10 {
		t.Errorf("synthesis received %d partial answers, want 10", got)
	}
}

func TestRelevanceScore(t *testing.T) {
	question := "what phishing campaigns target payroll"

	tests := []struct {
		name   string
		answer string
		zero   bool
	}{
		{"short answer", "maybe", true},
		{"no overlap", strings.Repeat("unrelated words entirely ", 10), true},
		{"overlapping", "Several phishing campaigns target payroll credentials. " + strings.Repeat("detail ", 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := relevanceScore(question, tt.answer)
			if tt.zero && score != 0 {
				t.Errorf("score = %v, want 0", score)
			}
			if !tt.zero && score <= 0 {
				t.Errorf("score = %v, want > 0", score)
			}
		})
	}
}

func TestRelevanceScoreLengthFactor(t *testing.T) {
	question := "phishing payroll"
	short := "phishing payroll found here now ok"                            // well under 100 chars
	long := "phishing payroll " + strings.Repeat("supporting evidence ", 10) // over 100 chars

	if relevanceScore(question, short) >= relevanceScore(question, long) {
		t.Error("longer answer with same overlap must not score lower")
	}
}

func TestSummarizePopulatesCommunity(t *testing.T) {
	client := &fakeAI{
		completionFn: func(prompt string, opts ai.GenerateOptions) (string, error) {
			if !strings.Contains(prompt, "ACME CORP") {
				t.Error("summary prompt must include the entities")
			}
			return "  A cluster of payroll-themed phishing actors.  ", nil
		},
	}
	handler := NewGlobalHandler(client)

	c := common.Community{
		ID:       "c1",
		Entities: []string{"ACME CORP", "PAYROLL TEAM"},
		Relationships: []common.Relationship{
			{Source: "ACME CORP", Target: "PAYROLL TEAM", Type: "IMPERSONATES", Description: "spoofed sender"},
		},
	}

	if err := handler.Summarize(context.Background(), &c); err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if c.Summary != "A cluster of payroll-themed phishing actors." {
		t.Errorf("summary = %q", c.Summary)
	}
}
