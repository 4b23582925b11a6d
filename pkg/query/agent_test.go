package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
)

func collectEvents(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []StreamEvent) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func countType(events []StreamEvent, t EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestAgentImmediateAnswer(t *testing.T) {
	client := &fakeAI{
		turnFn: func([]ai.ChatMessage, []ai.Tool, ai.GenerateOptions) (*ai.ChatTurn, error) {
			return &ai.ChatTurn{Content: "alice emailed bob twice"}, nil
		},
	}
	agent := NewAgent(client, &fakeGraph{})

	events := collectEvents(agent.Investigate(context.Background(), nil, "who emailed bob?"))

	want := []EventType{EventThinking, EventAnswer, EventDone}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if events[1].Content != "alice emailed bob twice" {
		t.Errorf("answer = %q", events[1].Content)
	}
}

func TestAgentToolLoop(t *testing.T) {
	hop := 0
	client := &fakeAI{}
	client.turnFn = func(msgs []ai.ChatMessage, tools []ai.Tool, opts ai.GenerateOptions) (*ai.ChatTurn, error) {
		hop++
		if hop == 1 {
			return &ai.ChatTurn{ToolCalls: []ai.ToolCall{
				{ID: "t1", Name: "run_query", Arguments: `{"query": "MATCH (m:Message) RETURN m LIMIT 5"}`},
			}}, nil
		}
		// The transcript must carry the tool result back to the model.
		last := msgs[len(msgs)-2]
		if last.Role != "tool" || !strings.Contains(last.Message, `"ok":true`) {
			t.Errorf("transcript missing tool result, got role %q message %q", last.Role, last.Message)
		}
		return &ai.ChatTurn{Content: "two messages found"}, nil
	}

	graph := &fakeGraph{
		queryFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"m": "a"}, {"m": "b"}}, nil
		},
	}
	agent := NewAgent(client, graph)

	events := collectEvents(agent.Investigate(context.Background(), nil, "q"))

	if countType(events, EventToolCall) != 1 || countType(events, EventToolResult) != 1 {
		t.Errorf("events = %v, want one tool_call and one tool_result", eventTypes(events))
	}
	if countType(events, EventThinking) != 2 {
		t.Errorf("thinking events = %d, want 2", countType(events, EventThinking))
	}
	if events[len(events)-1].Type != EventDone {
		t.Error("stream must end with done")
	}
}

func TestAgentHopExhaustion(t *testing.T) {
	client := &fakeAI{
		turnFn: func([]ai.ChatMessage, []ai.Tool, ai.GenerateOptions) (*ai.ChatTurn, error) {
			return &ai.ChatTurn{ToolCalls: []ai.ToolCall{{ID: "t", Name: "inspect_schema", Arguments: "{}"}}}, nil
		},
	}
	agent := NewAgent(client, &fakeGraph{}, WithMaxHops(3))

	events := collectEvents(agent.Investigate(context.Background(), nil, "q"))

	if countType(events, EventThinking) != 3 {
		t.Errorf("thinking events = %d, want exactly maxHops", countType(events, EventThinking))
	}

	var answer *StreamEvent
	for i := range events {
		if events[i].Type == EventAnswer {
			answer = &events[i]
		}
	}
	if answer == nil || answer.Content != IncompleteAnswer {
		t.Errorf("expected the fixed incomplete answer, got %+v", answer)
	}
}

func TestAgentToolFailureCaptured(t *testing.T) {
	hop := 0
	client := &fakeAI{}
	client.turnFn = func(msgs []ai.ChatMessage, _ []ai.Tool, _ ai.GenerateOptions) (*ai.ChatTurn, error) {
		hop++
		if hop == 1 {
			return &ai.ChatTurn{ToolCalls: []ai.ToolCall{
				{ID: "t1", Name: "run_query", Arguments: `{"query": "MATCH (m) RETURN m"}`},
			}}, nil
		}
		return &ai.ChatTurn{Content: "the query failed, no data"}, nil
	}

	graph := &fakeGraph{
		queryFn: func(string, map[string]any) ([]map[string]any, error) {
			return nil, errors.New("connection refused")
		},
	}
	agent := NewAgent(client, graph)

	events := collectEvents(agent.Investigate(context.Background(), nil, "q"))

	var result *StreamEvent
	for i := range events {
		if events[i].Type == EventToolResult {
			result = &events[i]
		}
	}
	if result == nil {
		t.Fatal("expected a tool_result event")
	}
	if !strings.Contains(result.Content, `"ok":false`) || !strings.Contains(result.Content, "connection refused") {
		t.Errorf("tool failure not captured: %q", result.Content)
	}
	// The failure is fed back, not fatal.
	if countType(events, EventAnswer) != 1 {
		t.Error("loop must continue to a final answer after a tool failure")
	}
}

func TestAgentUnknownTool(t *testing.T) {
	hop := 0
	client := &fakeAI{}
	client.turnFn = func([]ai.ChatMessage, []ai.Tool, ai.GenerateOptions) (*ai.ChatTurn, error) {
		hop++
		if hop == 1 {
			return &ai.ChatTurn{ToolCalls: []ai.ToolCall{{ID: "t1", Name: "drop_database", Arguments: "{}"}}}, nil
		}
		return &ai.ChatTurn{Content: "done"}, nil
	}
	agent := NewAgent(client, &fakeGraph{})

	events := collectEvents(agent.Investigate(context.Background(), nil, "q"))

	for _, ev := range events {
		if ev.Type == EventToolResult && !strings.Contains(ev.Content, "unknown tool") {
			t.Errorf("unknown tool not rejected: %q", ev.Content)
		}
	}
}

func TestAgentModelErrorTerminates(t *testing.T) {
	client := &fakeAI{
		turnFn: func([]ai.ChatMessage, []ai.Tool, ai.GenerateOptions) (*ai.ChatTurn, error) {
			return nil, context.DeadlineExceeded
		},
	}
	agent := NewAgent(client, &fakeGraph{})

	events := collectEvents(agent.Investigate(context.Background(), nil, "q"))

	if countType(events, EventError) != 1 {
		t.Errorf("events = %v, want one error event", eventTypes(events))
	}
	if events[len(events)-1].Type != EventDone {
		t.Error("stream must end with done after a model error")
	}
}

func TestAgentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeAI{
		turnFn: func([]ai.ChatMessage, []ai.Tool, ai.GenerateOptions) (*ai.ChatTurn, error) {
			t.Error("no model call expected after cancellation")
			return nil, errors.New("unreachable")
		},
	}
	agent := NewAgent(client, &fakeGraph{})

	done := make(chan struct{})
	var events []StreamEvent
	go func() {
		events = collectEvents(agent.Investigate(ctx, nil, "q"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}

	if countType(events, EventThinking) != 0 {
		t.Error("no hops may be dispatched after cancellation")
	}
}

func TestAgentHistorySeedsTranscript(t *testing.T) {
	client := &fakeAI{
		turnFn: func(msgs []ai.ChatMessage, _ []ai.Tool, _ ai.GenerateOptions) (*ai.ChatTurn, error) {
			if len(msgs) != 3 {
				t.Errorf("transcript = %d messages, want prior turn plus new question", len(msgs))
			} else if msgs[0].Message != "who sent it?" || msgs[1].Message != "bob did" {
				t.Errorf("prior turn not carried: %+v", msgs[:2])
			}
			return &ai.ChatTurn{Content: "he sent it to alice"}, nil
		},
	}
	agent := NewAgent(client, &fakeGraph{})

	history := []ai.ChatMessage{
		{Role: "user", Message: "who sent it?"},
		{Role: "assistant", Message: "bob did"},
	}
	events := collectEvents(agent.Investigate(context.Background(), history, "and to whom?"))

	if countType(events, EventAnswer) != 1 {
		t.Errorf("events = %v, want one answer", eventTypes(events))
	}
}

func TestAgentToolManifest(t *testing.T) {
	agent := NewAgent(&fakeAI{}, &fakeGraph{})
	tools := agent.Tools()

	if len(tools) != 3 {
		t.Fatalf("tools = %d, want 3", len(tools))
	}

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		if tool.Parameters == nil {
			t.Errorf("tool %s has no parameter schema", tool.Name)
		}
	}
	for _, want := range []string{"inspect_schema", "run_query", "run_graph_algorithm"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}
