package query

import (
	"context"
	"fmt"
	"time"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

const (
	defaultMaxHops     = 8
	defaultCallTimeout = 30 * time.Second

	// agentRowCap bounds rows returned from a single run_query tool call.
	agentRowCap = 50
)

// IncompleteAnswer is emitted when the hop budget runs out before the model
// produces a final answer.
const IncompleteAnswer = "The investigation could not be completed within the allotted steps. Ask me to continue and I will pick up where I left off."

// Agent runs the bounded tool-calling loop: each hop the model either
// requests graph tools or produces a grounded final answer. Progress is
// streamed as discrete events so the caller can render it incrementally.
type Agent struct {
	ai    ai.CopilotAIClient
	store store.GraphStore

	maxHops     int
	callTimeout time.Duration
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxHops overrides the default hop budget of 8.
func WithMaxHops(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxHops = n
		}
	}
}

// WithCallTimeout overrides the default 30s wall-clock bound per model call.
func WithCallTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// NewAgent creates an Agent over the given model client and graph store.
func NewAgent(client ai.CopilotAIClient, s store.GraphStore, opts ...AgentOption) *Agent {
	a := &Agent{
		ai:          client,
		store:       s,
		maxHops:     defaultMaxHops,
		callTimeout: defaultCallTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type runQueryArgs struct {
	Query  string         `json:"query" jsonschema:"description=Read-only Cypher query to run against the graph"`
	Params map[string]any `json:"params,omitempty" jsonschema:"description=Named query parameters"`
	Limit  int            `json:"limit,omitempty" jsonschema:"description=Maximum number of rows to return,maximum=50"`
}

type runAlgorithmArgs struct {
	Algorithm  string           `json:"algorithm" jsonschema:"description=Algorithm name,enum=pageRank,enum=louvain,enum=betweenness,enum=degree,enum=wcc"`
	Projection store.Projection `json:"projection" jsonschema:"description=Node labels and relationship types to project"`
	Params     map[string]any   `json:"params,omitempty" jsonschema:"description=Algorithm configuration parameters"`
}

// Tools returns the fixed three-tool manifest offered to the model.
func (a *Agent) Tools() []ai.Tool {
	return []ai.Tool{
		{
			Name:        "inspect_schema",
			Description: "List the node labels, relationship types and property keys that exist in the graph.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "run_query",
			Description: "Execute a read-only Cypher query against the communication graph and return the matching rows.",
			Parameters:  ai.GenerateSchema(runQueryArgs{}),
		},
		{
			Name:        "run_graph_algorithm",
			Description: "Run a graph analytics algorithm over a projection of the graph, for structural questions plain Cypher answers poorly.",
			Parameters:  ai.GenerateSchema(runAlgorithmArgs{}),
		},
	}
}

// Investigate starts a streamed investigation of the question. history
// seeds the transcript, so a follow-up investigation continues from the
// session's earlier turns. The returned channel is closed after the
// terminal answer/error and done events. A cancelled context stops the
// loop before the next hop; in-flight tool calls finish but their results
// are discarded.
func (a *Agent) Investigate(ctx context.Context, history []ai.ChatMessage, question string) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		transcript := make([]ai.ChatMessage, 0, len(history)+1)
		transcript = append(transcript, history...)
		transcript = append(transcript, ai.ChatMessage{Role: "user", Message: question})
		tools := a.Tools()

		for hop := 1; hop <= a.maxHops; hop++ {
			if ctx.Err() != nil {
				emit(ctx, out, StreamEvent{Type: EventError, Content: "investigation cancelled", Hop: hop})
				emit(ctx, out, StreamEvent{Type: EventDone, Hop: hop})
				return
			}

			if !emit(ctx, out, StreamEvent{
				Type:    EventThinking,
				Content: fmt.Sprintf("analyzing the graph (step %d of %d)", hop, a.maxHops),
				Hop:     hop,
			}) {
				return
			}

			turn, err := a.ai.GenerateChatTurn(ctx, transcript, tools,
				ai.WithSystemPrompts(ai.AgentPrompt),
				ai.WithTimeout(a.callTimeout),
			)
			if err != nil {
				logger.Error("agent model call failed", "hop", hop, "error", err)
				emit(ctx, out, StreamEvent{Type: EventError, Content: err.Error(), Hop: hop})
				emit(ctx, out, StreamEvent{Type: EventDone, Hop: hop})
				return
			}

			if len(turn.ToolCalls) == 0 {
				emit(ctx, out, StreamEvent{Type: EventAnswer, Content: turn.Content, Hop: hop})
				emit(ctx, out, StreamEvent{Type: EventDone, Hop: hop})
				return
			}

			transcript = append(transcript, ai.ChatMessage{
				Role:      "assistant",
				Message:   turn.Content,
				ToolCalls: turn.ToolCalls,
			})

			for _, tc := range turn.ToolCalls {
				if !emit(ctx, out, StreamEvent{
					Type:     EventToolCall,
					ToolName: tc.Name,
					ToolArgs: tc.Arguments,
					Hop:      hop,
				}) {
					return
				}

				result := a.executeTool(ctx, tc)
				serialized := result.Serialize()

				if !emit(ctx, out, StreamEvent{
					Type:     EventToolResult,
					ToolName: tc.Name,
					Content:  serialized,
					Hop:      hop,
				}) {
					return
				}

				transcript = append(transcript, ai.ChatMessage{
					Role:       "tool",
					Message:    serialized,
					ToolCallID: tc.ID,
				})
			}

			transcript = append(transcript, ai.ChatMessage{
				Role:    "user",
				Message: ai.AgentContinuePrompt,
			})
		}

		emit(ctx, out, StreamEvent{Type: EventAnswer, Content: IncompleteAnswer, Hop: a.maxHops})
		emit(ctx, out, StreamEvent{Type: EventDone, Hop: a.maxHops})
	}()

	return out
}

func (a *Agent) executeTool(ctx context.Context, tc ai.ToolCall) ToolResult {
	switch tc.Name {
	case "inspect_schema":
		schema, err := a.store.Schema(ctx)
		if err != nil {
			return errorResult(err)
		}
		return ToolResult{OK: true, Schema: schema}

	case "run_query":
		var args runQueryArgs
		if err := ai.UnmarshalFlexible(tc.Arguments, &args); err != nil {
			return errorResult(fmt.Errorf("invalid run_query arguments: %w", err))
		}
		if args.Query == "" {
			return errorResult(fmt.Errorf("run_query requires a query"))
		}

		rows, err := a.store.Query(ctx, SanitizeCypher(args.Query), args.Params)
		if err != nil {
			return errorResult(err)
		}

		limit := args.Limit
		if limit <= 0 || limit > agentRowCap {
			limit = agentRowCap
		}
		if len(rows) > limit {
			rows = rows[:limit]
		}
		return ToolResult{OK: true, Data: rows}

	case "run_graph_algorithm":
		var args runAlgorithmArgs
		if err := ai.UnmarshalFlexible(tc.Arguments, &args); err != nil {
			return errorResult(fmt.Errorf("invalid run_graph_algorithm arguments: %w", err))
		}

		rows, err := a.store.RunAlgorithm(ctx, args.Algorithm, args.Projection, args.Params)
		if err != nil {
			return errorResult(err)
		}
		return ToolResult{OK: true, Data: rows}

	default:
		return errorResult(fmt.Errorf("unknown tool: %s", tc.Name))
	}
}

// emit sends an event unless the consumer is gone. Buffer room is used
// first so terminal events still flush after cancellation; it returns false
// only when the consumer stopped draining and the context was cancelled.
func emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	default:
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
