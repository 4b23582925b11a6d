package ai

import (
	"context"
	"time"
)

// ChatMessage represents a single message in a conversation transcript.
//
// Role must be one of:
//   - "user"      → a user-provided message
//   - "assistant" → a message from the AI assistant
//   - "tool"      → the result of a tool call, referencing ToolCallID
//
// Assistant turns that requested tool calls carry them in ToolCalls so the
// transcript can be replayed to the model on the next hop.
type ChatMessage struct {
	Role       string     `json:"role"`
	Message    string     `json:"message"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool defines a function the AI model may request during generation.
// Execution is owned by the caller; the model only selects tools and
// provides arguments.
type Tool struct {
	Name        string         // Unique identifier for the tool
	Description string         // Human-readable description of what the tool does
	Parameters  map[string]any // JSON Schema defining the tool's input parameters
}

// ToolCall represents a request from the AI model to invoke a specific tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded arguments
}

// ChatTurn is the result of a single model round: either final content, or
// one or more tool calls the caller must execute before continuing.
type ChatTurn struct {
	Content   string
	ToolCalls []ToolCall
}

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string        // Model identifier to use for generation
	SystemPrompts []string      // System prompts prepended to the request
	Temperature   float64       // Sampling temperature (0.0-2.0)
	MaxTokens     int           // Output token bound, 0 means provider default
	Timeout       time.Duration // Wall-clock bound per model call, 0 means none
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens returns a GenerateOption that bounds the output token count.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTimeout returns a GenerateOption that applies a wall-clock timeout
// around the model call. Expiry surfaces as context.DeadlineExceeded.
func WithTimeout(d time.Duration) GenerateOption {
	return func(o *GenerateOptions) {
		o.Timeout = d
	}
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// CopilotAIClient defines the interface for model operations used by the
// investigation copilot: Cypher generation, extraction, community
// summarization and the tool-calling agent loop. The core never assumes
// structured output; all parsing of model text is done by the caller.
type CopilotAIClient interface {
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)

	GenerateChat(
		ctx context.Context,
		messages []ChatMessage,
		opts ...GenerateOption,
	) (string, error)

	// GenerateChatTurn runs exactly one model round with the given tool
	// manifest and returns either content or requested tool calls. It never
	// executes tools itself.
	GenerateChatTurn(
		ctx context.Context,
		messages []ChatMessage,
		tools []Tool,
		opts ...GenerateOption,
	) (*ChatTurn, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
