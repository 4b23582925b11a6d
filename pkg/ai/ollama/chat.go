package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func buildOptions(options ai.GenerateOptions) map[string]any {
	opts := map[string]any{"temperature": options.Temperature}
	if options.MaxTokens > 0 {
		opts["num_predict"] = options.MaxTokens
	}
	return opts
}

// growContext raises num_ctx when the prompt would overflow the default
// context window.
func growContext(opts map[string]any, prompts ...string) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return
	}
	tokens := 200
	for _, p := range prompts {
		tokens += len(enc.Encode(p, nil, nil))
	}
	if tokens > 4096 {
		opts["num_ctx"] = tokens
	}
}

func (c *CopilotOllamaClient) buildMessages(
	systemPrompts []string,
	messages []ai.ChatMessage,
) []api.Message {
	msgs := make([]api.Message, 0, len(systemPrompts)+len(messages))
	for _, sys := range systemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		msg := api.Message{Role: role, Content: m.Message}
		for _, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if err := ai.UnmarshalFlexible(tc.Arguments, &args); err != nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (c *CopilotOllamaClient) chat(
	ctx context.Context,
	req *api.ChatRequest,
	timeoutOptions ai.GenerateOptions,
) (*api.ChatResponse, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	if timeoutOptions.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutOptions.Timeout)
		defer cancel()
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if len(cr.Message.ToolCalls) > 0 {
			final.Message.ToolCalls = cr.Message.ToolCalls
		}
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return &final, nil
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *CopilotOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	stream := false
	reqOpts := buildOptions(options)
	growContext(reqOpts, prompt)

	msgs := c.buildMessages(options.SystemPrompts, nil)
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  reqOpts,
	}

	final, err := c.chat(ctx, req, options)
	if err != nil {
		return "", err
	}

	return final.Message.Content, nil
}

// GenerateChat sends a multi-turn conversation and returns assistant text.
func (c *CopilotOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	stream := false
	reqOpts := buildOptions(options)
	prompts := make([]string, 0, len(messages))
	for _, m := range messages {
		prompts = append(prompts, m.Message)
	}
	growContext(reqOpts, prompts...)

	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: c.buildMessages(options.SystemPrompts, messages),
		Stream:   &stream,
		Options:  reqOpts,
	}

	final, err := c.chat(ctx, req, options)
	if err != nil {
		return "", err
	}

	return final.Message.Content, nil
}

// GenerateChatTurn runs exactly one model round with the given tool manifest.
// Tool execution is owned by the caller; requested calls are returned with
// generated IDs since Ollama does not assign them.
func (c *CopilotOllamaClient) GenerateChatTurn(
	ctx context.Context,
	messages []ai.ChatMessage,
	tools []ai.Tool,
	opts ...ai.GenerateOption,
) (*ai.ChatTurn, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	ollamaTools := make(api.Tools, len(tools))
	for i, tool := range tools {
		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertToolParameters(tool.Parameters),
			},
		}
	}

	stream := false
	reqOpts := buildOptions(options)
	prompts := make([]string, 0, len(messages))
	for _, m := range messages {
		prompts = append(prompts, m.Message)
	}
	growContext(reqOpts, prompts...)

	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: c.buildMessages(options.SystemPrompts, messages),
		Tools:    ollamaTools,
		Stream:   &stream,
		Options:  reqOpts,
	}

	final, err := c.chat(ctx, req, options)
	if err != nil {
		return nil, err
	}

	turn := &ai.ChatTurn{Content: final.Message.Content}
	for _, tc := range final.Message.ToolCalls {
		argsBytes, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
		}
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate tool call ID: %w", err)
		}
		turn.ToolCalls = append(turn.ToolCalls, ai.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: string(argsBytes),
		})
	}

	return turn, nil
}

func convertToolParameters(parameters map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Required:   []string{},
		Properties: api.NewToolPropertiesMap(),
	}

	if parameters == nil {
		return params
	}

	if props, ok := parameters["properties"].(map[string]any); ok {
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			tp := api.ToolProperty{}
			if t, ok := propMap["type"].(string); ok {
				tp.Type = api.PropertyType([]string{t})
			}
			if desc, ok := propMap["description"].(string); ok {
				tp.Description = desc
			}
			if enum, ok := propMap["enum"].([]any); ok {
				tp.Enum = enum
			}
			params.Properties.Set(name, tp)
		}
	}
	if reqInterface, ok := parameters["required"].([]any); ok {
		params.Required = make([]string, 0, len(reqInterface))
		for _, v := range reqInterface {
			if s, ok := v.(string); ok {
				params.Required = append(params.Required, s)
			}
		}
	} else if req, ok := parameters["required"].([]string); ok {
		params.Required = req
	}

	return params
}
