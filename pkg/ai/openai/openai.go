package openai

import (
	"sync"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// CopilotOpenAIClient is the OpenAI-backed implementation of
// ai.CopilotAIClient. It manages separate models for chat/answer generation
// and for entity extraction.
//
// A CopilotOpenAIClient should be created using NewCopilotOpenAIClient.
type CopilotOpenAIClient struct {
	chatModel       string
	extractionModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewCopilotOpenAIClientParams defines the configuration parameters for
// creating a new CopilotOpenAIClient.
//
// ChatModel is used for answer generation, Cypher translation and the agent
// loop. ExtractionModel is used for entity/relationship extraction and may
// be a smaller model. ChatURL may point at any OpenAI-compatible endpoint.
type NewCopilotOpenAIClientParams struct {
	ChatModel       string
	ExtractionModel string

	ChatURL string
	ChatKey string
}

// NewCopilotOpenAIClient creates and returns a new CopilotOpenAIClient
// configured with the provided parameters.
//
// Example:
//
//	client := openai.NewCopilotOpenAIClient(openai.NewCopilotOpenAIClientParams{
//		ChatModel:       "gpt-4o-mini",
//		ExtractionModel: "gpt-4o-mini",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//	})
func NewCopilotOpenAIClient(
	params NewCopilotOpenAIClientParams,
) *CopilotOpenAIClient {
	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.ChatModel
	}

	return &CopilotOpenAIClient{
		chatModel:       params.ChatModel,
		extractionModel: extractionModel,

		chatURL: params.ChatURL,
		chatKey: params.ChatKey,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ExtractionModel returns the model configured for extraction prompts.
func (c *CopilotOpenAIClient) ExtractionModel() string {
	return c.extractionModel
}

func (c *CopilotOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

// ResetMetrics clears the accumulated model metrics.
func (c *CopilotOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns a copy of the accumulated model metrics.
func (c *CopilotOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	return c.metrics
}
