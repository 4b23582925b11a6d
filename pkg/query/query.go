package query

import (
	"context"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/ai"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

// AskParams is one analyst question with its optional session and message
// context.
type AskParams struct {
	SessionID string              `json:"session_id,omitempty"`
	Question  string              `json:"question"`
	Context   *TranslationContext `json:"context,omitempty"`
}

// AskResult is the structured answer contract exposed to the API layer.
type AskResult struct {
	Response   string `json:"response"`
	Confidence int    `json:"confidence"`
	SessionID  string `json:"session_id"`
	Error      string `json:"error,omitempty"`
}

// CopilotQueryClient routes analyst questions: global questions go through
// the community pipeline, everything else through the translate/execute
// retry loop, and streamed investigations through the agent loop. One
// instance is constructed at startup and shared by all request handlers;
// per-session state lives in the SessionStore.
type CopilotQueryClient struct {
	translator *Translator
	global     *GlobalHandler
	agent      *Agent
	sessions   SessionStore
}

// NewCopilotQueryClient wires the query pipelines over a model client, a
// graph store and a session store.
func NewCopilotQueryClient(client ai.CopilotAIClient, s store.GraphStore, sessions SessionStore, agentOpts ...AgentOption) *CopilotQueryClient {
	return &CopilotQueryClient{
		translator: NewTranslator(client, s),
		global:     NewGlobalHandler(client),
		agent:      NewAgent(client, s, agentOpts...),
		sessions:   sessions,
	}
}

// Sessions exposes the session store for callers that manage the community
// snapshot.
func (c *CopilotQueryClient) Sessions() SessionStore {
	return c.sessions
}

// Global exposes the community answer pipeline, used by the worker to
// summarize rebuilt communities.
func (c *CopilotQueryClient) Global() *GlobalHandler {
	return c.global
}

// Ask answers a question synchronously. Errors surface in the result's
// Error field with confidence 0; the caller always gets a renderable
// response.
func (c *CopilotQueryClient) Ask(ctx context.Context, params AskParams) *AskResult {
	sessionID := params.SessionID
	if sessionID == "" {
		id, err := NewSessionID()
		if err != nil {
			return &AskResult{Error: err.Error()}
		}
		sessionID = id
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return &AskResult{SessionID: sessionID, Error: err.Error()}
	}

	cacheKey := CacheKey(params.Question, params.Context)
	if answer, ok := c.sessions.CachedAnswer(ctx, sessionID, cacheKey); ok {
		return &AskResult{Response: answer, Confidence: 80, SessionID: sessionID}
	}

	var (
		response   string
		confidence int
	)

	if IsGlobalQuestion(params.Question) {
		communities, err := c.sessions.Communities(ctx)
		if err != nil {
			logger.Warn("failed to load community snapshot", "error", err)
		}

		response, err = c.global.Answer(ctx, params.Question, communities)
		if err != nil {
			return &AskResult{SessionID: sessionID, Error: err.Error()}
		}
		confidence = 60
		if response == NoRelevantDataAnswer {
			confidence = 20
		}
	} else {
		result, err := c.translator.Ask(ctx, params.Question, params.Context)
		if err != nil {
			return &AskResult{
				Response:  "I was unable to answer this question from the communication graph.",
				SessionID: sessionID,
				Error:     err.Error(),
			}
		}
		response = result.Answer
		confidence = 85
		if len(result.Rows) == 0 {
			confidence = 50
		}
	}

	if err := c.sessions.CacheAnswer(ctx, sessionID, cacheKey, response); err != nil {
		logger.Warn("failed to cache answer", "session", sessionID, "error", err)
	}

	session.History = append(session.History,
		ai.ChatMessage{Role: "user", Message: params.Question},
		ai.ChatMessage{Role: "assistant", Message: response},
	)
	if params.Context != nil && params.Context.MessageID != "" {
		session.Focus = params.Context.MessageID
	}
	if err := c.sessions.Save(ctx, session); err != nil {
		logger.Warn("failed to save session", "session", sessionID, "error", err)
	}

	return &AskResult{Response: response, Confidence: confidence, SessionID: sessionID}
}

// AskStream runs the question through the agent loop and streams progress
// events. The session's history seeds the investigation, and the question
// and final answer are appended back, so a follow-up stream on the same
// session picks up the earlier turns. The caller owns the context;
// cancelling it stops the loop before the next hop.
func (c *CopilotQueryClient) AskStream(ctx context.Context, params AskParams) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		sessionID := params.SessionID
		if sessionID == "" {
			id, err := NewSessionID()
			if err != nil {
				emit(ctx, out, StreamEvent{Type: EventError, Content: err.Error()})
				emit(ctx, out, StreamEvent{Type: EventDone})
				return
			}
			sessionID = id
		}

		session, err := c.sessions.Get(ctx, sessionID)
		if err != nil {
			emit(ctx, out, StreamEvent{Type: EventError, Content: err.Error(), SessionID: sessionID})
			emit(ctx, out, StreamEvent{Type: EventDone, SessionID: sessionID})
			return
		}

		question := params.Question
		if params.Context != nil {
			question = buildQuestion(params.Question, params.Context)
		}

		answer := ""
		for ev := range c.agent.Investigate(ctx, session.History, question) {
			if ev.Type == EventAnswer {
				answer = ev.Content
			}
			ev.SessionID = sessionID
			if !emit(ctx, out, ev) {
				return
			}
		}

		if answer == "" {
			return
		}

		session.History = append(session.History,
			ai.ChatMessage{Role: "user", Message: params.Question},
			ai.ChatMessage{Role: "assistant", Message: answer},
		)
		if params.Context != nil && params.Context.MessageID != "" {
			session.Focus = params.Context.MessageID
		}
		if err := c.sessions.Save(ctx, session); err != nil {
			logger.Warn("failed to save session", "session", sessionID, "error", err)
		}
	}()

	return out
}
