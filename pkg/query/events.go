package query

import (
	"encoding/json"
	"fmt"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

// EventType tags the discrete progress events of a streamed investigation.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventAnswer     EventType = "answer"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// StreamEvent is one unit of progress in a streamed agent session. Exactly
// one terminal sequence is emitted per stream: an answer (or error) followed
// by done. SessionID names the session the stream belongs to, so a client
// that started without one can follow up on the same session.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Content   string    `json:"content,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolArgs  string    `json:"tool_args,omitempty"`
	Hop       int       `json:"hop,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// maxToolResultChars bounds the serialized size of a tool result before it
// is fed back into the transcript.
const maxToolResultChars = 15000

// truncatedRows is how many data rows survive truncation.
const truncatedRows = 10

// ToolResult is the structured outcome of one tool call. Failures are
// captured here rather than aborting the loop, so the model can react to
// them.
type ToolResult struct {
	OK     bool              `json:"ok"`
	Error  string            `json:"error,omitempty"`
	Data   []map[string]any  `json:"data,omitempty"`
	Schema *store.SchemaInfo `json:"schema,omitempty"`
	Note   string            `json:"note,omitempty"`
}

// Serialize renders the result as JSON for the transcript. Oversized
// results keep only the first rows of the data field, with a note naming
// the truncation.
func (r ToolResult) Serialize() string {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":"failed to serialize tool result: %s"}`, err)
	}
	if len(raw) <= maxToolResultChars || len(r.Data) <= truncatedRows {
		return string(raw)
	}

	truncated := r
	truncated.Data = r.Data[:truncatedRows]
	truncated.Note = fmt.Sprintf("result truncated to the first %d of %d rows", truncatedRows, len(r.Data))
	raw, err = json.Marshal(truncated)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":"failed to serialize tool result: %s"}`, err)
	}
	return string(raw)
}

func errorResult(err error) ToolResult {
	return ToolResult{OK: false, Error: err.Error()}
}
