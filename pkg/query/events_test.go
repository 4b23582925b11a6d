package query

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestToolResultSerializeSmall(t *testing.T) {
	result := ToolResult{OK: true, Data: []map[string]any{{"sender": "a@x"}, {"sender": "b@x"}}}

	var decoded ToolResult
	if err := json.Unmarshal([]byte(result.Serialize()), &decoded); err != nil {
		t.Fatalf("serialized result is not valid JSON: %v", err)
	}
	if len(decoded.Data) != 2 || decoded.Note != "" {
		t.Errorf("small result must not be truncated: %+v", decoded)
	}
}

func TestToolResultSerializeTruncatesLargeData(t *testing.T) {
	rows := make([]map[string]any, 100)
	for i := range rows {
		rows[i] = map[string]any{"body": strings.Repeat("x", 400)}
	}
	result := ToolResult{OK: true, Data: rows}

	serialized := result.Serialize()

	var decoded ToolResult
	if err := json.Unmarshal([]byte(serialized), &decoded); err != nil {
		t.Fatalf("serialized result is not valid JSON: %v", err)
	}
	if len(decoded.Data) != truncatedRows {
		t.Errorf("truncated data = %d rows, want %d", len(decoded.Data), truncatedRows)
	}
	if !strings.Contains(decoded.Note, "100") {
		t.Errorf("note must name the original row count: %q", decoded.Note)
	}
	if !decoded.OK {
		t.Error("truncation must not flip the ok flag")
	}
}

func TestToolResultSerializeLargeErrorStaysIntact(t *testing.T) {
	// Oversized results without an array-shaped data field pass through.
	result := ToolResult{OK: false, Error: strings.Repeat("e", 20000)}

	var decoded ToolResult
	if err := json.Unmarshal([]byte(result.Serialize()), &decoded); err != nil {
		t.Fatalf("serialized result is not valid JSON: %v", err)
	}
	if len(decoded.Error) != 20000 {
		t.Errorf("error field length = %d, want untouched 20000", len(decoded.Error))
	}
}
