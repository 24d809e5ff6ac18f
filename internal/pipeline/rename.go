package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	"github.com/KaramelBytes/flightinsights/internal/table"
)

var (
	// ErrNoStructuredOutput means the completion carried neither a tool call nor a JSON object.
	ErrNoStructuredOutput = errors.New("no structured output in completion")
	// ErrInvalidColumnNames means the structured output failed validation.
	ErrInvalidColumnNames = errors.New("invalid column names")
)

const renameToolName = "correct_column_names"

// ColumnNames is the structured output of the rename call.
type ColumnNames struct {
	CorrectedColumns []string `json:"corrected_columns"`
}

// Validate rejects an empty list, blank names and duplicates.
func (c ColumnNames) Validate() error {
	if len(c.CorrectedColumns) == 0 {
		return fmt.Errorf("%w: empty list", ErrInvalidColumnNames)
	}
	seen := make(map[string]int, len(c.CorrectedColumns))
	for i, n := range c.CorrectedColumns {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: name %d is blank", ErrInvalidColumnNames, i)
		}
		if j, dup := seen[n]; dup {
			return fmt.Errorf("%w: %q appears at %d and %d", ErrInvalidColumnNames, n, j, i)
		}
		seen[n] = i
	}
	return nil
}

var renameTool = ai.Tool{
	Type: "function",
	Function: ai.FunctionSpec{
		Name:        renameToolName,
		Description: "Corrects and humanizes column names for a flight dataset.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"corrected_columns": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Corrected column names, one per input column, in the input order.",
				},
			},
			"required": []string{"corrected_columns"},
		},
	},
}

// SuggestColumnNames asks the model for humanized replacements of columns.
func SuggestColumnNames(ctx context.Context, chat *ai.ChatModel, columns []string) ([]string, error) {
	msgs := []ai.Message{
		{Role: "system", Content: renameInstructions},
		{Role: "user", Content: renameRequest(columns)},
	}
	msg, err := chat.CallTool(ctx, msgs, renameTool)
	if err != nil {
		return nil, err
	}
	out, err := parseColumnNames(msg)
	if err != nil {
		return nil, err
	}
	return out.CorrectedColumns, nil
}

// parseColumnNames reads the forced tool call, falling back to a JSON
// object embedded in the message content.
func parseColumnNames(msg *ai.Message) (ColumnNames, error) {
	var out ColumnNames
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != renameToolName {
			continue
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &out); err != nil {
			return out, fmt.Errorf("%w: tool arguments: %v", ErrInvalidColumnNames, err)
		}
		return out, out.Validate()
	}
	raw, ok := jsonObject(msg.Content)
	if !ok {
		return out, ErrNoStructuredOutput
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidColumnNames, err)
	}
	return out, out.Validate()
}

// jsonObject returns the outermost {...} span of s.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// renameColumns applies the model's suggestion positionally. On a count
// mismatch the input table is returned with the error.
func renameColumns(ctx context.Context, chat *ai.ChatModel, t *table.Table) (*table.Table, error) {
	names, err := SuggestColumnNames(ctx, chat, t.Columns())
	if err != nil {
		return t, err
	}
	return t.Rename(names)
}
