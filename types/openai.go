package types

import (
	"fmt"

	"github.com/google/uuid"
)

// OpenAIStreamChunk represents a chat-completions streaming chunk from an
// OpenAI-compatible inference server
type OpenAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
}

// OpenAIStreamChoice represents streaming response choice
type OpenAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        OpenAIStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

// OpenAIStreamDelta represents streaming delta content
type OpenAIStreamDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIToolCall represents a tool call in OpenAI format
type OpenAIToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function OpenAIToolCallFunction `json:"function"`
	Index    int                    `json:"index,omitempty"`
}

// OpenAIToolCallFunction represents tool call function details
type OpenAIToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIToolCallFrom converts a classified tool call to the OpenAI wire shape.
// A missing ID is replaced by a generated one.
func OpenAIToolCallFrom(call ToolCall, index int) (OpenAIToolCall, error) {
	args, err := call.ArgumentsJSON()
	if err != nil {
		return OpenAIToolCall{}, err
	}
	id := call.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	return OpenAIToolCall{
		ID:    id,
		Type:  "function",
		Index: index,
		Function: OpenAIToolCallFunction{
			Name:      call.Function.Name,
			Arguments: args,
		},
	}, nil
}

// ToToolCall converts a fully accumulated OpenAI tool call into a ToolCall.
// Arguments that are not a JSON object are rejected.
func (c OpenAIToolCall) ToToolCall() (ToolCall, error) {
	args := map[string]JSONValue{}
	if c.Function.Arguments != "" {
		parsed, err := ParseJSONObject(c.Function.Arguments)
		if err != nil {
			return ToolCall{}, fmt.Errorf("tool call %s: %w", c.Function.Name, err)
		}
		args = parsed
	}
	return ToolCall{ID: c.ID, Function: FunctionCall{Name: c.Function.Name, Arguments: args}}, nil
}
