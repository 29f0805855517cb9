package types

import (
	"encoding/json"
	"fmt"
)

// ResponseKind represents the semantic channel a piece of model output belongs to
type ResponseKind int

const (
	ResponseText ResponseKind = iota
	ResponseReasoning
	ResponseToolCall
)

// String returns the string representation of the ResponseKind
func (k ResponseKind) String() string {
	switch k {
	case ResponseText:
		return "text"
	case ResponseReasoning:
		return "reasoning"
	case ResponseToolCall:
		return "tool_call"
	default:
		return "unknown"
	}
}

// ParseResponseKind converts a string to ResponseKind
func ParseResponseKind(s string) (ResponseKind, error) {
	switch s {
	case "text":
		return ResponseText, nil
	case "reasoning":
		return ResponseReasoning, nil
	case "tool_call":
		return ResponseToolCall, nil
	default:
		return 0, fmt.Errorf("unknown response kind %q", s)
	}
}

// FunctionCall holds the function name and arguments of a tool invocation
type FunctionCall struct {
	Name      string               `json:"name"`
	Arguments map[string]JSONValue `json:"arguments"`
}

// ToolCall is a structured request to invoke an external function
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// NewToolCall builds a tool call with the given function name and arguments
func NewToolCall(name string, args map[string]JSONValue) ToolCall {
	if args == nil {
		args = map[string]JSONValue{}
	}
	return ToolCall{Function: FunctionCall{Name: name, Arguments: args}}
}

// ArgumentsJSON returns the arguments encoded as a JSON object
func (c ToolCall) ArgumentsJSON() (string, error) {
	args := c.Function.Arguments
	if args == nil {
		args = map[string]JSONValue{}
	}
	b, err := Object(args).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode arguments for %s: %w", c.Function.Name, err)
	}
	return string(b), nil
}

// Response is one classified piece of model output. Exactly one of Text
// (for ResponseText and ResponseReasoning) or ToolCall is meaningful.
type Response struct {
	Kind     ResponseKind
	Text     string
	ToolCall *ToolCall
}

// TextResponse builds a user-visible text response
func TextResponse(text string) Response {
	return Response{Kind: ResponseText, Text: text}
}

// ReasoningResponse builds an internal reasoning response
func ReasoningResponse(text string) Response {
	return Response{Kind: ResponseReasoning, Text: text}
}

// ToolCallResponse builds a tool call response
func ToolCallResponse(call ToolCall) Response {
	return Response{Kind: ResponseToolCall, ToolCall: &call}
}

// IsText returns true if the response is user-visible text
func (r Response) IsText() bool { return r.Kind == ResponseText }

// IsReasoning returns true if the response is reasoning text
func (r Response) IsReasoning() bool { return r.Kind == ResponseReasoning }

// IsToolCall returns true if the response carries a tool call
func (r Response) IsToolCall() bool { return r.Kind == ResponseToolCall && r.ToolCall != nil }

type responseJSON struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// MarshalJSON encodes the response as {"type": ..., "text"|"tool_call": ...}
func (r Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{Type: r.Kind.String()}
	if r.Kind == ResponseToolCall {
		if r.ToolCall == nil {
			return nil, fmt.Errorf("tool_call response without tool call")
		}
		out.ToolCall = r.ToolCall
	} else {
		out.Text = r.Text
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the shape written by MarshalJSON
func (r *Response) UnmarshalJSON(b []byte) error {
	var in responseJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	kind, err := ParseResponseKind(in.Type)
	if err != nil {
		return err
	}
	*r = Response{Kind: kind, Text: in.Text, ToolCall: in.ToolCall}
	return nil
}
