package types

// EventKind identifies a generation event produced by the inference engine
type EventKind int

const (
	EventChunk EventKind = iota
	EventToolCall
	EventInfo
)

// String returns the string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventToolCall:
		return "tool_call"
	case EventInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Event is one item of the generation stream: a decoded text chunk, a
// tool call the engine already identified, or informational metadata
// (typically the terminal event of a stream).
type Event struct {
	Kind     EventKind
	Text     string
	ToolCall *ToolCall
	Info     map[string]string
}

// ChunkEvent builds a text chunk event
func ChunkEvent(text string) Event {
	return Event{Kind: EventChunk, Text: text}
}

// ToolCallEvent builds a pre-identified tool call event
func ToolCallEvent(call ToolCall) Event {
	return Event{Kind: EventToolCall, ToolCall: &call}
}

// InfoEvent builds an informational event
func InfoEvent(info map[string]string) Event {
	return Event{Kind: EventInfo, Info: info}
}
