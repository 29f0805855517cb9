// Package harmony tracks one Harmony generation session: it drives a
// parser.StreamParser, tells the caller when sampling must stop, turns
// messages addressed to functions.* into tool calls, and implements the
// analysis preservation rule of the OpenAI Harmony guide.
//
// From the guide: "The exception for this is tool/function calling. The
// model is able to call tools as part of its chain-of-thought and because
// of that, we should pass the previous chain-of-thought back in as input
// for subsequent sampling."
package harmony

import (
	"strings"
	"sync"

	"stream-classifier/parser"
	"stream-classifier/types"
)

// FunctionsPrefix is the recipient namespace of function tools
const FunctionsPrefix = "functions."

// MessageType represents the type of the last assistant message for preservation logic
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeToolCall
	MessageTypeFinal
	MessageTypeAnalysisOnly
	MessageTypeCommentary
)

// String returns the string representation of MessageType
func (m MessageType) String() string {
	switch m {
	case MessageTypeToolCall:
		return "tool_call"
	case MessageTypeFinal:
		return "final"
	case MessageTypeAnalysisOnly:
		return "analysis_only"
	case MessageTypeCommentary:
		return "commentary"
	default:
		return "unknown"
	}
}

// LogFunc receives structured log entries. It matches
// logger.ObservabilityLogger.LogFunc.
type LogFunc func(component, category, requestID, message string, fields map[string]interface{})

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogFunc sets the function that receives degradation logs
func WithLogFunc(fn LogFunc) SessionOption {
	return func(s *Session) { s.logFunc = fn }
}

// WithRequestID tags every log entry with the given request id
func WithRequestID(id string) SessionOption {
	return func(s *Session) { s.requestID = id }
}

// Session is safe for concurrent use. Tokens must still be fed in order.
type Session struct {
	mu           sync.RWMutex
	logFunc      LogFunc
	requestID    string
	parser       *parser.StreamParser
	err          error
	seen         int
	toolCalls    []types.ToolCall
	lastType     MessageType
	lastFinalIdx int
}

// NewSession starts a session. A non-nil role seeds the first message
// header, as when the prompt already ends in "<|start|>assistant".
func NewSession(role *parser.Role, opts ...SessionOption) *Session {
	s := &Session{
		parser:       parser.NewStreamParser(role),
		lastFinalIdx: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed processes one decoded token. stop is true when the token was
// <|call|> or <|return|> and the caller must stop sampling. After the
// first error the session is poisoned and every Feed returns that error.
func (s *Session) Feed(token string) (stop bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	if err := s.parser.Process(token); err != nil {
		s.err = err
		return false, err
	}
	s.collect()
	return s.parser.StopRequested(), nil
}

// Close signals end of stream, closing any open message
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if err := s.parser.ProcessEndOfStream(); err != nil {
		s.err = err
		return err
	}
	s.collect()
	return nil
}

// Err returns the error that poisoned the session, if any
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// collect inspects messages closed since the last call
func (s *Session) collect() {
	if s.parser.MessageCount() == s.seen {
		return
	}
	msgs := s.parser.Messages()
	for i := s.seen; i < len(msgs); i++ {
		msg := msgs[i]
		if msg.Author.Role != parser.RoleAssistant {
			continue
		}
		switch {
		case strings.HasPrefix(msg.Recipient, FunctionsPrefix):
			s.toolCalls = append(s.toolCalls, s.toolCallFrom(msg))
			s.lastType = MessageTypeToolCall
		case msg.Channel == "final":
			s.lastType = MessageTypeFinal
			s.lastFinalIdx = i
		case msg.Channel == "commentary":
			s.lastType = MessageTypeCommentary
		case msg.Channel == "analysis":
			s.lastType = MessageTypeAnalysisOnly
		}
	}
	s.seen = len(msgs)
}

// toolCallFrom converts a message addressed to functions.<name>. Content
// that is not a JSON object yields empty arguments and a degradation log.
func (s *Session) toolCallFrom(msg parser.Message) types.ToolCall {
	name := strings.TrimPrefix(msg.Recipient, FunctionsPrefix)
	args, err := types.ParseJSONObject(msg.Text())
	if err != nil && s.logFunc != nil {
		s.logFunc("parser", "degradation", s.requestID, "Function call arguments are not a JSON object", map[string]interface{}{
			"function": name,
			"content":  msg.Text(),
			"error":    err.Error(),
		})
	}
	return types.NewToolCall(name, args)
}

// Messages returns all closed messages
func (s *Session) Messages() []parser.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parser.Messages()
}

// ToolCalls returns the function calls made so far, in order
func (s *Session) ToolCalls() []types.ToolCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ToolCall(nil), s.toolCalls...)
}

// LastMessageType returns the type of the last closed assistant message
func (s *Session) LastMessageType() MessageType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastType
}

// ShouldPreserveAnalysis reports whether the last assistant message was a
// tool call, in which case its chain of thought is passed back for the
// next sampling turn.
func (s *Session) ShouldPreserveAnalysis() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastType == MessageTypeToolCall
}

// PreservedAnalysis returns the analysis messages written since the last
// final message. It is empty unless the last assistant message was a tool call.
func (s *Session) PreservedAnalysis() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preservedAnalysis()
}

func (s *Session) preservedAnalysis() []string {
	out := make([]string, 0)
	if s.lastType != MessageTypeToolCall {
		return out
	}
	msgs := s.parser.Messages()
	for i := s.lastFinalIdx + 1; i < len(msgs); i++ {
		msg := msgs[i]
		if msg.Author.Role == parser.RoleAssistant && msg.Channel == "analysis" && msg.Text() != "" {
			out = append(out, msg.Text())
		}
	}
	return out
}

// BuildPreservedContext renders the preserved analysis as Harmony messages
// ready to be prepended to the next prompt
func (s *Session) BuildPreservedContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var builder strings.Builder
	for i, analysis := range s.preservedAnalysis() {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(parser.StartMarker + "assistant" + parser.ChannelMarker + "analysis" + parser.MessageMarker)
		builder.WriteString(strings.TrimSpace(analysis))
		builder.WriteString(parser.EndMarker)
	}
	return builder.String()
}
