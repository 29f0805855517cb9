// Package parser provides incremental parsing of the OpenAI Harmony message format.
// It recognizes the Harmony special tokens (<|start|>, <|channel|>, <|message|>,
// <|end|>, ...) and drives a streaming state machine that turns decoded tokens
// into closed messages with role, recipient, channel and content type.
package parser

import (
	"strings"
)

// Content is one text part of a Harmony message
type Content struct {
	Text string `json:"text"`
}

// Message represents a single closed Harmony message
type Message struct {
	Author      Author    `json:"author"`
	Recipient   string    `json:"recipient,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Content     []Content `json:"content"`
}

// Text returns the concatenated text of all content parts
func (m Message) Text() string {
	if len(m.Content) == 1 {
		return m.Content[0].Text
	}
	var sb strings.Builder
	for _, c := range m.Content {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// streamState is one of expectStart, *headerState or *contentState
type streamState interface {
	name() string
}

type expectStart struct{}

func (expectStart) name() string { return "ExpectStart" }

type headerState struct {
	tokens []Token
}

func (*headerState) name() string { return "Header" }

type contentState struct {
	header ParsedHeader
	text   strings.Builder
}

func (*contentState) name() string { return "Content" }

// StreamParser incrementally parses Harmony tokens into messages. One
// parser serves one generation session and must be fed tokens in order.
type StreamParser struct {
	nextRole *Role
	state    streamState
	tokens   []string
	messages []Message
	delta    string
	hasDelta bool
}

// NewStreamParser creates a streaming parser. If role is non-nil the parser
// starts directly in the header state and uses role for the first message.
func NewStreamParser(role *Role) *StreamParser {
	p := &StreamParser{state: expectStart{}}
	if role != nil {
		r := *role
		p.nextRole = &r
		p.state = &headerState{}
	}
	return p
}

// Process classifies a decoded token and advances the state machine
func (p *StreamParser) Process(token string) error {
	p.tokens = append(p.tokens, token)
	tok := ClassifyToken(token)
	return p.advance(&tok)
}

// ProcessEndOfStream signals that no more tokens will arrive. An open
// message is closed; waiting for a start marker is not an error.
func (p *StreamParser) ProcessEndOfStream() error {
	return p.advance(nil)
}

// advance applies one transition. tok is nil for end of stream.
func (p *StreamParser) advance(tok *Token) error {
	switch st := p.state.(type) {
	case expectStart:
		if tok == nil {
			return nil
		}
		if tok.Is(MarkerStart) {
			p.state = &headerState{}
			return nil
		}
		return p.errorf(KindUnexpectedToken, "unexpected token while expecting "+StartMarker, tok.Text(), nil)

	case *headerState:
		if tok == nil {
			return p.errorf(KindEOSWhileWaitingForHeader, "end of stream while waiting for header", renderTokens(st.tokens), nil)
		}
		if tok.Is(MarkerStart) && p.nextRole != nil && len(st.tokens) == 0 {
			// role-seeded parsers begin in Header; the explicit start is redundant
			return nil
		}
		if tok.Is(MarkerMessage) {
			raw := strings.TrimSpace(renderTokens(st.tokens))
			hdr, err := ParseHeader(raw, p.nextRole)
			if err != nil {
				return p.errorf(KindHeader, err.Error(), raw, err)
			}
			p.nextRole = nil
			p.state = &contentState{header: hdr}
			p.clearDelta()
			return nil
		}
		st.tokens = append(st.tokens, *tok)
		return nil

	case *contentState:
		if tok == nil || tok.IsStop() {
			p.messages = append(p.messages, Message{
				Author:      st.header.Author,
				Recipient:   st.header.Recipient,
				Channel:     st.header.Channel,
				ContentType: st.header.ContentType,
				Content:     []Content{{Text: st.text.String()}},
			})
			p.clearDelta()
			p.state = expectStart{}
			return nil
		}
		// markers other than stop markers are tolerated as literal content
		st.text.WriteString(tok.Text())
		p.delta = tok.Text()
		p.hasDelta = true
		return nil
	}
	return p.errorf(KindUnexpectedToken, "invalid parser state", "", nil)
}

func (p *StreamParser) clearDelta() {
	p.delta = ""
	p.hasDelta = false
}

func (p *StreamParser) errorf(kind ErrorKind, msg, context string, err error) error {
	return &ParseError{
		Kind:     kind,
		Message:  msg,
		Position: len(p.tokens) - 1,
		Context:  context,
		Err:      err,
	}
}

func renderTokens(tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// Messages returns a copy of all closed messages in insertion order
func (p *StreamParser) Messages() []Message {
	out := make([]Message, len(p.messages))
	for i, m := range p.messages {
		m.Content = append([]Content(nil), m.Content...)
		out[i] = m
	}
	return out
}

// MessageCount returns the number of closed messages
func (p *StreamParser) MessageCount() int { return len(p.messages) }

// Tokens returns all raw tokens that have been fed to the parser
func (p *StreamParser) Tokens() []string { return append([]string(nil), p.tokens...) }

// State returns the current state name: ExpectStart, Header or Content
func (p *StreamParser) State() string { return p.state.name() }

// LastContentDelta returns the most recent text fragment of the open message
func (p *StreamParser) LastContentDelta() (string, bool) { return p.delta, p.hasDelta }

// LastTokenIsCall reports whether the most recent raw token is <|call|>.
// A caller driving inference stops sampling when this is true.
func (p *StreamParser) LastTokenIsCall() bool {
	return len(p.tokens) > 0 && p.tokens[len(p.tokens)-1] == CallMarker
}

// StopRequested reports whether the most recent raw token is <|call|> or <|return|>
func (p *StreamParser) StopRequested() bool {
	if len(p.tokens) == 0 {
		return false
	}
	last := p.tokens[len(p.tokens)-1]
	return last == CallMarker || last == ReturnMarker
}

func (p *StreamParser) openHeader() (ParsedHeader, bool) {
	if st, ok := p.state.(*contentState); ok {
		return st.header, true
	}
	return ParsedHeader{}, false
}

// CurrentRole returns the role of the open message
func (p *StreamParser) CurrentRole() (Role, bool) {
	hdr, ok := p.openHeader()
	return hdr.Author.Role, ok
}

// CurrentChannel returns the channel of the open message, if any
func (p *StreamParser) CurrentChannel() string {
	hdr, _ := p.openHeader()
	return hdr.Channel
}

// CurrentRecipient returns the recipient of the open message, if any
func (p *StreamParser) CurrentRecipient() string {
	hdr, _ := p.openHeader()
	return hdr.Recipient
}

// CurrentContentType returns the content type (e.g. "<|constrain|>json") of
// the open message, if any
func (p *StreamParser) CurrentContentType() string {
	hdr, _ := p.openHeader()
	return hdr.ContentType
}

// CurrentContent returns the text accumulated so far for the open message
func (p *StreamParser) CurrentContent() string {
	if st, ok := p.state.(*contentState); ok {
		return st.text.String()
	}
	return ""
}
