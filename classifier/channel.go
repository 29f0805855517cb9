package classifier

import (
	"strings"

	"stream-classifier/parser"
	"stream-classifier/types"
)

// ChannelState is the position of a Harmony classifier in the channel protocol
type ChannelState int

const (
	StateInitial ChannelState = iota
	StateChannelStart
	StateAnalysis
	StateCommentary
	StateFinal
	StateFinish
)

func (s ChannelState) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateChannelStart:
		return "ChannelStart"
	case StateAnalysis:
		return "AnalysisChannel"
	case StateCommentary:
		return "CommentaryChannel"
	case StateFinal:
		return "FinalChannel"
	case StateFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

var channelStates = map[string]ChannelState{
	"analysis":   StateAnalysis,
	"commentary": StateCommentary,
	"final":      StateFinal,
}

// Harmony classifies the raw token stream of models speaking the Harmony
// protocol. Markers drive the state; content of the analysis channel and
// of commentary addressed to a tool is reasoning, final content and
// commentary without a recipient are text.
type Harmony struct {
	opts      options
	state     ChannelState
	inHeader  bool
	recipient string
}

// NewHarmony creates a channel-based classifier in the Initial state
func NewHarmony(opts ...Option) *Harmony {
	return newHarmony(newOptions(opts))
}

func newHarmony(o options) *Harmony {
	return &Harmony{opts: o}
}

// State returns the current channel state
func (h *Harmony) State() ChannelState { return h.state }

// Recipient returns the recipient seen in the current message header, if any
func (h *Harmony) Recipient() string { return h.recipient }

// Classify implements Classifier
func (h *Harmony) Classify(ev types.Event) (types.Response, bool) {
	switch ev.Kind {
	case types.EventChunk:
		tok := parser.ClassifyToken(ev.Text)
		if m, ok := tok.Marker(); ok {
			h.onMarker(m)
			return types.Response{}, false
		}
		return h.onText(ev.Text)
	case types.EventToolCall:
		return passToolCall(ev)
	}
	return types.Response{}, false
}

func (h *Harmony) onMarker(m parser.Marker) {
	if h.state == StateFinish {
		return
	}
	switch m {
	case parser.MarkerChannel:
		h.state = StateChannelStart
		h.inHeader = true
	case parser.MarkerMessage:
		h.inHeader = false
	case parser.MarkerEnd, parser.MarkerCall, parser.MarkerStart:
		h.state = StateInitial
		h.inHeader = false
		h.recipient = ""
	case parser.MarkerReturn:
		h.state = StateFinish
		h.inHeader = false
		h.recipient = ""
	case parser.MarkerConstrain:
	}
}

func (h *Harmony) onText(text string) (types.Response, bool) {
	switch h.state {
	case StateInitial:
		h.scanHeader(strings.Fields(text))
		return types.Response{}, false

	case StateChannelStart:
		words := strings.Fields(text)
		if len(words) == 0 {
			return types.Response{}, false
		}
		next, ok := channelStates[words[0]]
		if !ok {
			h.opts.log(categoryDegradation, "Unknown channel name treated as text", map[string]interface{}{
				"channel": words[0],
			})
			h.state = StateFinal
			h.inHeader = false
			return types.TextResponse(text), true
		}
		h.state = next
		h.scanHeader(words[1:])
		return types.Response{}, false

	case StateAnalysis, StateCommentary, StateFinal:
		if h.inHeader {
			h.scanHeader(strings.Fields(text))
			return types.Response{}, false
		}
		switch h.state {
		case StateAnalysis:
			return types.ReasoningResponse(text), true
		case StateCommentary:
			if h.recipient != "" {
				return types.ReasoningResponse(text), true
			}
			return types.TextResponse(text), true
		default:
			return types.TextResponse(text), true
		}
	}
	return types.Response{}, false
}

// scanHeader records a to= recipient among header words
func (h *Harmony) scanHeader(words []string) {
	for _, w := range words {
		if r, ok := strings.CutPrefix(w, "to="); ok && r != "" {
			h.recipient = r
		}
	}
}
