package classifier

import (
	"strings"

	"stream-classifier/pythoncall"
	"stream-classifier/types"
)

type pythonicMode int

const (
	modeUndecided pythonicMode = iota
	modeText
	modeTool
)

// Pythonic classifies models that answer a tool turn with a bracketed list
// of Python-style calls. The first non-whitespace character of a turn
// decides: '[' starts tool mode, where chunks are buffered until calls
// complete; anything else streams through as text.
type Pythonic struct {
	queue
	opts    options
	mode    pythonicMode
	leading string
	calls   pythoncall.Extractor
	// raw is the model text fed since the last completed call
	raw     string
}

// NewPythonic creates a Python-call classifier
func NewPythonic(opts ...Option) *Pythonic {
	return newPythonic(newOptions(opts))
}

func newPythonic(o options) *Pythonic {
	return &Pythonic{opts: o}
}

// Classify implements Classifier. When a chunk completes several calls
// the first is returned and the rest are available from Drain.
func (p *Pythonic) Classify(ev types.Event) (types.Response, bool) {
	switch ev.Kind {
	case types.EventChunk:
		return p.onChunk(ev.Text)
	case types.EventToolCall:
		return passToolCall(ev)
	case types.EventInfo:
		return p.emit(p.flush())
	}
	return types.Response{}, false
}

func (p *Pythonic) onChunk(text string) (types.Response, bool) {
	switch p.mode {
	case modeUndecided:
		text = p.leading + text
		trimmed := strings.TrimLeft(text, " \t\r\n")
		if trimmed == "" {
			p.leading = text
			return types.Response{}, false
		}
		p.leading = ""
		if trimmed[0] != '[' {
			p.mode = modeText
			return types.TextResponse(text), true
		}
		p.mode = modeTool
		p.opts.log(categoryDebug, "Python call list detected", nil)
		p.feed(text)
		return p.emit(p.completed())

	case modeTool:
		p.feed(text)
		return p.emit(p.completed())
	}
	return types.TextResponse(text), true
}

func (p *Pythonic) feed(text string) {
	p.raw += text
	p.calls.Feed(text)
}

func (p *Pythonic) completed() []types.Response {
	var out []types.Response
	for {
		call, ok := p.calls.Next()
		if !ok {
			return out
		}
		p.raw = p.calls.Buffered()
		out = append(out, types.ToolCallResponse(call))
	}
}

// flush ends the turn. Output after the last completed call could not be
// parsed and is returned as plain text, as the model wrote it.
func (p *Pythonic) flush() []types.Response {
	defer func() {
		p.mode = modeUndecided
		p.leading = ""
		p.raw = ""
		p.calls.Reset()
	}()
	if p.mode != modeTool {
		return nil
	}
	out := p.completed()
	if strings.TrimSpace(p.calls.Buffered()) != "" {
		rest := strings.TrimSpace(p.raw)
		p.opts.log(categoryDegradation, "Unparseable python call text flushed as text", map[string]interface{}{
			"buffered": rest,
		})
		out = append(out, types.TextResponse(rest))
	}
	return out
}
