// Package classifier turns the generation event stream of a model into
// typed responses: user-visible text, internal reasoning, or tool calls.
// Each model family marks its reasoning differently, so there is one
// classifier per family. Classifiers hold per-session state and are not
// safe for concurrent use; create one per generation session or wrap it
// with Synchronized.
package classifier

import (
	"fmt"
	"sort"
	"sync"

	"stream-classifier/types"
)

// Classifier maps one event to at most one response.
type Classifier interface {
	Classify(ev types.Event) (types.Response, bool)
}

// Drainer is implemented by classifiers that can complete more than one
// response for a single event. Drain returns the responses queued since
// the last Classify call.
type Drainer interface {
	Drain() []types.Response
}

// LogFunc receives structured log entries. It matches
// logger.ObservabilityLogger.LogFunc.
type LogFunc func(component, category, requestID, message string, fields map[string]interface{})

// Log component and categories used by this package
const (
	logComponent        = "classifier"
	categoryDegradation = "degradation"
	categoryDebug       = "debug"
)

// Family names
const (
	FamilyDefault    = "default"
	FamilyQwen3      = "qwen3"
	FamilyDeepSeekR1 = "deepseek-r1"
	FamilyGPTOSS     = "gpt-oss"
	FamilyPythonic   = "pythonic"
)

var families = map[string]func(o options) Classifier{
	FamilyDefault:    func(options) Classifier { return Default{} },
	FamilyQwen3:      func(o options) Classifier { return newThinking(o, false, false) },
	FamilyDeepSeekR1: func(o options) Classifier { return newThinking(o, true, true) },
	FamilyGPTOSS:     func(o options) Classifier { return newHarmony(o) },
	FamilyPythonic:   func(o options) Classifier { return newPythonic(o) },
}

// Families returns the known family names in sorted order
func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFamily reports whether name is a known family
func IsFamily(name string) bool {
	_, ok := families[name]
	return ok
}

// ForFamily creates a fresh classifier for the named model family
func ForFamily(name string, opts ...Option) (Classifier, error) {
	build, ok := families[name]
	if !ok {
		return nil, fmt.Errorf("unknown classifier family %q", name)
	}
	return build(newOptions(opts)), nil
}

type options struct {
	logFunc             LogFunc
	requestID           string
	startTags           []string
	endTags             []string
	initialThinking     *bool
	swallowLeadingStart *bool
}

// Option configures a classifier
type Option func(*options)

// WithLogFunc sets the function that receives degradation and debug logs
func WithLogFunc(fn LogFunc) Option {
	return func(o *options) { o.logFunc = fn }
}

// WithRequestID tags every log entry with the given request id
func WithRequestID(id string) Option {
	return func(o *options) { o.requestID = id }
}

// WithThinkingTags replaces the literal start and end tag spellings of
// the thinking-tag classifiers. Empty slices keep the defaults.
func WithThinkingTags(start, end []string) Option {
	return func(o *options) {
		if len(start) > 0 {
			o.startTags = append([]string(nil), start...)
		}
		if len(end) > 0 {
			o.endTags = append([]string(nil), end...)
		}
	}
}

// WithInitialThinking overrides whether a turn starts inside a reasoning block
func WithInitialThinking(thinking bool) Option {
	return func(o *options) { o.initialThinking = &thinking }
}

// WithSwallowLeadingStart overrides whether start tags seen before any
// content are dropped without affecting state
func WithSwallowLeadingStart(swallow bool) Option {
	return func(o *options) { o.swallowLeadingStart = &swallow }
}

func newOptions(opts []Option) options {
	o := options{
		startTags: DefaultStartTags(),
		endTags:   DefaultEndTags(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) log(category, message string, fields map[string]interface{}) {
	if o.logFunc == nil {
		return
	}
	o.logFunc(logComponent, category, o.requestID, message, fields)
}

// Default passes chunks through as text and tool calls unchanged
type Default struct{}

// Classify implements Classifier
func (Default) Classify(ev types.Event) (types.Response, bool) {
	switch ev.Kind {
	case types.EventChunk:
		return types.TextResponse(ev.Text), true
	case types.EventToolCall:
		return passToolCall(ev)
	}
	return types.Response{}, false
}

func passToolCall(ev types.Event) (types.Response, bool) {
	if ev.ToolCall == nil {
		return types.Response{}, false
	}
	return types.ToolCallResponse(*ev.ToolCall), true
}

// Synchronized guards c with a mutex so one instance can be shared
// between goroutines. The result implements Drainer when c does.
func Synchronized(c Classifier) Classifier {
	if s, ok := c.(*synchronized); ok {
		return s
	}
	return &synchronized{inner: c}
}

type synchronized struct {
	mu    sync.Mutex
	inner Classifier
}

func (s *synchronized) Classify(ev types.Event) (types.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Classify(ev)
}

func (s *synchronized) Drain() []types.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.inner.(Drainer); ok {
		return d.Drain()
	}
	return nil
}

// queue holds responses completed beyond the first one of an event
type queue struct {
	pending []types.Response
}

// emit returns the first response and queues the rest
func (q *queue) emit(rs []types.Response) (types.Response, bool) {
	if len(rs) == 0 {
		return types.Response{}, false
	}
	q.pending = append(q.pending, rs[1:]...)
	return rs[0], true
}

func (q *queue) Drain() []types.Response {
	out := q.pending
	q.pending = nil
	return out
}
