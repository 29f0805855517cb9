package proxy

import (
	"context"
	"errors"

	"stream-classifier/classifier"
	"stream-classifier/harmony"
	"stream-classifier/logger"
	"stream-classifier/loop"
	"stream-classifier/parser"
	"stream-classifier/types"
)

// LogFunc matches logger.ObservabilityLogger.LogFunc
type LogFunc func(component, category, requestID, message string, fields map[string]interface{})

// Pipeline drives one classifier over one generation stream, draining
// queued responses and recording metrics. For Harmony models it also
// feeds a harmony.Session so that calls addressed to functions.* are
// emitted as tool call responses.
type Pipeline struct {
	classifier classifier.Classifier
	family     string
	metrics    *Metrics
	logFunc    LogFunc
	requestID  string

	useSession   bool
	session      *harmony.Session
	loops        *loop.Detector
	emittedCalls int
	counts       map[string]int
	finished     bool
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithMetrics records counters into m
func WithMetrics(m *Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogFunc sets the logging hook
func WithLogFunc(fn LogFunc) PipelineOption {
	return func(p *Pipeline) { p.logFunc = fn }
}

// WithRequestID tags log entries with id
func WithRequestID(id string) PipelineOption {
	return func(p *Pipeline) { p.requestID = id }
}

// WithHarmonySession forces Harmony session tracking on or off. It is on
// by default for the gpt-oss family.
func WithHarmonySession(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.useSession = enabled }
}

// WithLoopThreshold reports runs of n identical consecutive tool calls.
// Values below 2 disable loop detection.
func WithLoopThreshold(n int) PipelineOption {
	return func(p *Pipeline) { p.loops = loop.NewDetector(n) }
}

// NewPipeline wraps c, a classifier of the given family
func NewPipeline(c classifier.Classifier, family string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		classifier: c,
		family:     family,
		counts:     make(map[string]int),
		useSession: family == classifier.FamilyGPTOSS,
		loops:      loop.NewDetector(loop.DefaultThreshold),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.useSession {
		role := parser.RoleAssistant
		p.session = harmony.NewSession(&role,
			harmony.WithLogFunc(harmony.LogFunc(p.logFunc)),
			harmony.WithRequestID(p.requestID),
		)
	}
	return p
}

// Session returns the Harmony session tracked by the pipeline, if any
func (p *Pipeline) Session() *harmony.Session { return p.session }

// Counts returns the number of responses emitted per response kind
func (p *Pipeline) Counts() map[string]int {
	out := make(map[string]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// Push classifies one event and returns every response it completed
func (p *Pipeline) Push(ev types.Event) []types.Response {
	var out []types.Response

	if ev.Kind == types.EventChunk && p.session != nil {
		for _, tok := range parser.SplitTokens(ev.Text) {
			out = append(out, p.classify(types.ChunkEvent(tok))...)
			p.feedSession(tok)
			out = append(out, p.sessionCalls()...)
		}
	} else {
		out = p.classify(ev)
	}

	if ev.Kind == types.EventInfo && p.session != nil && p.session.Err() == nil {
		if err := p.session.Close(); err != nil {
			p.parseFailed(err)
		}
		out = append(out, p.sessionCalls()...)
	}

	for _, r := range out {
		p.record(r)
	}
	return out
}

func (p *Pipeline) classify(ev types.Event) []types.Response {
	var out []types.Response
	if r, ok := p.classifier.Classify(ev); ok {
		out = append(out, r)
	}
	if d, ok := p.classifier.(classifier.Drainer); ok {
		out = append(out, d.Drain()...)
	}
	return out
}

func (p *Pipeline) feedSession(tok string) {
	if p.session.Err() != nil {
		return
	}
	if _, err := p.session.Feed(tok); err != nil {
		p.parseFailed(err)
	}
}

// parseFailed is called at most once per session; the session stays
// poisoned afterwards
func (p *Pipeline) parseFailed(err error) {
	kind := "unknown"
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		kind = perr.Kind.String()
	}
	if p.metrics != nil {
		p.metrics.ParseErrors.WithLabelValues(kind).Inc()
	}
	p.log(logger.ComponentParser, logger.CategoryError, "Harmony session parse failed", map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	})
}

func (p *Pipeline) sessionCalls() []types.Response {
	calls := p.session.ToolCalls()
	var out []types.Response
	for _, call := range calls[p.emittedCalls:] {
		out = append(out, types.ToolCallResponse(call))
	}
	p.emittedCalls = len(calls)
	return out
}

func (p *Pipeline) record(r types.Response) {
	kind := r.Kind.String()
	p.counts[kind]++
	if r.IsToolCall() {
		p.checkLoop(*r.ToolCall)
	}
	if p.metrics == nil {
		return
	}
	p.metrics.Responses.WithLabelValues(p.family, kind).Inc()
	if r.IsToolCall() {
		p.metrics.ToolCalls.WithLabelValues(p.family, r.ToolCall.Function.Name).Inc()
	}
}

// checkLoop reports, without altering the output, a model repeating the
// same tool call
func (p *Pipeline) checkLoop(call types.ToolCall) {
	det := p.loops.Observe(call)
	if det == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.Loops.WithLabelValues(p.family, det.ToolName).Inc()
	}
	p.log(logger.ComponentStream, logger.CategoryDegradation, "Repeated tool call detected", map[string]interface{}{
		"tool":           det.ToolName,
		"count":          det.Count,
		"recommendation": det.Recommendation,
	})
}

func (p *Pipeline) log(component, category, message string, fields map[string]interface{}) {
	if p.logFunc != nil {
		p.logFunc(component, category, p.requestID, message, fields)
	}
}

// Finish records the outcome of the stream. err is the error that ended
// it, nil on success. Only the first call has an effect.
func (p *Pipeline) Finish(err error) {
	if p.finished {
		return
	}
	p.finished = true

	outcome := OutcomeOK
	category := logger.CategorySuccess
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeCanceled
		category = logger.CategoryRequest
	case err != nil:
		outcome = OutcomeError
		category = logger.CategoryError
	}
	if p.metrics != nil {
		p.metrics.Streams.WithLabelValues(p.family, outcome).Inc()
	}

	fields := map[string]interface{}{
		"family":  p.family,
		"outcome": outcome,
	}
	for kind, n := range p.counts {
		fields[kind+"_count"] = n
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	p.log(logger.ComponentStream, category, "Stream finished", fields)
}

// Run classifies events until the channel closes or ctx is done, sending
// every response to out. It returns ctx.Err() on cancellation.
func (p *Pipeline) Run(ctx context.Context, events <-chan types.Event, out chan<- types.Response) (err error) {
	defer func() { p.Finish(err) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			for _, r := range p.Push(ev) {
				select {
				case out <- r:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
