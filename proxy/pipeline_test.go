package proxy

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-classifier/classifier"
	"stream-classifier/types"
)

func newTestPipeline(t *testing.T, family string, opts ...PipelineOption) (*Pipeline, *Metrics) {
	t.Helper()
	c, err := classifier.ForFamily(family)
	require.NoError(t, err)
	m := NewMetrics(prometheus.NewRegistry())
	return NewPipeline(c, family, append([]PipelineOption{WithMetrics(m)}, opts...)...), m
}

func pushAll(p *Pipeline, events ...types.Event) []types.Response {
	var out []types.Response
	for _, ev := range events {
		out = append(out, p.Push(ev)...)
	}
	return out
}

var finished = types.InfoEvent(map[string]string{"finish_reason": "stop"})

func TestPipelineThinking(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyQwen3)
	got := pushAll(p,
		types.ChunkEvent("<think>"),
		types.ChunkEvent("plan"),
		types.ChunkEvent("</think>"),
		types.ChunkEvent("answer"),
		finished,
	)

	assert.Equal(t, []types.Response{
		types.ReasoningResponse("plan"),
		types.TextResponse("answer"),
	}, got)
	assert.Nil(t, p.Session())
	assert.Equal(t, map[string]int{"reasoning": 1, "text": 1}, p.Counts())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues(classifier.FamilyQwen3, "text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues(classifier.FamilyQwen3, "reasoning")))
}

func TestPipelineHarmonySessionEmitsFunctionCalls(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyGPTOSS)
	require.NotNil(t, p.Session())

	got := pushAll(p,
		types.ChunkEvent("<|channel|>analysis<|message|>Need weather.<|end|>"),
		types.ChunkEvent("<|start|>assistant<|channel|>commentary to=functions.get_weather<|constrain|>json"),
		types.ChunkEvent(`<|message|>{"location":"SF"}<|call|>`),
		finished,
	)

	require.Len(t, got, 3)
	assert.Equal(t, types.ReasoningResponse("Need weather."), got[0])
	assert.Equal(t, types.ReasoningResponse(`{"location":"SF"}`), got[1])
	require.True(t, got[2].IsToolCall())
	assert.Equal(t, "get_weather", got[2].ToolCall.Function.Name)
	assert.Equal(t, types.String("SF"), got[2].ToolCall.Function.Arguments["location"])

	assert.True(t, p.Session().ShouldPreserveAnalysis())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(classifier.FamilyGPTOSS, "get_weather")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ParseErrors.WithLabelValues("unexpected_token")))
}

func TestPipelineHarmonyFinal(t *testing.T) {
	p, _ := newTestPipeline(t, classifier.FamilyGPTOSS)
	got := pushAll(p,
		types.ChunkEvent("<|channel|>final<|message|>"),
		types.ChunkEvent("Sunny."),
		types.ChunkEvent("<|return|>"),
		finished,
	)

	assert.Equal(t, []types.Response{types.TextResponse("Sunny.")}, got)
	assert.Empty(t, p.Session().ToolCalls())
}

func TestPipelineHarmonySessionDisabled(t *testing.T) {
	p, _ := newTestPipeline(t, classifier.FamilyGPTOSS, WithHarmonySession(false))
	assert.Nil(t, p.Session())

	got := pushAll(p,
		types.ChunkEvent("<|channel|>"),
		types.ChunkEvent("final"),
		types.ChunkEvent("<|message|>"),
		types.ChunkEvent("Hi"),
		finished,
	)
	assert.Equal(t, []types.Response{types.TextResponse("Hi")}, got)
}

func TestPipelineCountsParseErrorOnce(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyGPTOSS)
	pushAll(p,
		types.ChunkEvent("<|channel|>analysis<|message|>x<|end|>"),
		types.ChunkEvent("stray"),
		types.ChunkEvent("more stray"),
		finished,
	)

	require.Error(t, p.Session().Err())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseErrors.WithLabelValues("unexpected_token")))
}

func TestPipelineParseErrorIsLogged(t *testing.T) {
	var categories []string
	logFn := func(component, category, requestID, message string, fields map[string]interface{}) {
		categories = append(categories, component+"/"+category)
		assert.Equal(t, "req_test", requestID)
	}
	p, _ := newTestPipeline(t, classifier.FamilyGPTOSS, WithLogFunc(logFn), WithRequestID("req_test"))
	pushAll(p, types.ChunkEvent("<|channel|>analysis<|message|>x<|end|>stray"))
	p.Finish(nil)

	assert.Equal(t, []string{"parser/error", "stream/success"}, categories)
}

func TestPipelinePythonic(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyPythonic)
	got := pushAll(p,
		types.ChunkEvent(`[get_weather(city="Paris"), `),
		types.ChunkEvent(`get_time(tz="CET")]`),
		finished,
	)

	require.Len(t, got, 2)
	assert.Equal(t, "get_weather", got[0].ToolCall.Function.Name)
	assert.Equal(t, "get_time", got[1].ToolCall.Function.Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(classifier.FamilyPythonic, "get_time")))
}

func TestPipelineFinishRecordsOutcomeOnce(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyDefault)
	p.Finish(nil)
	p.Finish(context.Canceled)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Streams.WithLabelValues(classifier.FamilyDefault, OutcomeOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Streams.WithLabelValues(classifier.FamilyDefault, OutcomeCanceled)))
}

func TestPipelineRun(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyDefault)

	events := make(chan types.Event, 3)
	events <- types.ChunkEvent("a")
	events <- types.ChunkEvent("b")
	events <- finished
	close(events)

	out := make(chan types.Response, 3)
	require.NoError(t, p.Run(context.Background(), events, out))
	close(out)

	var got []types.Response
	for r := range out {
		got = append(got, r)
	}
	assert.Equal(t, []types.Response{types.TextResponse("a"), types.TextResponse("b")}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Streams.WithLabelValues(classifier.FamilyDefault, OutcomeOK)))
}

func TestPipelineRunCanceled(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyDefault)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan types.Event)
	err := p.Run(ctx, events, make(chan types.Response))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Streams.WithLabelValues(classifier.FamilyDefault, OutcomeCanceled)))
}

func TestPipelineReportsRepeatedToolCalls(t *testing.T) {
	var messages []string
	logFn := func(component, category, requestID, message string, fields map[string]interface{}) {
		if category == "degradation" {
			messages = append(messages, message)
		}
	}
	p, m := newTestPipeline(t, classifier.FamilyPythonic, WithLogFunc(logFn))
	got := pushAll(p,
		types.ChunkEvent(`[read(path="a.go"), read(path="a.go"), `),
		types.ChunkEvent(`read(path="a.go")]`),
		finished,
	)

	assert.Len(t, got, 3, "output is not altered")
	assert.Equal(t, []string{"Repeated tool call detected"}, messages)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loops.WithLabelValues(classifier.FamilyPythonic, "read")))
}

func TestPipelineLoopDetectionDisabled(t *testing.T) {
	p, m := newTestPipeline(t, classifier.FamilyPythonic, WithLoopThreshold(0))
	pushAll(p, types.ChunkEvent(`[f(), f(), f(), f()]`), finished)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Loops.WithLabelValues(classifier.FamilyPythonic, "f")))
}

func TestPipelineLogsMalformedFunctionArguments(t *testing.T) {
	var messages []string
	logFn := func(component, category, requestID, message string, fields map[string]interface{}) {
		if category == "degradation" {
			messages = append(messages, message)
			assert.Equal(t, "req_bad", requestID)
		}
	}
	p, _ := newTestPipeline(t, classifier.FamilyGPTOSS, WithLogFunc(logFn), WithRequestID("req_bad"))
	got := pushAll(p, types.ChunkEvent("<|channel|>commentary to=functions.lookup<|message|>{oops<|call|>"), finished)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.True(t, last.IsToolCall())
	assert.Equal(t, "lookup", last.ToolCall.Function.Name)
	assert.Equal(t, []string{"Function call arguments are not a JSON object"}, messages)
}
