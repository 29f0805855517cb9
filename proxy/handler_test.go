package proxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-classifier/config"
	"stream-classifier/logger"
	"stream-classifier/types"
)

// decodeSSE parses the classified responses written by HandleClassify and
// reports whether the [DONE] terminator was seen
func decodeSSE(t *testing.T, body string) ([]types.Response, bool) {
	t.Helper()
	var out []types.Response
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return out, true
		}
		var r types.Response
		require.NoError(t, json.Unmarshal([]byte(data), &r), data)
		out = append(out, r)
	}
	return out, false
}

func newTestHandler(t *testing.T) (*Handler, *Metrics, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	m := NewMetrics(prometheus.NewRegistry())
	obs := logger.NewObservabilityLoggerWithWriter(&buf)
	return NewHandler(config.GetDefaultConfig(), m, obs), m, &buf
}

func TestHandleClassifyMapsModelToFamily(t *testing.T) {
	h, m, logs := newTestHandler(t)

	body := contentStream(t, "<think>", "plan", "</think>", "Hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/classify?model=Qwen3-32B", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleClassify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))

	got, done := decodeSSE(t, rec.Body.String())
	assert.True(t, done)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("plan"),
		types.TextResponse("Hello"),
	}, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Streams.WithLabelValues("qwen3", OutcomeOK)))
	assert.Contains(t, logs.String(), "Classify request received")
	assert.Contains(t, logs.String(), "Stream finished")
}

func TestHandleClassifyFamilyOverride(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := contentStream(t, "<think>", "literal")
	req := httptest.NewRequest(http.MethodPost, "/v1/classify?model=Qwen3-32B&family=default", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleClassify(rec, req)

	got, done := decodeSSE(t, rec.Body.String())
	assert.True(t, done)
	assert.Equal(t, []types.Response{
		types.TextResponse("<think>"),
		types.TextResponse("literal"),
	}, got)
}

func TestHandleClassifyToolCalls(t *testing.T) {
	h, m, _ := newTestHandler(t)

	body := sseChunk(t, types.OpenAIStreamDelta{ToolCalls: []types.OpenAIToolCall{{
		ID:       "call_1",
		Type:     "function",
		Function: types.OpenAIToolCallFunction{Name: "search", Arguments: `{"q":"go"}`},
	}}}, "tool_calls")
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleClassify(rec, req)

	got, _ := decodeSSE(t, rec.Body.String())
	require.Len(t, got, 1)
	require.True(t, got[0].IsToolCall())
	assert.Equal(t, "call_1", got[0].ToolCall.ID)
	assert.Equal(t, types.String("go"), got[0].ToolCall.Function.Arguments["q"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("default", "search")))
}

func TestHandleClassifyUnknownFamily(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify?family=nope", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.HandleClassify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nope")
}

func TestHandleClassifyMethodNotAllowed(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify", nil)
	rec := httptest.NewRecorder()
	h.HandleClassify(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewPipelineForAppliesFamilyConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	on := true
	cfg.Families["qwen3"] = config.FamilyConfig{InitialThinking: &on}

	p, err := NewPipelineFor(cfg, "qwen3", "req_1", nil, nil)
	require.NoError(t, err)

	got := pushAll(p, types.ChunkEvent("hmm"), types.ChunkEvent("</think>"), types.ChunkEvent("ok"))
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("hmm"),
		types.TextResponse("ok"),
	}, got)

	_, err = NewPipelineFor(cfg, "nope", "req_2", nil, nil)
	assert.Error(t, err)
}
