package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-classifier/parser"
	"stream-classifier/types"
)

func TestHarmonyChannels(t *testing.T) {
	input := "<|start|>assistant<|channel|>analysis<|message|>Need the weather.<|end|>" +
		"<|start|>assistant<|channel|>final<|message|>It is sunny.<|return|>"

	got := run(NewHarmony(), chunks(parser.SplitTokens(input)...)...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("Need the weather."),
		types.TextResponse("It is sunny."),
	}, got)
}

func TestHarmonyCommentaryWithoutRecipientIsText(t *testing.T) {
	input := "<|start|>assistant<|channel|>commentary<|message|>Let me check that for you.<|end|>"
	got := run(NewHarmony(), chunks(parser.SplitTokens(input)...)...)
	assert.Equal(t, []types.Response{types.TextResponse("Let me check that for you.")}, got)
}

func TestHarmonyCommentaryToToolIsReasoning(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "recipient after channel",
			input: `<|start|>assistant<|channel|>commentary to=functions.get_weather <|constrain|>json<|message|>{"lat":1}<|call|>`,
		},
		{
			name:  "recipient before channel",
			input: `<|start|>assistant to=functions.get_weather<|channel|>commentary json<|message|>{"lat":1}<|call|>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHarmony()
			got := run(h, chunks(parser.SplitTokens(tt.input)...)...)
			assert.Equal(t, []types.Response{types.ReasoningResponse(`{"lat":1}`)}, got)
			assert.Equal(t, StateInitial, h.State())
			assert.Equal(t, "", h.Recipient(), "recipient is cleared when the message ends")
		})
	}
}

func TestHarmonyTransitions(t *testing.T) {
	h := NewHarmony()
	steps := []struct {
		token string
		want  ChannelState
	}{
		{parser.StartMarker, StateInitial},
		{"assistant", StateInitial},
		{parser.ChannelMarker, StateChannelStart},
		{"analysis", StateAnalysis},
		{parser.MessageMarker, StateAnalysis},
		{"thinking", StateAnalysis},
		{parser.EndMarker, StateInitial},
		{parser.StartMarker, StateInitial},
		{parser.ChannelMarker, StateChannelStart},
		{"final", StateFinal},
		{parser.MessageMarker, StateFinal},
		{"done", StateFinal},
		{parser.ReturnMarker, StateFinish},
		{parser.StartMarker, StateFinish},
		{parser.ChannelMarker, StateFinish},
	}
	for _, s := range steps {
		h.Classify(types.ChunkEvent(s.token))
		assert.Equal(t, s.want, h.State(), "after %q", s.token)
	}
}

func TestHarmonyFinishIsTerminal(t *testing.T) {
	got := run(NewHarmony(), chunks(parser.SplitTokens("<|channel|>final<|message|>a<|return|><|start|>assistant<|channel|>final<|message|>b<|end|>")...)...)
	assert.Equal(t, []types.Response{types.TextResponse("a")}, got)
}

func TestHarmonyInitialContentIsDropped(t *testing.T) {
	got := run(NewHarmony(), chunks(parser.SplitTokens("<|start|>assistant<|message|>no channel<|end|>")...)...)
	assert.Empty(t, got)
}

func TestHarmonyToolCallAndInfo(t *testing.T) {
	h := NewHarmony()
	call := types.NewToolCall("get_weather", map[string]types.JSONValue{"lat": types.Int(1)})

	r, ok := h.Classify(types.ToolCallEvent(call))
	require.True(t, ok)
	assert.Equal(t, call, *r.ToolCall)

	_, ok = h.Classify(types.InfoEvent(nil))
	assert.False(t, ok)
}

func TestChannelStateString(t *testing.T) {
	assert.Equal(t, "AnalysisChannel", StateAnalysis.String())
	assert.Equal(t, "Finish", StateFinish.String())
	assert.Equal(t, "Unknown", ChannelState(42).String())
}
