package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-classifier/types"
)

func TestThinkingHidesTags(t *testing.T) {
	got := run(NewThinking(), chunks("<think>", "hidden", "</think>", "visible")...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("hidden"),
		types.TextResponse("visible"),
	}, got)
}

func TestThinkingNewlineTagSpellings(t *testing.T) {
	got := run(NewThinking(), chunks("<think>\n", "a", "</think>\n", "b")...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("a"),
		types.TextResponse("b"),
	}, got)
}

func TestThinkingTagsMustMatchWholeChunk(t *testing.T) {
	got := run(NewThinking(), chunks("<think>x", " </think>")...)
	assert.Equal(t, []types.Response{
		types.TextResponse("<think>x"),
		types.TextResponse(" </think>"),
	}, got)
}

func TestThinkingToolCallEndsReasoning(t *testing.T) {
	c := NewThinking()
	call := types.NewToolCall("search", map[string]types.JSONValue{"q": types.String("go")})

	got := run(c,
		types.ChunkEvent("<think>"),
		types.ChunkEvent("plan"),
		types.ToolCallEvent(call),
		types.ChunkEvent("after"),
	)
	require.Len(t, got, 3)
	assert.Equal(t, types.ReasoningResponse("plan"), got[0])
	assert.True(t, got[1].IsToolCall())
	assert.Equal(t, call, *got[1].ToolCall)
	assert.Equal(t, types.TextResponse("after"), got[2])
	assert.False(t, c.IsThinking())
}

func TestThinkingInfoIsIgnored(t *testing.T) {
	_, ok := NewThinking().Classify(types.InfoEvent(map[string]string{"finish_reason": "stop"}))
	assert.False(t, ok)
}

func TestDeepSeekStartsThinking(t *testing.T) {
	c, err := ForFamily(FamilyDeepSeekR1)
	require.NoError(t, err)

	got := run(c, chunks("implicit plan", "</think>", "answer")...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("implicit plan"),
		types.TextResponse("answer"),
	}, got)
}

func TestDeepSeekSwallowsLeadingStartTags(t *testing.T) {
	logFunc, entries := recorder()
	c, err := ForFamily(FamilyDeepSeekR1, WithLogFunc(logFunc))
	require.NoError(t, err)

	got := run(c, chunks("<think>", "<think>\n", "plan", "</think>", "answer", "<think>", "again")...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("plan"),
		types.TextResponse("answer"),
		types.ReasoningResponse("again"),
	}, got)
	assert.Len(t, *entries, 2, "one debug entry per dropped leading tag")
}

func TestThinkingOptions(t *testing.T) {
	c := NewThinking(
		WithThinkingTags([]string{"<reason>"}, []string{"</reason>"}),
		WithInitialThinking(true),
	)
	assert.True(t, c.IsThinking())

	got := run(c, chunks("a", "</reason>", "<think>", "<reason>", "b")...)
	assert.Equal(t, []types.Response{
		types.ReasoningResponse("a"),
		types.TextResponse("<think>"),
		types.ReasoningResponse("b"),
	}, got)

	q, err := ForFamily(FamilyQwen3, WithInitialThinking(true), WithSwallowLeadingStart(true))
	require.NoError(t, err)
	th := q.(*Thinking)
	assert.True(t, th.IsThinking())
	assert.True(t, th.swallowLeadingStart)

	d, err := ForFamily(FamilyDeepSeekR1, WithInitialThinking(false))
	require.NoError(t, err)
	assert.False(t, d.(*Thinking).IsThinking())
}
