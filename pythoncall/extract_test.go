package pythoncall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-classifier/types"
)

func TestParseFunctionCallList(t *testing.T) {
	buf := `[foo(a="1"), bar(b="2")]`

	first := ParseFunctionCall(&buf)
	require.NotNil(t, first)
	assert.Equal(t, "foo", first.Function.Name)
	assert.Equal(t, map[string]types.JSONValue{"a": types.String("1")}, first.Function.Arguments)

	second := ParseFunctionCall(&buf)
	require.NotNil(t, second)
	assert.Equal(t, "bar", second.Function.Name)
	assert.Equal(t, map[string]types.JSONValue{"b": types.String("2")}, second.Function.Arguments)

	assert.Equal(t, "", buf)
	assert.Nil(t, ParseFunctionCall(&buf))
}

func TestParseFunctionCallSplitAcrossChunks(t *testing.T) {
	buf := `[foo(a="`
	assert.Nil(t, ParseFunctionCall(&buf))
	assert.Equal(t, `foo(a="`, buf, "incomplete call is retained")

	buf += `1") , bar(b=2)]`
	first := ParseFunctionCall(&buf)
	require.NotNil(t, first)
	assert.Equal(t, "foo", first.Function.Name)
	assert.Equal(t, types.String("1"), first.Function.Arguments["a"])

	second := ParseFunctionCall(&buf)
	require.NotNil(t, second)
	assert.Equal(t, "bar", second.Function.Name)
	assert.Equal(t, types.Int(2), second.Function.Arguments["b"])
	assert.Equal(t, "", buf)
}

func drain(e *Extractor) []types.ToolCall {
	var out []types.ToolCall
	for {
		call, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, call)
	}
}

// Feeding the input in any split must produce the same calls as feeding it whole.
func TestExtractorSplitInvariance(t *testing.T) {
	input := `[get_weather(city="Paris, FR", unit='c'), lookup(q="a(b)c", limit=5, exact=True), noop()]`

	var whole Extractor
	whole.Feed(input)
	want := drain(&whole)
	require.Len(t, want, 3)

	for cut := 1; cut < len(input); cut++ {
		var e Extractor
		var got []types.ToolCall
		e.Feed(input[:cut])
		got = append(got, drain(&e)...)
		e.Feed(input[cut:])
		got = append(got, drain(&e)...)
		assert.Equal(t, want, got, "split at %d", cut)
		assert.Equal(t, "", e.Buffered(), "split at %d", cut)
	}
}

func TestParseFunctionCallQuoting(t *testing.T) {
	buf := `search(query="say \"hi\"), (now)", path='it\'s', sep=",")`
	call := ParseFunctionCall(&buf)
	require.NotNil(t, call)
	assert.Equal(t, "search", call.Function.Name)
	assert.Equal(t, types.String(`say "hi"), (now)`), call.Function.Arguments["query"])
	assert.Equal(t, types.String("it's"), call.Function.Arguments["path"])
	assert.Equal(t, types.String(","), call.Function.Arguments["sep"])
}

func TestParseFunctionCallNotReady(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantBuf string
	}{
		{name: "only noise", input: " [ , ] ", wantBuf: ""},
		{name: "empty", input: "", wantBuf: ""},
		{name: "identifier without paren yet", input: "[get_wea", wantBuf: "get_wea"},
		{name: "unterminated string", input: `f(a="x)`, wantBuf: `f(a="x)`},
		{name: "not an identifier", input: "[123(a=1)]", wantBuf: "123(a=1)]"},
		{name: "identifier followed by text", input: "hello world", wantBuf: "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.input
			assert.Nil(t, ParseFunctionCall(&buf))
			assert.Equal(t, tt.wantBuf, buf)
		})
	}
}

func TestParseFunctionCallArguments(t *testing.T) {
	buf := `f(flag=false, n=-7, x=3.5, nothing=None, tags=["a", "b"], opts={"k": 1}, bare=abc, positional, =skip)`
	call := ParseFunctionCall(&buf)
	require.NotNil(t, call)

	args := call.Function.Arguments
	assert.Len(t, args, 7)
	assert.Equal(t, types.Bool(false), args["flag"])
	assert.Equal(t, types.Int(-7), args["n"])
	assert.Equal(t, types.Double(3.5), args["x"])
	assert.True(t, args["nothing"].IsNull())
	assert.Equal(t, types.Array(types.String("a"), types.String("b")), args["tags"])
	assert.Equal(t, types.Object(map[string]types.JSONValue{"k": types.Int(1)}), args["opts"])
	assert.Equal(t, types.String("abc"), args["bare"])
}

func TestParseFunctionCallWhitespaceBeforeParen(t *testing.T) {
	buf := "  [ ping  (host = \"example.com\" ) ]\n"
	call := ParseFunctionCall(&buf)
	require.NotNil(t, call)
	assert.Equal(t, "ping", call.Function.Name)
	assert.Equal(t, types.String("example.com"), call.Function.Arguments["host"])
	assert.Equal(t, "", strings.TrimSpace(buf))
}
