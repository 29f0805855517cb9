package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"stream-classifier/internal"
	"stream-classifier/types"
)

// maxToolCallIndex bounds the tool call index accepted from a stream
const maxToolCallIndex = 128

// ReadEvents reads an OpenAI-compatible chat-completions SSE stream from r
// and emits one event per content delta. Streamed tool calls are
// accumulated by index and emitted once finish_reason is set. A final Info
// event carries finish_reason and model. Reading stops at [DONE], at the
// chunk carrying finish_reason, at EOF, when ctx is done, or when emit
// returns an error.
func ReadEvents(ctx context.Context, r io.Reader, emit func(types.Event) error) error {
	requestID := internal.GetRequestID(ctx)

	scanner := bufio.NewScanner(r)
	// Increase buffer size to handle large streaming chunks (tool calls, long content)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // 64KB initial, 1MB max

	toolCalls := make(map[int]*types.OpenAIToolCall)
	var (
		finishReason string
		model        string
		chunks       int
	)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()

		// Skip empty lines and non-data lines
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		jsonStr := strings.TrimPrefix(line, "data: ")
		if jsonStr == "[DONE]" {
			break
		}

		var chunk types.OpenAIStreamChunk
		if err := json.Unmarshal([]byte(jsonStr), &chunk); err != nil {
			log.Printf("⚠️[%s] Failed to parse streaming chunk: %v", requestID, err)
			continue
		}
		chunks++
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			if err := emit(types.ChunkEvent(choice.Delta.Content)); err != nil {
				return err
			}
		}
		accumulateToolCalls(ctx, toolCalls, choice.Delta.ToolCalls)

		if choice.FinishReason != nil {
			finishReason = *choice.FinishReason
			log.Printf("🏁[%s] Found final chunk with finish_reason: %s", requestID, finishReason)
			break
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("❌[%s] Streaming error: %v", requestID, err)
		return fmt.Errorf("error reading stream: %w", err)
	}

	indexes := make([]int, 0, len(toolCalls))
	for i := range toolCalls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		tc := toolCalls[i]
		if tc.Function.Name == "" {
			log.Printf("⚠️[%s] Dropping tool call %d without a function name", requestID, i)
			continue
		}
		call, err := tc.ToToolCall()
		if err != nil {
			log.Printf("⚠️[%s] Dropping tool call %d: %v", requestID, i, err)
			continue
		}
		if err := emit(types.ToolCallEvent(call)); err != nil {
			return err
		}
	}

	log.Printf("📊[%s] Processed %d streaming chunks, %d tool calls", requestID, chunks, len(toolCalls))

	info := map[string]string{"finish_reason": finishReason}
	if model != "" {
		info["model"] = model
	}
	return emit(types.InfoEvent(info))
}

// accumulateToolCalls merges streamed tool call fragments by index
// (streaming chunks can have partial data)
func accumulateToolCalls(ctx context.Context, toolCalls map[int]*types.OpenAIToolCall, deltas []types.OpenAIToolCall) {
	for _, toolCall := range deltas {
		index := toolCall.Index
		if index < 0 || index > maxToolCallIndex {
			log.Printf("⚠️[%s] Ignoring tool call fragment with index %d", internal.GetRequestID(ctx), index)
			continue
		}

		acc, ok := toolCalls[index]
		if !ok {
			acc = &types.OpenAIToolCall{Type: "function", Index: index}
			toolCalls[index] = acc
		}

		if toolCall.ID != "" {
			acc.ID = toolCall.ID
		}
		if toolCall.Type != "" {
			acc.Type = toolCall.Type
		}
		if toolCall.Function.Name != "" {
			acc.Function.Name = toolCall.Function.Name
		}
		// Always accumulate arguments (can be spread across multiple chunks)
		acc.Function.Arguments += toolCall.Function.Arguments
	}
}
