// Package pythoncall extracts tool calls written in Python call syntax,
// e.g. [get_weather(city="Paris", days=3), get_time(tz="CET")], from a
// text buffer that grows as a model streams its output.
package pythoncall

import (
	"strings"

	"stream-classifier/types"
)

// ParseFunctionCall removes the first complete call from *buf and returns it.
// It returns nil when no complete call is available yet; in that case the
// buffer keeps the unconsumed text (minus any leading list noise) so the
// caller can append more input and try again.
func ParseFunctionCall(buf *string) *types.ToolCall {
	s := *buf
	i := skipListNoise(s, 0)
	if i == len(s) {
		*buf = ""
		return nil
	}

	start := i
	for i < len(s) && isIdentByte(s[i], i == start) {
		i++
	}
	if i == start {
		*buf = s[start:]
		return nil
	}
	name := s[start:i]

	open := skipSpace(s, i)
	if open >= len(s) || s[open] != '(' {
		*buf = s[start:]
		return nil
	}

	closing, ok := matchParen(s, open)
	if !ok {
		*buf = s[start:]
		return nil
	}

	call := types.NewToolCall(name, parseArguments(s[open+1:closing]))
	*buf = s[skipTrailer(s, closing+1):]
	return &call
}

// Extractor accumulates streamed text and yields calls as they complete.
// The zero value is ready to use.
type Extractor struct {
	buf string
}

// Feed appends a chunk of model output
func (e *Extractor) Feed(chunk string) {
	e.buf += chunk
}

// Next returns the next complete call, if any
func (e *Extractor) Next() (types.ToolCall, bool) {
	call := ParseFunctionCall(&e.buf)
	if call == nil {
		return types.ToolCall{}, false
	}
	return *call, true
}

// Buffered returns the text not yet consumed by a complete call
func (e *Extractor) Buffered() string { return e.buf }

// Reset drops any buffered text
func (e *Extractor) Reset() { e.buf = "" }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func skipListNoise(s string, i int) int {
	for i < len(s) && (isSpace(s[i]) || s[i] == '[' || s[i] == ']' || s[i] == ',') {
		i++
	}
	return i
}

// skipTrailer moves past whitespace, one optional comma, and a closing
// run of ']' and whitespace.
func skipTrailer(s string, i int) int {
	i = skipSpace(s, i)
	if i < len(s) && s[i] == ',' {
		i = skipSpace(s, i+1)
	}
	for i < len(s) && (s[i] == ']' || isSpace(s[i])) {
		i++
	}
	return i
}

// scanner walks s tracking quotes and escapes
type scanner struct {
	quote   byte
	escaped bool
}

// inString consumes c and reports whether it is part of a string literal
// (including its delimiting quotes).
func (sc *scanner) inString(c byte) bool {
	if sc.quote != 0 {
		switch {
		case sc.escaped:
			sc.escaped = false
		case c == '\\':
			sc.escaped = true
		case c == sc.quote:
			sc.quote = 0
		}
		return true
	}
	if c == '"' || c == '\'' {
		sc.quote = c
		return true
	}
	return false
}

// matchParen returns the index of the ')' matching the '(' at open
func matchParen(s string, open int) (int, bool) {
	var sc scanner
	depth := 0
	for i := open; i < len(s); i++ {
		c := s[i]
		if sc.inString(c) {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitTopLevel splits s on sep outside of strings and brackets. At most
// limit pieces are returned when limit > 0.
func splitTopLevel(s string, sep byte, limit int) []string {
	var (
		parts []string
		sc    scanner
	)
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.inString(c) {
			continue
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 && (limit <= 0 || len(parts) < limit-1) {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func parseArguments(inner string) map[string]types.JSONValue {
	args := map[string]types.JSONValue{}
	for _, piece := range splitTopLevel(inner, ',', 0) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		kv := splitTopLevel(piece, '=', 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		args[key] = ParseValue(kv[1])
	}
	return args
}
