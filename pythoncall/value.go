package pythoncall

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"stream-classifier/types"
)

// ParseValue converts one raw argument value. Quoted text is unescaped,
// true/false and none/null are matched case-insensitively, integers and
// floats are parsed as numbers, JSON arrays and objects are decoded, and
// anything else is returned as the raw (trimmed) string.
func ParseValue(raw string) types.JSONValue {
	v := strings.TrimSpace(raw)
	if v == "" {
		return types.String("")
	}

	if v[0] == '"' || v[0] == '\'' {
		return types.String(unquote(v))
	}

	switch strings.ToLower(v) {
	case "true":
		return types.Bool(true)
	case "false":
		return types.Bool(false)
	case "none", "null":
		return types.Null()
	}

	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return types.Int(i)
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return types.Double(f)
	}

	if v[0] == '[' || v[0] == '{' {
		var jv types.JSONValue
		if err := json.Unmarshal([]byte(v), &jv); err == nil {
			return jv
		}
	}

	return types.String(v)
}

// unquote strips the delimiting quotes of v and resolves backslash escapes.
// Text after the closing quote is ignored; a missing closing quote takes
// the rest of the value.
func unquote(v string) string {
	quote := v[0]
	var sb strings.Builder
	for i := 1; i < len(v); i++ {
		c := v[i]
		switch {
		case c == quote:
			return sb.String()
		case c == '\\' && i+1 < len(v):
			i++
			switch v[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				// \\, \", \' and any other escaped byte pass through as-is
				sb.WriteByte(v[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
