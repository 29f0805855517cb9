package parser

import "strings"

// SplitTokens splits decoded text into marker tokens and the text between
// them, so that whole strings can be fed to a StreamParser token by token.
// Unknown "<|...|>" sequences stay inside the surrounding text.
func SplitTokens(text string) []string {
	var out []string
	last := 0
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], "<|")
		if j < 0 {
			break
		}
		i += j
		matched := ""
		for _, m := range Markers() {
			if strings.HasPrefix(text[i:], m.String()) {
				matched = m.String()
				break
			}
		}
		if matched == "" {
			i += 2
			continue
		}
		if i > last {
			out = append(out, text[last:i])
		}
		out = append(out, matched)
		i += len(matched)
		last = i
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// ParseMessages parses a complete Harmony transcript in one call.
// Whitespace between messages is skipped.
func ParseMessages(text string, role *Role) ([]Message, error) {
	p := NewStreamParser(role)
	for _, tok := range SplitTokens(text) {
		if p.State() == "ExpectStart" && strings.TrimSpace(tok) == "" {
			continue
		}
		if err := p.Process(tok); err != nil {
			return p.Messages(), err
		}
	}
	if err := p.ProcessEndOfStream(); err != nil {
		return p.Messages(), err
	}
	return p.Messages(), nil
}
