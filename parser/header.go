package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Role represents the different roles that can appear in Harmony messages
type Role int

const (
	RoleSystem Role = iota
	RoleDeveloper
	RoleUser
	RoleAssistant
	RoleTool
)

// String returns the string representation of the Role
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleDeveloper:
		return "developer"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role as its canonical name
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole converts a canonical role name to Role. Matching is exact.
func ParseRole(role string) (Role, bool) {
	switch role {
	case "system":
		return RoleSystem, true
	case "developer":
		return RoleDeveloper, true
	case "user":
		return RoleUser, true
	case "assistant":
		return RoleAssistant, true
	case "tool":
		return RoleTool, true
	default:
		return 0, false
	}
}

// Author holds the message author role and, for tools, the tool name
type Author struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

// ParsedHeader is the result of parsing the text between <|start|> and
// <|message|>. Empty strings mean the field was absent.
type ParsedHeader struct {
	Author      Author
	Recipient   string
	Channel     string
	ContentType string
}

// ParseHeader parses a trimmed header string. When override is non-nil it
// is used as the role and no token is consumed for it.
//
// Recipient and content type are resolved from the tail by token count:
// a single trailing token is a recipient, two trailing tokens are a
// recipient followed by a content type.
func ParseHeader(header string, override *Role) (ParsedHeader, error) {
	var hdr ParsedHeader
	original := header

	if idx := strings.Index(header, ChannelMarker); idx >= 0 {
		before := header[:idx]
		after := header[idx+len(ChannelMarker):]
		end := strings.IndexFunc(after, func(r rune) bool {
			return unicode.IsSpace(r) || r == '<'
		})
		if end == -1 {
			end = len(after)
		}
		if end == 0 {
			return hdr, &HeaderError{Reason: ReasonChannelWithoutValue, Header: original}
		}
		hdr.Channel = after[:end]
		header = before + after[end:]
	}

	header = strings.TrimSpace(header)
	if idx := strings.Index(header, ConstrainMarker); idx > 0 {
		if r, _ := utf8.DecodeLastRuneInString(header[:idx]); !unicode.IsSpace(r) {
			header = header[:idx] + " " + header[idx:]
		}
	}
	header = strings.TrimSpace(header)

	parts := strings.Fields(header)

	var role Role
	toolName := ""
	if override != nil {
		role = *override
	} else {
		if len(parts) == 0 {
			return hdr, &HeaderError{Reason: ReasonMissingRole, Header: original}
		}
		first := parts[0]
		if r, ok := ParseRole(first); ok {
			role = r
		} else if len(parts) > 1 || strings.HasPrefix(first, "to=") {
			role = RoleTool
			toolName = first
			parts = parts[1:]
		} else {
			return hdr, &HeaderError{Reason: ReasonUnknownRole, Detail: first, Header: original}
		}
	}

	if len(parts) > 0 && parts[0] == role.String() {
		parts = parts[1:]
	}

	if len(parts) > 0 {
		last := parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		if recipient, ok := strings.CutPrefix(last, "to="); ok {
			hdr.Recipient = recipient
		} else if len(parts) == 0 {
			hdr.Recipient = last
		} else {
			hdr.ContentType = last
			prev := parts[len(parts)-1]
			parts = parts[:len(parts)-1]
			hdr.Recipient = strings.TrimPrefix(prev, "to=")
		}
	}

	if len(parts) > 0 {
		return hdr, &HeaderError{Reason: ReasonUnexpectedTokens, Detail: strings.Join(parts, " "), Header: original}
	}

	hdr.Author = Author{Role: role}
	if role == RoleTool {
		hdr.Author.Name = toolName
	}
	return hdr, nil
}
