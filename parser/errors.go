package parser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies Harmony parse failures
type ErrorKind int

const (
	KindUnexpectedToken ErrorKind = iota
	KindEOSWhileWaitingForHeader
	KindHeader
)

// String returns the string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindUnexpectedToken:
		return "unexpected_token"
	case KindEOSWhileWaitingForHeader:
		return "eos_while_waiting_for_header"
	case KindHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by ParseError.Is
var (
	ErrUnexpectedToken          = errors.New("unexpected token")
	ErrEOSWhileWaitingForHeader = errors.New("end of stream while waiting for header")
	ErrHeader                   = errors.New("invalid header")
)

// ParseError represents errors that occur during Harmony stream parsing
type ParseError struct {
	Kind     ErrorKind
	Message  string
	Position int // raw token index, -1 when unknown
	Context  string
	Err      error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Position >= 0 && e.Context != "" {
		return fmt.Sprintf("harmony parse error at token %d: %s (context: %s)", e.Position, e.Message, e.Context)
	} else if e.Position >= 0 {
		return fmt.Sprintf("harmony parse error at token %d: %s", e.Position, e.Message)
	}
	return fmt.Sprintf("harmony parse error: %s", e.Message)
}

// Unwrap returns the underlying header error, if any
func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the error kind
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrUnexpectedToken:
		return e.Kind == KindUnexpectedToken
	case ErrEOSWhileWaitingForHeader:
		return e.Kind == KindEOSWhileWaitingForHeader
	case ErrHeader:
		return e.Kind == KindHeader
	}
	return false
}

// Header failure reasons
const (
	ReasonChannelWithoutValue = "channel marker present without value"
	ReasonMissingRole         = "missing role"
	ReasonUnknownRole         = "unknown role"
	ReasonUnexpectedTokens    = "unexpected tokens remaining"
)

// HeaderError reports a header that could not be parsed
type HeaderError struct {
	Reason string
	Detail string
	Header string
}

// Error implements the error interface
func (e *HeaderError) Error() string {
	msg := e.Reason
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s (header: %q)", msg, e.Header)
}
