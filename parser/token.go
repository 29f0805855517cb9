package parser

// Literal spellings of the Harmony special markers
const (
	StartMarker     = "<|start|>"
	MessageMarker   = "<|message|>"
	EndMarker       = "<|end|>"
	ReturnMarker    = "<|return|>"
	CallMarker      = "<|call|>"
	ChannelMarker   = "<|channel|>"
	ConstrainMarker = "<|constrain|>"
)

// Marker represents one of the fixed Harmony special tokens
type Marker int

const (
	MarkerStart Marker = iota
	MarkerMessage
	MarkerEnd
	MarkerReturn
	MarkerCall
	MarkerChannel
	MarkerConstrain
)

// markerLiterals is indexed by Marker
var markerLiterals = [...]string{
	MarkerStart:     StartMarker,
	MarkerMessage:   MessageMarker,
	MarkerEnd:       EndMarker,
	MarkerReturn:    ReturnMarker,
	MarkerCall:      CallMarker,
	MarkerChannel:   ChannelMarker,
	MarkerConstrain: ConstrainMarker,
}

var markerByLiteral = map[string]Marker{
	StartMarker:     MarkerStart,
	MessageMarker:   MarkerMessage,
	EndMarker:       MarkerEnd,
	ReturnMarker:    MarkerReturn,
	CallMarker:      MarkerCall,
	ChannelMarker:   MarkerChannel,
	ConstrainMarker: MarkerConstrain,
}

// String returns the literal spelling of the marker
func (m Marker) String() string {
	if m < 0 || int(m) >= len(markerLiterals) {
		return "<|unknown|>"
	}
	return markerLiterals[m]
}

// IsStop returns true for the markers that close a message
func (m Marker) IsStop() bool {
	return m == MarkerEnd || m == MarkerReturn || m == MarkerCall
}

// Markers returns every marker in declaration order
func Markers() []Marker {
	return []Marker{MarkerStart, MarkerMessage, MarkerEnd, MarkerReturn, MarkerCall, MarkerChannel, MarkerConstrain}
}

// Token is a classified decoded token: either a special marker or opaque text
type Token struct {
	special bool
	marker  Marker
	text    string
}

// SpecialToken builds a marker token
func SpecialToken(m Marker) Token {
	return Token{special: true, marker: m, text: m.String()}
}

// TextToken builds an opaque text token
func TextToken(s string) Token {
	return Token{text: s}
}

// ClassifyToken maps a decoded string to a Token by exact match against the
// marker vocabulary. Anything else, including partial markers, is text.
func ClassifyToken(raw string) Token {
	if m, ok := markerByLiteral[raw]; ok {
		return SpecialToken(m)
	}
	return TextToken(raw)
}

// IsSpecial returns true if the token is a marker
func (t Token) IsSpecial() bool { return t.special }

// Marker returns the marker and true for special tokens
func (t Token) Marker() (Marker, bool) { return t.marker, t.special }

// Is returns true if the token is the given marker
func (t Token) Is(m Marker) bool { return t.special && t.marker == m }

// IsStop returns true if the token is a message-closing marker
func (t Token) IsStop() bool { return t.special && t.marker.IsStop() }

// Text returns the raw spelling of the token. Markers render as their literal.
func (t Token) Text() string { return t.text }

// String implements fmt.Stringer
func (t Token) String() string {
	if t.special {
		return "Special(" + t.text + ")"
	}
	return "Text(" + t.text + ")"
}
