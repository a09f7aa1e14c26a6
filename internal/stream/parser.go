// Package stream splits an incrementally delivered model response into plain
// text and <thinking> spans. Tags may be split across any number of fragments.
package stream

import "strings"

const (
	OpenMarker  = "<thinking>"
	CloseMarker = "</thinking>"
)

// Mode is the parser's position relative to a thinking span
type Mode int

const (
	ModeNormal Mode = iota
	ModeInThinking
)

func (m Mode) String() string {
	if m == ModeInThinking {
		return "in_thinking"
	}
	return "normal"
}

// Parser is a single-turn, single-goroutine tag-aware parser.
// Create one per turn; it is not safe for concurrent use.
type Parser struct {
	mode     Mode
	pending  string
	thinking strings.Builder
	response strings.Builder
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed classifies fragment together with any carried-over input and returns
// the segments that can be decided now. A suffix that could still grow into
// the marker expected next is held back until the next Feed or Close.
func (p *Parser) Feed(fragment string) []Segment {
	buf := p.pending + fragment
	p.pending = ""

	var out []Segment
	for buf != "" {
		if p.mode == ModeNormal {
			if i := strings.Index(buf, OpenMarker); i >= 0 {
				out = p.appendPlain(out, buf[:i])
				out = append(out, ThinkingOpen())
				p.mode = ModeInThinking
				p.thinking.Reset()
				buf = buf[i+len(OpenMarker):]
				continue
			}
			keep := partialMarkerSuffix(buf, OpenMarker)
			out = p.appendPlain(out, buf[:len(buf)-keep])
			p.pending = buf[len(buf)-keep:]
			break
		}

		if i := strings.Index(buf, CloseMarker); i >= 0 {
			out = p.appendThinking(out, buf[:i], false)
			out = append(out, ThinkingClose())
			p.mode = ModeNormal
			p.thinking.Reset()
			buf = buf[i+len(CloseMarker):]
			continue
		}
		keep := partialMarkerSuffix(buf, CloseMarker)
		out = p.appendThinking(out, buf[:len(buf)-keep], false)
		p.pending = buf[len(buf)-keep:]
		break
	}
	return out
}

// Close flushes held-back input assuming no further tag can start. An
// unterminated thinking span always ends with an implicit ThinkingClose,
// preceded by a final chunk when input was held back. Close leaves the
// parser in normal mode with nothing held back, so a second call emits
// nothing.
func (p *Parser) Close() []Segment {
	rest := p.pending
	mode := p.mode
	p.pending = ""
	p.mode = ModeNormal

	if mode == ModeNormal {
		return p.appendPlain(nil, rest)
	}
	out := p.appendThinking(nil, rest, true)
	p.thinking.Reset()
	return append(out, ImplicitThinkingClose())
}

func (p *Parser) appendPlain(out []Segment, text string) []Segment {
	if text == "" {
		return out
	}
	p.response.WriteString(text)
	return append(out, PlainText(text))
}

func (p *Parser) appendThinking(out []Segment, text string, final bool) []Segment {
	if text == "" {
		return out
	}
	p.thinking.WriteString(text)
	return append(out, ThinkingChunk(text, final))
}

func (p *Parser) Mode() Mode {
	return p.mode
}

// Pending returns the input held back as a possible partial marker
func (p *Parser) Pending() string {
	return p.pending
}

// Response returns all plain text emitted so far in this turn
func (p *Parser) Response() string {
	return p.response.String()
}

// Thinking returns the text of the currently open thinking span
func (p *Parser) Thinking() string {
	return p.thinking.String()
}

// partialMarkerSuffix returns the length of the longest suffix of buf that is
// a strict prefix of marker, or 0.
func partialMarkerSuffix(buf, marker string) int {
	k := len(marker) - 1
	if len(buf) < k {
		k = len(buf)
	}
	for ; k > 0; k-- {
		if strings.HasSuffix(buf, marker[:k]) {
			return k
		}
	}
	return 0
}
