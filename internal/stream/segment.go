package stream

import "fmt"

// SegmentKind identifies which variant a Segment holds
type SegmentKind int

const (
	SegmentPlainText SegmentKind = iota
	SegmentThinkingOpen
	SegmentThinkingChunk
	SegmentThinkingClose
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentPlainText:
		return "plain_text"
	case SegmentThinkingOpen:
		return "thinking_open"
	case SegmentThinkingChunk:
		return "thinking_chunk"
	case SegmentThinkingClose:
		return "thinking_close"
	default:
		return fmt.Sprintf("segment(%d)", int(k))
	}
}

// Segment is one classified piece of the model output.
// Text is set for PlainText and ThinkingChunk. Final marks input flushed by
// Close inside an unterminated span: the last chunk and the implicit close.
type Segment struct {
	Kind  SegmentKind
	Text  string
	Final bool
}

func PlainText(text string) Segment {
	return Segment{Kind: SegmentPlainText, Text: text}
}

func ThinkingOpen() Segment {
	return Segment{Kind: SegmentThinkingOpen}
}

func ThinkingChunk(text string, final bool) Segment {
	return Segment{Kind: SegmentThinkingChunk, Text: text, Final: final}
}

func ThinkingClose() Segment {
	return Segment{Kind: SegmentThinkingClose}
}

// ImplicitThinkingClose ends a span that the model never closed
func ImplicitThinkingClose() Segment {
	return Segment{Kind: SegmentThinkingClose, Final: true}
}

func (s Segment) String() string {
	switch s.Kind {
	case SegmentPlainText:
		return fmt.Sprintf("PlainText(%q)", s.Text)
	case SegmentThinkingChunk:
		return fmt.Sprintf("ThinkingChunk(%q, %t)", s.Text, s.Final)
	case SegmentThinkingOpen:
		return "ThinkingOpen"
	case SegmentThinkingClose:
		if s.Final {
			return "ThinkingClose(implicit)"
		}
		return "ThinkingClose"
	default:
		return s.Kind.String()
	}
}
