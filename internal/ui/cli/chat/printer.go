package chat

import (
	"fmt"
	"io"

	chatSession "github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/render"
)

func chatRequest(message string) chatSession.TurnRequest {
	return chatSession.TurnRequest{Content: message, UseTools: !noToolsFlag}
}

// printer streams a turn to plain writers: response text to out, everything
// else to status. It keeps its own document to know which block a delta
// belongs to.
type printer struct {
	out           io.Writer
	status        io.Writer
	showReasoning bool
	doc           *render.Document
	wroteResponse bool
}

func newPrinter(out, status io.Writer, showReasoning bool) *printer {
	return &printer{out: out, status: status, showReasoning: showReasoning, doc: render.NewDocument()}
}

func (p *printer) Sink(cmds []render.Command) {
	for _, c := range cmds {
		if err := p.doc.Apply(c); err != nil {
			continue
		}
		switch c.Type {
		case render.CmdBlockUpdated:
			b, _ := p.doc.Block(c.BlockID)
			switch b.Kind {
			case render.KindResponse:
				fmt.Fprint(p.out, c.Delta)
				p.wroteResponse = true
			case render.KindReasoning:
				if p.showReasoning {
					fmt.Fprint(p.status, c.Delta)
				}
			}
		case render.CmdBlockCompleted:
			if b, _ := p.doc.Block(c.BlockID); b.Kind == render.KindReasoning && p.showReasoning {
				fmt.Fprintln(p.status)
			}
		case render.CmdBlockInserted:
			switch c.Block.Kind {
			case render.KindToolSelection:
				fmt.Fprintf(p.status, "[%s]\n", c.Block.Label)
			case render.KindToolExecution:
				fmt.Fprintf(p.status, "[calling %s %s]\n", c.Block.ToolName, c.Block.Input)
			}
		case render.CmdToolFinished:
			if c.Status == render.ToolError {
				fmt.Fprintf(p.status, "[tool failed: %s]\n", c.Result)
			}
		}
	}
}

// Finish ends the response line
func (p *printer) Finish() {
	if p.wroteResponse {
		fmt.Fprintln(p.out)
	}
}
