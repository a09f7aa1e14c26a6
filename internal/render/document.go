package render

import "fmt"

// Document is an ordered set of blocks built by applying Commands
type Document struct {
	turnID string
	state  TurnState
	open   bool
	blocks []*Block
}

func NewDocument() *Document {
	return &Document{state: StateIdle}
}

// Apply mutates the document according to cmd. It fails only when cmd refers
// to a block the document does not hold.
func (d *Document) Apply(cmd Command) error {
	switch cmd.Type {
	case CmdTurnStarted:
		d.turnID = cmd.TurnID
		d.state = StateAwaitingFirstContent
		d.open = false
		d.blocks = nil

	case CmdContainerOpened:
		d.open = true

	case CmdTurnStreaming:
		d.state = StateStreaming

	case CmdBlockInserted:
		if cmd.Block == nil {
			return fmt.Errorf("%s without block", cmd.Type)
		}
		b := cmd.Block.clone()
		if cmd.Before == "" {
			d.blocks = append(d.blocks, &b)
			return nil
		}
		i := d.indexOf(cmd.Before)
		if i < 0 {
			return fmt.Errorf("insert before unknown block %s", cmd.Before)
		}
		d.blocks = append(d.blocks, nil)
		copy(d.blocks[i+1:], d.blocks[i:])
		d.blocks[i] = &b

	case CmdBlockUpdated:
		b, err := d.lookup(cmd)
		if err != nil {
			return err
		}
		b.Content = cmd.Content

	case CmdBlockCompleted:
		b, err := d.lookup(cmd)
		if err != nil {
			return err
		}
		b.Complete = true

	case CmdBlockCollapsed:
		b, err := d.lookup(cmd)
		if err != nil {
			return err
		}
		b.Collapsed = true

	case CmdToolFinished:
		b, err := d.lookup(cmd)
		if err != nil {
			return err
		}
		result := cmd.Result
		b.Result = &result
		b.Status = cmd.Status
		b.Complete = true

	case CmdTurnCompleted:
		d.state = StateCompleted

	case CmdTurnFailed:
		d.blocks = nil
		if cmd.Block != nil {
			b := cmd.Block.clone()
			d.blocks = []*Block{&b}
			d.open = true
		}
		d.state = StateErrored

	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return nil
}

func (d *Document) lookup(cmd Command) (*Block, error) {
	i := d.indexOf(cmd.BlockID)
	if i < 0 {
		return nil, fmt.Errorf("%s for unknown block %s", cmd.Type, cmd.BlockID)
	}
	return d.blocks[i], nil
}

func (d *Document) indexOf(id string) int {
	for i, b := range d.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) TurnID() string {
	return d.turnID
}

func (d *Document) State() TurnState {
	return d.state
}

// Open reports whether the assistant container has been shown
func (d *Document) Open() bool {
	return d.open
}

// Blocks returns a copy of the blocks in display order
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = b.clone()
	}
	return out
}

// Block returns a copy of the block with the given ID
func (d *Document) Block(id string) (Block, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return Block{}, false
	}
	return d.blocks[i].clone(), true
}
