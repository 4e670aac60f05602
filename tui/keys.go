package tui

import (
	"image"

	ui "github.com/gizak/termui/v3"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/layer"
)

type Op int

const (
	OpNone Op = iota
	OpQuit
	OpFocusNext
	OpCursor
	// OpClickCursor clicks the table row under the cursor.
	OpClickCursor
	// OpClickAt clicks whatever is drawn at a terminal cell.
	OpClickAt
	OpArm
	OpToggleLayer
	OpActivateLayer
	OpSortName
	OpSortPopulation
	OpEscape
	OpResize
)

// Command is what one terminal event asks the app to do.
type Command struct {
	Op    Op
	Mods  chizu.Modifiers
	Delta int
	Cell  image.Point
	Layer string
	Size  image.Point
}

var layerKeys = map[string]string{"1": layer.Countries, "2": layer.Flights}
var activateKeys = map[string]string{"<F1>": layer.Countries, "<F2>": layer.Flights}

// Translate maps a terminal event to a Command. armed holds the modifiers set
// with S or C for the next mouse click.
func Translate(e ui.Event, armed chizu.Modifiers) Command {
	switch e.ID {
	case "q", "<C-c>":
		return Command{Op: OpQuit}
	case "<Tab>":
		return Command{Op: OpFocusNext}
	case "<Up>", "k":
		return Command{Op: OpCursor, Delta: -1}
	case "<Down>", "j":
		return Command{Op: OpCursor, Delta: 1}
	case "<PageUp>":
		return Command{Op: OpCursor, Delta: -10}
	case "<PageDown>":
		return Command{Op: OpCursor, Delta: 10}
	case "<Enter>":
		return Command{Op: OpClickCursor}
	case "s":
		return Command{Op: OpClickCursor, Mods: chizu.Modifiers{Shift: true}}
	case "<Space>":
		return Command{Op: OpClickCursor, Mods: chizu.Modifiers{Ctrl: true}}
	case "S":
		return Command{Op: OpArm, Mods: chizu.Modifiers{Shift: !armed.Shift}}
	case "C":
		return Command{Op: OpArm, Mods: chizu.Modifiers{Ctrl: !armed.Ctrl}}
	case "n":
		return Command{Op: OpSortName}
	case "p":
		return Command{Op: OpSortPopulation}
	case "<Escape>":
		return Command{Op: OpEscape}
	case "<MouseLeft>":
		m, ok := e.Payload.(ui.Mouse)
		if !ok || m.Drag {
			return Command{}
		}
		return Command{Op: OpClickAt, Cell: image.Pt(m.X, m.Y), Mods: armed}
	case "<Resize>":
		r, ok := e.Payload.(ui.Resize)
		if !ok {
			return Command{}
		}
		return Command{Op: OpResize, Size: image.Pt(r.Width, r.Height)}
	}
	if id, ok := layerKeys[e.ID]; ok {
		return Command{Op: OpToggleLayer, Layer: id}
	}
	if id, ok := activateKeys[e.ID]; ok {
		return Command{Op: OpActivateLayer, Layer: id}
	}
	return Command{}
}

const help = "Enter select  s add  Space toggle  S/C arm mouse modifier  1/2 show layer  F1/F2 activate  n/p sort  Esc clear  Tab focus  q quit"
