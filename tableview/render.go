package tableview

import (
	"image"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"nyiyui.ca/hato/chizu"
)

var (
	styleHighlighted = ui.NewStyle(ui.ColorBlack, ui.ColorYellow)
	styleCursor      = ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierReverse)
	styleBoth        = ui.NewStyle(ui.ColorBlack, ui.ColorYellow, ui.ModifierBold|ui.ModifierUnderline)
	styleHeader      = ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold)
)

// Draw fills t with the header and the page of rows around the cursor.
// focused shows the cursor.
func (v *View) Draw(t *widgets.Table, focused bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if size := image.Pt(t.Inner.Dx(), t.Inner.Dy()); size.X > 0 && size.Y > 0 {
		v.size = size
	}
	v.clampCursor()

	rows := v.rows()
	t.RowSeparator = false
	t.FillRow = true
	header := Header
	if v.top < len(rows) && rows[v.top].Ref.Kind == chizu.KindRoute {
		header = RouteHeader
	}
	t.Rows = [][]string{header}
	t.RowStyles = map[int]ui.Style{0: styleHeader}
	for _, i := range v.page(rows) {
		if i < 0 {
			t.Rows = append(t.Rows, RouteHeader)
			t.RowStyles[len(t.Rows)-1] = styleHeader
			continue
		}
		t.Rows = append(t.Rows, rows[i].Cells)
		line := len(t.Rows) - 1
		onCursor := focused && i == v.cursor
		switch {
		case rows[i].Highlighted && onCursor:
			t.RowStyles[line] = styleBoth
		case rows[i].Highlighted:
			t.RowStyles[line] = styleHighlighted
		case onCursor:
			t.RowStyles[line] = styleCursor
		}
	}
	if v.err != nil {
		t.Title = "Table (dataset unavailable: " + v.err.Error() + ")"
	} else {
		t.Title = "Table"
	}
}

// RowAt converts a terminal cell inside t (e.g. from a mouse event) into an
// index into Rows. It reports false for headers and for empty space.
func (v *View) RowAt(t *widgets.Table, cell image.Point) (int, bool) {
	if !cell.In(t.Inner) {
		return 0, false
	}
	line := cell.Y - t.Inner.Min.Y
	if line == 0 {
		return 0, false
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	lines := v.page(v.rows())
	if line > len(lines) || lines[line-1] < 0 {
		return 0, false
	}
	return lines[line-1], true
}
