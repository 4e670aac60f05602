// Package tui is the terminal front end: the map on the left, the table on the
// right and a status line, all following the shared stores.
package tui

import (
	"context"
	"fmt"
	"image"
	"strings"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/mapview"
	"nyiyui.ca/hato/chizu/tableview"
	"nyiyui.ca/hato/chizu/view"
)

type focus int

const (
	focusTable focus = iota
	focusMap
)

type app struct {
	src     view.Sources
	mapView *mapview.View
	table   *tableview.View

	canvasRect image.Rectangle
	tbl        *widgets.Table
	status     *widgets.Paragraph

	focus  focus
	armed  chizu.Modifiers
	redraw chan struct{}
}

// layout splits a terminal of size into the map, table and status areas.
func layout(size image.Point) (mapRect, tableRect, statusRect image.Rectangle) {
	split := size.X * 3 / 5
	body := size.Y - 3
	mapRect = image.Rect(0, 0, split, body)
	tableRect = image.Rect(split, 0, size.X, body)
	statusRect = image.Rect(0, body, size.X, size.Y)
	return
}

// Run shows the dashboard until the user quits or ctx is done. The dataset is
// loaded once; a load failure is shown on screen and is not returned.
func Run(ctx context.Context, src view.Sources, loader dataset.Loader) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init termui: %w", err)
	}
	defer ui.Close()

	a := &app{
		src:    src,
		tbl:    widgets.NewTable(),
		status: widgets.NewParagraph(),
		redraw: make(chan struct{}, 1),
	}
	a.tbl.Title = "Table"
	a.status.Title = "chizu"
	w, h := ui.TerminalDimensions()
	a.resize(image.Pt(w, h))

	canvas := a.newCanvas()
	var err error
	a.mapView, err = mapview.New(src, image.Pt(canvas.Inner.Dx()*2, canvas.Inner.Dy()*4), mapview.WithOnChange(a.requestRedraw))
	if err != nil {
		return fmt.Errorf("map view: %w", err)
	}
	defer a.mapView.Close()
	a.table, err = tableview.New(src, image.Pt(a.tbl.Inner.Dx(), a.tbl.Inner.Dy()), tableview.WithOnChange(a.requestRedraw))
	if err != nil {
		return fmt.Errorf("table view: %w", err)
	}
	defer a.table.Close()

	a.status.Text = "loading dataset…"
	ui.Render(a.status)
	// errors are kept by each view and shown on screen
	_ = a.mapView.Load(ctx, loader)
	_ = a.table.Load(ctx, loader)
	a.render()

	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.redraw:
			a.render()
		case e := <-events:
			if quit := a.handle(Translate(e, a.armed)); quit {
				return nil
			}
			a.render()
		}
	}
}

// requestRedraw runs on broadcasting goroutines; it only signals the loop.
func (a *app) requestRedraw() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

func (a *app) resize(size image.Point) {
	mapRect, tableRect, statusRect := layout(size)
	a.canvasRect = mapRect
	a.tbl.SetRect(tableRect.Min.X, tableRect.Min.Y, tableRect.Max.X, tableRect.Max.Y)
	a.status.SetRect(statusRect.Min.X, statusRect.Min.Y, statusRect.Max.X, statusRect.Max.Y)
}

func (a *app) newCanvas() *ui.Canvas {
	c := ui.NewCanvas()
	c.Title = "Map"
	r := a.canvasRect
	c.SetRect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	if a.focus == focusMap {
		c.BorderStyle = ui.NewStyle(ui.ColorYellow)
	}
	return c
}

func (a *app) handle(c Command) (quit bool) {
	var err error
	switch c.Op {
	case OpQuit:
		return true
	case OpFocusNext:
		a.focus = (a.focus + 1) % 2
	case OpCursor:
		a.table.MoveCursor(c.Delta)
	case OpClickCursor:
		_, _, err = a.table.ClickCursor(c.Mods)
	case OpClickAt:
		err = a.clickAt(c.Cell, c.Mods)
		a.armed = chizu.Modifiers{}
	case OpArm:
		a.armed = c.Mods
	case OpToggleLayer:
		a.src.Layers.ToggleVisible(c.Layer)
	case OpActivateLayer:
		a.src.Layers.SetActive(c.Layer)
	case OpSortName:
		a.table.SortByName()
	case OpSortPopulation:
		a.table.SortByPopulation()
	case OpEscape:
		err = a.table.ClearAll()
	case OpResize:
		a.resize(c.Size)
		ui.Clear()
	}
	if err != nil {
		zap.S().Warnw("tui: command failed", "op", c.Op, "err", err)
	}
	return false
}

func (a *app) clickAt(cell image.Point, mods chizu.Modifiers) error {
	inner := a.canvasRect.Inset(1)
	if cell.In(inner) {
		a.focus = focusMap
		_, _, err := a.mapView.Click(mapview.DotAt(inner, cell), mods)
		return err
	}
	if row, ok := a.table.RowAt(a.tbl, cell); ok {
		a.focus = focusTable
		_, _, err := a.table.Click(row, mods)
		return err
	}
	return nil
}

func (a *app) render() {
	canvas := a.newCanvas()
	a.mapView.Draw(canvas)
	if err := a.mapView.Err(); err != nil {
		canvas.Title = "Map (dataset unavailable)"
	}
	a.table.Draw(a.tbl, a.focus == focusTable)
	if a.focus == focusTable {
		a.tbl.BorderStyle = ui.NewStyle(ui.ColorYellow)
	} else {
		a.tbl.BorderStyle = ui.NewStyle(ui.ColorWhite)
	}
	a.status.Text = a.statusText()
	ui.Render(canvas, a.tbl, a.status)
}

func (a *app) statusText() string {
	st := a.table.State()
	var b strings.Builder
	names := "none"
	if st.Entities.Len() > 0 {
		names = strings.Join(a.table.EntityNames(st.Entities.IDs()), ", ")
	}
	fmt.Fprintf(&b, "countries %s  routes %d", names, st.Routes.Len())
	for _, l := range st.Layers {
		mark := "-"
		if l.Visible {
			mark = "+"
		}
		if l.Active {
			mark += "*"
		}
		fmt.Fprintf(&b, "  [%s%s]", mark, l.ID)
	}
	if a.armed.Shift {
		b.WriteString("  (shift armed)")
	}
	if a.armed.Ctrl {
		b.WriteString("  (ctrl armed)")
	}
	if err := a.table.Err(); err != nil {
		fmt.Fprintf(&b, "  error: %s", err)
	}
	b.WriteString("\n" + help)
	return b.String()
}
