package tui

import (
	"image"
	"testing"

	ui "github.com/gizak/termui/v3"
	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/layer"
)

func TestTranslate(t *testing.T) {
	shift := chizu.Modifiers{Shift: true}
	ctrl := chizu.Modifiers{Ctrl: true}
	cases := []struct {
		name  string
		e     ui.Event
		armed chizu.Modifiers
		want  Command
	}{
		{"quit", ui.Event{ID: "q"}, chizu.Modifiers{}, Command{Op: OpQuit}},
		{"down", ui.Event{ID: "j"}, chizu.Modifiers{}, Command{Op: OpCursor, Delta: 1}},
		{"page up", ui.Event{ID: "<PageUp>"}, chizu.Modifiers{}, Command{Op: OpCursor, Delta: -10}},
		{"plain click", ui.Event{ID: "<Enter>"}, shift, Command{Op: OpClickCursor}},
		{"shift click", ui.Event{ID: "s"}, chizu.Modifiers{}, Command{Op: OpClickCursor, Mods: shift}},
		{"ctrl click", ui.Event{ID: "<Space>"}, chizu.Modifiers{}, Command{Op: OpClickCursor, Mods: ctrl}},
		{"arm shift", ui.Event{ID: "S"}, chizu.Modifiers{}, Command{Op: OpArm, Mods: shift}},
		{"disarm shift", ui.Event{ID: "S"}, shift, Command{Op: OpArm}},
		{"arm ctrl", ui.Event{ID: "C"}, chizu.Modifiers{}, Command{Op: OpArm, Mods: ctrl}},
		{"escape", ui.Event{ID: "<Escape>"}, chizu.Modifiers{}, Command{Op: OpEscape}},
		{
			"mouse uses armed",
			ui.Event{ID: "<MouseLeft>", Payload: ui.Mouse{X: 3, Y: 4}},
			ctrl,
			Command{Op: OpClickAt, Cell: image.Pt(3, 4), Mods: ctrl},
		},
		{"drag ignored", ui.Event{ID: "<MouseLeft>", Payload: ui.Mouse{X: 3, Y: 4, Drag: true}}, chizu.Modifiers{}, Command{}},
		{
			"resize",
			ui.Event{ID: "<Resize>", Payload: ui.Resize{Width: 120, Height: 40}},
			chizu.Modifiers{},
			Command{Op: OpResize, Size: image.Pt(120, 40)},
		},
		{"toggle flights", ui.Event{ID: "2"}, chizu.Modifiers{}, Command{Op: OpToggleLayer, Layer: layer.Flights}},
		{"activate countries", ui.Event{ID: "<F1>"}, chizu.Modifiers{}, Command{Op: OpActivateLayer, Layer: layer.Countries}},
		{"sort", ui.Event{ID: "p"}, chizu.Modifiers{}, Command{Op: OpSortPopulation}},
		{"unbound", ui.Event{ID: "z"}, chizu.Modifiers{}, Command{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Translate(c.e, c.armed)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	m, tbl, status := layout(image.Pt(100, 40))
	if m != image.Rect(0, 0, 60, 37) {
		t.Errorf("map = %v", m)
	}
	if tbl != image.Rect(60, 0, 100, 37) {
		t.Errorf("table = %v", tbl)
	}
	if status != image.Rect(0, 37, 100, 40) {
		t.Errorf("status = %v", status)
	}
}
