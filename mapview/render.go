package mapview

import (
	"fmt"
	"image"
	"io"

	ui "github.com/gizak/termui/v3"
	"github.com/paulmach/orb"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"nyiyui.ca/hato/chizu"
)

var (
	termEntity         = ui.ColorWhite
	termEntitySelected = ui.ColorGreen
	termRoute          = ui.ColorRed
	termRouteSelected  = ui.ColorYellow

	pngEntity         = drawing.ColorFromHex("6b7b8c")
	pngEntitySelected = drawing.ColorFromHex("2e8b57")
	pngRoute          = drawing.ColorFromHex("d62728")
	pngRouteSelected  = drawing.ColorFromHex("ffd700")
)

// Draw paints the visible shapes onto c. Canvas points are braille dots, two
// per cell across and four down; the view is resized to match c.Inner.
// Use a fresh canvas per frame, as canvases only accumulate points.
func (v *View) Draw(c *ui.Canvas) {
	inner := c.Inner
	if err := v.Resize(image.Pt(inner.Dx()*2, inner.Dy()*4)); err != nil {
		return
	}
	off := image.Pt(inner.Min.X*2, inner.Min.Y*4)

	v.lock.Lock()
	defer v.lock.Unlock()
	if v.state.Visible(chizu.KindEntity) {
		for _, e := range v.entities {
			color := termEntity
			if v.state.Entities.Has(e.entity.ID) {
				color = termEntitySelected
			}
			for _, r := range rings(e.screen) {
				drawLine(c, orb.LineString(r), off, color)
			}
		}
	}
	if v.state.Visible(chizu.KindRoute) {
		// selected routes last so they stay on top
		for _, selected := range []bool{false, true} {
			for _, r := range v.routes {
				if v.state.Routes.Has(r.route.ID()) != selected {
					continue
				}
				color := termRoute
				if selected {
					color = termRouteSelected
				}
				for _, ls := range r.screen {
					drawLine(c, ls, off, color)
				}
			}
		}
	}
}

func drawLine(c *ui.Canvas, ls orb.LineString, off image.Point, color ui.Color) {
	for i := 1; i < len(ls); i++ {
		c.SetLine(toImage(ls[i-1]).Add(off), toImage(ls[i]).Add(off), color)
	}
}

// DotAt converts a terminal cell (e.g. from a mouse event) inside inner into
// the target pixel at the centre of that cell.
func DotAt(inner image.Rectangle, cell image.Point) image.Point {
	rel := cell.Sub(inner.Min)
	return image.Pt(rel.X*2+1, rel.Y*4+2)
}

// Snapshot writes the visible shapes as a PNG of the given size.
func (v *View) Snapshot(w io.Writer, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("snapshot: bad size %dx%d", width, height)
	}
	series := []chart.Series{frame()}
	v.lock.Lock()
	if v.state.Visible(chizu.KindEntity) {
		for _, e := range v.entities {
			style := chart.Style{StrokeColor: pngEntity, StrokeWidth: 1}
			if v.state.Entities.Has(e.entity.ID) {
				style = chart.Style{StrokeColor: pngEntitySelected, StrokeWidth: 2}
			}
			for _, r := range rings(e.entity.Geometry) {
				series = append(series, lineSeries(orb.LineString(r), style))
			}
		}
	}
	if v.state.Visible(chizu.KindRoute) {
		for _, r := range v.routes {
			style := chart.Style{StrokeColor: pngRoute, StrokeWidth: 1}
			if v.state.Routes.Has(r.route.ID()) {
				style = chart.Style{StrokeColor: pngRouteSelected, StrokeWidth: 3}
			}
			for _, ls := range r.path {
				series = append(series, lineSeries(ls, style))
			}
		}
	}
	v.lock.Unlock()

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis:  chart.XAxis{Style: chart.Hidden()},
		YAxis:  chart.YAxis{Style: chart.Hidden()},
		Series: series,
	}
	return graph.Render(chart.PNG, w)
}

func lineSeries(ls orb.LineString, style chart.Style) chart.ContinuousSeries {
	xs := make([]float64, len(ls))
	ys := make([]float64, len(ls))
	for i, p := range ls {
		m := mercator(p)
		xs[i], ys[i] = m[0], m[1]
	}
	return chart.ContinuousSeries{Style: style, XValues: xs, YValues: ys}
}

// frame is an invisible series spanning the whole world, so the chart always
// has a series and a fixed range.
func frame() chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Style:   chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: chart.Disabled},
		XValues: []float64{-mercatorMax, mercatorMax},
		YValues: []float64{-mercatorMax, mercatorMax},
	}
}
