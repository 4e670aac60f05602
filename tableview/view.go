// Package tableview is the table view: one row per country, then one row per
// route.
package tableview

import (
	"context"
	"image"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/view"
)

// Header and RouteHeader name the columns of country and route rows.
var (
	Header      = []string{"Name", "ISO A3", "ISO A2", "Population"}
	RouteHeader = []string{"Carrier", "Base", "Ref", "Route"}
)

// Row is one rendered table row.
type Row struct {
	Ref         chizu.ItemRef
	Cells       []string
	Highlighted bool
}

type SortOrder int

const (
	// SortSource keeps the dataset order.
	SortSource SortOrder = iota
	SortByName
	// SortByPopulation sorts by descending population.
	SortByPopulation
)

// View is the table view binding.
type View struct {
	binding  *view.Binding
	onChange func()

	lock   sync.Mutex
	size   image.Point
	data   *dataset.Dataset
	err    error
	state  view.State
	sorted SortOrder
	// order holds entity indices in display order.
	order  []int
	cursor int
	top    int
}

type Option func(*View)

// WithOnChange sets a hook run after every broadcast. It must not block.
func WithOnChange(fn func()) Option {
	return func(v *View) {
		v.onChange = fn
	}
}

// New activates a table view for a target of size cells (columns by rows).
// A target with no area fails with view.ErrNoRenderTarget.
func New(src view.Sources, size image.Point, opts ...Option) (*View, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, view.ErrNoRenderTarget
	}
	v := &View{size: size}
	for _, opt := range opts {
		opt(v)
	}
	b, err := view.Bind("tableview", src, view.AllChannels, v.receive)
	if err != nil {
		return nil, err
	}
	v.binding = b
	return v, nil
}

func (v *View) receive(st view.State) {
	v.lock.Lock()
	v.state = st
	v.clampCursor()
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
}

// Load awaits loader once. On failure the error is kept as the view's error
// and the table stays active with no rows.
func (v *View) Load(ctx context.Context, loader dataset.Loader) error {
	d, err := loader.Load(ctx)
	v.lock.Lock()
	if err != nil {
		zap.S().Warnw("tableview: dataset unavailable", "err", err)
		v.err = err
		v.data = nil
	} else {
		v.err = nil
		v.data = d
	}
	v.resort()
	v.clampCursor()
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
	return err
}

func (v *View) Err() error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.err
}

func (v *View) Status() view.Status { return v.binding.Status() }

func (v *View) State() view.State {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.state
}

// Sort reorders the country rows. Route rows keep dataset order.
func (v *View) Sort(o SortOrder) {
	v.lock.Lock()
	v.sorted = o
	v.resort()
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
}

func (v *View) SortByName()       { v.Sort(SortByName) }
func (v *View) SortByPopulation() { v.Sort(SortByPopulation) }

// resort rebuilds order. Caller holds lock.
func (v *View) resort() {
	if v.data == nil {
		v.order = nil
		return
	}
	v.order = sortEntities(v.data.Entities, v.sorted)
}

// sortEntities returns indices into es in the given order.
func sortEntities(es []dataset.Entity, o SortOrder) []int {
	order := make([]int, len(es))
	for i := range order {
		order[i] = i
	}
	switch o {
	case SortByName:
		sort.SliceStable(order, func(i, j int) bool {
			return strings.ToLower(es[order[i]].Name) < strings.ToLower(es[order[j]].Name)
		})
	case SortByPopulation:
		sort.SliceStable(order, func(i, j int) bool {
			return es[order[i]].Population > es[order[j]].Population
		})
	}
	return order
}

// Rows returns the rendered rows: countries, then routes, each only while its
// layer is visible.
func (v *View) Rows() []Row {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.rows()
}

// RowsBy is Rows with the countries in order o. The view's own order is left
// alone, so concurrent callers do not disturb each other.
func (v *View) RowsBy(o SortOrder) []Row {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.data == nil {
		return nil
	}
	return v.rowsIn(sortEntities(v.data.Entities, o))
}

func (v *View) rows() []Row {
	if v.data == nil {
		return nil
	}
	return v.rowsIn(v.order)
}

func (v *View) rowsIn(order []int) []Row {
	var rows []Row
	if v.state.Visible(chizu.KindEntity) {
		for _, i := range order {
			e := v.data.Entities[i]
			ref := chizu.ItemRef{Kind: chizu.KindEntity, ID: e.ID}
			rows = append(rows, Row{
				Ref:         ref,
				Cells:       []string{e.Name, e.ID, e.ISOA2, strconv.FormatInt(e.Population, 10)},
				Highlighted: v.state.Highlighted(ref),
			})
		}
	}
	if v.state.Visible(chizu.KindRoute) {
		for _, r := range v.data.Routes {
			ref := chizu.ItemRef{Kind: chizu.KindRoute, ID: r.ID()}
			rows = append(rows, Row{
				Ref:         ref,
				Cells:       []string{r.Carrier, r.Base, r.Ref, ref.ID},
				Highlighted: v.state.Highlighted(ref),
			})
		}
	}
	return rows
}

// Highlighted reports whether ref has a highlighted row. Hidden rows are never
// highlighted.
func (v *View) Highlighted(ref chizu.ItemRef) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.state.Visible(ref.Kind) && v.state.Highlighted(ref)
}

// Click dispatches a gesture for the row at index row of Rows. Rows out of
// range are ignored.
func (v *View) Click(row int, mods chizu.Modifiers) (chizu.ItemRef, bool, error) {
	rows := v.Rows()
	if row < 0 || row >= len(rows) {
		return chizu.ItemRef{}, false, nil
	}
	ref := rows[row].Ref
	return ref, true, v.binding.Dispatch(chizu.Gesture{Target: ref, Mods: mods})
}

// ClickCursor clicks the row under the keyboard cursor.
func (v *View) ClickCursor(mods chizu.Modifiers) (chizu.ItemRef, bool, error) {
	return v.Click(v.Cursor(), mods)
}

// ClearAll clears both selections, for the escape key.
func (v *View) ClearAll() error {
	return v.binding.ClearAll()
}

func (v *View) Cursor() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.cursor
}

// MoveCursor moves the keyboard cursor by delta rows, scrolling as needed.
func (v *View) MoveCursor(delta int) {
	v.lock.Lock()
	v.cursor += delta
	v.clampCursor()
	v.lock.Unlock()
	if v.onChange != nil {
		v.onChange()
	}
}

// pageRows is the number of body rows that fit under the header. A line is
// kept for the route header when rows holds both kinds.
func (v *View) pageRows(rows []Row) int {
	n := v.size.Y - 1
	if len(rows) > 0 && rows[0].Ref.Kind != rows[len(rows)-1].Ref.Kind {
		n--
	}
	if n > 0 {
		return n
	}
	return 1
}

// page lists the rows drawn under the column header, top to bottom. -1 marks
// the route header between country and route rows.
func (v *View) page(rows []Row) []int {
	end := min(v.top+v.pageRows(rows), len(rows))
	var lines []int
	for i := v.top; i < end; i++ {
		if i > v.top && rows[i].Ref.Kind != rows[i-1].Ref.Kind {
			lines = append(lines, -1)
		}
		lines = append(lines, i)
	}
	return lines
}

// EntityNames maps country ids to their names. Ids missing from the dataset
// are kept as they are.
func (v *View) EntityNames(ids []string) []string {
	v.lock.Lock()
	defer v.lock.Unlock()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id
		if e, ok := v.data.Entity(id); ok && e.Name != "" {
			names[i] = e.Name
		}
	}
	return names
}

// clampCursor keeps cursor and top inside the rows. Caller holds lock.
func (v *View) clampCursor() {
	rows := v.rows()
	n := len(rows)
	if v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
	page := v.pageRows(rows)
	if v.cursor < v.top {
		v.top = v.cursor
	}
	if v.cursor >= v.top+page {
		v.top = v.cursor - page + 1
	}
	if v.top < 0 {
		v.top = 0
	}
}

// Close tears the view down. It is safe to call more than once.
func (v *View) Close() {
	v.binding.Close()
}
