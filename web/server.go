// Package web is the HTTP front end: an HTML dashboard, a JSON API over the
// selection and layers, a map snapshot, server-sent events and metrics.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/mapview"
	"nyiyui.ca/hato/chizu/observability"
	"nyiyui.ca/hato/chizu/selection"
	"nyiyui.ca/hato/chizu/stream"
	"nyiyui.ca/hato/chizu/tableview"
	"nyiyui.ca/hato/chizu/view"
)

//go:embed index.html
var templates embed.FS

type Conf struct {
	Sources view.Sources
	Loader  dataset.Loader
	// Metrics may be nil.
	Metrics        *observability.Collector
	AllowedOrigins []string
	SnapshotSize   image.Point
}

// Server owns its own map and table views; they follow the shared stores like
// any other view.
type Server struct {
	conf    Conf
	mux     *http.ServeMux
	t       *template.Template
	binding *view.Binding
	mapView *mapview.View
	table   *tableview.View
	events  *stream.Server
}

// New activates the server's views and loads the dataset into them. A failed
// load is not fatal: the page shows the error.
func New(ctx context.Context, conf Conf) (*Server, error) {
	s := &Server{
		conf: conf,
		mux:  http.NewServeMux(),
	}
	s.t = template.Must(template.New("index").Funcs(sprig.FuncMap()).ParseFS(templates, "*.html"))

	var err error
	s.binding, err = view.Bind("web", conf.Sources, view.AllChannels, nil)
	if err != nil {
		return nil, err
	}
	s.mapView, err = mapview.New(conf.Sources, conf.SnapshotSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("map view: %w", err)
	}
	s.table, err = tableview.New(conf.Sources, image.Pt(80, 1<<16))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("table view: %w", err)
	}
	s.events, err = stream.NewServer(conf.Sources, conf.Metrics)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("stream: %w", err)
	}
	if conf.Loader != nil {
		// errors are kept by each view
		_ = s.mapView.Load(ctx, conf.Loader)
		_ = s.table.Load(ctx, conf.Loader)
	}
	s.setup()
	return s, nil
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.conf.Metrics.Instrument(pattern, h))
}

func (s *Server) setup() {
	s.handle("GET /{$}", s.handleIndex)
	s.handle("GET /api/state", s.handleState)
	s.handle("PUT /api/selection/{kind}", s.handleReplace)
	s.handle("POST /api/selection/clear", s.handleClear)
	s.handle("POST /api/escape", s.handleClear)
	s.handle("POST /api/gesture", s.handleGesture)
	s.handle("POST /api/layers/{id}/visible", s.handleVisible)
	s.handle("POST /api/layers/{id}/toggle", s.handleToggle)
	s.handle("POST /api/layers/{id}/active", s.handleActive)
	s.handle("GET /map.png", s.handleMap)
	s.mux.Handle("GET /events", s.conf.Metrics.Instrument("GET /events", s.events))
	s.mux.Handle("GET /metrics", s.conf.Metrics.Handler())
}

// Handler is the mux wrapped with CORS for the configured origins.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.conf.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.mux)
}

// Close tears down every binding the server holds.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
	if s.table != nil {
		s.table.Close()
	}
	if s.mapView != nil {
		s.mapView.Close()
	}
	if s.binding != nil {
		s.binding.Close()
	}
}

type errorBody struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("web: write json", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, errBadRequest) {
		code = http.StatusBadRequest
	} else {
		zap.S().Errorw("web: request failed", "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	order := tableview.SortSource
	switch r.URL.Query().Get("sort") {
	case "name":
		order = tableview.SortByName
	case "population":
		order = tableview.SortByPopulation
	}
	st := s.binding.State()
	var countries, routes []tableview.Row
	for _, row := range s.table.RowsBy(order) {
		if row.Ref.Kind == chizu.KindRoute {
			routes = append(routes, row)
		} else {
			countries = append(countries, row)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.t.ExecuteTemplate(w, "index", map[string]any{
		"State":       st,
		"Layers":      st.Layers,
		"Selected":    s.table.EntityNames(st.Entities.IDs()),
		"Header":      tableview.Header,
		"RouteHeader": tableview.RouteHeader,
		"Countries":   countries,
		"Routes":      routes,
		"TableErr":    s.table.Err(),
		"MapErr":      s.mapView.Err(),
		"Now":         time.Now().UnixMilli(),
	})
	if err != nil {
		zap.S().Errorw("web: render index", "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.binding.State())
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var k chizu.Kind
	switch r.PathValue("kind") {
	case "entities":
		k = chizu.KindEntity
	case "routes":
		k = chizu.KindRoute
	default:
		writeError(w, fmt.Errorf("%w: unknown selection %q", errBadRequest, r.PathValue("kind")))
		return
	}
	var ids selection.Set
	if err := decode(r, &ids); err != nil {
		writeError(w, err)
		return
	}
	s.conf.Sources.Selection.Replace(k, ids)
	writeJSON(w, http.StatusOK, s.binding.State())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.binding.ClearAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.binding.State())
}

func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	var g chizu.Gesture
	if err := decode(r, &g); err != nil {
		writeError(w, err)
		return
	}
	if err := s.binding.Dispatch(g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.binding.State())
}

func (s *Server) handleVisible(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Visible == nil {
		writeError(w, fmt.Errorf("%w: visible is required", errBadRequest))
		return
	}
	s.conf.Sources.Layers.SetVisible(r.PathValue("id"), *body.Visible)
	writeJSON(w, http.StatusOK, s.conf.Sources.Layers.List())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.conf.Sources.Layers.ToggleVisible(r.PathValue("id"))
	writeJSON(w, http.StatusOK, s.conf.Sources.Layers.List())
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	s.conf.Sources.Layers.SetActive(r.PathValue("id"))
	writeJSON(w, http.StatusOK, s.conf.Sources.Layers.List())
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	size := s.conf.SnapshotSize
	q := r.URL.Query()
	for _, dim := range []struct {
		key string
		dst *int
	}{{"w", &size.X}, {"h", &size.Y}} {
		raw := q.Get(dim.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 4096 {
			writeError(w, fmt.Errorf("%w: bad %s %q", errBadRequest, dim.key, raw))
			return
		}
		*dim.dst = n
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.mapView.Snapshot(w, size.X, size.Y); err != nil {
		zap.S().Errorw("web: map snapshot", "err", err)
	}
}
