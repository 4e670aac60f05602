// Package stream pushes selection and layer broadcasts to remote clients as
// server-sent events.
//
// Clients subscribe with ?stream=entities, routes or layers. Events carry the
// full current value as JSON. Nothing is replayed, so a client should fetch the
// current state first and then apply events.
package stream

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu/view"
)

const (
	Entities = "entities"
	Routes   = "routes"
	Layers   = "layers"
)

// Recorder counts published events (see package observability).
type Recorder interface {
	ObserveStreamEvent(stream string)
}

type Server struct {
	s        *sse.Server
	bindings []*view.Binding
	recorder Recorder
}

// NewServer binds one stream per channel. r may be nil.
func NewServer(src view.Sources, r Recorder) (*Server, error) {
	s := &Server{s: sse.New(), recorder: r}
	s.s.AutoReplay = false
	s.s.AutoStream = false
	streams := []struct {
		id      string
		ch      view.Channels
		payload func(view.State) any
	}{
		{Entities, view.Channels{Entities: true}, func(st view.State) any { return st.Entities }},
		{Routes, view.Channels{Routes: true}, func(st view.State) any { return st.Routes }},
		{Layers, view.Channels{Layers: true}, func(st view.State) any { return st.Layers }},
	}
	for _, st := range streams {
		st := st
		s.s.CreateStream(st.id)
		b, err := view.Bind("stream/"+st.id, src, st.ch, func(state view.State) {
			s.publish(st.id, st.payload(state))
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.bindings = append(s.bindings, b)
	}
	return s, nil
}

func (s *Server) publish(id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Errorw("stream: marshal json", "stream", id, "err", err)
		return
	}
	if !s.s.TryPublish(id, &sse.Event{Data: data}) {
		zap.S().Debugw("stream: event dropped", "stream", id)
		return
	}
	if s.recorder != nil {
		s.recorder.ObserveStreamEvent(id)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}

// Close unbinds every stream and disconnects clients.
func (s *Server) Close() {
	for _, b := range s.bindings {
		b.Close()
	}
	s.s.Close()
}
