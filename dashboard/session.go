// Package dashboard wires the stores, the dataset gateway and the front ends
// together.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
	"nyiyui.ca/hato/chizu/config"
	"nyiyui.ca/hato/chizu/dataset"
	"nyiyui.ca/hato/chizu/layer"
	"nyiyui.ca/hato/chizu/observability"
	"nyiyui.ca/hato/chizu/selection"
	"nyiyui.ca/hato/chizu/view"
)

// Session holds the one selection store and layer registry every view of a
// dashboard shares.
type Session struct {
	ID        uuid.UUID
	Selection *selection.Store
	Layers    *layer.Registry
	Metrics   *observability.Collector
}

// NewSession starts with empty selections and the default layers. metrics may
// be nil.
func NewSession(metrics *observability.Collector) *Session {
	s := &Session{
		ID:        uuid.New(),
		Selection: selection.NewStore(selection.WithRecorder(metrics)),
		Layers:    layer.NewRegistry(layer.Default(), metrics),
		Metrics:   metrics,
	}
	zap.S().Debugw("dashboard: new session", "id", s.ID)
	return s
}

// Sources is what a view binds to.
func (s *Session) Sources() view.Sources {
	return view.Sources{
		Selection: s.Selection,
		Layers:    s.Layers,
		Recorder:  s.Metrics,
	}
}

// Gateway builds the dataset gateway described by cfg. The returned close
// function releases the cache.
func Gateway(ctx context.Context, cfg config.Config, metrics *observability.Collector) (*dataset.Gateway, func(), error) {
	opts := []dataset.Option{dataset.WithRecorder(metrics)}
	closeFn := func() {}
	if cfg.Cache.Path != "" {
		db, err := buntdb.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache %s: %w", cfg.Cache.Path, err)
		}
		closeFn = func() {
			if err := db.Close(); err != nil {
				zap.S().Warnw("dashboard: close cache", "err", err)
			}
		}
		opts = append(opts, dataset.WithCache(db, time.Duration(cfg.Cache.TTL)))
	}
	if cfg.S3 != nil {
		f, err := dataset.NewS3Fetcher(ctx, *cfg.S3)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("s3: %w", err)
		}
		opts = append(opts, dataset.WithFetcher("s3", f))
	}
	return dataset.NewGateway(cfg.Data, opts...), closeFn, nil
}
