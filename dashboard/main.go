package dashboard

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"nyiyui.ca/hato/chizu/config"
	"nyiyui.ca/hato/chizu/observability"
	"nyiyui.ca/hato/chizu/tui"
	"nyiyui.ca/hato/chizu/web"
)

type flags struct {
	config    string
	listen    string
	countries string
	flights   string
	logFile   string
	noTUI     bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, zapcore.Level, error) {
	f := new(flags)
	level := zap.DebugLevel
	fs.Var(&level, "log-level", "set log level")
	fs.StringVar(&f.config, "config", "", "path to a JSON config file")
	fs.StringVar(&f.listen, "listen", "", "web front end address (overrides config)")
	fs.StringVar(&f.countries, "countries", "", "countries GeoJSON source (overrides config)")
	fs.StringVar(&f.flights, "flights", "", "flights JSON source (overrides config)")
	fs.StringVar(&f.logFile, "log-file", "chizu.log", "log destination while the terminal front end runs")
	fs.BoolVar(&f.noTUI, "no-tui", false, "serve the web front end only")
	if err := fs.Parse(args); err != nil {
		return nil, level, err
	}
	return f, level, nil
}

// loadConfig applies f over the config file (or the defaults).
func loadConfig(f *flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		cfg, err = config.Load(f.config)
		if err != nil {
			return config.Config{}, err
		}
	}
	if f.listen != "" {
		cfg.HTTP.Listen = f.listen
	}
	if f.countries != "" {
		cfg.Data.Countries = f.countries
	}
	if f.flights != "" {
		cfg.Data.Flights = f.flights
	}
	if f.noTUI {
		cfg.TUI = false
	}
	return cfg, cfg.Validate()
}

func Main() error {
	defer zap.S().Sync()
	f, level, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.TUI {
		// the terminal belongs to termui
		zc.OutputPaths = []string{f.logFile}
		zc.ErrorOutputPaths = []string{f.logFile}
	}
	dev, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	s := NewSession(metrics)
	gw, closeCache, err := Gateway(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer closeCache()

	errs := make(chan error, 2)
	if cfg.HTTP.Listen != "" {
		ws, err := web.New(ctx, web.Conf{
			Sources:        s.Sources(),
			Loader:         gw,
			Metrics:        metrics,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			SnapshotSize:   image.Pt(cfg.HTTP.SnapshotWidth, cfg.HTTP.SnapshotHeight),
		})
		if err != nil {
			return fmt.Errorf("web: %w", err)
		}
		defer ws.Close()
		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           ws.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			zap.S().Infow("dashboard: web listening", "addr", cfg.HTTP.Listen, "session", s.ID)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("web: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.S().Warnw("dashboard: web shutdown", "err", err)
			}
		}()
	}
	if cfg.TUI {
		go func() {
			errs <- tui.Run(ctx, s.Sources(), gw)
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}
