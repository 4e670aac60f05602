// Package config is the dashboard configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"nyiyui.ca/hato/chizu/dataset"
)

type Config struct {
	Data dataset.Source `json:"data"`
	// S3 enables s3:// data sources.
	S3    *dataset.S3Config `json:"s3,omitempty"`
	Cache Cache             `json:"cache"`
	HTTP  HTTP              `json:"http"`
	// TUI starts the terminal front end.
	TUI bool `json:"tui"`
}

type Cache struct {
	// Path is a buntdb path; ":memory:" keeps the cache in memory and "" disables it.
	Path string   `json:"path"`
	TTL  Duration `json:"ttl"`
}

type HTTP struct {
	// Listen is the address of the web front end; "" disables it.
	Listen         string   `json:"listen"`
	AllowedOrigins []string `json:"allowed-origins"`
	SnapshotWidth  int      `json:"snapshot-width"`
	SnapshotHeight int      `json:"snapshot-height"`
}

// Duration is a time.Duration written as a string such as "10m".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func Default() Config {
	return Config{
		Data: dataset.Source{
			Countries: "assets/110m/countries.geojson",
			Flights:   "assets/flights.json",
		},
		Cache: Cache{Path: ":memory:", TTL: Duration(10 * time.Minute)},
		HTTP: HTTP{
			Listen:         "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:4200"},
			SnapshotWidth:  960,
			SnapshotHeight: 720,
		},
		TUI: true,
	}
}

// Load reads the file at path over the defaults. Fields missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Data.Countries == "" {
		return errors.New("data.countries is required")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.HTTP.Listen == "" && !c.TUI {
		return errors.New("nothing to run: http.listen is empty and tui is off")
	}
	if c.HTTP.SnapshotWidth <= 0 || c.HTTP.SnapshotHeight <= 0 {
		return errors.New("http snapshot size must be positive")
	}
	return nil
}
