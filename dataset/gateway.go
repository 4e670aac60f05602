package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

var ErrUnsupportedSource = errors.New("dataset: unsupported source")

// Loader supplies a dataset. A view awaits it once per activation.
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*Dataset, error)

func (f LoaderFunc) Load(ctx context.Context) (*Dataset, error) { return f(ctx) }

// Static returns a Loader that always yields d.
func Static(d *Dataset) Loader {
	return LoaderFunc(func(context.Context) (*Dataset, error) { return d, nil })
}

// Fetcher retrieves the raw bytes of one document.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FileFetcher reads local files. It serves file:// URLs and bare paths.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, u *url.URL) ([]byte, error) {
	return os.ReadFile(u.Host + u.Path)
}

// HTTPFetcher GETs http(s) URLs.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// S3Config configures S3Fetcher. Credentials come from the default AWS chain.
type S3Config struct {
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"` // optional, e.g. MinIO
	PathStyle bool   `json:"path-style"`
}

// S3Fetcher reads s3://bucket/key URLs.
type S3Fetcher struct {
	client *s3.Client
}

func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: %s needs a bucket and a key", ErrUnsupportedSource, u)
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Source names the documents a Gateway loads. Flights is optional.
type Source struct {
	Countries string `json:"countries"`
	Flights   string `json:"flights"`
}

// Recorder receives gateway activity (see package observability).
type Recorder interface {
	ObserveLoad(err error, took time.Duration)
	ObserveCache(hit bool)
}

// Gateway fetches and parses the dataset. Fetched documents are kept in an
// optional buntdb cache until their TTL runs out.
type Gateway struct {
	src      Source
	fetchers map[string]Fetcher
	cache    *buntdb.DB
	ttl      time.Duration
	recorder Recorder
}

type Option func(*Gateway)

// WithFetcher serves URLs of scheme with f, replacing any default.
func WithFetcher(scheme string, f Fetcher) Option {
	return func(g *Gateway) {
		g.fetchers[scheme] = f
	}
}

// WithCache caches documents in db. A zero ttl keeps them until db closes.
func WithCache(db *buntdb.DB, ttl time.Duration) Option {
	return func(g *Gateway) {
		g.cache = db
		g.ttl = ttl
	}
}

func WithRecorder(r Recorder) Option {
	return func(g *Gateway) {
		g.recorder = r
	}
}

func NewGateway(src Source, opts ...Option) *Gateway {
	g := &Gateway{
		src: src,
		fetchers: map[string]Fetcher{
			"":      FileFetcher{},
			"file":  FileFetcher{},
			"http":  HTTPFetcher{},
			"https": HTTPFetcher{},
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load fetches and parses both documents.
func (g *Gateway) Load(ctx context.Context) (d *Dataset, err error) {
	start := time.Now()
	defer func() {
		if g.recorder != nil {
			g.recorder.ObserveLoad(err, time.Since(start))
		}
		if err != nil {
			zap.S().Warnw("dataset: load failed", "err", err)
		} else {
			zap.S().Infow("dataset: loaded", "entities", len(d.Entities), "routes", len(d.Routes), "took", time.Since(start))
		}
	}()
	data, err := g.fetch(ctx, g.src.Countries)
	if err != nil {
		return nil, fmt.Errorf("countries %s: %w", g.src.Countries, err)
	}
	d = new(Dataset)
	d.Entities, err = ParseCountries(data)
	if err != nil {
		return nil, fmt.Errorf("countries %s: %w", g.src.Countries, err)
	}
	if g.src.Flights == "" {
		return d, nil
	}
	data, err = g.fetch(ctx, g.src.Flights)
	if err != nil {
		return nil, fmt.Errorf("flights %s: %w", g.src.Flights, err)
	}
	d.Routes, err = ParseFlights(data)
	if err != nil {
		return nil, fmt.Errorf("flights %s: %w", g.src.Flights, err)
	}
	return d, nil
}

func (g *Gateway) fetch(ctx context.Context, raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, err)
	}
	f, ok := g.fetchers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
	if data, ok := g.cached(raw); ok {
		return data, nil
	}
	data, err := f.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	g.store(raw, data)
	return data, nil
}

func cacheKey(raw string) string { return "doc:" + raw }

func (g *Gateway) cached(raw string) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}
	var val string
	err := g.cache.View(func(tx *buntdb.Tx) error {
		var err error
		val, err = tx.Get(cacheKey(raw))
		return err
	})
	hit := err == nil
	if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
		zap.S().Warnw("dataset: cache read failed", "source", raw, "err", err)
	}
	if g.recorder != nil {
		g.recorder.ObserveCache(hit)
	}
	return []byte(val), hit
}

func (g *Gateway) store(raw string, data []byte) {
	if g.cache == nil {
		return
	}
	var opts *buntdb.SetOptions
	if g.ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: g.ttl}
	}
	err := g.cache.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(cacheKey(raw), string(data), opts)
		return err
	})
	if err != nil {
		zap.S().Warnw("dataset: cache write failed", "source", raw, "err", err)
	}
}
