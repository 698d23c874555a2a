package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/isia-imav/taggraph/pkg/cache"
	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/graph"
	"github.com/isia-imav/taggraph/pkg/observability"
	"github.com/isia-imav/taggraph/pkg/record"
)

// cacheKeyType labels graph entries in cache events.
const cacheKeyType = "graph"

// Runner encapsulates pipeline execution with caching.
// The CLI build commands and the HTTP handler share it.
//
// The Runner is stateless except for the cache and logger, so multiple
// goroutines can use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Run builds the graph and writes it to opts.Output. Nothing is written
// unless the whole graph was assembled.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	buildStart := time.Now()
	g, hit, err := r.Build(ctx, opts)
	if err != nil {
		return nil, err
	}
	result := &Result{Graph: g, CacheHit: hit}
	result.Stats.Stats = g.Stats()
	result.Stats.BuildTime = time.Since(buildStart)

	r.Logger.Info("assembled graph",
		"items", result.Stats.Items,
		"tags", result.Stats.Tags,
		"links", result.Stats.Links,
		"cached", hit,
		"duration", result.Stats.BuildTime)

	writeStart := time.Now()
	if err := r.Write(g, opts); err != nil {
		return nil, err
	}
	result.Stats.WriteTime = time.Since(writeStart)

	r.Logger.Debug("wrote graph", "path", opts.Output, "duration", result.Stats.WriteTime)
	return result, nil
}

// Build reads opts.Input and assembles its graph, consulting the cache first.
// The bool result reports a cache hit.
func (r *Runner) Build(ctx context.Context, opts Options) (*graph.Graph, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	data, err := readInput(opts.Input)
	if err != nil {
		return nil, false, err
	}
	g, hit, err := r.BuildBytes(ctx, data, opts)
	if err != nil {
		return nil, false, fmt.Errorf("build %s: %w", opts.Input, err)
	}
	return g, hit, nil
}

// BuildBytes assembles the graph of an in-memory catalog in opts.Format.
func (r *Runner) BuildBytes(ctx context.Context, data []byte, opts Options) (*graph.Graph, bool, error) {
	key := r.Keyer.GraphKey(cache.Hash(data), opts.GraphKeyOpts())

	if !opts.Refresh {
		if g, ok := r.cached(ctx, key); ok {
			return g, true, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx, opts.Input, opts.Format)
	start := time.Now()
	g, err := r.assemble(data, opts)
	if err != nil {
		hooks.OnBuildComplete(ctx, opts.Input, 0, 0, time.Since(start), err)
		return nil, false, err
	}
	hooks.OnBuildComplete(ctx, opts.Input, len(g.Nodes), len(g.Links), time.Since(start), nil)

	if encoded, err := graph.Marshal(g, graph.WriteOptions{}); err == nil {
		if err := r.Cache.Set(ctx, key, encoded, opts.TTL); err != nil {
			r.Logger.Warn("cache write failed", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cacheKeyType, len(encoded))
		}
	}
	return g, false, nil
}

// cached returns the graph stored under key, if any is readable.
func (r *Runner) cached(ctx context.Context, key string) (*graph.Graph, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if hit {
		g, err := graph.Unmarshal(data)
		if err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return g, true
		}
		r.Logger.Debug("discarding unreadable cache entry", "error", err)
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)
	return nil, false
}

// assemble decodes data and builds its graph.
func (r *Runner) assemble(data []byte, opts Options) (*graph.Graph, error) {
	src, err := record.New(opts.Format, record.BytesOpener(data))
	if err != nil {
		return nil, err
	}
	b, err := graph.Build(src.Records(), opts.GraphOptions())
	if err != nil {
		return nil, err
	}
	if n := b.Skipped(); n > 0 {
		r.Logger.Debug("skipped records", "count", n)
	}
	return b.Graph(), nil
}

// Write serializes g to opts.Output, replacing any existing file atomically.
func (r *Runner) Write(g *graph.Graph, opts Options) error {
	if err := apperr.ValidatePath(opts.Output); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "output")
	}
	start := time.Now()
	err := graph.WriteFile(opts.Output, g, opts.WriteOptions())
	observability.Pipeline().OnWriteComplete(context.Background(), opts.Output, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %s: %w", opts.Output, err)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	f, err := record.FileOpener(path)()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read %s", path)
	}
	return data, nil
}
