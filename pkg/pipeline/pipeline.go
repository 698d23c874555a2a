// Package pipeline turns a catalog file into a written tag graph.
//
// The pipeline has two stages:
//
//  1. Build: read the input, decode records and assemble the graph
//  2. Write: serialize the graph and replace the output file atomically
//
// Build results are cached by input content and assembly options, so
// rebuilding an unchanged catalog is a cache read.
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Run(ctx, pipeline.Options{
//	    Input:         "collection.csv",
//	    Output:        "graph.json",
//	    NormalizeTags: true,
//	})
package pipeline

import (
	"time"

	"github.com/isia-imav/taggraph/pkg/cache"
	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/graph"
	"github.com/isia-imav/taggraph/pkg/record"
)

// Options configures a pipeline run.
type Options struct {
	Input  string
	Output string
	// Format is "csv" or "json". Empty means detect from the input extension.
	Format         string
	NormalizeTags  bool
	SkipDuplicates bool
	EscapeASCII    bool
	// Refresh bypasses cache reads; the fresh result is still stored.
	Refresh bool
	// TTL is how long a built graph stays cached. Zero uses cache.DefaultTTL;
	// a negative TTL never expires.
	TTL time.Duration
}

// Result holds the outcome of [Runner.Run].
type Result struct {
	Graph    *graph.Graph
	Stats    Stats
	CacheHit bool
}

// Stats holds sizes and timings of a run.
type Stats struct {
	graph.Stats
	BuildTime time.Duration
	WriteTime time.Duration
}

// ValidateAndSetDefaults checks the options and fills in derived values.
func (o *Options) ValidateAndSetDefaults() error {
	if err := apperr.ValidatePath(o.Input); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "input")
	}
	if o.Format == "" {
		format, err := record.DetectFormat(o.Input)
		if err != nil {
			return err
		}
		o.Format = format
	}
	if o.Format != record.FormatCSV && o.Format != record.FormatJSON {
		return apperr.New(apperr.ErrCodeInvalidFormat, "unsupported format %q (use csv or json)", o.Format)
	}
	if o.TTL == 0 {
		o.TTL = cache.DefaultTTL
	}
	return nil
}

// GraphOptions returns the assembly options.
func (o Options) GraphOptions() graph.Options {
	return graph.Options{NormalizeTags: o.NormalizeTags, SkipDuplicates: o.SkipDuplicates}
}

// GraphKeyOpts returns the options that identify a cached graph.
func (o Options) GraphKeyOpts() cache.GraphKeyOpts {
	return cache.GraphKeyOpts{
		Format:         o.Format,
		NormalizeTags:  o.NormalizeTags,
		SkipDuplicates: o.SkipDuplicates,
	}
}

// WriteOptions returns the serialization options.
func (o Options) WriteOptions() graph.WriteOptions {
	return graph.WriteOptions{EscapeASCII: o.EscapeASCII}
}
