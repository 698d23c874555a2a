// Package cache stores assembled graphs keyed by input content and options.
//
// Backends:
//   - [FileCache]: per-user directory cache for the CLI
//   - [RedisCache]: shared cache for the serve command and CI runners
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer]. The default keyer hashes the raw input bytes
// together with every option that influences assembly, so a changed table or
// a different tag policy never hits a stale entry.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a built graph stays cached.
const DefaultTTL = 24 * time.Hour

// Cache is a byte-oriented key/value store with expiration.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// GraphKeyOpts lists the options that change an assembled graph.
type GraphKeyOpts struct {
	Format         string `json:"format"`
	NormalizeTags  bool   `json:"normalize_tags"`
	SkipDuplicates bool   `json:"skip_duplicates"`
}

// Keyer builds cache keys.
type Keyer interface {
	GraphKey(inputHash string, opts GraphKeyOpts) string
}

// DefaultKeyer builds "graph:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphKey implements [Keyer].
func (DefaultKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return hashKey("graph", inputHash, opts)
}
