// Package cli implements the taggraph command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/isia-imav/taggraph/pkg/buildinfo"
	"github.com/isia-imav/taggraph/pkg/cache"
	"github.com/isia-imav/taggraph/pkg/config"
	"github.com/isia-imav/taggraph/pkg/pipeline"
)

const (
	// appName is the application name used for directories and display.
	appName = "taggraph"

	// redisKeyPrefix namespaces entries in a shared Redis.
	redisKeyPrefix = "taggraph:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Out receives command results. Logs go to the logger's writer.
	Out io.Writer
	// Getenv reads configuration variables. Defaults to os.LookupEnv.
	Getenv config.LookupFunc
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Getenv: os.LookupEnv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "taggraph turns a media catalog into a tag graph",
		Long:         `taggraph reads a catalog of films, series and books (CSV or JSON) and writes a {nodes, links} graph connecting every item to its thematic tags, ready for force-directed visualization.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.restructureCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(cfg, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(store, nil, c.Logger), nil
}

// newCache picks Redis when a URL is configured, the file cache otherwise.
func (c *CLI) newCache(cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache || !cfg.Cache.Enabled {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.RedisURL != "" {
		c.Logger.Debug("using redis cache")
		return cache.NewRedisCache(cfg.Cache.RedisURL, redisKeyPrefix)
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			c.Logger.Debug("cache disabled", "error", err)
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/taggraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// pipelineOptions maps a loaded config onto pipeline options.
func pipelineOptions(cfg config.Config) (pipeline.Options, error) {
	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return pipeline.Options{}, err
	}
	if ttl == 0 {
		ttl = time.Duration(-1)
	}
	return pipeline.Options{
		Input:          cfg.Input,
		Output:         cfg.Output,
		Format:         cfg.Format,
		NormalizeTags:  cfg.NormalizeTags,
		SkipDuplicates: cfg.SkipDuplicates,
		EscapeASCII:    cfg.EscapeASCII,
		TTL:            ttl,
	}, nil
}
