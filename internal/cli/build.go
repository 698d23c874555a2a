package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isia-imav/taggraph/pkg/config"
	"github.com/isia-imav/taggraph/pkg/pipeline"
)

// buildFlags holds the flags shared by convert and restructure.
type buildFlags struct {
	configPath     string
	input          string
	output         string
	format         string
	normalizeTags  bool
	skipDuplicates bool
	ascii          bool
	noCache        bool
	refresh        bool
}

func (f *buildFlags) register(cmd *cobra.Command, withPaths bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "TOML config file (default $TAGGRAPH_CONFIG)")
	if withPaths {
		fs.StringVarP(&f.input, "input", "i", "", "catalog file to read")
		fs.StringVarP(&f.output, "output", "o", "", "graph file to write")
	}
	fs.StringVar(&f.format, "format", "", "input format: csv or json (convert defaults to csv, restructure to the file extension)")
	fs.BoolVar(&f.normalizeTags, "normalize-tags", false, "lowercase tags so case variants merge")
	fs.BoolVar(&f.skipDuplicates, "skip-duplicates", false, "ignore rows whose title was already seen")
	fs.BoolVar(&f.ascii, "ascii", false, "escape non-ASCII characters as \\uXXXX")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the build cache")
	fs.BoolVar(&f.refresh, "refresh", false, "rebuild even when a cached graph exists")
}

// loadConfig layers defaults, config file, environment and the flags the
// user explicitly set, in increasing precedence.
func (c *CLI) loadConfig(cmd *cobra.Command, base config.Config, f *buildFlags) (config.Config, error) {
	cfg, err := config.Load(base, f.configPath, c.Getenv)
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("input") {
		cfg.Input = f.input
	}
	if fs.Changed("output") {
		cfg.Output = f.output
	}
	if fs.Changed("format") {
		cfg.Format = f.format
	}
	if fs.Changed("normalize-tags") {
		cfg.NormalizeTags = f.normalizeTags
	}
	if fs.Changed("skip-duplicates") {
		cfg.SkipDuplicates = f.skipDuplicates
	}
	if fs.Changed("ascii") {
		cfg.EscapeASCII = f.ascii
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// convertCommand builds a graph from a CSV catalog given on the command line.
func (c *CLI) convertCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "convert <input_csv> <output_json>",
		Short: "Convert a catalog table into a tag graph",
		Long: `Convert reads a catalog table and writes its tag graph.

Tags are lowercased by default so "Drama" and "drama" become one node, and
rows repeating a title add their tags to the existing item.`,
		Example: `  taggraph convert collezione.csv data/collezione.json
  taggraph convert --normalize-tags=false collezione.csv graph.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: %s convert <input_csv> <output_json>", appName)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, config.ConvertDefault(), &flags)
			if err != nil {
				return err
			}
			cfg.Input, cfg.Output = args[0], args[1]

			res, err := c.runBuild(cmd.Context(), cfg, &flags)
			if err != nil {
				return err
			}
			printSuccess(c.Out, "Converted %s", cfg.Input)
			printStats(c.Out, res.Stats.Items, res.Stats.Tags, res.Stats.Links, res.CacheHit)
			printFile(c.Out, cfg.Output)
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}

// restructureCommand builds a graph from the configured JSON catalog.
func (c *CLI) restructureCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "restructure",
		Short: "Restructure the configured flat catalog into a tag graph",
		Long: `Restructure reads the flat catalog at the configured input path and
writes its tag graph to the configured output path.

Paths come from --input/--output, TAGGRAPH_INPUT/TAGGRAPH_OUTPUT or the config
file. Tags are only trimmed, and repeated titles are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, config.Default(), &flags)
			if err != nil {
				return err
			}

			if _, err := c.runBuild(cmd.Context(), cfg, &flags); err != nil {
				return err
			}
			printSuccess(c.Out, "Successfully restructured data and saved to %s", cfg.Output)
			return nil
		},
	}

	flags.register(cmd, true)
	return cmd
}

// runBuild runs the pipeline for cfg and logs its duration.
func (c *CLI) runBuild(ctx context.Context, cfg config.Config, flags *buildFlags) (*pipeline.Result, error) {
	opts, err := pipelineOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.Refresh = flags.refresh

	runner, err := c.newRunner(cfg, flags.noCache)
	if err != nil {
		return nil, err
	}
	defer runner.Cache.Close()

	st := startStep(c.Logger, "built graph")
	res, err := runner.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	st.done("input", cfg.Input)
	return res, nil
}
