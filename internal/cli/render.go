package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/graph"
	"github.com/isia-imav/taggraph/pkg/render/nodelink"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string // output file path; "-" writes to stdout
	format      string // "dot" or "svg"
	detailed    bool   // add year and creator to item labels
	minTagValue int    // hide tags carried by fewer items
}

// renderCommand creates the render command for drawing a built graph.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{format: formatSVG}

	cmd := &cobra.Command{
		Use:   "render <graph.json>",
		Short: "Render a tag graph as a node-link diagram",
		Example: `  taggraph render data/collezione.json
  taggraph render --format dot -o - data/collezione.json | dot -Tpng > graph.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: input name with format extension, - for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot or svg")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show year and creator in item labels")
	cmd.Flags().IntVar(&opts.minTagValue, "min-tag-value", 0, "hide tags carried by fewer items")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts renderOpts) error {
	if opts.format != formatDOT && opts.format != formatSVG {
		return apperr.New(apperr.ErrCodeInvalidFormat, "unsupported render format %q (use dot or svg)", opts.format)
	}

	g, err := graph.ReadFile(input)
	if err != nil {
		return err
	}

	st := startStep(c.Logger, "rendered graph")
	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed, MinTagValue: opts.minTagValue})
	data := []byte(dot)
	if opts.format == formatSVG {
		if data, err = nodelink.RenderSVG(cmd.Context(), dot); err != nil {
			return fmt.Errorf("render %s: %w", input, err)
		}
	}
	st.done("format", opts.format)

	out := opts.output
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + "." + opts.format
	}
	if out == "-" {
		_, err := c.Out.Write(data)
		return err
	}
	if err := apperr.ValidatePath(out); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	printSuccess(c.Out, "Rendered %s", input)
	printFile(c.Out, out)
	return nil
}
