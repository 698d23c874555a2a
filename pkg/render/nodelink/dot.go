package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/isia-imav/taggraph/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds year and creator to item labels.
	Detailed bool
	// MinTagValue hides tags carried by fewer items, with their links.
	MinTagValue int
}

// Fill colors cycled across item categories in first-seen order.
var palette = []string{
	"#fde2e4", "#e2ece9", "#dfe7fd", "#fff1e6", "#e9edc9", "#f0efeb", "#cddafd", "#fad2e1",
}

const (
	baseFontSize = 14
	maxFontSize  = 40
)

// ToDOT converts a tag graph to Graphviz DOT format.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"Helvetica\", fontsize=14];\n")
	buf.WriteString("  edge [color=\"#9a9a9a\", arrowsize=0.6];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	colors := map[string]string{}
	hidden := map[string]bool{}
	for _, n := range g.Nodes {
		if n.IsTag() {
			if n.Value < opts.MinTagValue {
				hidden[n.ID] = true
				continue
			}
			fmt.Fprintf(&buf, "  %s [%s];\n", dotQuote(n.ID), strings.Join(tagAttrs(n), ", "))
			continue
		}
		fill, ok := colors[n.Group]
		if !ok {
			fill = palette[len(colors)%len(palette)]
			colors[n.Group] = fill
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", dotQuote(n.ID), strings.Join(itemAttrs(n, fill, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	for _, l := range g.Links {
		if hidden[l.Target] {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", dotQuote(l.Source), dotQuote(l.Target))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func itemAttrs(n graph.Node, fill string, detailed bool) []string {
	label := dotEscaper.Replace(n.ID)
	if detailed && n.Item != nil {
		var extra []string
		if y := n.Item.Year.String(); y != "" {
			extra = append(extra, y)
		}
		if d := n.Item.Director.String(); d != "" {
			extra = append(extra, d)
		}
		if len(extra) > 0 {
			// DOT line break, kept out of the escaped text.
			label += `\n` + dotEscaper.Replace(strings.Join(extra, ", "))
		}
	}
	attrs := []string{
		`label="` + label + `"`,
		"shape=box",
		"style=\"rounded,filled\"",
		"fillcolor=" + dotQuote(fill),
	}
	if n.Group != "" {
		attrs = append(attrs, "tooltip="+dotQuote(n.Group))
	}
	return attrs
}

func tagAttrs(n graph.Node) []string {
	return []string{
		"label=" + dotQuote(n.ID),
		"shape=ellipse",
		"style=filled",
		"fillcolor=\"#333333\"",
		"fontcolor=white",
		fmt.Sprintf("fontsize=%d", tagFontSize(n.Value)),
		fmt.Sprintf("tooltip=\"%d\"", n.Value),
	}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// dotQuote returns s as a DOT quoted string. Only quotes and backslashes are
// escaped; tabs, control characters and non-ASCII text pass through as is.
func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func tagFontSize(value int) int {
	size := baseFontSize + 2*(value-1)
	return max(baseFontSize, min(size, maxFontSize))
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing starts at the
// origin and scales with its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
