package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/isia-imav/taggraph/pkg/graph"
)

// inspectSummary is the --json form of inspect's report.
type inspectSummary struct {
	Items   int             `json:"items"`
	Tags    int             `json:"tags"`
	Links   int             `json:"links"`
	Groups  map[string]int  `json:"groups"`
	TopTags []inspectTagRow `json:"top_tags"`
}

type inspectTagRow struct {
	Tag   string `json:"tag"`
	Items int    `json:"items"`
}

// inspectCommand prints statistics about a built graph.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		top    int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <graph.json>",
		Short: "Show item, tag and link statistics of a tag graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.ReadFile(args[0])
			if err != nil {
				return err
			}
			summary := summarize(g, top)

			if asJSON {
				enc := json.NewEncoder(c.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			c.printSummary(args[0], summary)
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of most used tags to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func summarize(g *graph.Graph, top int) inspectSummary {
	st := g.Stats()
	s := inspectSummary{
		Items:   st.Items,
		Tags:    st.Tags,
		Links:   st.Links,
		Groups:  map[string]int{},
		TopTags: []inspectTagRow{},
	}
	for _, n := range g.Nodes {
		if n.IsItem() {
			s.Groups[n.Group]++
		}
	}
	for _, n := range g.TopTags(top) {
		s.TopTags = append(s.TopTags, inspectTagRow{Tag: n.ID, Items: n.Value})
	}
	return s
}

func (c *CLI) printSummary(path string, s inspectSummary) {
	fmt.Fprintln(c.Out, StyleTitle.Render(path))
	printKeyValue(c.Out, "items", StyleNumber.Render(strconv.Itoa(s.Items)))
	printKeyValue(c.Out, "tags", StyleNumber.Render(strconv.Itoa(s.Tags)))
	printKeyValue(c.Out, "links", StyleNumber.Render(strconv.Itoa(s.Links)))
	if s.Items == 0 {
		printWarning(c.Out, "graph has no items")
		return
	}

	printInfo(c.Out, "categories")
	for _, group := range slices.Sorted(maps.Keys(s.Groups)) {
		printDetail(c.Out, "%-12s %d", displayGroup(group), s.Groups[group])
	}
	if len(s.TopTags) > 0 {
		printInfo(c.Out, "top tags")
		for _, row := range s.TopTags {
			printDetail(c.Out, "%-24s %d", row.Tag, row.Items)
		}
	}
}

func displayGroup(g string) string {
	if g == "" {
		return "(none)"
	}
	return g
}
