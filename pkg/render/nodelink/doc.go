// Package nodelink renders tag graphs as node-link diagrams.
//
// Items are drawn as rounded boxes filled by category, tags as ellipses whose
// font grows with the number of items carrying them, and every link as an
// arrow from an item to one of its tags.
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source can also be saved and processed with external Graphviz
// tools. SVG rendering runs in-process via [github.com/goccy/go-graphviz].
package nodelink
