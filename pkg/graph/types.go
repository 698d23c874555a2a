package graph

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Node types and the fixed tag group.
const (
	TypeItem = "item"
	TypeTag  = "tag"
	GroupTag = "tag"
)

var (
	// ErrDuplicateNodeID is returned by [Graph.Validate] when two nodes share an id.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownLinkEndpoint is returned by [Graph.Validate] when a link
	// references a node that does not exist.
	ErrUnknownLinkEndpoint = errors.New("unknown link endpoint")
)

// Graph is the node-link structure consumed by the visualization.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node is either an item (Item != nil) or a tag.
type Node struct {
	ID    string
	Type  string
	Group string
	Value int
	Item  *ItemDetails
}

// ItemDetails holds the catalog fields carried by item nodes.
type ItemDetails struct {
	RecommendedBy Value `json:"consigliati"`
	Description   Value `json:"descrizione"`
	Director      Value `json:"regista"`
	Year          Value `json:"anno"`
	Rating        Value `json:"valutazione"`
	WikiLink      Value `json:"wikiLink"`
	StreamingLink Value `json:"streamingLink"`
}

// Value is a catalog field. Text is its string form. Literal holds a JSON
// number or boolean read from the input and is written unquoted in place of
// Text, so "Anno": 1979 stays a number.
type Value struct {
	Text    string
	Literal json.RawMessage
}

// String returns the text form.
func (v Value) String() string { return v.Text }

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.Literal) > 0 {
		return v.Literal, nil
	}
	return marshalRaw(v.Text)
}

// UnmarshalJSON accepts a string, a number, a boolean or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Value{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Text: s}
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("catalog field must be a scalar, got %s", data[:1])
	default:
		*v = Value{Text: string(data), Literal: bytes.Clone(data)}
	}
	return nil
}

// Link is a directed edge from an item to a tag.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// IsItem reports whether n is an item node.
func (n Node) IsItem() bool { return n.Type == TypeItem }

// IsTag reports whether n is a tag node.
func (n Node) IsTag() bool { return n.Type == TypeTag }

type tagJSON struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Group string `json:"group"`
	Value int    `json:"value"`
}

type itemJSON struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Group string `json:"group"`
	Value int    `json:"value"`
	ItemDetails
}

// MarshalJSON writes item nodes with every catalog key, including empty
// ones, and tag nodes with exactly id, type, group and value.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Item != nil {
		return marshalRaw(itemJSON{ID: n.ID, Type: n.Type, Group: n.Group, Value: n.Value, ItemDetails: *n.Item})
	}
	return marshalRaw(tagJSON{ID: n.ID, Type: n.Type, Group: n.Group, Value: n.Value})
}

// marshalRaw encodes v without HTML escaping, so links keep their & and <.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON reads either node shape. Catalog keys are kept only for
// nodes of type "item".
func (n *Node) UnmarshalJSON(data []byte) error {
	var w itemJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Node{ID: w.ID, Type: w.Type, Group: w.Group, Value: w.Value}
	if w.Type == TypeItem {
		details := w.ItemDetails
		n.Item = &details
	}
	return nil
}

// Stats summarizes a graph.
type Stats struct {
	Items int
	Tags  int
	Links int
}

// Stats counts items, tags and links.
func (g *Graph) Stats() Stats {
	s := Stats{Links: len(g.Links)}
	for _, n := range g.Nodes {
		switch {
		case n.IsItem():
			s.Items++
		case n.IsTag():
			s.Tags++
		}
	}
	return s
}

// TopTags returns up to limit tag nodes ordered by value (descending), ties
// broken by id. A limit <= 0 returns every tag.
func (g *Graph) TopTags(limit int) []Node {
	var tags []Node
	for _, n := range g.Nodes {
		if n.IsTag() {
			tags = append(tags, n)
		}
	}
	slices.SortStableFunc(tags, func(a, b Node) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// Validate checks node id uniqueness and that every link connects existing
// nodes.
func (g *Graph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("node %q: %w", n.ID, ErrDuplicateNodeID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, l := range g.Links {
		if _, ok := ids[l.Source]; !ok {
			return fmt.Errorf("link %s→%s: source: %w", l.Source, l.Target, ErrUnknownLinkEndpoint)
		}
		if _, ok := ids[l.Target]; !ok {
			return fmt.Errorf("link %s→%s: target: %w", l.Source, l.Target, ErrUnknownLinkEndpoint)
		}
	}
	return nil
}
