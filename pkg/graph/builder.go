package graph

import (
	"iter"
	"slices"

	"github.com/isia-imav/taggraph/pkg/record"
)

// Options configures assembly.
type Options struct {
	// NormalizeTags lowercases and trims tags so that "Drama" and " drama "
	// collapse into one node.
	NormalizeTags bool `json:"normalize_tags"`
	// SkipDuplicates drops records whose title was already seen. When false,
	// a repeated title adds no node but still contributes tags and links.
	SkipDuplicates bool `json:"skip_duplicates"`
}

// Builder accumulates records into a graph. It is not safe for concurrent use.
type Builder struct {
	opts Options

	items   []Node
	itemIDs map[string]struct{}
	links   []Link

	// tag -> occurrence count, plus first-seen order for deterministic output
	counts   map[string]int
	tagOrder []string

	skipped int
}

// NewBuilder creates an empty builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:    opts,
		itemIDs: make(map[string]struct{}),
		counts:  make(map[string]int),
	}
}

// Add folds one record into the graph. It reports false when the record was
// skipped (empty title, or a repeated title with SkipDuplicates).
func (b *Builder) Add(rec record.Record) bool {
	id := rec.Title()
	if id == "" {
		b.skipped++
		return false
	}
	_, seen := b.itemIDs[id]
	if seen && b.opts.SkipDuplicates {
		b.skipped++
		return false
	}
	if !seen {
		b.itemIDs[id] = struct{}{}
		b.items = append(b.items, itemNode(id, rec))
	}

	for _, tag := range Tags(rec, b.opts.NormalizeTags) {
		if _, ok := b.counts[tag]; !ok {
			b.tagOrder = append(b.tagOrder, tag)
		}
		b.counts[tag]++
		b.links = append(b.links, Link{Source: id, Target: tag})
	}
	return true
}

// Skipped returns the number of records dropped by Add.
func (b *Builder) Skipped() int { return b.skipped }

// Graph materializes the current state: item nodes in first-seen order,
// followed by tag nodes in first-seen order. Tags whose text matches an item
// id are not emitted as separate nodes. The builder can keep accepting
// records afterwards.
func (b *Builder) Graph() *Graph {
	nodes := make([]Node, 0, len(b.items)+len(b.tagOrder))
	nodes = append(nodes, b.items...)
	for _, tag := range b.tagOrder {
		if _, isItem := b.itemIDs[tag]; isItem {
			continue
		}
		nodes = append(nodes, Node{ID: tag, Type: TypeTag, Group: GroupTag, Value: b.counts[tag]})
	}
	links := slices.Clone(b.links)
	if links == nil {
		links = []Link{}
	}
	return &Graph{Nodes: nodes, Links: links}
}

// Build feeds every record of seq to a new Builder and returns it, so the
// caller can read both the graph and the skipped count. It stops at the first
// read error.
func Build(seq iter.Seq2[record.Record, error], opts Options) (*Builder, error) {
	b := NewBuilder(opts)
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		b.Add(rec)
	}
	return b, nil
}

func itemNode(id string, rec record.Record) Node {
	return Node{
		ID:    id,
		Type:  TypeItem,
		Group: rec.Get(record.FieldCategory),
		Value: 1,
		Item: &ItemDetails{
			RecommendedBy: field(rec, record.FieldRecommendedBy),
			Description:   field(rec, record.FieldDescription),
			Director:      field(rec, record.FieldDirector),
			Year:          field(rec, record.FieldYear),
			Rating:        field(rec, record.FieldRating),
			WikiLink:      field(rec, record.FieldWikiLink),
			StreamingLink: field(rec, record.FieldStreamingLink),
		},
	}
}

func field(rec record.Record, name string) Value {
	return Value{Text: rec.Get(name), Literal: rec.Literal(name)}
}
