// Package graph assembles catalog records into a node-link graph and
// serializes it for force-directed and bubble-chart visualizations.
//
// # Model
//
// A [Graph] holds item nodes, tag nodes and item-to-tag links:
//
//	{
//	  "nodes": [
//	    {"id": "Film A", "type": "item", "group": "movie", "value": 1, "consigliati": "", ...},
//	    {"id": "drama", "type": "tag", "group": "tag", "value": 2}
//	  ],
//	  "links": [
//	    {"source": "Film A", "target": "drama"}
//	  ]
//	}
//
// Items and tags share one id namespace. An item is identified by its title
// and the first occurrence wins. A tag's value is the number of links
// pointing at it; a tag whose text equals an item title is not re-created.
//
// # Assembly
//
// [Builder] consumes records one at a time and materializes tag nodes only
// when [Builder.Graph] is called:
//
//	b := graph.NewBuilder(graph.Options{NormalizeTags: true})
//	for rec, err := range src.Records() {
//	    if err != nil {
//	        return err
//	    }
//	    b.Add(rec)
//	}
//	g := b.Graph()
//
// [Options] selects between the two tag policies: NormalizeTags lowercases
// and trims every tag (case-insensitive identity), otherwise tags are only
// trimmed. SkipDuplicates drops every record whose title was already seen,
// otherwise a repeated title still contributes its tags and links.
//
// # Serialization
//
// [Write] produces two-space indented JSON. Non-ASCII characters are kept
// literally unless [WriteOptions].EscapeASCII is set, in which case they are
// written as \uXXXX escapes. [WriteFile] encodes the whole graph in memory
// and replaces the target atomically, so a failed run never leaves partial
// output behind.
package graph
