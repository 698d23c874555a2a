package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf16"
	"unicode/utf8"
)

// WriteOptions configures serialization.
type WriteOptions struct {
	// EscapeASCII writes every non-ASCII character as a \uXXXX escape.
	EscapeASCII bool `json:"escape_ascii"`
}

// =============================================================================
// Serialization API
// =============================================================================

// Marshal encodes g as two-space indented JSON.
func Marshal(g *Graph, opts WriteOptions) ([]byte, error) {
	out := Graph{Nodes: g.Nodes, Links: g.Links}
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Links == nil {
		out.Links = []Link{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if opts.EscapeASCII {
		return escapeNonASCII(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// Write encodes g to w.
func Write(w io.Writer, g *Graph, opts WriteOptions) error {
	data, err := Marshal(g, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes g and replaces the file at path. The graph is encoded
// before the file system is touched and written through a temporary file in
// the same directory, so path is either fully written or left unchanged.
func WriteFile(path string, g *Graph, opts WriteOptions) error {
	data, err := Marshal(g, opts)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".taggraph-*.json")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Unmarshal decodes and validates a serialized graph.
func Unmarshal(data []byte) (*Graph, error) {
	return Read(bytes.NewReader(data))
}

// Read decodes and validates a serialized graph from r.
func Read(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ReadFile reads a serialized graph from path.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// =============================================================================
// Internal Helpers
// =============================================================================

// escapeNonASCII rewrites non-ASCII runes of encoded JSON as \uXXXX escapes,
// using surrogate pairs above the BMP. Non-ASCII bytes can only occur inside
// string literals, so the rewrite keeps the document valid.
func escapeNonASCII(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for len(data) > 0 {
		if data[0] < utf8.RuneSelf {
			out.WriteByte(data[0])
			data = data[1:]
			continue
		}
		r, size := utf8.DecodeRune(data)
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			fmt.Fprintf(&out, `\u%04x\u%04x`, r1, r2)
		} else {
			fmt.Fprintf(&out, `\u%04x`, r)
		}
		data = data[size:]
	}
	return out.Bytes()
}
