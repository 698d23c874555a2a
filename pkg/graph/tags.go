package graph

import (
	"strings"

	"github.com/isia-imav/taggraph/pkg/record"
)

// NormalizeTag lowercases and trims a tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// SplitTags splits a comma-separated keyword field, trimming each segment
// and dropping empty ones.
func SplitTags(field string) []string {
	var out []string
	for _, part := range strings.Split(field, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Tags returns the distinct tags of rec in first-seen order: keyword
// segments first, then the record's extra tags.
//
// With normalize, every tag goes through [NormalizeTag]. Without it, keyword
// segments are trimmed and extra tags are used verbatim.
func Tags(rec record.Record, normalize bool) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if normalize {
			t = NormalizeTag(t)
		}
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range SplitTags(rec.Get(record.FieldTags)) {
		add(t)
	}
	for _, t := range rec.ExtraTags {
		add(t)
	}
	return out
}
