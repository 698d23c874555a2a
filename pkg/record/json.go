package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"

	apperr "github.com/isia-imav/taggraph/pkg/errors"
)

// JSONSource reads records from a JSON array of flat objects.
type JSONSource struct {
	open Opener
}

// NewJSON creates a JSON source.
func NewJSON(open Opener) *JSONSource {
	return &JSONSource{open: open}
}

// Format implements [Source].
func (s *JSONSource) Format() string { return FormatJSON }

// Records implements [Source]. Elements are decoded one at a time.
func (s *JSONSource) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.open()
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer rc.Close()

		dec := json.NewDecoder(rc)
		dec.UseNumber()

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			yield(Record{}, apperr.New(apperr.ErrCodeInvalidInput, "empty json input"))
			return
		}
		if err != nil {
			yield(Record{}, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode json"))
			return
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			yield(Record{}, apperr.New(apperr.ErrCodeInvalidInput, "expected a json array of records"))
			return
		}

		for i := 0; dec.More(); i++ {
			var raw map[string]any
			if err := dec.Decode(&raw); err != nil {
				yield(Record{}, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode record %d", i))
				return
			}
			rec, err := objectRecord(raw)
			if err != nil {
				yield(Record{}, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "record %d", i))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func objectRecord(raw map[string]any) (Record, error) {
	rec := Record{Fields: make(map[string]string, len(raw))}
	for k, v := range raw {
		if k == FieldExtraTags {
			tags, err := stringList(v)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", FieldExtraTags, err)
			}
			rec.ExtraTags = tags
			continue
		}
		rec.Fields[k] = scalarText(v)
		if lit := scalarLiteral(v); lit != nil {
			if rec.Literals == nil {
				rec.Literals = make(map[string]json.RawMessage)
			}
			rec.Literals[k] = lit
		}
	}
	return rec, nil
}

// scalarLiteral returns the JSON text of a number or boolean, nil otherwise.
func scalarLiteral(v any) json.RawMessage {
	switch x := v.(type) {
	case json.Number:
		return json.RawMessage(x.String())
	case bool:
		return json.RawMessage(strconv.FormatBool(x))
	}
	return nil
}

// scalarText renders a decoded JSON value as field text. Numbers keep their
// literal form and null reads as "".
func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func stringList(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of strings, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected string tag, got %T", it)
		}
		out = append(out, s)
	}
	return out, nil
}
