package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	apperr "github.com/isia-imav/taggraph/pkg/errors"
)

// Column names recognised in catalog tables.
const (
	FieldTitle         = "Titolo"
	FieldCategory      = "Tipologia"
	FieldRecommendedBy = "Consigliati"
	FieldDescription   = "Breve descrizione"
	FieldDirector      = "Regista/Creatore"
	FieldYear          = "Anno"
	FieldRating        = "Valutazione (1-5)"
	FieldWikiLink      = "Link Wikipedia"
	FieldStreamingLink = "Link Streaming"
	FieldTags          = "Tag tematici (keywords)"
	FieldExtraTags     = "nuovi_tag" // JSON only
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// RequiredColumns must be present in a CSV header.
var RequiredColumns = []string{
	FieldTitle,
	FieldCategory,
	FieldDescription,
	FieldYear,
	FieldTags,
}

// Record is one catalog row. Literals keeps the JSON text of number and
// boolean fields; their string form is in Fields as well.
type Record struct {
	Fields    map[string]string
	Literals  map[string]json.RawMessage
	ExtraTags []string
}

// Get returns the value of field, or "" when the field is absent.
func (r Record) Get(field string) string { return r.Fields[field] }

// Literal returns the JSON literal of a number or boolean field, or nil.
func (r Record) Literal(field string) json.RawMessage { return r.Literals[field] }

// Title returns the item title, the record's identity.
func (r Record) Title() string { return r.Fields[FieldTitle] }

// Source yields catalog records.
type Source interface {
	// Records returns a finite sequence of records. Iteration stops after
	// the first non-nil error.
	Records() iter.Seq2[Record, error]
	// Format reports the input format (FormatCSV or FormatJSON).
	Format() string
}

// Opener opens the raw input of a source. It is called once per iteration.
type Opener func() (io.ReadCloser, error)

// FileOpener opens the file at path. A missing file is reported with
// [apperr.ErrCodeFileNotFound].
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "input file not found at %s", path)
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "open %s", path)
		}
		return f, nil
	}
}

// BytesOpener serves data from memory.
func BytesOpener(data []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// DetectFormat infers the input format from the file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", apperr.New(apperr.ErrCodeInvalidFormat, "cannot infer input format from %q (use .csv or .json, or set the format explicitly)", path)
	}
}

// New returns the source for format.
func New(format string, open Opener) (Source, error) {
	switch format {
	case FormatCSV:
		return NewCSV(open), nil
	case FormatJSON:
		return NewJSON(open), nil
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "unsupported input format %q (available: csv, json)", format)
	}
}
