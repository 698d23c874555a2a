package record

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"slices"
	"strings"

	apperr "github.com/isia-imav/taggraph/pkg/errors"
)

// CSVSource reads records from a CSV table with a header row.
type CSVSource struct {
	open Opener
}

// NewCSV creates a CSV source.
func NewCSV(open Opener) *CSVSource {
	return &CSVSource{open: open}
}

// Format implements [Source].
func (s *CSVSource) Format() string { return FormatCSV }

// Records implements [Source]. An empty input yields no records. A header
// missing one of [RequiredColumns] yields a single INVALID_INPUT error.
func (s *CSVSource) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rc, err := s.open()
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer rc.Close()

		r := csv.NewReader(rc)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true

		header, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(Record{}, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read csv header"))
			return
		}
		header = cleanHeader(header)
		if err := requireColumns(header); err != nil {
			yield(Record{}, err)
			return
		}

		for {
			row, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read csv row"))
				return
			}
			if !yield(rowRecord(header, row), nil) {
				return
			}
		}
	}
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func requireColumns(header []string) error {
	for _, col := range RequiredColumns {
		if !slices.Contains(header, col) {
			return apperr.New(apperr.ErrCodeInvalidInput, "missing column %q in csv header", col)
		}
	}
	return nil
}

// rowRecord maps a row onto the header. Short rows fill with "", extra cells
// beyond the header are dropped.
func rowRecord(header, row []string) Record {
	rec := Record{Fields: make(map[string]string, len(header))}
	for i, name := range header {
		if i < len(row) {
			rec.Fields[name] = row[i]
		} else {
			rec.Fields[name] = ""
		}
	}
	return rec
}
