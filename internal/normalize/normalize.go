// Package normalize turns heterogeneous CSV input into typed records.
//
// A Reader is given a Shape describing the columns it cares about. The first
// row of the source is treated as the canonical header: each cell is stripped
// of byte-order-mark artifacts and surrounding whitespace, then shape columns
// are resolved to positional indexes by header name. A column whose name does
// not appear in the header falls back to its declared position, so sources
// that rename columns but keep their order still parse.
package normalize

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"energy-platform/pkg/logging"
)

// Kind describes how a column's cell values are coerced
type Kind int

const (
	// TextKind copies the cell as-is after trimming
	TextKind Kind = iota
	// FloatKind parses the cell leniently as a float; failures become NaN
	FloatKind
)

// Column is one field of the target record shape
type Column struct {
	Name string
	Kind Kind
}

// Shape describes the target record layout for a CSV source.
// Required names the identity column; rows where it is empty after
// trimming are skipped, never emitted.
type Shape struct {
	Columns  []Column
	Required string
}

// Counts reports what a Reader has seen so far
type Counts struct {
	RowsRead       int
	RowsSkipped    int
	CoerceFailures int
}

// Record is one normalized CSV row
type Record struct {
	text map[string]string
	nums map[string]float64
}

// Text returns the trimmed value of a text column, or "" if absent
func (r Record) Text(name string) string {
	return r.text[name]
}

// Float returns the value of a float column. Missing or unparseable
// values are NaN.
func (r Record) Float(name string) float64 {
	if v, ok := r.nums[name]; ok {
		return v
	}
	return math.NaN()
}

// Reader lazily produces normalized records from a CSV stream.
// It is finite and not restartable; a new Reader re-reads from the
// start of its source.
type Reader struct {
	csv        *csv.Reader
	shape      Shape
	logger     *logging.StructuredLogger
	index      []int
	headerRead bool
	counts     Counts
}

// NewReader creates a Reader over r for the given shape
func NewReader(r io.Reader, shape Shape, logger *logging.StructuredLogger) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return &Reader{
		csv:    cr,
		shape:  shape,
		logger: logger,
	}
}

// Next returns the next valid record. Rows failing required-field
// validation are skipped transparently. It returns io.EOF at end of
// stream; any other error is a failure of the underlying stream, not
// a row-level soft failure.
func (r *Reader) Next() (Record, error) {
	ctx := context.Background()

	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return Record{}, err
		}
	}

	for {
		row, err := r.csv.Read()
		if err != nil {
			return Record{}, err
		}
		r.counts.RowsRead++

		rec := r.coerce(ctx, row)

		if r.shape.Required != "" && rec.Text(r.shape.Required) == "" {
			r.counts.RowsSkipped++
			r.logger.Warn(ctx, "[CSV_ROW_SKIPPED] Row missing required field", logging.Fields{
				"required_field": r.shape.Required,
				"row_number":     r.counts.RowsRead,
			})
			continue
		}

		return rec, nil
	}
}

// Counts returns the running row statistics for this Reader
func (r *Reader) Counts() Counts {
	return r.counts
}

// readHeader consumes the header row and resolves each shape column
// to a positional index
func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		return err
	}

	byName := make(map[string]int, len(header))
	for i, cell := range header {
		byName[cleanHeaderCell(cell)] = i
	}

	r.index = make([]int, len(r.shape.Columns))
	for i, col := range r.shape.Columns {
		if pos, ok := byName[col.Name]; ok {
			r.index[i] = pos
		} else {
			// Header does not carry this name; trust declared order
			r.index[i] = i
		}
	}

	r.headerRead = true
	return nil
}

// coerce maps a raw row onto the shape, trimming text and parsing
// floats. Cells beyond the end of a ragged row read as empty.
func (r *Reader) coerce(ctx context.Context, row []string) Record {
	rec := Record{
		text: make(map[string]string, len(r.shape.Columns)),
		nums: make(map[string]float64),
	}

	for i, col := range r.shape.Columns {
		var cell string
		if pos := r.index[i]; pos < len(row) {
			cell = strings.TrimSpace(row[pos])
		}

		switch col.Kind {
		case FloatKind:
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				v = math.NaN()
				if cell != "" {
					r.counts.CoerceFailures++
					r.logger.Debug(ctx, "[CSV_COERCE_FAILED] Non-numeric value in float column", logging.Fields{
						"column":     col.Name,
						"value":      cell,
						"row_number": r.counts.RowsRead,
					})
				}
			}
			rec.nums[col.Name] = v
		default:
			rec.text[col.Name] = cell
		}
	}

	return rec
}

// cleanHeaderCell strips byte-order-mark artifacts and surrounding
// whitespace from a header name
func cleanHeaderCell(cell string) string {
	cell = strings.TrimPrefix(cell, "\uFEFF")
	return strings.TrimSpace(cell)
}
