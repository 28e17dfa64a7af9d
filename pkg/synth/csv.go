package synth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mchmarny/fragility/pkg/feature"
)

// LabelColumn is the name of the target column.
const LabelColumn = "fragility_score"

// ErrSchemaMismatch is returned when a dataset header does not follow the
// feature order.
var ErrSchemaMismatch = errors.New("dataset header does not match feature schema")

// Header returns the dataset columns: the features in vector order, then the label.
func Header() []string {
	h := make([]string, 0, feature.Count+1)
	h = append(h, feature.Names[:]...)
	return append(h, LabelColumn)
}

// WriteCSV writes rows with a header row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	rec := make([]string, feature.Count+1)
	for i, r := range rows {
		for j, v := range r.Features {
			rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rec[feature.Count] = strconv.FormatFloat(r.FragilityScore, 'f', -1, 64)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// ReadCSV reads a dataset written by WriteCSV. The header must list the
// feature columns in vector order followed by the label.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty dataset", ErrSchemaMismatch)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(head) != feature.Count+1 {
		return nil, fmt.Errorf("%w: %d columns, want %d", ErrSchemaMismatch, len(head), feature.Count+1)
	}
	for i, col := range Header() {
		if head[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, head[i], col)
		}
	}

	cr.FieldsPerRecord = feature.Count + 1
	rows := make([]Row, 0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		var row Row
		for j := 0; j < feature.Count; j++ {
			if row.Features[j], err = strconv.ParseFloat(rec[j], 64); err != nil {
				return nil, fmt.Errorf("parsing %s on line %d: %w", feature.Names[j], line, err)
			}
		}
		if row.FragilityScore, err = strconv.ParseFloat(rec[feature.Count], 64); err != nil {
			return nil, fmt.Errorf("parsing %s on line %d: %w", LabelColumn, line, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
