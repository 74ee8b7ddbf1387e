package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Skufu/heartrisk/internal/domain"
)

// CSVHeader is the fixed export header.
var CSVHeader = []string{
	"id", "created_at",
	"age", "sex", "cp", "trtbps", "chol", "fbs", "restecg", "thalachh", "exng", "ca",
	"predicted_label", "predicted_probability", "note",
}

// CSVWriter streams submissions as CSV. Notes are quoted as needed so embedded commas,
// quotes and newlines survive.
type CSVWriter struct {
	w    *csv.Writer
	rows int
}

// NewCSVWriter writes the header to w.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{w: cw}, nil
}

// Write appends one record.
func (c *CSVWriter) Write(s Submission) error {
	rec := make([]string, 0, len(CSVHeader))
	rec = append(rec, strconv.FormatInt(s.ID, 10), s.CreatedAt.UTC().Format(time.RFC3339Nano))
	for _, name := range domain.FieldNames() {
		v, _ := s.FeatureVector.Get(name)
		rec = append(rec, strconv.Itoa(v))
	}
	note := ""
	if s.Note != nil {
		note = *s.Note
	}
	rec = append(rec,
		strconv.Itoa(s.Label),
		strconv.FormatFloat(s.Probability, 'f', -1, 64),
		note,
	)
	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("write csv row %d: %w", s.ID, err)
	}
	c.rows++
	return nil
}

// Rows is the number of records written so far.
func (c *CSVWriter) Rows() int { return c.rows }

// Flush flushes buffered output and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// ReadCSV parses an export back into submissions. An empty note reads back as nil.
func ReadCSV(r io.Reader) ([]Submission, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range CSVHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected csv column %d: %q, want %q", i, header[i], h)
		}
	}

	var out []Submission
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", len(out)+1, err)
		}
		out = append(out, s)
	}
}

func parseRecord(rec []string) (Submission, error) {
	var s Submission
	var err error

	if s.ID, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return s, fmt.Errorf("id: %w", err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, rec[1]); err != nil {
		return s, fmt.Errorf("created_at: %w", err)
	}

	names := domain.FieldNames()
	vals := make(map[string]int, len(names))
	for i, name := range names {
		v, err := strconv.Atoi(rec[2+i])
		if err != nil {
			return s, fmt.Errorf("%s: %w", name, err)
		}
		vals[name] = v
	}
	if s.FeatureVector, err = domain.FeatureVectorFromMap(vals); err != nil {
		return s, err
	}

	tail := rec[2+len(names):]
	if s.Label, err = strconv.Atoi(tail[0]); err != nil {
		return s, fmt.Errorf("predicted_label: %w", err)
	}
	if s.Probability, err = strconv.ParseFloat(tail[1], 64); err != nil {
		return s, fmt.Errorf("predicted_probability: %w", err)
	}
	if tail[2] != "" {
		note := tail[2]
		s.Note = &note
	}
	return s, nil
}
