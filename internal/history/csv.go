package history

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var csvHeader = []string{"Question", "Answer"}

// WriteCSV writes exchanges in the order given under a Question,Answer header.
func WriteCSV(w io.Writer, exchanges []Exchange) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, ex := range exchanges {
		if err := cw.Write([]string{ex.Question, ex.Answer}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Exchange, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}

	out := make([]Exchange, 0, len(records)-1)
	for _, rec := range records[1:] {
		out = append(out, Exchange{Question: rec[0], Answer: rec[1]})
	}
	return out, nil
}

// ExportCSV renders the log in insertion order.
func (l *Log) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, l.Exchanges()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
