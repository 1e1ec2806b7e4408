package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := NewCSVWriter(buf, data.Headers, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range data.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVWriter streams rows to a delimited file with a fixed header order and
// reports progress to an operator stream.
type CSVWriter struct {
	headers  []string
	writer   *csv.Writer
	progress io.Writer
	prefix   string

	total   int
	batch   int
	written int
}

// NewCSVWriter writes the header row immediately. progress may be nil.
func NewCSVWriter(out io.Writer, headers []string, progress io.Writer) (*CSVWriter, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	if progress == nil {
		progress = io.Discard
	}
	w := &CSVWriter{
		headers:  headers,
		writer:   csv.NewWriter(out),
		progress: progress,
		batch:    1,
	}
	if err := w.writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	return w, nil
}

// WithPrefix tags every progress line, e.g. with a course id.
func (w *CSVWriter) WithPrefix(prefix string) *CSVWriter {
	w.prefix = prefix
	return w
}

// Start announces the number of records about to be written and sets the
// progress interval to a tenth of the total.
func (w *CSVWriter) Start(total int, noun string) {
	w.total = total
	w.batch = BatchSize(total)
	w.report(fmt.Sprintf("Writing %d %s", total, noun))
}

// Write appends one row; columns missing from row are written empty.
func (w *CSVWriter) Write(row map[string]string) error {
	if w.written > 0 && w.written%w.batch == 0 {
		w.report(fmt.Sprintf("Completed: %d of %d", w.written+1, w.total))
	}
	record := make([]string, len(w.headers))
	for i, header := range w.headers {
		record[i] = row[header]
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.written++
	return nil
}

// Written returns the number of data rows written so far.
func (w *CSVWriter) Written() int {
	return w.written
}

// Flush drains buffered rows to the underlying writer.
func (w *CSVWriter) Flush() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Done flushes and emits the final progress line.
func (w *CSVWriter) Done() error {
	if err := w.Flush(); err != nil {
		return err
	}
	w.report("Done!")
	return nil
}

func (w *CSVWriter) report(msg string) {
	if w.prefix != "" {
		msg = w.prefix + ": " + msg
	}
	fmt.Fprintln(w.progress, msg)
}

// BatchSize is the progress interval for total records: a tenth, at least one.
func BatchSize(total int) int {
	if b := total / 10; b > 0 {
		return b
	}
	return 1
}
