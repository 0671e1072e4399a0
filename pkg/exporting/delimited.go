package exporting

import (
	"KernelProfiler/pkg/utils"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

func init() {
	Register(&DelimitedFormat{name: "csv", ext: ".csv", delimiter: ','})
	Register(&DelimitedFormat{name: "tsv", ext: ".tsv", delimiter: '\t'})
}

// DelimitedFormat is CSV or TSV with a header row.
type DelimitedFormat struct {
	name      string
	ext       string
	delimiter rune
}

func (f *DelimitedFormat) Name() string         { return f.name }
func (f *DelimitedFormat) Extensions() []string { return []string{f.ext} }
func (f *DelimitedFormat) Reader() Reader       { return &DelimitedReader{delimiter: f.delimiter} }
func (f *DelimitedFormat) Writer() Writer       { return &DelimitedWriter{delimiter: f.delimiter} }

type DelimitedReader struct {
	file      *os.File
	reader    *csv.Reader
	header    []string
	delimiter rune
}

func (r *DelimitedReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file
	r.reader = csv.NewReader(file)
	r.reader.Comma = r.delimiter
	r.reader.FieldsPerRecord = -1
	r.reader.LazyQuotes = true

	header, err := r.reader.Read()
	if err != nil {
		_ = r.file.Close()
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.header = header
	return nil
}

func (r *DelimitedReader) Read() ([]Record, error) {
	var records []Record
	for {
		row, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}
		records = append(records, r.rowToRecord(row))
	}
}

// rowToRecord types each cell: integers, then floats, then booleans,
// then strings. Empty cells are omitted.
func (r *DelimitedReader) rowToRecord(row []string) Record {
	record := make(Record, len(row))
	for i, val := range row {
		if i >= len(r.header) || val == "" {
			continue
		}
		record[r.header[i]] = parseCell(val)
	}
	return record
}

func parseCell(val string) interface{} {
	if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(val, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	switch {
	case strings.EqualFold(val, "true"):
		return true
	case strings.EqualFold(val, "false"):
		return false
	}
	return val
}

func (r *DelimitedReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// DelimitedWriter fixes its columns from the first record. Later records
// with extra keys lose them; missing keys become empty cells.
type DelimitedWriter struct {
	path      string
	file      *os.File
	writer    *csv.Writer
	header    []string
	delimiter rune
	mu        sync.Mutex
}

func (w *DelimitedWriter) Init(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w.path = path
	w.file = file
	w.writer = csv.NewWriter(file)
	w.writer.Comma = w.delimiter
	return nil
}

func (w *DelimitedWriter) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeRow(record)
}

func (w *DelimitedWriter) WriteBatch(records []Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range records {
		if err := w.writeRow(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func (w *DelimitedWriter) writeRow(record Record) error {
	if w.header == nil {
		w.header = OrderedColumns(record)
		if err := w.writer.Write(w.header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, len(w.header))
	for i, key := range w.header {
		row[i] = utils.FormatValue(record[key])
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

func (w *DelimitedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return nil
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *DelimitedWriter) Close() error {
	err := w.Flush()
	if w.file != nil {
		if cErr := w.file.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

func (w *DelimitedWriter) Path() string { return w.path }
