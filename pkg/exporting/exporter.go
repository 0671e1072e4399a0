package exporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Exporter writes kernel records to one file. Records are flattened
// before they reach the format writer.
type Exporter struct {
	path   string
	format Format
	writer Writer
	base   Record
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithBaseRecord merges base into every record written. Record fields win
// on conflict.
func WithBaseRecord(base Record) ExporterOption {
	return func(e *Exporter) {
		e.base = FlattenRecord(base)
	}
}

// NewExporter creates the output directory and opens a writer for path.
// The path's extension picks the format; format is the fallback.
func NewExporter(path, format string, opts ...ExporterOption) (*Exporter, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := Resolve(path, format)
	if err != nil {
		return nil, err
	}

	writer := f.Writer()
	if err := writer.Init(path); err != nil {
		return nil, fmt.Errorf("failed to initialize writer: %w", err)
	}

	e := &Exporter{
		path:   path,
		format: f,
		writer: writer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Exporter) Path() string { return e.path }

// Format returns the resolved format name.
func (e *Exporter) Format() string { return e.format.Name() }

func (e *Exporter) prepare(record Record) Record {
	flat := FlattenRecord(record)
	if len(e.base) == 0 {
		return flat
	}
	out := make(Record, len(e.base)+len(flat))
	for k, v := range e.base {
		out[k] = v
	}
	for k, v := range flat {
		out[k] = v
	}
	return out
}

func (e *Exporter) Write(record Record) error {
	return e.writer.Write(e.prepare(record))
}

func (e *Exporter) WriteBatch(records []Record) error {
	for i, r := range records {
		if err := e.writer.Write(e.prepare(r)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func (e *Exporter) Flush() error {
	return e.writer.Flush()
}

func (e *Exporter) Close() error {
	return e.writer.Close()
}

// StaticPath returns the sidecar path WriteStatic uses: the output path
// with its format extension replaced by "_static.json".
func (e *Exporter) StaticPath() string {
	return filepath.Join(filepath.Dir(e.path), TrimExtension(e.path)+"_static.json")
}

// WriteStatic writes the run's static record next to the output file.
func (e *Exporter) WriteStatic(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal static record: %w", err)
	}
	return os.WriteFile(e.StaticPath(), data, 0644)
}
