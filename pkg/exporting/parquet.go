package exporting

import (
	"KernelProfiler/pkg/utils"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"
)

const ParquetBatchSize = 1000

func init() {
	Register(&ParquetFormat{})
}

type ParquetFormat struct{}

func (f *ParquetFormat) Name() string         { return "parquet" }
func (f *ParquetFormat) Extensions() []string { return []string{".parquet"} }
func (f *ParquetFormat) Reader() Reader       { return &ParquetReader{} }
func (f *ParquetFormat) Writer() Writer       { return &ParquetWriter{} }

type ParquetReader struct {
	file  *os.File
	pfile *parquet.File
}

func (r *ParquetReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	r.file, r.pfile = file, pf
	return nil
}

func (r *ParquetReader) Read() ([]Record, error) {
	if r.pfile == nil {
		return nil, errors.New("reader not initialized")
	}

	fields := r.pfile.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}

	records := make([]Record, 0, r.pfile.NumRows())
	buf := make([]parquet.Row, 128)
	for _, rg := range r.pfile.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				records = append(records, rowToRecord(row, names))
			}
			if errors.Is(err, io.EOF) || (err == nil && n == 0) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read rows: %w", err)
			}
		}
		rows.Close()
	}
	return records, nil
}

func rowToRecord(row parquet.Row, names []string) Record {
	record := make(Record, len(names))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || v.IsNull() {
			continue
		}
		record[names[col]] = parquetValue(v)
	}
	return record
}

func parquetValue(v parquet.Value) interface{} {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

func (r *ParquetReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindUint
	kindFloat
	kindBool
)

func kindOf(v interface{}) columnKind {
	switch v.(type) {
	case int, int8, int16, int32, int64:
		return kindInt
	case uint, uint8, uint16, uint32, uint64:
		return kindUint
	case float32, float64:
		return kindFloat
	case bool:
		return kindBool
	default:
		return kindString
	}
}

func (k columnKind) node() parquet.Node {
	switch k {
	case kindInt:
		return parquet.Optional(parquet.Int(64))
	case kindUint:
		return parquet.Optional(parquet.Uint(64))
	case kindFloat:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case kindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	default:
		return parquet.Optional(parquet.String())
	}
}

func (k columnKind) value(v interface{}) parquet.Value {
	switch k {
	case kindInt:
		if i, ok := v.(int64); ok {
			return parquet.Int64Value(i)
		}
		return parquet.Int64Value(int64(utils.ToFloat64(v)))
	case kindUint:
		return parquet.Int64Value(int64(utils.ToUint64(v)))
	case kindFloat:
		return parquet.DoubleValue(utils.ToFloat64(v))
	case kindBool:
		b, _ := v.(bool)
		return parquet.BooleanValue(b)
	default:
		return parquet.ByteArrayValue([]byte(utils.ToString(v)))
	}
}

// ParquetWriter derives a flat optional schema from the first record.
// Nested values are written as strings; flatten records first.
type ParquetWriter struct {
	path    string
	file    *os.File
	writer  *parquet.Writer
	columns []string
	kinds   []columnKind
	buffer  []parquet.Row
	mu      sync.Mutex
}

func (w *ParquetWriter) Init(path string) error {
	w.path = path
	w.buffer = make([]parquet.Row, 0, ParquetBatchSize)
	return nil
}

func (w *ParquetWriter) initSchema(record Record) error {
	group := make(parquet.Group, len(record))
	for name, v := range record {
		group[name] = kindOf(v).node()
	}
	schema := parquet.NewSchema("kernel", group)

	// Column indexes follow the schema's field order, not the record's.
	fields := schema.Fields()
	w.columns = make([]string, len(fields))
	w.kinds = make([]columnKind, len(fields))
	for i, f := range fields {
		w.columns[i] = f.Name()
		w.kinds[i] = kindOf(record[f.Name()])
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w.file = file
	w.writer = parquet.NewWriter(file, schema, parquet.Compression(&parquet.Snappy))
	return nil
}

func (w *ParquetWriter) recordToRow(record Record) parquet.Row {
	row := make(parquet.Row, len(w.columns))
	for i, name := range w.columns {
		v, ok := record[name]
		if !ok || v == nil {
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}
		row[i] = w.kinds[i].value(v).Level(0, 1, i)
	}
	return row
}

func (w *ParquetWriter) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		if err := w.initSchema(record); err != nil {
			return err
		}
	}
	w.buffer = append(w.buffer, w.recordToRow(record))
	if len(w.buffer) >= ParquetBatchSize {
		return w.flushBuffer()
	}
	return nil
}

func (w *ParquetWriter) WriteBatch(records []Record) error {
	for i, r := range records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func (w *ParquetWriter) flushBuffer() error {
	if len(w.buffer) == 0 || w.writer == nil {
		return nil
	}
	if _, err := w.writer.WriteRows(w.buffer); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

func (w *ParquetWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushBuffer(); err != nil {
		return err
	}
	if w.writer != nil {
		return w.writer.Flush()
	}
	return nil
}

func (w *ParquetWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.writer != nil {
		if err := w.writer.Close(); err != nil {
			return err
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *ParquetWriter) Path() string { return w.path }
