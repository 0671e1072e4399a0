package exporting

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	DefaultBufferSize = 64 * 1024
	MaxLineSize       = 10 * 1024 * 1024
)

func init() {
	Register(&JSONLFormat{})
	Register(&JSONLFormat{compressed: true})
}

// JSONLFormat is JSON Lines, optionally zstd-compressed.
type JSONLFormat struct {
	compressed bool
}

func (f *JSONLFormat) Name() string {
	if f.compressed {
		return "jsonl.zst"
	}
	return "jsonl"
}

func (f *JSONLFormat) Extensions() []string {
	if f.compressed {
		return []string{".jsonl.zst", ".zst"}
	}
	return []string{".jsonl", ".json"}
}

func (f *JSONLFormat) Reader() Reader { return &JSONLReader{compressed: f.compressed} }
func (f *JSONLFormat) Writer() Writer { return &JSONLWriter{compressed: f.compressed} }

type JSONLReader struct {
	compressed bool
	file       *os.File
	zr         *zstd.Decoder
	scanner    *bufio.Scanner
}

func (r *JSONLReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file

	var src io.Reader = file
	if r.compressed {
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to open zstd stream: %w", err)
		}
		r.zr = zr
		src = zr
	}
	r.scanner = bufio.NewScanner(src)
	r.scanner.Buffer(make([]byte, DefaultBufferSize), MaxLineSize)
	return nil
}

// Read returns every well-formed line. Malformed lines are skipped.
func (r *JSONLReader) Read() ([]Record, error) {
	var records []Record
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := r.scanner.Err(); err != nil {
		return records, fmt.Errorf("scanner error: %w", err)
	}
	return records, nil
}

func (r *JSONLReader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

type JSONLWriter struct {
	compressed bool
	path       string
	file       *os.File
	zw         *zstd.Encoder
	writer     *bufio.Writer
	mu         sync.Mutex
}

func (w *JSONLWriter) Init(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w.path = path
	w.file = file

	var dst io.Writer = file
	if w.compressed {
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to create zstd stream: %w", err)
		}
		w.zw = zw
		dst = zw
	}
	w.writer = bufio.NewWriterSize(dst, DefaultBufferSize)
	return nil
}

func (w *JSONLWriter) Write(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return w.writer.WriteByte('\n')
}

func (w *JSONLWriter) WriteBatch(records []Record) error {
	for i, r := range records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

// Flush pushes buffered lines through to the file. For compressed output
// the zstd frame is only completed on Close.
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.zw != nil {
		return w.zw.Flush()
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			return fmt.Errorf("failed to close zstd stream: %w", err)
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *JSONLWriter) Path() string { return w.path }
