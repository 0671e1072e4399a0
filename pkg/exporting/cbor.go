package exporting

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

func init() {
	Register(&CBORFormat{})
}

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decode mode: %v", err))
	}
	return dm
}()

// CBORFormat stores records as a CBOR sequence: one map per record,
// concatenated.
type CBORFormat struct{}

func (f *CBORFormat) Name() string         { return "cbor" }
func (f *CBORFormat) Extensions() []string { return []string{".cbor"} }
func (f *CBORFormat) Reader() Reader       { return &CBORReader{} }
func (f *CBORFormat) Writer() Writer       { return &CBORWriter{} }

type CBORReader struct {
	file *os.File
	dec  *cbor.Decoder
}

func (r *CBORReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file
	r.dec = cborDecMode.NewDecoder(bufio.NewReaderSize(file, DefaultBufferSize))
	return nil
}

func (r *CBORReader) Read() ([]Record, error) {
	var records []Record
	for {
		var record Record
		err := r.dec.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, record)
	}
}

func (r *CBORReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

type CBORWriter struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *cbor.Encoder
	mu   sync.Mutex
}

func (w *CBORWriter) Init(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w.path = path
	w.file = file
	w.buf = bufio.NewWriterSize(file, DefaultBufferSize)
	w.enc = cbor.NewEncoder(w.buf)
	return nil
}

func (w *CBORWriter) Write(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

func (w *CBORWriter) WriteBatch(records []Record) error {
	for i, r := range records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}

func (w *CBORWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf != nil {
		return w.buf.Flush()
	}
	return nil
}

func (w *CBORWriter) Close() error {
	err := w.Flush()
	if w.file != nil {
		if cErr := w.file.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

func (w *CBORWriter) Path() string { return w.path }
