// Package exporting persists kernel records in the registered file formats.
package exporting

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Record is one exported row: a kernel snapshot merged with run info.
type Record = map[string]interface{}

// Format is a named file format with its own reader and writer.
type Format interface {
	Name() string
	Extensions() []string
	Reader() Reader
	Writer() Writer
}

type Reader interface {
	Open(path string) error
	Read() ([]Record, error)
	Close() error
}

type Writer interface {
	Init(path string) error
	Write(record Record) error
	WriteBatch(records []Record) error
	Flush() error
	Close() error
	Path() string
}

var (
	registryMu  sync.RWMutex
	registry    = make(map[string]Format)
	extRegistry = make(map[string]Format)
)

// Register adds f under its name and every extension it claims.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(f.Name())] = f
	for _, ext := range f.Extensions() {
		extRegistry[strings.ToLower(ext)] = f
	}
}

func Get(name string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

func GetByExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := extRegistry[ext]
	return f, ok
}

// GetByPath matches compound extensions such as ".jsonl.zst" before the
// final one.
func GetByPath(path string) (Format, bool) {
	base := filepath.Base(path)
	for i := strings.IndexByte(base, '.'); i >= 0; {
		if f, ok := GetByExtension(base[i:]); ok {
			return f, true
		}
		next := strings.IndexByte(base[i+1:], '.')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

// Names lists the registered format names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetExtension returns the primary file extension for a format name.
func GetExtension(format string) string {
	if f, ok := Get(format); ok && len(f.Extensions()) > 0 {
		return f.Extensions()[0]
	}
	return ".jsonl"
}

// Resolve picks the format for path: the extension wins, then format.
func Resolve(path, format string) (Format, error) {
	if f, ok := GetByPath(path); ok {
		return f, nil
	}
	if f, ok := Get(format); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported format %q for file %s (known: %s)", format, path, strings.Join(Names(), ", "))
}

// LoadRecords reads every record of path using the format its extension
// names.
func LoadRecords(path string) ([]Record, error) {
	f, ok := GetByPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported format for file: %s", path)
	}

	reader := f.Reader()
	if err := reader.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	records, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// SaveRecords writes records to path in the format its extension names.
func SaveRecords(path string, records []Record) error {
	f, ok := GetByPath(path)
	if !ok {
		return fmt.Errorf("unsupported format for file: %s", path)
	}

	writer := f.Writer()
	if err := writer.Init(path); err != nil {
		return fmt.Errorf("failed to initialize writer: %w", err)
	}
	if err := writer.WriteBatch(records); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	return writer.Close()
}

// TrimExtension returns path's base name without its format extension,
// compound ones included.
func TrimExtension(path string) string {
	base := filepath.Base(path)
	if f, ok := GetByPath(path); ok {
		for _, ext := range f.Extensions() {
			if strings.HasSuffix(strings.ToLower(base), ext) {
				return base[:len(base)-len(ext)]
			}
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
