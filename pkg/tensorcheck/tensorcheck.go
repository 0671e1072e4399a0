// Package tensorcheck validates the shape, device and element type of
// tensors handed to kernels and renderers. Failures are returned as
// *ValidationError values whose Kind is one of the sentinel errors.
package tensorcheck

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidShape = errors.New("invalid shape")
	ErrWrongDevice  = errors.New("wrong device")
	ErrWrongDType   = errors.New("wrong dtype")
)

const (
	DeviceCUDA   = "cuda"
	DeviceCPU    = "cpu"
	DTypeFloat32 = "float32"
)

// ValidationError reports which tensor failed and why.
type ValidationError struct {
	Kind   error
	Tensor string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Tensor == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tensor, e.Kind, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, tensor, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Tensor: tensor, Reason: fmt.Sprintf(format, args...)}
}

// Tensor describes a tensor without owning its storage layout.
type Tensor struct {
	Name   string    `json:"name,omitempty"`
	Device string    `json:"device,omitempty"`
	DType  string    `json:"dtype,omitempty"`
	Shape  []int     `json:"shape"`
	Data   []float64 `json:"data"`
}

// ValidateAttentionDims checks that every attention dimension is positive.
func ValidateAttentionDims(batchSize, numHeads, seqLen, headDim int64) error {
	for _, d := range []struct {
		name string
		v    int64
	}{
		{"batch_size", batchSize},
		{"num_heads", numHeads},
		{"seq_len", seqLen},
		{"head_dim", headDim},
	} {
		if d.v <= 0 {
			return invalid(ErrInvalidShape, "", "%s must be positive, got %d", d.name, d.v)
		}
	}
	return nil
}

// EnsureDevice fails unless t resides on device. Device names compare
// case-insensitively and ignore an ordinal suffix ("cuda:1" is "cuda").
func EnsureDevice(t Tensor, device string) error {
	got, _, _ := strings.Cut(strings.ToLower(t.Device), ":")
	if got != strings.ToLower(device) {
		return invalid(ErrWrongDevice, t.Name, "must reside on %s device, found %q", device, t.Device)
	}
	return nil
}

// EnsureCUDA is EnsureDevice(t, DeviceCUDA).
func EnsureCUDA(t Tensor) error {
	return EnsureDevice(t, DeviceCUDA)
}

func EnsureDType(t Tensor, dtype string) error {
	if !strings.EqualFold(t.DType, dtype) {
		return invalid(ErrWrongDType, t.Name, "expected %s, found %q", dtype, t.DType)
	}
	return nil
}

// ValidateShape checks that shape has only positive dimensions and
// matches the number of elements in t.
func ValidateShape(t Tensor) error {
	if len(t.Shape) == 0 {
		return invalid(ErrInvalidShape, t.Name, "empty shape")
	}
	n := 1
	for i, d := range t.Shape {
		if d <= 0 {
			return invalid(ErrInvalidShape, t.Name, "dimension %d is %d", i, d)
		}
		n *= d
	}
	if n != len(t.Data) {
		return invalid(ErrInvalidShape, t.Name, "shape %v holds %d elements, data has %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// ValidateMatrix checks that m is non-empty and rectangular.
func ValidateMatrix(m [][]float64) error {
	if len(m) == 0 || len(m[0]) == 0 {
		return invalid(ErrInvalidShape, "", "empty matrix")
	}
	width := len(m[0])
	for i, row := range m {
		if len(row) != width {
			return invalid(ErrInvalidShape, "", "row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	return nil
}

// Matrix returns t as rows. A 1-D tensor is returned as a single row.
func (t Tensor) Matrix() ([][]float64, error) {
	if err := ValidateShape(t); err != nil {
		return nil, err
	}
	switch len(t.Shape) {
	case 1:
		return [][]float64{t.Data}, nil
	case 2:
		rows, cols := t.Shape[0], t.Shape[1]
		m := make([][]float64, rows)
		for i := range m {
			m[i] = t.Data[i*cols : (i+1)*cols]
		}
		return m, nil
	default:
		return nil, invalid(ErrInvalidShape, t.Name, "expected 1-D or 2-D, got %d-D", len(t.Shape))
	}
}

// FromMatrix builds a 2-D float32 tensor from m.
func FromMatrix(name string, m [][]float64) (Tensor, error) {
	if err := ValidateMatrix(m); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Tensor = name
		}
		return Tensor{}, err
	}
	t := Tensor{Name: name, DType: DTypeFloat32, Shape: []int{len(m), len(m[0])}}
	t.Data = make([]float64, 0, len(m)*len(m[0]))
	for _, row := range m {
		t.Data = append(t.Data, row...)
	}
	return t, nil
}
