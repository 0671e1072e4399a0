package tensorcheck

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode reads a tensor from JSON. It accepts a Tensor object, a bare
// 2-D array or a bare 1-D array.
func Decode(name string, data []byte) (Tensor, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Tensor{}, invalid(ErrInvalidShape, name, "no data")
	}

	if data[0] == '{' {
		var t Tensor
		if err := json.Unmarshal(data, &t); err != nil {
			return Tensor{}, fmt.Errorf("failed to decode tensor: %w", err)
		}
		if t.Name == "" {
			t.Name = name
		}
		if t.Shape == nil {
			t.Shape = []int{len(t.Data)}
		}
		return t, ValidateShape(t)
	}

	var matrix [][]float64
	if err := json.Unmarshal(data, &matrix); err == nil {
		return FromMatrix(name, matrix)
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return Tensor{}, fmt.Errorf("failed to decode tensor: %w", err)
	}
	if len(vector) == 0 {
		return Tensor{}, invalid(ErrInvalidShape, name, "empty vector")
	}
	return Tensor{Name: name, DType: DTypeFloat32, Shape: []int{len(vector)}, Data: vector}, nil
}
