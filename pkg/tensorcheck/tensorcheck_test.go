package tensorcheck

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAttentionDims(t *testing.T) {
	tests := []struct {
		name                 string
		batch, heads, seq, d int64
		wantErr              string
	}{
		{"valid", 2, 8, 128, 64, ""},
		{"zero batch", 0, 8, 128, 64, "batch_size"},
		{"negative heads", 2, -1, 128, 64, "num_heads"},
		{"zero seq", 2, 8, 0, 64, "seq_len"},
		{"zero head dim", 2, 8, 128, 0, "head_dim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttentionDims(tt.batch, tt.heads, tt.seq, tt.d)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateAttentionDims = %v; want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("ValidateAttentionDims = %v; want ErrInvalidShape", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDevice(t *testing.T) {
	q := Tensor{Name: "query", Device: "cuda:1"}
	if err := EnsureCUDA(q); err != nil {
		t.Errorf("EnsureCUDA(cuda:1) = %v", err)
	}

	q.Device = "cpu"
	err := EnsureCUDA(q)
	if !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("EnsureCUDA(cpu) = %v; want ErrWrongDevice", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Tensor != "query" {
		t.Errorf("Expected ValidationError for query, got %#v", err)
	}
}

func TestEnsureDType(t *testing.T) {
	if err := EnsureDType(Tensor{DType: "Float32"}, DTypeFloat32); err != nil {
		t.Errorf("EnsureDType = %v", err)
	}
	if err := EnsureDType(Tensor{DType: "float16"}, DTypeFloat32); !errors.Is(err, ErrWrongDType) {
		t.Errorf("EnsureDType(float16) = %v; want ErrWrongDType", err)
	}
}

func TestValidateMatrix(t *testing.T) {
	if err := ValidateMatrix([][]float64{{1, 2}, {3, 4}}); err != nil {
		t.Errorf("ValidateMatrix(rectangular) = %v", err)
	}
	for _, m := range [][][]float64{nil, {{}}, {{1, 2}, {3}}} {
		if err := ValidateMatrix(m); !errors.Is(err, ErrInvalidShape) {
			t.Errorf("ValidateMatrix(%v) = %v; want ErrInvalidShape", m, err)
		}
	}
}

func TestTensorMatrix(t *testing.T) {
	tn := Tensor{Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}}
	m, err := tn.Matrix()
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m[1][2] != 6 {
		t.Errorf("Matrix = %v", m)
	}

	bad := Tensor{Shape: []int{2, 2}, Data: []float64{1, 2, 3}}
	if _, err := bad.Matrix(); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Matrix(mismatched) = %v; want ErrInvalidShape", err)
	}
	cube := Tensor{Shape: []int{1, 1, 2}, Data: []float64{1, 2}}
	if _, err := cube.Matrix(); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Matrix(3-D) = %v; want ErrInvalidShape", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantShape []int
		wantErr   error
	}{
		{"matrix", `[[0.1, 0.2], [0.3, 0.4]]`, []int{2, 2}, nil},
		{"vector", `[0.1, 0.3, 0.5]`, []int{3}, nil},
		{"object", `{"name":"attn","device":"cuda","shape":[1,2],"data":[1,2]}`, []int{1, 2}, nil},
		{"ragged", `[[1, 2], [3]]`, nil, ErrInvalidShape},
		{"empty", `  `, nil, ErrInvalidShape},
		{"empty vector", `[]`, nil, ErrInvalidShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode("input", []byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode = %v", err)
			}
			if len(got.Shape) != len(tt.wantShape) {
				t.Fatalf("Shape = %v; want %v", got.Shape, tt.wantShape)
			}
			for i := range tt.wantShape {
				if got.Shape[i] != tt.wantShape[i] {
					t.Errorf("Shape = %v; want %v", got.Shape, tt.wantShape)
				}
			}
		})
	}

	if _, err := Decode("input", []byte(`{not json`)); err == nil {
		t.Error("Decode(invalid JSON) succeeded")
	}
}
