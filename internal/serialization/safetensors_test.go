package serialization

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

func rawFloat32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice[float32](data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return x.Raw()
}

func TestWriteReadSafeTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")

	mask := tensor.Scalar[int64](4, cpu.New()).Raw()
	state := map[string]*tensor.RawTensor{
		"0.weight": rawFloat32(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2),
		"0.bias":   rawFloat32(t, []float32{0.5, -0.5, 1}, 3),
		"0.mask":   mask,
		"1.weight": rawFloat32(t, nil, 0, 3),
	}

	require.NoError(t, WriteSafeTensors(path, state, map[string]string{"run_id": "abc"}))

	header, err := ReadHeader(path)
	require.NoError(t, err)
	require.Len(t, header.Tensors, 4)
	assert.Equal(t, "0.bias", header.Tensors[0].Name)
	assert.Equal(t, int64(0), header.Tensors[0].Offset)
	assert.Equal(t, "abc", header.Metadata["run_id"])
	assert.NotEmpty(t, header.Metadata[ChecksumKey])

	tensors, metadata, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", metadata["run_id"])

	w := tensors["0.weight"]
	require.NotNil(t, w)
	assert.Equal(t, tensor.Shape{3, 2}, w.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.AsFloat32())

	assert.Equal(t, []int64{4}, tensors["0.mask"].AsInt64())
	assert.Empty(t, tensors["0.mask"].Shape())
	assert.Equal(t, tensor.Shape{0, 3}, tensors["1.weight"].Shape())
}

func TestWriteSafeTensors_HeaderAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned.safetensors")
	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.RawTensor{
		"w": rawFloat32(t, []float32{1}, 1),
	}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	size := binary.LittleEndian.Uint64(data[:8])
	assert.Zero(t, size%8)
}

func TestWriteSafeTensors_InvalidName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	err := WriteSafeTensors(path, map[string]*tensor.RawTensor{
		"../w": rawFloat32(t, []float32{1}, 1),
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}

func TestReadSafeTensors_ChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.safetensors")
	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.RawTensor{
		"w": rawFloat32(t, []float32{1, 2}, 2),
	}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, _, err = ReadSafeTensors(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadSafeTensors_StateDict(t *testing.T) {
	type Backend = *cpu.CPUBackend
	backend := cpu.New()
	model := nn.NewSequential[Backend](
		nn.NewLinear(2, 3, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(3, 1, backend),
	)

	path := filepath.Join(t.TempDir(), "mlp.safetensors")
	state := nn.StateDict[Backend](model)
	require.NoError(t, WriteSafeTensors(path, state, nil))

	tensors, _, err := ReadSafeTensors(path)
	require.NoError(t, err)
	require.Len(t, tensors, len(state))
	for name, want := range state {
		got := tensors[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Shape(), got.Shape(), name)
		assert.Equal(t, want.AsFloat32(), got.AsFloat32(), name)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	meta := func(name string, offset, size int64, shape ...int) TensorMeta {
		return TensorMeta{Name: name, DType: tensor.Float32, Shape: shape, Offset: offset, Size: size}
	}

	tests := []struct {
		name    string
		tensors []TensorMeta
		size    int64
		wantErr error
	}{
		{"valid", []TensorMeta{meta("a", 0, 8, 2), meta("b", 8, 4, 1)}, 12, nil},
		{"overlap", []TensorMeta{meta("a", 0, 8, 2), meta("b", 4, 8, 2)}, 12, ErrOffsetOverlap},
		{"out of bounds", []TensorMeta{meta("a", 8, 8, 2)}, 12, ErrOutOfBounds},
		{"negative", []TensorMeta{meta("a", -4, 4, 1)}, 12, ErrNegativeOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("size mismatch", func(t *testing.T) {
		err := ValidateTensorOffsets([]TensorMeta{meta("a", 0, 4, 2)}, 12)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "size_mismatch", verr.Type)
	})
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("features.0.weight"))
	assert.ErrorIs(t, ValidateTensorName(""), ErrInvalidTensorName)
	assert.ErrorIs(t, ValidateTensorName("a/b"), ErrInvalidTensorName)
	assert.ErrorIs(t, ValidateTensorName("a..b"), ErrInvalidTensorName)
}
