package prune

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

type Backend = *cpu.CPUBackend

// recordingLogger keeps warnings for assertions.
type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Warn(msg string, keyvals ...any) {
	l.warnings = append(l.warnings, fmt.Sprint(append([]any{msg}, keyvals...)...))
}

// pruneIndices returns a policy that marks indices pruned and counts calls.
func pruneIndices(calls *int, indices ...int) PolicyFunc[Backend] {
	return func(module nn.Module[Backend], tensorName string, _ *Group[Backend]) error {
		*calls++
		pruned, err := PrunedOutputsOf(module, tensorName)
		if err != nil {
			return err
		}
		pruned.Add(indices...)
		return nil
	}
}

func input(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, cpu.New())
	require.NoError(t, err)
	return x
}

// knownLinear returns Linear(2, 4) with
//
//	W = [[1 0] [0 1] [1 1] [2 2]], b = [1 2 3 4]
//
// so that x = [1 2] gives [2 4 6 10].
func knownLinear() *nn.Linear[Backend] {
	l := nn.NewLinear(2, 4, cpu.New())
	copy(l.Weight().Tensor().Data(), []float32{1, 0, 0, 1, 1, 1, 2, 2})
	copy(l.Bias().Tensor().Data(), []float32{1, 2, 3, 4})
	return l
}

// convBN returns Sequential(Conv2D(1, 4, 3x3, pad 1), BatchNorm2D(4)).
func convBN() (*nn.Sequential[Backend], *nn.Conv2D[Backend], *nn.BatchNorm2D[Backend]) {
	backend := cpu.New()
	conv := nn.NewConv2D(1, 4, 3, 3, 1, 1, true, backend)
	bn := nn.NewBatchNorm2D(4, backend)
	return nn.NewSequential[Backend](conv, bn), conv, bn
}

// custom is a module kind the pruner does not know.
type custom struct {
	nn.Base[Backend]
}

func newCustom() *custom {
	c := &custom{}
	c.RegisterParameter("weight", nn.NewParameter("weight", tensor.Zeros[float32](tensor.Shape{3, 2}, cpu.New())))
	return c
}

func (c *custom) Forward(x *tensor.Tensor[float32, Backend]) *tensor.Tensor[float32, Backend] {
	return x
}

func (c *custom) Parameters() []*nn.Parameter[Backend] {
	return nil
}

// wrappedLinear embeds a Linear; it is not a Linear for discovery.
type wrappedLinear struct {
	*nn.Linear[Backend]
}

func scalarMask(n int64) *tensor.RawTensor {
	return tensor.Scalar[int64](n, cpu.New()).Raw()
}
