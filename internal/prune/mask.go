package prune

import (
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// MaskStorage tells which namespace of a module holds its mask.
type MaskStorage uint8

const (
	MaskInBuffer MaskStorage = iota
	MaskInParameter
)

// String returns "buffer" or "parameter".
func (s MaskStorage) String() string {
	if s == MaskInParameter {
		return "parameter"
	}
	return "buffer"
}

// findMask looks the mask up in the buffer namespace, then the parameter one.
func findMask[B tensor.Backend](base *nn.Base[B]) (*tensor.RawTensor, MaskStorage, bool) {
	if mask := base.Buffer(maskName); mask != nil {
		return mask, MaskInBuffer, true
	}
	if p := base.Parameter(maskName); p != nil {
		return p.Tensor().Raw(), MaskInParameter, true
	}
	return nil, MaskInBuffer, false
}

func (s MaskStorage) delete(base interface {
	DeleteBuffer(string) bool
	DeleteParameter(string) bool
}) {
	if s == MaskInParameter {
		base.DeleteParameter(maskName)
		return
	}
	base.DeleteBuffer(maskName)
}
