package prune

import (
	"strings"

	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Kind is the closed set of layer kinds the pruner distinguishes.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindLinear
	KindConv2D
	KindBatchNorm2D
)

// String returns the layer name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "Linear"
	case KindConv2D:
		return "Conv2D"
	case KindBatchNorm2D:
		return "BatchNorm2D"
	default:
		return "Unsupported"
	}
}

// KindOf resolves the kind of m from its exact concrete type. Types embedding a
// layer are KindUnsupported.
func KindOf[B tensor.Backend](m nn.Module[B]) Kind {
	switch m.(type) {
	case *nn.Linear[B]:
		return KindLinear
	case *nn.Conv2D[B]:
		return KindConv2D
	case *nn.BatchNorm2D[B]:
		return KindBatchNorm2D
	default:
		return KindUnsupported
	}
}

// KindSet is a set of kinds.
type KindSet uint8

// Kind sets used when none are configured.
var (
	DefaultSupported  = NewKindSet(KindLinear, KindConv2D, KindBatchNorm2D)
	DefaultNeedsZeros = NewKindSet(KindBatchNorm2D)
)

// NewKindSet builds a set from kinds. KindUnsupported is ignored.
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		if k != KindUnsupported {
			s |= 1 << k
		}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return k != KindUnsupported && s&(1<<k) != 0
}

// Kinds returns the members in declaration order.
func (s KindSet) Kinds() []Kind {
	var out []Kind
	for _, k := range []Kind{KindLinear, KindConv2D, KindBatchNorm2D} {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// String returns e.g. "{Linear, Conv2D}".
func (s KindSet) String() string {
	names := make([]string, 0, 3)
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// ParseKind maps a case-insensitive layer name to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "linear":
		return KindLinear, true
	case "conv2d":
		return KindConv2D, true
	case "batchnorm2d":
		return KindBatchNorm2D, true
	default:
		return KindUnsupported, false
	}
}
