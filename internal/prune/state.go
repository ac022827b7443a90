package prune

import (
	"fmt"
	"sort"
	"strings"
)

// TensorState describes one configured tensor.
type TensorState struct {
	TensorFQN       string
	Kind            Kind
	Prepared        bool // parametrized and holding a mask
	OriginalOutputs int
	PrunedOutputs   []int
	MaskStorage     MaskStorage
	Shape           []int // current effective shape
}

// Sparsity returns the pruned fraction of output channels.
func (s TensorState) Sparsity() float64 {
	if s.OriginalOutputs == 0 {
		return 0
	}
	return float64(len(s.PrunedOutputs)) / float64(s.OriginalOutputs)
}

// State reports every configured tensor, in group order.
func (p *Pruner[B]) State() []TensorState {
	var out []TensorState
	for _, g := range p.groups {
		for i, m := range g.Modules {
			name := g.TensorNames[i]
			st := TensorState{TensorFQN: g.TensorFQNs[i], Kind: KindOf(m)}

			base := m.ModuleBase()
			if t := base.Tensor(name); t != nil {
				st.Shape = t.Shape().Clone()
			}
			_, storage, hasMask := findMask(base)
			st.MaskStorage = storage
			if param, err := maskParametrizationOf(m, name); err == nil {
				st.Prepared = hasMask
				st.OriginalOutputs = param.OriginalOutputs()
				st.PrunedOutputs = param.PrunedOutputs().Slice()
			} else if len(st.Shape) > 0 {
				st.OriginalOutputs = st.Shape[0]
			}
			out = append(out, st)
		}
	}
	return out
}

// String summarizes the groups and their options.
func (p *Pruner[B]) String() string {
	var b strings.Builder
	b.WriteString("Pruner (")
	for i, g := range p.groups {
		fmt.Fprintf(&b, "\n\tGroup %d\n", i)
		for j, m := range g.Modules {
			fmt.Fprintf(&b, "\t    module: %s %s\n", KindOf(m), displayFQN(g.ModuleFQNs[j]))
		}
		fmt.Fprintf(&b, "\t    tensor_fqn: %s\n", strings.Join(g.TensorFQNs, ", "))

		keys := make([]string, 0, len(g.Options))
		for k := range g.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\t    %s: %v\n", k, g.Options[k])
		}
	}
	b.WriteString(")")
	return b.String()
}

func displayFQN(fqn string) string {
	if fqn == "" {
		return "<root>"
	}
	return fqn
}
