package nn

import (
	"strings"

	"github.com/born-ml/prune/internal/tensor"
)

// JoinFQN joins a module path and a child or tensor name with a dot. The root
// module has the empty path, so JoinFQN("", "weight") is "weight".
func JoinFQN(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

// SplitFQN splits "a.b.weight" into the module path "a.b" and the last
// component "weight".
func SplitFQN(fqn string) (modulePath, name string) {
	i := strings.LastIndexByte(fqn, '.')
	if i < 0 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}

// NamedModules returns root and all its descendants in pre-order, each with its
// fully-qualified path. The root's path is "".
func NamedModules[B tensor.Backend](root Module[B]) []NamedModule[B] {
	var out []NamedModule[B]
	var walk func(prefix string, m Module[B])
	walk = func(prefix string, m Module[B]) {
		out = append(out, NamedModule[B]{Name: prefix, Module: m})
		for _, c := range m.ModuleBase().NamedChildren() {
			walk(JoinFQN(prefix, c.Name), c.Module)
		}
	}
	walk("", root)
	return out
}

// ModuleToFQN returns the path of target inside root. The root itself has the
// path "". ok is false if target is not in the tree.
func ModuleToFQN[B tensor.Backend](root, target Module[B]) (fqn string, ok bool) {
	for _, nm := range NamedModules(root) {
		if nm.Module == target {
			return nm.Name, true
		}
	}
	return "", false
}

// FQNToModule resolves a dotted path inside root. The empty path is root.
func FQNToModule[B tensor.Backend](root Module[B], fqn string) (Module[B], bool) {
	if fqn == "" {
		return root, true
	}

	current := root
	for _, part := range strings.Split(fqn, ".") {
		var next Module[B]
		for _, c := range current.ModuleBase().NamedChildren() {
			if c.Name == part {
				next = c.Module
				break
			}
		}
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// StateDict collects every parameter (through its parametrizations) and buffer
// of the tree, keyed by fully-qualified name.
func StateDict[B tensor.Backend](root Module[B]) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for _, nm := range NamedModules(root) {
		base := nm.Module.ModuleBase()
		for _, name := range base.ParameterNames() {
			if t := base.Tensor(name); t != nil {
				out[JoinFQN(nm.Name, name)] = t.Raw()
			}
		}
		for _, name := range base.BufferNames() {
			if t := base.Buffer(name); t != nil {
				out[JoinFQN(nm.Name, name)] = t
			}
		}
	}
	return out
}
