package prune

import (
	"github.com/born-ml/prune/internal/logger"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

// Discover walks model depth-first and returns a path target for the "weight"
// of every descendant whose kind is in supported.
//
// Descendants whose kind is in needsZeros are skipped with a warning: zeroing
// layers must be configured explicitly, usually as the second half of a
// PairTarget. Every descendant that is not a target is descended into. The
// model itself is never a candidate.
func Discover[B tensor.Backend](model nn.Module[B], supported, needsZeros KindSet, log logger.Logger) []Target[B] {
	if log == nil {
		log = logger.Nop()
	}

	type frame struct {
		path   string
		module nn.Module[B]
	}

	var targets []Target[B]
	stack := []frame{{path: "", module: model}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range top.module.ModuleBase().NamedChildren() {
			path := nn.JoinFQN(top.path, child.Name)
			kind := KindOf(child.Module)

			if supported.Has(kind) && !needsZeros.Has(kind) {
				targets = append(targets, PathTarget[B](nn.JoinFQN(path, weightName)))
				continue
			}
			if needsZeros.Has(kind) {
				log.Warn("skipping layer that needs explicit configuration", "path", path, "kind", kind)
			}
			stack = append(stack, frame{path: path, module: child.Module})
		}
	}

	return targets
}
