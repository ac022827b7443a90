package prune

// Observer receives pruning progress. internal/metrics provides a prometheus
// implementation.
type Observer interface {
	// ObserveStep is called after every Step that ran the policy.
	ObserveStep()

	// ObservePruned reports the pruned channel count of one tensor.
	ObservePruned(tensorFQN string, pruned, total int)

	// ObserveSquash is called after a successful SquashMask.
	ObserveSquash()
}

type nopObserver struct{}

func (nopObserver) ObserveStep()                   {}
func (nopObserver) ObservePruned(string, int, int) {}
func (nopObserver) ObserveSquash()                 {}
