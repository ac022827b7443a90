// Package prune implements structured output-channel pruning on nn module trees.
//
// A Pruner installs, for every configured tensor, a mask buffer and a
// parametrization that removes (or, for normalization layers, zeroes) the
// pruned rows of the tensor. Forward hooks scatter a row-pruned module's output
// back to its original width and re-apply the detached bias. A MaskPolicy
// chooses the pruned channels on every Step; SquashMask makes the result
// permanent.
//
// Typical flow:
//
//	pruner := prune.New[B](prune.NewL1NormPolicy[B](), prune.DefaultConfig())
//	if err := pruner.Prepare(model, nil); err != nil { ... } // discover layers
//	for range epochs {
//	    // train ...
//	    if err := pruner.Step(false); err != nil { ... }
//	}
//	err := pruner.SquashMask(false)
package prune

import (
	"fmt"

	"github.com/born-ml/prune/internal/autodiff"
	"github.com/born-ml/prune/internal/logger"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/tensor"
)

const (
	maskName  = "mask"
	biasName  = "bias"
	biasParam = "_bias"
)

// Config holds pruner settings.
type Config struct {
	// Defaults are merged into every group's Options; per-target options win.
	Defaults Options

	// PruneBias zeroes the bias of pruned channels.
	PruneBias bool

	// Supported kinds are discovered automatically and may be row-pruned.
	Supported KindSet

	// NeedsZeros kinds get their pruned rows zeroed instead of removed.
	NeedsZeros KindSet

	// Logger receives discovery warnings and debug lines. Nil disables logging.
	Logger logger.Logger

	// Recorder is suspended while the policy runs. When nil, the tape of an
	// autodiff backend found on the model's parameters is used.
	Recorder autodiff.Recorder

	// Observer receives progress. Nil disables it.
	Observer Observer
}

// DefaultConfig returns the default pruner configuration: bias pruning on,
// Linear/Conv2D/BatchNorm2D supported, BatchNorm2D zeroed.
func DefaultConfig() Config {
	return Config{
		Defaults:   Options{},
		PruneBias:  true,
		Supported:  DefaultSupported,
		NeedsZeros: DefaultNeedsZeros,
	}
}

// Pruner drives mask installation, updates and squashing for one model.
//
// A Pruner is not safe for concurrent use.
type Pruner[B tensor.Backend] struct {
	policy     MaskPolicy[B]
	defaults   Options
	pruneBias  bool
	supported  KindSet
	needsZeros KindSet
	log        logger.Logger
	recorder   autodiff.Recorder
	observer   Observer

	model    nn.Module[B]
	config   []Target[B]
	groups   []*Group[B]
	prepared bool

	enableMaskUpdate  bool
	activationHandles []*nn.HookHandle
	biasHandles       []*nn.HookHandle
}

// New creates a pruner using policy to choose pruned channels.
func New[B tensor.Backend](policy MaskPolicy[B], cfg Config) *Pruner[B] {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	return &Pruner[B]{
		policy:           policy,
		defaults:         cfg.Defaults,
		pruneBias:        cfg.PruneBias,
		supported:        cfg.Supported,
		needsZeros:       cfg.NeedsZeros,
		log:              log,
		recorder:         cfg.Recorder,
		observer:         observer,
		enableMaskUpdate: true,
	}
}

// MakeConfigFromModel discovers the prunable layers of model and stores the
// resulting targets as the pruner's configuration. Nothing is installed.
func (p *Pruner[B]) MakeConfigFromModel(model nn.Module[B], supported, needsZeros KindSet) []Target[B] {
	p.config = Discover(model, supported, needsZeros, p.log)
	return p.config
}

// Config returns the configuration of the last Prepare or MakeConfigFromModel.
func (p *Pruner[B]) Config() []Target[B] {
	return p.config
}

// Prepare installs masks, parametrizations and hooks on model, in place.
//
// A nil config discovers every supported layer of model. Configuration errors
// leave the model untouched; an installation error may leave earlier groups
// installed.
func (p *Pruner[B]) Prepare(model nn.Module[B], config []Target[B]) error {
	if p.prepared {
		return ErrAlreadyPrepared
	}

	if config == nil {
		config = p.MakeConfigFromModel(model, p.supported, p.needsZeros)
	}
	p.config = config

	type tensorKey struct {
		module nn.Module[B]
		name   string
	}
	seen := make(map[tensorKey]bool)

	groups := make([]*Group[B], 0, len(config))
	for i, target := range config {
		g, err := normalize(model, i, target, p.defaults)
		if err != nil {
			return err
		}
		for j, m := range g.Modules {
			key := tensorKey{module: m, name: g.TensorNames[j]}
			if seen[key] {
				return &ConfigError{Index: i, Field: "tensor_fqn", Details: g.TensorFQNs[j], Err: ErrDuplicateTensor}
			}
			seen[key] = true
		}
		groups = append(groups, g)
	}

	p.model = model
	p.groups = groups
	p.prepared = true
	if p.recorder == nil {
		p.recorder = recorderOf(model)
	}

	return p.install()
}

func (p *Pruner[B]) install() error {
	for _, g := range p.groups {
		for i, m := range g.Modules {
			if err := p.installTensor(g, m, g.TensorNames[i], g.TensorFQNs[i]); err != nil {
				return err
			}
		}
		if g.Paired() {
			if err := p.sharePrunedOutputs(g); err != nil {
				return err
			}
		}
		p.log.Debug("installed pruning group", "tensors", g.TensorFQNs)
	}
	return nil
}

func (p *Pruner[B]) installTensor(g *Group[B], m nn.Module[B], tensorName, tensorFQN string) error {
	kind := KindOf(m)
	zeroes := p.needsZeros.Has(kind)
	if !zeroes && !p.supported.Has(kind) {
		return fmt.Errorf("prepare %s (%T): %w", tensorFQN, m, ErrUnsupportedModule)
	}

	if nn.IsParametrized(m, tensorName) {
		return fmt.Errorf("prepare %s: %w", tensorFQN, ErrAlreadyParametrized)
	}

	base := m.ModuleBase()
	mask, _, ok := findMask(base)
	if !ok {
		weight := base.Tensor(tensorName)
		mask = tensor.Scalar[int64](int64(weight.Shape()[0]), weight.Backend()).Raw()
		base.RegisterBuffer(maskName, mask)
	}

	factory := g.Parametrization
	if factory == nil {
		if zeroes {
			factory = NewZeroesParametrization[B]
		} else {
			factory = NewPruningParametrization[B]
		}
	}
	param := factory(mask)
	if err := nn.RegisterParametrization(m, tensorName, nn.Parametrization[B](param)); err != nil {
		return fmt.Errorf("prepare %s: %w", tensorFQN, err)
	}

	if !zeroes {
		p.activationHandles = append(p.activationHandles, base.RegisterForwardHook(ActivationReconstruction(param)))
	}

	// A parametrized bias already reaches Forward through its parametrization.
	if tensorName == biasName || nn.IsParametrized(m, biasName) {
		return nil
	}
	if bias := base.Parameter(biasName); bias != nil {
		base.RegisterParameter(biasParam, bias.Detached(biasParam))
		base.RegisterParameter(biasName, nil)
		p.biasHandles = append(p.biasHandles, base.RegisterForwardHook(BiasHook(param, p.pruneBias)))
	}

	return nil
}

// sharePrunedOutputs makes the second module of a pair use the first module's
// pruned-output set.
func (p *Pruner[B]) sharePrunedOutputs(g *Group[B]) error {
	first, err := maskParametrizationOf(g.Modules[0], g.TensorNames[0])
	if err != nil {
		return err
	}
	second, err := maskParametrizationOf(g.Modules[1], g.TensorNames[1])
	if err != nil {
		return err
	}
	second.SetPrunedOutputs(first.PrunedOutputs())
	return nil
}

// EnableMaskUpdate turns Step on or off.
func (p *Pruner[B]) EnableMaskUpdate(enabled bool) {
	p.enableMaskUpdate = enabled
}

// MaskUpdateEnabled reports whether Step runs the policy.
func (p *Pruner[B]) MaskUpdateEnabled() bool {
	return p.enableMaskUpdate
}

// Step runs the policy once per group with recording suspended. It does nothing
// while mask updates are disabled.
//
// With usePath, modules are looked up again from the stored module paths.
func (p *Pruner[B]) Step(usePath bool) error {
	if !p.enableMaskUpdate {
		return nil
	}
	if p.policy == nil {
		return ErrNilPolicy
	}

	restore := autodiff.NoGrad(p.recorder)
	defer restore()

	resolved := make([][]nn.Module[B], len(p.groups))
	for gi, g := range p.groups {
		modules, err := p.modulesOf(g, usePath)
		if err != nil {
			return err
		}
		if err := p.policy.UpdateMask(modules[0], g.TensorNames[0], g); err != nil {
			return fmt.Errorf("update mask of %s: %w", g.TensorFQNs[0], err)
		}
		resolved[gi] = modules
	}

	p.observer.ObserveStep()
	for gi, g := range p.groups {
		for i, m := range resolved[gi] {
			if param, err := maskParametrizationOf(m, g.TensorNames[i]); err == nil {
				p.observer.ObservePruned(g.TensorFQNs[i], param.PrunedOutputs().Len(), param.OriginalOutputs())
			}
		}
	}
	p.log.Debug("pruning step done", "groups", len(p.groups))

	return nil
}

// SquashMask bakes every group's current parametrized value into its tensor and
// deletes the masks. Hooks stay registered, so a row-pruned module keeps its
// original output width.
//
// Calling it on a tensor that is not prepared, including a second call, returns
// ErrNotPrepared.
func (p *Pruner[B]) SquashMask(usePath bool) error {
	for _, g := range p.groups {
		modules, err := p.modulesOf(g, usePath)
		if err != nil {
			return err
		}

		for i, m := range modules {
			name, fqn := g.TensorNames[i], g.TensorFQNs[i]
			base := m.ModuleBase()

			_, storage, ok := findMask(base)
			if !ok || !nn.IsParametrized(m, name) {
				return fmt.Errorf("squash %s: %w", fqn, ErrNotPrepared)
			}
			if err := nn.RemoveParametrizations(m, name, true); err != nil {
				return fmt.Errorf("squash %s: %w", fqn, err)
			}
			storage.delete(base)
			p.log.Debug("squashed", "tensor", fqn, "shape", base.Parameter(name).Tensor().Shape())
		}
	}

	p.observer.ObserveSquash()
	return nil
}

// GetModulePrunedOutputs returns the live pruned-output set of module's tensor.
func (p *Pruner[B]) GetModulePrunedOutputs(module nn.Module[B], tensorName string) (*IndexSet, error) {
	return PrunedOutputsOf(module, tensorName)
}

// PrunedOutputsOf returns the pruned-output set of a tensor prepared by a Pruner.
func PrunedOutputsOf[B tensor.Backend](module nn.Module[B], tensorName string) (*IndexSet, error) {
	param, err := maskParametrizationOf(module, tensorName)
	if err != nil {
		return nil, err
	}
	return param.PrunedOutputs(), nil
}

func maskParametrizationOf[B tensor.Backend](m nn.Module[B], tensorName string) (MaskParametrization[B], error) {
	list := nn.ParametrizationsOf(m, tensorName)
	if list == nil {
		return nil, fmt.Errorf("%s on %T: %w", tensorName, m, ErrNotParametrized)
	}
	param, ok := list.At(0).(MaskParametrization[B])
	if !ok {
		return nil, fmt.Errorf("%s on %T has a foreign parametrization: %w", tensorName, m, ErrNotParametrized)
	}
	return param, nil
}

// RemoveHooks detaches every forward hook the pruner registered.
func (p *Pruner[B]) RemoveHooks() {
	for _, h := range p.activationHandles {
		h.Remove()
	}
	for _, h := range p.biasHandles {
		h.Remove()
	}
	p.activationHandles = nil
	p.biasHandles = nil
}

// Groups returns the normalized groups in installation order.
func (p *Pruner[B]) Groups() []*Group[B] {
	return p.groups
}

// Model returns the prepared model, or nil.
func (p *Pruner[B]) Model() nn.Module[B] {
	return p.model
}

func (p *Pruner[B]) modulesOf(g *Group[B], usePath bool) ([]nn.Module[B], error) {
	if !usePath {
		return g.Modules, nil
	}

	modules := make([]nn.Module[B], len(g.ModuleFQNs))
	for i, fqn := range g.ModuleFQNs {
		m, ok := nn.FQNToModule(p.model, fqn)
		if !ok {
			return nil, fmt.Errorf("resolve %q: %w", fqn, ErrModuleNotFound)
		}
		modules[i] = m
	}
	return modules, nil
}

// recorderOf returns the tape of the autodiff backend behind model's
// parameters, or nil.
func recorderOf[B tensor.Backend](model nn.Module[B]) autodiff.Recorder {
	params := model.Parameters()
	if len(params) == 0 {
		return nil
	}
	if taped, ok := any(params[0].Tensor().Backend()).(interface{ Tape() *autodiff.GradientTape }); ok {
		return taped.Tape()
	}
	return nil
}
