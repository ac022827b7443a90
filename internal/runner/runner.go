// Package runner executes a born-prune run: build a reference model, prune it
// with the L1-norm policy and write the requested artifacts.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/born-ml/prune/internal/backend/cpu"
	"github.com/born-ml/prune/internal/config"
	"github.com/born-ml/prune/internal/logger"
	"github.com/born-ml/prune/internal/metrics"
	"github.com/born-ml/prune/internal/models"
	"github.com/born-ml/prune/internal/nn"
	"github.com/born-ml/prune/internal/prune"
	"github.com/born-ml/prune/internal/serialization"
	"github.com/born-ml/prune/internal/tensor"
)

// Backend is the backend every run uses.
type Backend = *cpu.CPUBackend

// Report summarizes a finished run.
type Report struct {
	RunID       string
	State       []prune.TensorState
	OutputShape tensor.Shape
	Squashed    bool
}

// Run executes cfg. The pruner summary is printed to out.
func Run(ctx context.Context, cfg *config.Config, out io.Writer, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}

	runID := uuid.NewString()
	log = logger.With(log, "run_id", runID)

	backend := cpu.New()
	model, inputShape, err := models.New(cfg.Model.Name, cfg.Model.Batch, backend)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(&metrics.Config{
		Namespace: "born",
		Subsystem: "prune",
		Registry:  registry,
	})
	if err != nil {
		return nil, err
	}

	pcfg, err := pruneConfig(cfg.Prune, log, collector)
	if err != nil {
		return nil, err
	}
	pruner := prune.New[Backend](prune.NewL1NormPolicy[Backend](), pcfg)

	targets, err := targetsFor(model, cfg.Prune)
	if err != nil {
		return nil, err
	}
	if err := pruner.Prepare(model, targets); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	log.Info("prepared model", "model", cfg.Model.Name, "groups", len(pruner.Groups()))

	input := tensor.Ones(inputShape, backend)
	for i := 0; i < cfg.Prune.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := pruner.Step(false); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	report := &Report{
		RunID:       runID,
		State:       pruner.State(),
		OutputShape: nn.Call(model, input).Shape(),
	}
	if _, err := fmt.Fprintln(out, pruner.String()); err != nil {
		return nil, err
	}

	if cfg.Prune.Squash {
		if err := pruner.SquashMask(false); err != nil {
			return nil, fmt.Errorf("squash: %w", err)
		}
		report.Squashed = true
		report.OutputShape = nn.Call(model, input).Shape()
		log.Info("squashed masks", "output_shape", fmt.Sprint(report.OutputShape))
	}

	if path := cfg.Output.SafeTensors; path != "" {
		metadata := map[string]string{
			"run_id":   runID,
			"model":    cfg.Model.Name,
			"sparsity": strconv.FormatFloat(cfg.Prune.Sparsity, 'g', -1, 64),
			"squashed": strconv.FormatBool(report.Squashed),
		}
		if err := serialization.WriteSafeTensors(path, nn.StateDict(model), metadata); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		log.Info("exported state dict", "path", path)
	}

	if path := cfg.Output.Metrics; path != "" {
		if err := writeMetrics(path, registry); err != nil {
			return nil, err
		}
		log.Info("wrote metrics", "path", path)
	}

	return report, nil
}

func pruneConfig(cfg config.PruneConfig, log logger.Logger, observer prune.Observer) (prune.Config, error) {
	pcfg := prune.DefaultConfig()
	pcfg.Defaults = prune.Options{prune.SparsityLevelOption: cfg.Sparsity}
	pcfg.PruneBias = cfg.PruneBias
	pcfg.Logger = log
	pcfg.Observer = observer

	if len(cfg.Supported) > 0 {
		kinds := make([]prune.Kind, 0, len(cfg.Supported))
		for _, name := range cfg.Supported {
			kind, ok := prune.ParseKind(name)
			if !ok {
				return prune.Config{}, fmt.Errorf("%w: unknown module kind %q", config.ErrInvalidConfig, name)
			}
			kinds = append(kinds, kind)
		}
		pcfg.Supported = prune.NewKindSet(kinds...)
	}
	return pcfg, nil
}

// targetsFor returns nil when the model should be discovered.
func targetsFor(model nn.Module[Backend], cfg config.PruneConfig) ([]prune.Target[Backend], error) {
	if cfg.Pairs {
		cnn, ok := model.(*models.CNN[Backend])
		if !ok {
			return nil, fmt.Errorf("%w: prune.pairs needs a cnn model", config.ErrInvalidConfig)
		}
		var targets []prune.Target[Backend]
		for _, pair := range cnn.ConvNormPairs() {
			targets = append(targets, prune.PairTarget(pair[0], pair[1]))
		}
		return targets, nil
	}

	if len(cfg.Targets) == 0 {
		return nil, nil
	}
	targets := make([]prune.Target[Backend], 0, len(cfg.Targets))
	for _, fqn := range cfg.Targets {
		targets = append(targets, prune.PathTarget[Backend](fqn))
	}
	return targets, nil
}

func writeMetrics(path string, gatherer prometheus.Gatherer) error {
	//nolint:gosec // G304: path comes from the run config
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := metrics.WriteText(f, gatherer); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
