// Package metrics exports pruning progress as prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Errors.
var (
	ErrInvalidConfig      = errors.New("invalid metrics configuration")
	ErrRegistrationFailed = errors.New("metric registration failed")
)

// Config configures a Collector.
type Config struct {
	// Namespace and Subsystem prefix every metric name. Required.
	Namespace string
	Subsystem string

	// Registry receives the collectors. If nil, prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns the "born_prune_" prefix on the default registerer.
func DefaultConfig() *Config {
	return &Config{Namespace: "born", Subsystem: "prune"}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.Subsystem == "" {
		return fmt.Errorf("subsystem is required")
	}
	return nil
}

// Collector implements prune.Observer on top of prometheus collectors.
type Collector struct {
	steps    prometheus.Counter
	squashes prometheus.Counter
	pruned   *prometheus.GaugeVec
	sparsity *prometheus.GaugeVec
}

// NewCollector creates the pruning metrics and registers them.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	c := &Collector{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "steps_total",
			Help:      "Mask update steps that ran the policy",
		}),
		squashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "squash_total",
			Help:      "Completed mask squashes",
		}),
		pruned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "pruned_channels",
			Help:      "Pruned output channels per tensor",
		}, []string{"tensor"}),
		sparsity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "channel_sparsity",
			Help:      "Fraction of pruned output channels per tensor",
		}, []string{"tensor"}),
	}

	for _, collector := range []prometheus.Collector{c.steps, c.squashes, c.pruned, c.sparsity} {
		if err := registry.Register(collector); err != nil {
			var alreadyErr prometheus.AlreadyRegisteredError
			if !errors.As(err, &alreadyErr) {
				return nil, errors.Join(ErrRegistrationFailed, err)
			}
		}
	}

	return c, nil
}

// ObserveStep counts a step.
func (c *Collector) ObserveStep() {
	c.steps.Inc()
}

// ObservePruned records the pruned channel count of a tensor.
func (c *Collector) ObservePruned(tensorFQN string, pruned, total int) {
	c.pruned.WithLabelValues(tensorFQN).Set(float64(pruned))
	sparsity := 0.0
	if total > 0 {
		sparsity = float64(pruned) / float64(total)
	}
	c.sparsity.WithLabelValues(tensorFQN).Set(sparsity)
}

// ObserveSquash counts a squash.
func (c *Collector) ObserveSquash() {
	c.squashes.Inc()
}

// WriteText writes every metric family of gatherer in the prometheus text
// exposition format.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
