// Package config loads the born-prune run configuration.
//
// Values are layered: built-in defaults, then the YAML run file, then
// BORN_PRUNE_* environment variables. BORN_PRUNE_PRUNE_SPARSITY=0.5 sets
// prune.sparsity.
package config

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "BORN_PRUNE_"

// Config is a complete run configuration.
type Config struct {
	Model  ModelConfig  `koanf:"model"`
	Prune  PruneConfig  `koanf:"prune"`
	Output OutputConfig `koanf:"output"`
	Log    LogConfig    `koanf:"log"`
}

// ModelConfig selects the reference model.
type ModelConfig struct {
	Name  string `koanf:"name" validate:"oneof=mlp cnn"`
	Batch int    `koanf:"batch" validate:"min=1"`
}

// PruneConfig drives the pruner.
type PruneConfig struct {
	// Targets lists tensor paths such as "0.weight". Empty means discovery.
	Targets []string `koanf:"targets" validate:"dive,required"`
	// Pairs prunes every convolution together with its batch norm (cnn only).
	Pairs     bool     `koanf:"pairs"`
	Sparsity  float64  `koanf:"sparsity" validate:"gte=0,lte=1"`
	Steps     int      `koanf:"steps" validate:"min=0"`
	Squash    bool     `koanf:"squash"`
	PruneBias bool     `koanf:"prune_bias"`
	Supported []string `koanf:"supported" validate:"dive,required"`
}

// OutputConfig names optional artifact paths.
type OutputConfig struct {
	SafeTensors string `koanf:"safetensors"`
	Metrics     string `koanf:"metrics"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:  "mlp",
			Batch: 4,
		},
		Prune: PruneConfig{
			Sparsity:  0.5,
			Steps:     1,
			Squash:    true,
			PruneBias: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
