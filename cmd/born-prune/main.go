// Package main provides the born-prune CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/prune/internal/config"
	"github.com/born-ml/prune/internal/logger"
	"github.com/born-ml/prune/internal/runner"
)

const version = "v0.1.0-dev"

type runFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
	output     string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "path to the YAML run file")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&f.logJSON, "log-json", false, "emit JSON logs")
	fs.StringVarP(&f.output, "output", "o", "", "write the pruned state dict to this SafeTensors file")
}

// apply lets explicitly set flags override the loaded configuration.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-json") {
		cfg.Log.JSON = f.logJSON
	}
	if fs.Changed("output") {
		cfg.Output.SafeTensors = f.output
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "born-prune",
		Short:         "Structured channel pruning for Born models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), runCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "born-prune %s\n", version)
		},
	}
}

func runCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prune a reference model as described by the run file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader()
			cfg, err := loader.Load(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(cmd.Flags(), cfg)
			if err := loader.Validate(cfg); err != nil {
				return err
			}

			log := logger.NewLogger(&logger.Config{
				Level:      logger.ParseLevel(cfg.Log.Level),
				Output:     cmd.ErrOrStderr(),
				JSON:       cfg.Log.JSON,
				TimeFormat: "15:04:05",
			})

			report, err := runner.Run(cmd.Context(), cfg, cmd.OutOrStdout(), log)
			if err != nil {
				log.Error("run failed", "error", err)
				return err
			}
			log.Info("run finished", "run_id", report.RunID, "tensors", len(report.State), "squashed", report.Squashed)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
