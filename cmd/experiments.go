package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/experiment"
)

// Environment variables that default the workload paths of a sweep.
const (
	envTracePath    = "CACHETRACE_TRACE_PATH"
	envContentsPath = "CACHETRACE_CONTENTS_PATH"
)

// workloadEnv holds workload paths taken from the environment (or .env).
type workloadEnv struct {
	TracePath    string `env:"CACHETRACE_TRACE_PATH"`
	ContentsPath string `env:"CACHETRACE_CONTENTS_PATH"`
}

var experimentsConfigPath string

var experimentsCmd = &cobra.Command{
	Use:   "experiments",
	Short: "Expand a sweep configuration into the simulator's experiment queue (YAML on stdout)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runExperiments(os.Stdout, experimentsConfigPath); err != nil {
			logrus.Fatalf("Building experiment queue failed: %v", err)
		}
	},
}

func runExperiments(w io.Writer, path string) error {
	sweep, err := experiment.LoadSweep(path)
	if err != nil {
		return err
	}
	var defaults workloadEnv
	if err := env.Parse(&defaults); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if sweep.Workload.ReqsFile == "" {
		sweep.Workload.ReqsFile = defaults.TracePath
	}
	if sweep.Workload.ContentsFile == "" {
		sweep.Workload.ContentsFile = defaults.ContentsPath
	}

	descriptors, err := sweep.Build()
	if err != nil {
		return err
	}
	logrus.Infof("Queued %d experiments", len(descriptors))
	return experiment.WriteQueue(w, descriptors)
}

func init() {
	experimentsCmd.Flags().StringVar(&experimentsConfigPath, "config", "", "Sweep configuration YAML")
	_ = experimentsCmd.MarkFlagRequired("config")
}
