package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string // Log verbosity level

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cachetrace",
	Short: "Annotate DS2OS access traces with object versions and freshness windows",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		loadDotEnv(".env")
	},
}

// loadDotEnv loads path into the environment if it exists. Variables already
// set take precedence.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if err == nil {
		logrus.Debugf("Loaded environment from %s", path)
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Ignoring %s: %v", path, err)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(edgesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(contentsCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(experimentsCmd)
}
