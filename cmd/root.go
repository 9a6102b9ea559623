// Package cmd contains the CLI commands for TLC
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	logger *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "tlc",
	Short: "Timeline Compiler - Compile clinical observation logs into feature snapshots",
	Long: `TLC (Timeline Compiler) compiles per-subject observation logs into ordered
arrays of time-indexed feature snapshots, including derived causal and
anticipatory variables, and serves numeric batches to downstream consumers.
It runs either as a single process over one file, or as a coordinator/worker
fleet partitioning files over a task queue.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error, fatal, panic)")

	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func initLogger() {
	logLevel, err := rootCmd.PersistentFlags().GetString("log-level")
	if err != nil {
		logLevel = "info" // Default to info if error
	}

	level, parseErr := logrus.ParseLevel(logLevel)
	if parseErr != nil {
		logger.WithError(parseErr).Warn("Invalid log level, defaulting to info")

		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}
