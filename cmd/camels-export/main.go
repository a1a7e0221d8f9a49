// Package main provides the camels-export command-line tool. It exports
// NOMAD CAMELS document streams (JSONL) into NeXus-flavoured HDF5 files
// and can inspect the files it produced.
package main

import (
	"fmt"
	"os"

	camelshdf5 "github.com/nomad-camels/camels-hdf5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath   string
	outDir    string
	prefix    string
	nexusView bool
	gzipLevel int
	verbose   bool

	// Logger, built in PersistentPreRunE
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "camels-export",
	Short: "Export NOMAD CAMELS document streams to HDF5",
	Long: `camels-export serialises acquisition-run document streams produced by
the NOMAD CAMELS framework into HDF5 files loosely following the NeXus
metadata convention.

A stream is a JSONL file of (name, document) envelopes in document order:
start, descriptor(s), event/event_page(s), stop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig merges the config file (when given) with command-line flags.
func loadConfig(cmd *cobra.Command) (camelshdf5.Config, error) {
	cfg := camelshdf5.DefaultConfig()
	if cfgPath != "" {
		var err error
		cfg, err = camelshdf5.LoadConfig(cfgPath)
		if err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("dir") {
		cfg.Directory = outDir
	}
	if cmd.Flags().Changed("prefix") {
		cfg.FilePrefix = prefix
	}
	if cmd.Flags().Changed("nexus") {
		cfg.NeXusView = nexusView
	}
	if cmd.Flags().Changed("gzip") {
		cfg.CompressionLevel = gzipLevel
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&outDir, "dir", "", "output directory")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "{uid}-", "templated file prefix")
	rootCmd.PersistentFlags().BoolVar(&nexusView, "nexus", false, "build the NeXus-style linked view")
	rootCmd.PersistentFlags().IntVar(&gzipLevel, "gzip", 0, "gzip level for channel datasets (0 = off)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
