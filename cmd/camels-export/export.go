package main

import (
	"fmt"
	"os"

	camelshdf5 "github.com/nomad-camels/camels-hdf5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exportCmd exports a single document stream file.
var exportCmd = &cobra.Command{
	Use:   "export <stream.jsonl>",
	Short: "Export one document stream to an HDF5 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		artifacts, err := exportStream(args[0], cfg)
		if err != nil {
			return err
		}
		for entry, files := range artifacts {
			for _, file := range files {
				fmt.Printf("%s\t%s\n", entry, file)
			}
		}
		return nil
	},
}

// exportStream runs one JSONL stream file through the exporter.
func exportStream(path string, cfg camelshdf5.Config) (camelshdf5.Artifacts, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied stream path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	logger.Info("exporting stream", zap.String("stream", path))
	opts := append(cfg.Options(), camelshdf5.WithLogger(logger))
	return camelshdf5.Export(camelshdf5.NewDocumentReader(f), cfg.Directory, opts...)
}
