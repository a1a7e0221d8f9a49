package main

import (
	"fmt"

	"github.com/scigolib/hdf5"
	"github.com/spf13/cobra"
)

// inspectCmd walks a produced file and prints its structure.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.h5>",
	Short: "Print the group/dataset structure of an HDF5 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := hdf5.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		f.Walk(func(path string, obj hdf5.Object) {
			switch o := obj.(type) {
			case *hdf5.Group:
				line := "group    " + path
				if attrs, err := o.Attributes(); err == nil && len(attrs) > 0 {
					line += fmt.Sprintf("  (%d attrs)", len(attrs))
				}
				fmt.Println(line)
			case *hdf5.Dataset:
				fmt.Println("dataset  " + path)
			default:
				fmt.Println("object   " + path)
			}
		})
		return nil
	},
}
