package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/born-ml/batchnorm/internal/serialization"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the tensors and metadata of a checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInspect(w io.Writer, path string) error {
	tensors, metadata, err := serialization.Load(path)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s: %s\n", key, metadata[key])
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	table := newTable(w, []string{"TENSOR", "DTYPE", "SHAPE", "MIN", "MAX"})
	for _, name := range names {
		t := tensors[name]
		values := t.Float64s()
		table.Append([]string{
			name, t.DType().String(), t.Shape().String(),
			formatFloat(floats.Min(values)), formatFloat(floats.Max(values)),
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d tensors\n", len(tensors))
	if len(names) > 0 && !strings.HasPrefix(metadata["format"], "checkpoint") {
		fmt.Fprintln(w, "(not a checkpoint)")
	}
	return nil
}
