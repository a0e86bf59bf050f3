package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"aihub/internal/plugin"
	"aihub/internal/usecase/environment"
)

func snapshotCmd(cfgPath *string) *cobra.Command {
	var (
		save bool
		meta map[string]string
	)
	cmd := &cobra.Command{
		Use:   "snapshot <workdir> [out.tar.gz]",
		Short: "Archive a working directory, to a file or to the local registry",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			if out == "" && !save {
				return fmt.Errorf("snapshot: give an output file or --save")
			}
			return runSnapshot(cmd.Context(), *cfgPath, args[0], out, save, meta, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the snapshot in the local registry")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "snapshot metadata KEY=VALUE stored with --save")
	return cmd
}

func runSnapshot(ctx context.Context, cfgPath, workdir, out string, save bool, meta map[string]string, w io.Writer) error {
	data, err := plugin.PackTarGz(workdir)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", workdir, err)
	}
	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(w, "wrote %s (%d bytes)\n", out, len(data))
	}
	if !save {
		return nil
	}

	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.registry.Save(ctx, data, meta)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved snapshot %s\n", id)
	return nil
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <in.tar.gz> <workdir>",
		Short: "Replace a working directory with the contents of a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if err := environment.RestoreSnapshot(data, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], args[1])
			return nil
		},
	}
}
