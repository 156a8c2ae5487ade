package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration file",
		Long: `Show or change the fdedup configuration file.

Settings in the file are defaults; flags given on the command line always win.
To scan a directory that is literally named "config", use ./config.`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			all, err := config.GetAllConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "# %s\n", config.Path())
			fmt.Fprintf(stdout, "[limits]\nmax_dirs = %d\nmax_files = %d\nmax_symlinks = %d\n\n",
				all.Limits.MaxDirs, all.Limits.MaxFiles, all.Limits.MaxSymlinks)
			fmt.Fprintf(stdout, "[scan]\nignore_symlinks = %t\nskip_empty = %t\nhash_buffer = %s\n\n",
				all.Scan.IgnoreSymlinks, all.Scan.SkipEmpty, all.Scan.HashBuffer)
			fmt.Fprintf(stdout, "[verbose]\nlevel = %d\ndebug = %s\n",
				all.Verbose.Level, all.Verbose.Debug)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set key:value...",
		Short: "Change values and save the configuration file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.ApplyOverrides(args); err != nil {
				return err
			}
			// refuse to persist values a scan would reject
			sc, err := config.ScanConfig()
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return err
			}
			if err := config.Save(); err != nil {
				return fmt.Errorf("failed to save %s: %w", config.Path(), err)
			}
			fmt.Fprintf(stdout, "saved %s\n", config.Path())
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
