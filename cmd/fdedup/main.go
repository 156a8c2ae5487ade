package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	fdedup "github.com/mattkeenan/fdedup/pkg"
)

// Exit codes
const (
	exitOK          = 0
	exitFatal       = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if f, ok := stderr.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		color.NoColor = true
	}

	ctx, stop := setupSignalHandler(ctx, stderr)
	defer stop()

	opts := &options{}
	root := newRootCmd(opts, stdout, stderr)
	root.AddCommand(newConfigCmd(opts, stdout))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted) || errors.Is(err, context.Canceled):
		fmt.Fprintf(stderr, "fdedup: %v\n", err)
		return exitInterrupted
	default:
		fmt.Fprintf(stderr, "fdedup: %v\n", err)
		fmt.Fprintf(stderr, "Try 'fdedup --help' for more information.\n")
		return exitFatal
	}
}

func newRootCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fdedup [flags] <path>",
		Short: "Find files with identical content under a directory",
		Long: `fdedup finds byte-identical files anywhere under <path>, even when their
names differ, and prints one JSON line per duplicate group:

  {"digest":[<16 byte values>],"paths":["a","b",...]}

Per-file problems (permission denied, vanished files, broken symlinks,
symlink cycles) are reported on standard error and never stop the scan.

Instead of reporting, a group can be handed to a program (--exec), or
reduced to the path with the shortest file name (--keep-shortest).

Examples:
  fdedup .                                  # report duplicates
  fdedup --exec ./merge.sh ~/photos         # run merge.sh <digest> <paths...>
  fdedup --keep-shortest --pretend ~/music  # show what would be deleted
  fdedup --max-files 64 --ignore-symlinks /srv`,
		Version:       getVersionString(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args[0], stdout, stderr)
		},
	}

	opts.register(cmd)
	cmd.MarkFlagsMutuallyExclusive("exec", "keep-shortest")
	cmd.MarkFlagsMutuallyExclusive("exec", "pretend")
	return cmd
}

// runScan scans root, then dispatches the finalised groups. Dispatch only
// starts once the scan has completed without being cancelled.
func runScan(cmd *cobra.Command, opts *options, root string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()

	cfg, ignore, err := opts.scanConfig(cmd)
	if err != nil {
		return err
	}

	printErr := fdedup.ErrorPrinter(stderr)
	scanner, err := fdedup.NewScanner(cfg,
		fdedup.WithErrorHandler(printErr),
		fdedup.WithIgnoreManager(ignore),
	)
	if err != nil {
		return err
	}

	outcome, err := scanner.Scan(ctx, root)
	if err != nil {
		return err
	}

	var runner fdedup.Runner
	var deleter fdedup.Deleter
	switch cfg.Mode {
	case fdedup.ModeExec:
		runner = &fdedup.ExecRunner{Program: cfg.ExecProgram, Stdout: stdout, Stderr: stderr}
	case fdedup.ModeKeepShortest, fdedup.ModePretend:
		deleter = fdedup.NewFsDeleter(nil)
	}

	dispatcher := fdedup.NewDispatcher(cfg, stdout, runner, deleter)
	errs, err := dispatcher.Dispatch(ctx, outcome.Groups)
	for _, e := range errs {
		printErr(e)
	}
	return err
}
