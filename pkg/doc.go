// Package fdedup finds byte-identical files anywhere under a directory tree
// while bounding how many directories and files are open at once.
//
// # Core API
//
// The main entry point is Scanner, which walks one root directory and groups
// files by the MD5 digest of their content:
//
//	cfg := fdedup.DefaultScanConfig()
//	scanner, err := fdedup.NewScanner(cfg)
//	outcome, err := scanner.Scan(ctx, "/path/to/dir")
//	for _, group := range outcome.Groups {
//		fmt.Printf("%s: %v\n", group.Digest, group.Paths)
//	}
//
// Per-path failures (permission denied, vanished files, broken links,
// symlink cycles) never abort a scan. They are collected in
// ScanOutcome.Errors and, when an error callback is installed, streamed as
// they happen.
//
// # Acting on duplicates
//
// Dispatcher consumes the finalised groups exactly once, in one of the modes
// selected by ScanConfig.Mode:
//
//	d := fdedup.NewDispatcher(cfg, os.Stdout, runner, deleter)
//	errs, err := d.Dispatch(ctx, outcome.Groups)
//
// External programs and file deletion sit behind the Runner and Deleter
// interfaces so tests can substitute recording fakes.
//
// # Resource limits
//
// Limiter hands out directory and file permits. Acquiring a permit is the
// only path to opening a directory or a file, so the configured ceilings
// cannot be exceeded. Guard bounds symlink resolution depth and rejects
// descending into a directory that is already on the current ancestor chain.
//
// # Configuration
//
// Enable debug output:
//
//	fdedup.SetDebugFlags("walk,guard")
//	fdedup.SetVerboseLevel(2)
package fdedup
