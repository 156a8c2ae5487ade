package main

import (
	"github.com/spf13/cobra"

	fdedup "github.com/mattkeenan/fdedup/pkg"
)

// options holds the raw command-line values. Only flags the user actually
// set override the configuration file.
type options struct {
	ignoreSymlinks bool
	keepShortest   bool
	pretend        bool
	execProgram    string
	maxDirs        int
	maxFiles       int
	maxSymlinks    int
	skipEmpty      bool
	hashBuffer     string
	exclude        []string
	excludeFrom    string
	configPath     string
	overrides      []string
	verbose        int
	debug          string
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.ignoreSymlinks, "ignore-symlinks", false, "never resolve or descend into symbolic links")
	f.BoolVar(&o.keepShortest, "keep-shortest", false, "delete all but the file with the shortest name in each group")
	f.BoolVar(&o.pretend, "pretend", false, "with --keep-shortest, only report what would be deleted")
	f.StringVar(&o.execProgram, "exec", "", "run `program` once per group with <digest> <paths...>")
	f.IntVar(&o.maxDirs, "max-dirs", fdedup.DefaultMaxDirs, "maximum concurrently open directories")
	f.IntVar(&o.maxFiles, "max-files", fdedup.DefaultMaxFiles, "maximum concurrently open files")
	f.IntVar(&o.maxSymlinks, "max-symlinks", fdedup.DefaultMaxSymlinks, "maximum symbolic links resolved along one path")
	f.BoolVar(&o.skipEmpty, "skip-empty", false, "do not hash zero-length files")
	f.StringVar(&o.hashBuffer, "hash-buffer", "", "read chunk `size` for hashing (e.g. 32K, 1M)")
	f.StringArrayVar(&o.exclude, "exclude", nil, "skip paths matching `regex` (relative to <path>, repeatable)")
	f.StringVar(&o.excludeFrom, "exclude-from", "", "read exclude patterns from `file`")

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "configuration `file` (default $XDG_CONFIG_HOME/fdedup/config)")
	pf.StringArrayVar(&o.overrides, "set", nil, "override a configuration value, `key:value` (repeatable)")
	pf.CountVarP(&o.verbose, "verbose", "v", "increase verbosity (repeatable)")
	pf.StringVar(&o.debug, "debug", "", "comma-separated debug `flags` (walk,hash,guard,index,dispatch,limits)")
}

// loadConfig loads the configuration file and applies --set overrides and
// the verbosity settings.
func (o *options) loadConfig(cmd *cobra.Command) (*fdedup.Config, error) {
	path := o.configPath
	if path == "" {
		var err error
		if path, err = fdedup.DefaultConfigPath(); err != nil {
			return nil, &fdedup.ConfigError{Field: "config file", Err: err}
		}
	}

	config, err := fdedup.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyOverrides(o.overrides); err != nil {
		return nil, err
	}

	verbose, err := config.GetVerboseConfig()
	if err != nil {
		return nil, err
	}
	level, debug := verbose.Level, verbose.Debug
	if cmd.Flags().Changed("verbose") {
		level = o.verbose
	}
	if cmd.Flags().Changed("debug") {
		debug = o.debug
	}
	if err := fdedup.ValidateVerboseLevel(level); err != nil {
		return nil, err
	}
	fdedup.SetVerboseLevel(level)
	fdedup.SetDebugFlags(debug)
	fdedup.VerboseLog(2, "config: %s", config.Path())

	return config, nil
}

// scanConfig resolves defaults < config file < --set < explicit flags.
func (o *options) scanConfig(cmd *cobra.Command) (fdedup.ScanConfig, *fdedup.IgnoreManager, error) {
	config, err := o.loadConfig(cmd)
	if err != nil {
		return fdedup.ScanConfig{}, nil, err
	}

	cfg, err := config.ScanConfig()
	if err != nil {
		return cfg, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("ignore-symlinks") {
		cfg.IgnoreSymlinks = o.ignoreSymlinks
	}
	if flags.Changed("max-dirs") {
		cfg.MaxDirs = o.maxDirs
	}
	if flags.Changed("max-files") {
		cfg.MaxFiles = o.maxFiles
	}
	if flags.Changed("max-symlinks") {
		cfg.MaxSymlinks = o.maxSymlinks
	}
	if flags.Changed("skip-empty") {
		cfg.SkipEmpty = o.skipEmpty
	}
	if flags.Changed("hash-buffer") {
		size, err := fdedup.ParseHumanSize(o.hashBuffer)
		if err != nil {
			return cfg, nil, &fdedup.ConfigError{Field: "hash-buffer", Err: err}
		}
		cfg.HashBufferSize = size
	}

	switch {
	case o.execProgram != "":
		cfg.Mode = fdedup.ModeExec
		cfg.ExecProgram = o.execProgram
	case o.pretend:
		cfg.Mode = fdedup.ModePretend
	case o.keepShortest:
		cfg.Mode = fdedup.ModeKeepShortest
	default:
		cfg.Mode = fdedup.ModeReport
	}

	ignore, err := fdedup.NewIgnoreManager(o.exclude)
	if err != nil {
		return cfg, nil, err
	}
	if o.excludeFrom != "" {
		if err := ignore.LoadIgnoreFile(o.excludeFrom); err != nil {
			return cfg, nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, ignore, nil
}
