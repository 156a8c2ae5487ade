package fdedup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-ini/ini"
)

// ScanConfig is fixed at scan start and never changes while a scan runs.
type ScanConfig struct {
	IgnoreSymlinks bool
	MaxDirs        int
	MaxFiles       int
	MaxSymlinks    int
	Mode           Mode
	ExecProgram    string
	SkipEmpty      bool
	HashBufferSize int
	Exclude        []string // regular expressions, matched against root-relative paths
}

// DefaultScanConfig returns the documented defaults in report mode.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MaxDirs:        DefaultMaxDirs,
		MaxFiles:       DefaultMaxFiles,
		MaxSymlinks:    DefaultMaxSymlinks,
		Mode:           ModeReport,
		HashBufferSize: DefaultHashBuffer,
	}
}

// Validate returns a ConfigError describing the first invalid field.
func (c ScanConfig) Validate() error {
	if err := ValidateMaxDirs(c.MaxDirs); err != nil {
		return err
	}
	if err := ValidateMaxFiles(c.MaxFiles); err != nil {
		return err
	}
	if err := ValidateMaxSymlinks(c.MaxSymlinks); err != nil {
		return err
	}
	if c.HashBufferSize < 1 {
		return configErrorf("hash buffer", "must be at least 1 byte, got: %d", c.HashBufferSize)
	}
	switch c.Mode {
	case ModeReport, ModeKeepShortest, ModePretend:
	case ModeExec:
		if strings.TrimSpace(c.ExecProgram) == "" {
			return configErrorf("exec", "mode exec requires a program")
		}
	default:
		return configErrorf("mode", "unsupported mode: %d", c.Mode)
	}
	return nil
}

// ValidateMaxDirs validates the directory permit ceiling
func ValidateMaxDirs(n int) error {
	if n < 1 {
		return configErrorf("max-dirs", "must be at least 1, got: %d", n)
	}
	return nil
}

// ValidateMaxFiles validates the file permit ceiling
func ValidateMaxFiles(n int) error {
	if n < 1 {
		return configErrorf("max-files", "must be at least 1, got: %d", n)
	}
	return nil
}

// ValidateMaxSymlinks validates the symlink depth bound
func ValidateMaxSymlinks(n int) error {
	if n < 0 {
		return configErrorf("max-symlinks", "must not be negative, got: %d", n)
	}
	return nil
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return configErrorf("verbose level", "%d (supported: 0-3)", level)
	}
	return nil
}

// ParseHumanSize parses sizes like "32K", "2MiB" or "4096" into bytes.
func ParseHumanSize(sizeStr string) (int, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}
	n, err := humanize.ParseBytes(sizeStr)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if n > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}
	return int(n), nil
}

// Config is the optional fdedup configuration file
type Config struct {
	configPath string
	ini        *ini.File
}

// LimitsConfig represents the [limits] section
type LimitsConfig struct {
	MaxDirs     int
	MaxFiles    int
	MaxSymlinks int
}

// ScanSection represents the [scan] section
type ScanSection struct {
	IgnoreSymlinks bool
	SkipEmpty      bool
	HashBuffer     string // human size, e.g. "32K"
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // 0=quiet, 1=summary, 2=detailed, 3=trace
	Debug string // comma-separated debug flags
}

// AllConfig represents all configuration options
type AllConfig struct {
	Limits  *LimitsConfig
	Scan    *ScanSection
	Verbose *VerboseConfig
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/fdedup/config (or the
// platform equivalent).
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fdedup", "config"), nil
}

// LoadConfig loads the configuration file at configPath. A missing file
// yields an empty configuration, so every getter returns its default.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{configPath: configPath}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg.ini = ini.Empty()
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, &ConfigError{Field: "config file", Err: fmt.Errorf("failed to load %s: %w", configPath, err)}
	}
	cfg.ini = iniFile
	return cfg, nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// GetLimitsConfig returns the limits configuration. A value that is present
// but not an integer is a ConfigError.
func (c *Config) GetLimitsConfig() (*LimitsConfig, error) {
	limits := &LimitsConfig{
		MaxDirs:     DefaultMaxDirs,
		MaxFiles:    DefaultMaxFiles,
		MaxSymlinks: DefaultMaxSymlinks,
	}

	if c.ini.HasSection("limits") {
		section := c.ini.Section("limits")
		if err := intKey(section, "max_dirs", &limits.MaxDirs); err != nil {
			return nil, err
		}
		if err := intKey(section, "max_files", &limits.MaxFiles); err != nil {
			return nil, err
		}
		if err := intKey(section, "max_symlinks", &limits.MaxSymlinks); err != nil {
			return nil, err
		}
	}

	return limits, nil
}

// GetScanConfig returns the [scan] section
func (c *Config) GetScanConfig() (*ScanSection, error) {
	scan := &ScanSection{
		HashBuffer: strconv.Itoa(DefaultHashBuffer),
	}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if err := boolKey(section, "ignore_symlinks", &scan.IgnoreSymlinks); err != nil {
			return nil, err
		}
		if err := boolKey(section, "skip_empty", &scan.SkipEmpty); err != nil {
			return nil, err
		}
		if section.HasKey("hash_buffer") {
			if s := section.Key("hash_buffer").String(); s != "" {
				scan.HashBuffer = s
			}
		}
	}

	return scan, nil
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() (*VerboseConfig, error) {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if err := intKey(section, "level", &verboseConfig.Level); err != nil {
			return nil, err
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig, nil
}

func intKey(section *ini.Section, key string, dst *int) error {
	if !section.HasKey(key) {
		return nil
	}
	n, err := section.Key(key).Int()
	if err != nil {
		return configErrorf(key, "%q is not an integer", section.Key(key).String())
	}
	*dst = n
	return nil
}

func boolKey(section *ini.Section, key string, dst *bool) error {
	if !section.HasKey(key) {
		return nil
	}
	b, err := section.Key(key).Bool()
	if err != nil {
		return configErrorf(key, "%q is not a boolean", section.Key(key).String())
	}
	*dst = b
	return nil
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() (*AllConfig, error) {
	limits, err := c.GetLimitsConfig()
	if err != nil {
		return nil, err
	}
	scan, err := c.GetScanConfig()
	if err != nil {
		return nil, err
	}
	verbose, err := c.GetVerboseConfig()
	if err != nil {
		return nil, err
	}
	return &AllConfig{Limits: limits, Scan: scan, Verbose: verbose}, nil
}

// ApplyOverrides applies "key:value" overrides, e.g. "max_dirs:64" or
// "level:2".
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return configErrorf("override", "invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "max_dirs", "max_files", "max_symlinks":
			c.ini.Section("limits").Key(key).SetValue(value)
		case "ignore_symlinks", "skip_empty", "hash_buffer":
			c.ini.Section("scan").Key(key).SetValue(value)
		case "level", "debug":
			c.ini.Section("verbose").Key(key).SetValue(value)
		default:
			return configErrorf("override", "unsupported override key '%s' (supported: max_dirs, max_files, max_symlinks, ignore_symlinks, skip_empty, hash_buffer, level, debug)", key)
		}
	}

	return nil
}

// Save writes the configuration back to its file, creating the directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return c.ini.SaveTo(c.configPath)
}

// ScanConfig builds a ScanConfig from the file, starting from defaults.
func (c *Config) ScanConfig() (ScanConfig, error) {
	sc := DefaultScanConfig()

	limits, err := c.GetLimitsConfig()
	if err != nil {
		return sc, err
	}
	sc.MaxDirs = limits.MaxDirs
	sc.MaxFiles = limits.MaxFiles
	sc.MaxSymlinks = limits.MaxSymlinks

	scan, err := c.GetScanConfig()
	if err != nil {
		return sc, err
	}
	sc.IgnoreSymlinks = scan.IgnoreSymlinks
	sc.SkipEmpty = scan.SkipEmpty
	size, err := ParseHumanSize(scan.HashBuffer)
	if err != nil {
		return sc, &ConfigError{Field: "hash_buffer", Err: err}
	}
	sc.HashBufferSize = size

	return sc, nil
}
