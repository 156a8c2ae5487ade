package fdedup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreManager holds the exclude patterns for a scan. Patterns are regular
// expressions matched against the slash-separated path relative to the scan
// root. It is read-only once the scan starts.
type IgnoreManager struct {
	patterns []*regexp.Regexp
}

// NewIgnoreManager compiles the given patterns.
func NewIgnoreManager(patterns []string) (*IgnoreManager, error) {
	im := &IgnoreManager{}
	for _, p := range patterns {
		if err := im.AddPattern(p); err != nil {
			return nil, err
		}
	}
	return im, nil
}

// LoadIgnoreFile reads one pattern per line from path. Empty lines and lines
// starting with # are skipped.
func (im *IgnoreManager) LoadIgnoreFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return &ConfigError{Field: "exclude file", Err: err}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pattern, err := regexp.Compile(line)
		if err != nil {
			return configErrorf("exclude file", "invalid regex pattern at %s:%d: %s - %w", path, lineNum, line, err)
		}

		im.patterns = append(im.patterns, pattern)
	}

	if err := scanner.Err(); err != nil {
		return &ConfigError{Field: "exclude file", Err: fmt.Errorf("error reading %s: %w", path, err)}
	}

	return nil
}

// AddPattern adds a new ignore pattern
func (im *IgnoreManager) AddPattern(patternStr string) error {
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return configErrorf("exclude", "invalid regex pattern: %s - %w", patternStr, err)
	}

	im.patterns = append(im.patterns, pattern)
	return nil
}

// ShouldIgnore checks if a root-relative path matches any pattern
func (im *IgnoreManager) ShouldIgnore(relativePath string) bool {
	if im == nil || len(im.patterns) == 0 {
		return false
	}

	normalisedPath := filepath.ToSlash(relativePath)

	for _, pattern := range im.patterns {
		if pattern.MatchString(normalisedPath) {
			return true
		}
	}

	return false
}

// HasPatterns returns true if there are any ignore patterns loaded
func (im *IgnoreManager) HasPatterns() bool {
	return im != nil && len(im.patterns) > 0
}

// Patterns returns the source text of every pattern
func (im *IgnoreManager) Patterns() []string {
	if im == nil {
		return nil
	}
	out := make([]string, len(im.patterns))
	for i, p := range im.patterns {
		out[i] = p.String()
	}
	return out
}
