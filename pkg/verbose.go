package fdedup

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
)

var globalVerboseLevel int
var debugFlags map[string]bool

var (
	logMu     sync.Mutex
	logOutput io.Writer = os.Stderr
)

// SetVerboseLevel sets the global verbose level
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// SetLogOutput redirects verbose and trace output. A nil writer restores stderr.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
}

// logf writes one complete line; walker goroutines log concurrently and
// lines must not interleave.
func logf(prefix, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	logMu.Lock()
	fmt.Fprint(logOutput, prefix+msg)
	logMu.Unlock()
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {} // No-op
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	logf("[TRACE] ", "Entering function: %s", funcName)

	return func() {
		logf("[TRACE] ", "Exiting function: %s", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel >= level {
		logf(fmt.Sprintf("[VERBOSE-%d] ", level), format, args...)
	}
}

// DebugLog logs a message when the named debug flag is enabled, regardless of
// the verbose level.
func DebugLog(flag string, format string, args ...interface{}) {
	if IsDebugEnabled(flag) {
		logf("["+strings.ToUpper(flag)+"] ", format, args...)
	}
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("walk,guard") and key:value format ("walk:true,guard:false")
func SetDebugFlags(flagsStr string) {
	debugFlags = make(map[string]bool)
	if flagsStr == "" {
		return
	}

	flags := strings.Split(flagsStr, ",")
	for _, flag := range flags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "true", "1", "yes", "on":
				flagValue = true
			case "false", "0", "no", "off":
				flagValue = false
			default:
				flagValue = true // Default to true for unknown values
			}
		}

		debugFlags[flagName] = flagValue
	}
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
