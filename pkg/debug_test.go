package fdedup

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetDebugFlags(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedWalk  bool
		expectedHash  bool
		expectedGuard bool
		expectedIndex bool
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:         "single option",
			input:        "walk",
			expectedWalk: true,
		},
		{
			name:          "multiple options",
			input:         "walk,hash,guard,index",
			expectedWalk:  true,
			expectedHash:  true,
			expectedGuard: true,
			expectedIndex: true,
		},
		{
			name:          "options with values",
			input:         "walk:true,hash:false,guard:1,index:0",
			expectedWalk:  true,
			expectedGuard: true,
		},
		{
			name:          "mixed format",
			input:         "walk,hash:false,guard",
			expectedWalk:  true,
			expectedGuard: true,
		},
		{
			name:          "whitespace handling",
			input:         " walk , hash , guard ",
			expectedWalk:  true,
			expectedHash:  true,
			expectedGuard: true,
		},
		{
			name:          "case insensitive",
			input:         "Walk,HASH,Guard",
			expectedWalk:  true,
			expectedHash:  true,
			expectedGuard: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetDebugFlags(tt.input)

			if IsDebugEnabled(DebugWalk) != tt.expectedWalk {
				t.Errorf("walk: expected %v, got %v", tt.expectedWalk, IsDebugEnabled(DebugWalk))
			}
			if IsDebugEnabled(DebugHash) != tt.expectedHash {
				t.Errorf("hash: expected %v, got %v", tt.expectedHash, IsDebugEnabled(DebugHash))
			}
			if IsDebugEnabled(DebugGuard) != tt.expectedGuard {
				t.Errorf("guard: expected %v, got %v", tt.expectedGuard, IsDebugEnabled(DebugGuard))
			}
			if IsDebugEnabled(DebugIndex) != tt.expectedIndex {
				t.Errorf("index: expected %v, got %v", tt.expectedIndex, IsDebugEnabled(DebugIndex))
			}
		})
	}
	SetDebugFlags("")
}

func TestDebugFlagCaseInsensitive(t *testing.T) {
	SetDebugFlags("Dispatch")
	defer SetDebugFlags("")

	if !IsDebugEnabled("dispatch") {
		t.Error("Expected lowercase flag name to work")
	}
	if !IsDebugEnabled("Dispatch") {
		t.Error("Expected mixed case flag name to work")
	}
	if !IsDebugEnabled("DISPATCH") {
		t.Error("Expected uppercase flag name to work")
	}
}

func TestDebugFlagValueParsing(t *testing.T) {
	tests := []struct {
		input    string
		flag     string
		expected bool
	}{
		{"flag:true", "flag", true},
		{"flag:TRUE", "flag", true},
		{"flag:1", "flag", true},
		{"flag:yes", "flag", true},
		{"flag:on", "flag", true},
		{"flag:false", "flag", false},
		{"flag:FALSE", "flag", false},
		{"flag:0", "flag", false},
		{"flag:no", "flag", false},
		{"flag:off", "flag", false},
		{"flag:unknown", "flag", true}, // Default to true for unknown values
		{"flag", "flag", true},         // Default to true for simple flag names
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			SetDebugFlags(tt.input)
			result := IsDebugEnabled(tt.flag)
			if result != tt.expected {
				t.Errorf("SetDebugFlags(%q) then IsDebugEnabled(%q) = %v, expected %v", tt.input, tt.flag, result, tt.expected)
			}
		})
	}
	SetDebugFlags("")
}

func TestLogOutputPrefixes(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(nil)

	oldLevel := GetVerboseLevel()
	defer SetVerboseLevel(oldLevel)
	defer SetDebugFlags("")

	SetVerboseLevel(1)
	SetDebugFlags("limits")

	VerboseLog(1, "shown %d", 1)
	VerboseLog(2, "hidden")
	DebugLog(DebugLimits, "permit %s", "dir")
	DebugLog(DebugHash, "hidden")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "[VERBOSE-1] shown 1" {
		t.Errorf("Unexpected verbose line %q", lines[0])
	}
	if lines[1] != "[LIMITS] permit dir" {
		t.Errorf("Unexpected debug line %q", lines[1])
	}
}

func TestVerboseEnterTrace(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(nil)

	oldLevel := GetVerboseLevel()
	defer SetVerboseLevel(oldLevel)

	SetVerboseLevel(2)
	VerboseEnter()()
	if buf.Len() != 0 {
		t.Errorf("Expected no trace output below level 3, got %q", buf.String())
	}

	SetVerboseLevel(3)
	VerboseEnter()()
	out := buf.String()
	if !strings.Contains(out, "Entering function: TestVerboseEnterTrace") {
		t.Errorf("Missing entry trace in %q", out)
	}
	if !strings.Contains(out, "Exiting function: TestVerboseEnterTrace") {
		t.Errorf("Missing exit trace in %q", out)
	}
}
