package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "unset returns default", value: "", def: true, expected: true},
		{name: "true", value: "true", def: false, expected: true},
		{name: "numeric true", value: "1", def: false, expected: true},
		{name: "yes", value: "YES", def: false, expected: true},
		{name: "false", value: "false", def: true, expected: false},
		{name: "off", value: "off", def: true, expected: false},
		{name: "garbage returns default", value: "maybe", def: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_BOOL_ENV", tt.value)
			}
			if got := ParseBoolEnv("TEST_BOOL_ENV", tt.def); got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      int
		expected int
	}{
		{name: "unset returns default", value: "", def: 10, expected: 10},
		{name: "valid integer", value: "2500", def: 10, expected: 2500},
		{name: "whitespace tolerated", value: " 42 ", def: 10, expected: 42},
		{name: "zero rejected", value: "0", def: 10, expected: 10},
		{name: "negative rejected", value: "-5", def: 10, expected: 10},
		{name: "garbage returns default", value: "soon", def: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_INT_ENV", tt.value)
			}
			if got := ParseIntEnv("TEST_INT_ENV", tt.def); got != tt.expected {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}
