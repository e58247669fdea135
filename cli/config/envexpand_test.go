package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("FERRY_SET", "value")
	t.Setenv("FERRY_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "addr: ${FERRY_SET}", "addr: value"},
		{"unset variable", "addr: ${FERRY_UNSET_XYZ}", "addr: "},
		{"unset with default", "addr: ${FERRY_UNSET_XYZ:-fallback}", "addr: fallback"},
		{"set overrides default", "addr: ${FERRY_SET:-fallback}", "addr: value"},
		{"empty uses default", "addr: ${FERRY_EMPTY:-fallback}", "addr: fallback"},
		{"no pattern", "addr: plain", "addr: plain"},
		{"multiple", "${FERRY_SET}/${FERRY_UNSET_XYZ:-x}", "value/x"},
		{"dollar without braces", "cost: $5", "cost: $5"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.input); got != tt.want {
			t.Errorf("%s: ExpandEnv(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
		}
	}
}
