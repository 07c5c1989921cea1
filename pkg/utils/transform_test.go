package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	in := []string{"http://a/", "http://a", "http://b", "http://b/"}
	assert.Equal(t, []string{"http://a", "http://b"}, Dedup(in))
	assert.Empty(t, Dedup(nil))
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"42", 42},
		{"0x2a", 42},
		{"0X2A", 42},
		{" 7 ", 7},
		{"", 0},
		{"not-a-number", 0},
		{"0xzz", 0},
		{"-3", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseUint(tt.in), "input %q", tt.in)
	}
}
