package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name       string
		minorUnits int64
		expected   string
	}{
		{"zero", 0, "0.00"},
		{"cents only", 67, "0.67"},
		{"no grouping", 12345, "123.45"},
		{"single group", 1234567, "12,345.67"},
		{"two groups", 1234567890, "12,345,678.90"},
		{"negative", -1234567, "-12,345.67"},
		{"exact unit", 100, "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAmount(tt.minorUnits))
		})
	}
}
