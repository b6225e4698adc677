package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRank(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
		ok       bool
	}{
		{name: "Winner", raw: "1", expected: 1, ok: true},
		{name: "Ordinal with padding", raw: " 12 ", expected: 12, ok: true},
		{name: "DNF sentinel", raw: "DNF", ok: false},
		{name: "DSQ run sentinel", raw: "DSQ1", ok: false},
		{name: "Empty", raw: "", ok: false},
		{name: "Zero is not a rank", raw: "0", ok: false},
		{name: "Negative", raw: "-3", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, ok := ParseRank(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, rank)
			}
		})
	}
}

func TestParseFinalTime(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
		ok       bool
	}{
		{name: "Minutes and seconds", raw: "1:12.34", expected: 72.34, ok: true},
		{name: "Seconds only", raw: "52.10", expected: 52.10, ok: true},
		{name: "Padded", raw: " 2:01.99 ", expected: 121.99, ok: true},
		{name: "Empty", raw: "", ok: false},
		{name: "Garbage", raw: "n/a", ok: false},
		{name: "Bad minutes", raw: "x:12.34", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, ok := ParseFinalTime(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, sec, 1e-9)
			}
		})
	}
}
