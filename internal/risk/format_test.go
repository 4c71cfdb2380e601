package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFixed(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{0, 2, "0.00"},
		{130, 2, "130.00"},
		{4.3, 2, "4.30"},
		{0.125, 2, "0.13"},
		{0.625, 2, "0.63"},
		{0.375, 2, "0.38"},
		{1.005, 2, "1.00"},
		{2.675, 2, "2.67"},
		{43.333333333333336, 2, "43.33"},
		{2.5, 0, "3"},
		{0.5, 0, "1"},
		{0.05, 1, "0.1"},
		{-0.125, 2, "-0.13"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFixed(tt.v, tt.decimals), "FormatFixed(%v, %d)", tt.v, tt.decimals)
	}
}
