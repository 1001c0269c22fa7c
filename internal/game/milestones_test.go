package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerMilestones(t *testing.T) {
	tests := []struct {
		name     string
		old, new float64
		base     int64
		minimum  int64
		want     []int64
	}{
		{name: "single crossing", old: 5, new: 25, base: 10, minimum: 1, want: []int64{10}},
		{name: "minimum filters low powers", old: 950, new: 1500, base: 10, minimum: 1000, want: []int64{1000}},
		{name: "no change", old: 100, new: 100, base: 10, minimum: 1, want: nil},
		{name: "decrease", old: 100, new: 50, base: 10, minimum: 1, want: nil},
		{name: "multiple crossings", old: 0.5, new: 150, base: 10, minimum: 1, want: []int64{1, 10, 100}},
		{name: "from zero", old: 0, new: 1, base: 10, minimum: 1, want: []int64{1}},
		{name: "exact landing counts", old: 9, new: 10, base: 10, minimum: 1, want: []int64{10}},
		{name: "exact start excluded", old: 10, new: 99, base: 10, minimum: 1, want: nil},
		{name: "fractional level up", old: 9.98, new: 10.02, base: 10, minimum: 1, want: []int64{10}},
		{name: "base two", old: 3, new: 20, base: 2, minimum: 1, want: []int64{4, 8, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := powerMilestones(tt.old, tt.new, tt.base, tt.minimum)
			assert.Equal(t, tt.want, got)
		})
	}
}
