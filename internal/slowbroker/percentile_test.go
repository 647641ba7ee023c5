package slowbroker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile_LegacyInterpolation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"single sample", []float64{42}, 90, 42},
		{"p0 returns min", []float64{1, 2, 3, 4, 5}, 0, 1},
		{"p100 returns max", []float64{1, 2, 3, 4, 5}, 100, 5},
		{"median of odd set", []float64{1, 2, 3, 4, 5}, 50, 3},
		{"unsorted input sorted internally", []float64{5, 1, 4, 2, 3}, 50, 3},
		{"p90 of ten samples interpolates", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 90, 9.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentile(tt.values, tt.p)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	original := append([]float64{}, values...)
	percentile(values, 50)
	assert.Equal(t, original, values)
}

func TestHasSufficientData(t *testing.T) {
	tests := []struct {
		name string
		n    int
		p    float64
		want bool
	}{
		{"ten samples at p90 sufficient", 10, 90, true},
		{"nine samples at p90 insufficient on upper tail", 9, 90, false},
		{"one sample at p50 insufficient", 1, 50, false},
		{"two samples at p50 sufficient", 2, 50, true},
		{"zero samples always insufficient", 0, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasSufficientData(tt.n, tt.p))
		})
	}
}
