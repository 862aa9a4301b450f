package progress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		duration float64
		want     int
	}{
		{"start", 0, 600, 0},
		{"threshold", 540, 600, 90},
		{"rounds half up", 1, 8, 13},
		{"rounds down", 40.4, 100, 40},
		{"end", 600, 600, 100},
		{"past end", 700, 600, 100},
		{"negative position", -3, 600, 0},
		{"zero duration", 10, 0, 0},
		{"negative duration", 10, -1, 0},
		{"nan duration", 10, math.NaN(), 0},
		{"infinite duration", 10, math.Inf(1), 0},
		{"nan position", math.NaN(), 600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.position, tt.duration))
		})
	}
}

func TestPercent_Bounds(t *testing.T) {
	for _, d := range []float64{0.1, 1, 7, 600, 3599.9} {
		for i := 0; i <= 100; i++ {
			p := Percent(d*float64(i)/100, d)
			assert.True(t, p >= 0 && p <= 100, "duration %v step %d gave %d", d, i, p)
		}
	}
}
