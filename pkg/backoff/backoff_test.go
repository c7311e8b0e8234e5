package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	p := New(2*time.Second, 5*time.Minute, false)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{1000, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_JitterStaysInRange(t *testing.T) {
	p := New(time.Second, time.Minute, true)

	for attempt := 1; attempt <= 10; attempt++ {
		full := New(time.Second, time.Minute, false).Delay(attempt)
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, full/2)
			assert.LessOrEqual(t, d, full)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, 0, false)

	assert.Equal(t, 2*time.Second, p.Base)
	assert.Equal(t, 5*time.Minute, p.Max)

	now := time.Now()
	assert.Equal(t, now.Add(4*time.Second), p.Next(now, 2))
}
