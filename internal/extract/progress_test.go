package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		processed int
		want      float64
	}{
		{"empty batch", 0, 0, 100},
		{"none done", 4, 0, 0},
		{"half", 4, 2, 50},
		{"all", 4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(tt.total, 0)
			p.FilesProcessed = tt.processed
			assert.InDelta(t, tt.want, p.Percentage(), 0.001)
		})
	}
}

func TestProgressEstimatedRemaining(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewProgress(2, 300)
	p.StartTime = start
	p.now = func() time.Time { return start.Add(10 * time.Second) }

	_, ok := p.EstimatedRemaining()
	assert.False(t, ok, "no estimate before any bytes")

	p.Update("a.md", 100)
	eta, ok := p.EstimatedRemaining()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Second, eta)
	assert.Equal(t, 10*time.Second, p.Elapsed())

	p.Update("b.md", 200)
	eta, ok = p.EstimatedRemaining()
	assert.True(t, ok)
	assert.Zero(t, eta)
}

func TestProgressSnapshot(t *testing.T) {
	p := NewProgress(1, 1)
	p.AddError("Failed to copy a.md: boom")

	snap := p.Snapshot()
	p.AddError("later")

	assert.Len(t, snap.Errors, 1)
	assert.True(t, p.HasErrors())
}
