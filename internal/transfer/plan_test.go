package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlan_ChunkCount(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{0, 0},
		{1, 1},
		{ChunkSize, 1},
		{ChunkSize + 1, 2},
		{2*ChunkSize + 1, 3},
		{3 * ChunkSize, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPlan(tt.size).ChunkCount, "size %d", tt.size)
	}
}

func TestPlan_ChunkLength(t *testing.T) {
	p := NewPlan(2*ChunkSize + 1)

	assert.Equal(t, ChunkSize, p.ChunkLength(0))
	assert.Equal(t, ChunkSize, p.ChunkLength(1))
	assert.Equal(t, int64(1), p.ChunkLength(2))
	assert.Equal(t, int64(0), p.ChunkLength(3))
	assert.Equal(t, int64(0), p.ChunkLength(-1))
	assert.Equal(t, 2*ChunkSize, p.Offset(2))
}

func TestPlan_Progress(t *testing.T) {
	p := NewPlan(3 * ChunkSize)

	assert.Equal(t, 0.0, p.Progress(0))
	assert.InDelta(t, 33.33, p.Progress(1), 0.01)
	assert.InDelta(t, 66.67, p.Progress(2), 0.01)
	assert.Equal(t, 100.0, p.Progress(3))
	assert.Equal(t, 100.0, p.Progress(7))

	assert.Equal(t, 0.0, NewPlan(0).Progress(0))
}
