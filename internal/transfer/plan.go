// Package transfer moves a file to the remote media service in fixed-size
// chunks, one at a time and in index order, with cooperative cancellation.
package transfer

// ChunkSize is the size of every chunk except possibly the last.
const ChunkSize int64 = 1024 * 1024

// Plan partitions a file of TotalSize bytes into chunks.
type Plan struct {
	TotalSize  int64 `json:"total_size"`
	ChunkSize  int64 `json:"chunk_size"`
	ChunkCount int   `json:"chunk_count"`
}

// NewPlan returns the plan for totalSize using ChunkSize.
func NewPlan(totalSize int64) Plan {
	return planWithChunkSize(totalSize, ChunkSize)
}

func planWithChunkSize(totalSize, chunkSize int64) Plan {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	if totalSize < 0 {
		totalSize = 0
	}
	return Plan{
		TotalSize:  totalSize,
		ChunkSize:  chunkSize,
		ChunkCount: int((totalSize + chunkSize - 1) / chunkSize),
	}
}

// Offset is the byte offset of chunk index.
func (p Plan) Offset(index int) int64 {
	return int64(index) * p.ChunkSize
}

// ChunkLength is the number of bytes in chunk index.
func (p Plan) ChunkLength(index int) int64 {
	if index < 0 || index >= p.ChunkCount {
		return 0
	}
	remaining := p.TotalSize - p.Offset(index)
	if remaining < p.ChunkSize {
		return remaining
	}
	return p.ChunkSize
}

// Progress converts a sent-chunk count to a percentage in [0, 100].
func (p Plan) Progress(sent int) float64 {
	if p.ChunkCount == 0 {
		return 0
	}
	if sent >= p.ChunkCount {
		return 100
	}
	if sent <= 0 {
		return 0
	}
	return float64(sent) / float64(p.ChunkCount) * 100
}
