package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrChunkNotFound is returned by a ChunkStore for a chunk it does not hold.
var ErrChunkNotFound = errors.New("chunk not found")

// ChunkStore keeps the raw chunks of each video.
type ChunkStore interface {
	PutChunk(ctx context.Context, videoID string, index int, data []byte) error
	GetChunk(ctx context.Context, videoID string, index int) ([]byte, error)
	DeleteChunks(ctx context.Context, videoID string) error
}

// FSChunkStore stores chunks as files under root/<videoID>/.
type FSChunkStore struct {
	root string
}

func NewFSChunkStore(root string) (*FSChunkStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	return &FSChunkStore{root: root}, nil
}

func (s *FSChunkStore) PutChunk(_ context.Context, videoID string, index int, data []byte) error {
	dir, err := s.videoDir(videoID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
	}

	path := filepath.Join(dir, chunkName(index))
	tmp, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return fmt.Errorf("create temp chunk: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write chunk %d: %w", index, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close chunk %d: %w", index, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit chunk %d: %w", index, err)
	}
	return nil
}

func (s *FSChunkStore) GetChunk(_ context.Context, videoID string, index int) ([]byte, error) {
	dir, err := s.videoDir(videoID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, chunkName(index)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	return data, nil
}

func (s *FSChunkStore) DeleteChunks(_ context.Context, videoID string) error {
	dir, err := s.videoDir(videoID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}
	return nil
}

// videoDir rejects anything but a UUID so IDs never escape root.
func (s *FSChunkStore) videoDir(videoID string) (string, error) {
	if err := uuid.Validate(videoID); err != nil {
		return "", fmt.Errorf("%w: video id %q", ErrInvalidInput, videoID)
	}
	return filepath.Join(s.root, videoID), nil
}

func chunkName(index int) string {
	return fmt.Sprintf("%08d.chunk", index)
}
