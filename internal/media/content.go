package media

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Content reads an uploaded video back from its chunks. Chunks have a fixed
// length except the last, so any offset maps directly onto one chunk.
type Content struct {
	Video *Video

	ctx       context.Context
	store     ChunkStore
	chunkSize int64

	off    int64
	cached int
	buf    []byte
}

func newContent(ctx context.Context, store ChunkStore, v *Video, chunkSize int64) *Content {
	return &Content{Video: v, ctx: ctx, store: store, chunkSize: chunkSize, cached: -1}
}

func (c *Content) Size() int64 {
	return c.Video.Size
}

func (c *Content) Read(p []byte) (int, error) {
	if c.off >= c.Video.Size {
		return 0, io.EOF
	}

	index := int(c.off / c.chunkSize)
	if index != c.cached {
		data, err := c.store.GetChunk(c.ctx, c.Video.ID, index)
		if err != nil {
			return 0, fmt.Errorf("load chunk %d: %w", index, err)
		}
		c.buf, c.cached = data, index
	}

	start := c.off - int64(index)*c.chunkSize
	if start >= int64(len(c.buf)) {
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, c.buf[start:])
	c.off += int64(n)
	return n, nil
}

func (c *Content) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.off + offset
	case io.SeekEnd:
		abs = c.Video.Size + offset
	default:
		return 0, errors.New("media: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("media: negative position")
	}
	c.off = abs
	return abs, nil
}
