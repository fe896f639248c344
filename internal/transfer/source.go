package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Source is the file being transferred: its identity plus random access to
// its bytes so any chunk can be read again on retry.
type Source interface {
	io.ReaderAt
	Name() string
	ContentType() string
	Size() int64
}

// File is a Source backed by a file on disk.
type File struct {
	f           *os.File
	name        string
	contentType string
	size        int64
}

// OpenFile opens path and sniffs its content type.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(io.NewSectionReader(f, 0, info.Size())); err == nil && mt != nil {
		contentType = mt.String()
	}

	return &File{
		f:           f,
		name:        filepath.Base(path),
		contentType: contentType,
		size:        info.Size(),
	}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) Name() string        { return f.name }
func (f *File) ContentType() string { return f.contentType }
func (f *File) Size() int64         { return f.size }

func (f *File) Close() error {
	return f.f.Close()
}

// BytesSource is an in-memory Source.
type BytesSource struct {
	r           *bytes.Reader
	name        string
	contentType string
}

func NewBytesSource(name, contentType string, data []byte) *BytesSource {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return &BytesSource{r: bytes.NewReader(data), name: name, contentType: contentType}
}

func (b *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	return b.r.ReadAt(p, off)
}

func (b *BytesSource) Name() string        { return b.name }
func (b *BytesSource) ContentType() string { return b.contentType }
func (b *BytesSource) Size() int64         { return b.r.Size() }
