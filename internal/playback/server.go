// Package playback serves an uploaded video back to the client, honouring
// single byte ranges so players can seek.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
)

// Content is a seekable body of known size.
type Content interface {
	io.ReadSeeker
	Size() int64
}

// sniffLen is how much of the body is read to guess a missing content type.
const sniffLen = 3072

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// Serve writes content as a download named fileName. An empty or generic
// contentType is replaced by one guessed from the name or the bytes.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, c Content, fileName, contentType string) error {
	size := c.Size()

	contentType, err := resolveContentType(c, fileName, contentType)
	if err != nil {
		return err
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))

	parsed, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges are ignored and the full body is sent.
		parsed = nil
	case err != nil:
		return err
	}

	if parsed == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := io.Copy(w, c); err != nil {
			s.logger.Warn("download interrupted", "error", err)
		}
		return nil
	}

	if _, err := c.Seek(parsed.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(parsed.ContentLength(), 10))
	w.Header().Set("Content-Range", parsed.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.CopyN(w, c, parsed.ContentLength()); err != nil {
		s.logger.Warn("range download interrupted", "error", err, "start", parsed.Start)
	}
	return nil
}

func resolveContentType(c Content, fileName, contentType string) (string, error) {
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType, nil
	}
	if byExt := mime.TypeByExtension(filepath.Ext(fileName)); byExt != "" {
		return byExt, nil
	}

	head := make([]byte, min(c.Size(), sniffLen))
	if _, err := io.ReadFull(c, head); err != nil {
		return "", fmt.Errorf("failed to sniff content: %w", err)
	}
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind: %w", err)
	}
	return mimetype.Detect(head).String(), nil
}
