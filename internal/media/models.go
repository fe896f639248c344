// Package media is the remote media service core: video records, their
// chunk storage and the operations the uploading client calls.
package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/heimdex/watermark-eraser/internal/geometry"
)

// MaxChunkSize is the largest chunk the service accepts.
const MaxChunkSize = 1024 * 1024

type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed, StatusDeleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

var (
	ErrNotFound      = errors.New("video not found")
	ErrForbidden     = errors.New("video belongs to another owner")
	ErrOutOfOrder    = errors.New("chunk out of order")
	ErrChunkTooLarge = errors.New("chunk too large")
	ErrSizeExceeded  = errors.New("chunk exceeds declared size")
	ErrIncomplete    = errors.New("upload incomplete")
	ErrDeleted       = errors.New("video deleted")
	ErrInvalidRegion = errors.New("invalid region")
	ErrInvalidInput  = errors.New("invalid input")
)

// Video is a media record as kept by the service.
type Video struct {
	ID             string            `json:"id"`
	Owner          string            `json:"owner"`
	FileName       string            `json:"file_name"`
	ContentType    string            `json:"content_type"`
	Size           int64             `json:"size"`
	Status         Status            `json:"status"`
	Region         *geometry.IntRect `json:"region,omitempty"`
	ChunksReceived int               `json:"chunks_received"`
	BytesReceived  int64             `json:"bytes_received"`
	Error          string            `json:"error,omitempty"`
	UploadedAt     time.Time         `json:"uploaded_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Complete reports whether every declared byte has arrived.
func (v *Video) Complete() bool {
	return v.BytesReceived == v.Size
}

func NewID() string {
	return uuid.NewString()
}

// SanitizeFileName keeps the base name of a client supplied file name and
// replaces anything outside a conservative character set.
func SanitizeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if runes := []rune(cleaned); len(runes) > maxFileNameRunes {
		cleaned = string(runes[:maxFileNameRunes])
	}
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return "upload"
	}
	return cleaned
}

const maxFileNameRunes = 200

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')', '[', ']':
		return true
	}
	return false
}
