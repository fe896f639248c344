// Package cloud talks to the remote media service over HTTP.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/media"
)

// Headers understood by the media service.
const (
	HeaderAccessSecret = "X-Access-Secret"
	HeaderOwnerID      = "X-Owner-Id"
	HeaderRequestID    = "X-Request-Id"
)

// Error codes the media service puts in its error bodies.
const (
	CodeAccessDenied = "ACCESS_DENIED"
	CodeForbidden    = "FORBIDDEN"
)

// Client is everything the agent calls on the media service. Each call
// carries the caller's access token.
type Client interface {
	CreateRecord(ctx context.Context, token, fileName, contentType string, size int64) (string, error)
	SendChunk(ctx context.Context, token, videoID string, index int, data []byte) error
	MarkRegion(ctx context.Context, token, videoID string, r geometry.IntRect) error
	SetStatus(ctx context.Context, token, videoID string, status media.Status) error
	GetVideo(ctx context.Context, token, videoID string) (*media.Video, error)
	ListVideos(ctx context.Context, token string) ([]*media.Video, error)
	DeleteVideo(ctx context.Context, token, videoID string) error
	Health(ctx context.Context) error
}

// RemoteError is a non-2xx response from the media service.
type RemoteError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *RemoteError) Error() string {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &parsed) == nil && parsed.Error != "" {
		return fmt.Sprintf("media service: HTTP %d: %s", e.StatusCode, parsed.Error)
	}
	return fmt.Sprintf("media service: HTTP %d: %s", e.StatusCode, e.Body)
}

// AccessDenied reports whether the service rejected the access secret.
func (e *RemoteError) AccessDenied() bool {
	return e.StatusCode == http.StatusUnauthorized || (e.StatusCode == http.StatusForbidden && e.Code != CodeForbidden)
}

func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *RemoteError) IsRetryable() bool {
	return e.StatusCode >= 500
}
