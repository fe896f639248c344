package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/geometry"
)

// Caller identifies who is calling and with which access secret.
type Caller struct {
	Owner  string
	Secret string
}

type MediaService interface {
	CreateVideo(ctx context.Context, c Caller, fileName, contentType string, size int64) (*Video, error)
	PutChunk(ctx context.Context, c Caller, id string, index int, data []byte) (*Video, error)
	MarkRegion(ctx context.Context, c Caller, id string, r geometry.IntRect) (*Video, error)
	SetStatus(ctx context.Context, c Caller, id string, status Status, errorMsg string) (*Video, error)
	GetVideo(ctx context.Context, c Caller, id string) (*Video, error)
	ListVideos(ctx context.Context, c Caller, owner string) ([]*Video, error)
	DeleteVideo(ctx context.Context, c Caller, id string) error
	OpenContent(ctx context.Context, c Caller, id string) (*Content, error)
}

type Service struct {
	repo      Repository
	store     ChunkStore
	verifier  *access.Verifier
	logger    *slog.Logger
	chunkSize int64

	// chunkMu serializes chunk writes so ordering checks and storage agree.
	chunkMu sync.Mutex
}

type ServiceOption func(*Service)

// WithChunkSize sets the fixed chunk size; every chunk but the last must
// have exactly this length.
func WithChunkSize(n int64) ServiceOption {
	return func(s *Service) {
		if n > 0 && n <= MaxChunkSize {
			s.chunkSize = n
		}
	}
}

func NewService(repo Repository, store ChunkStore, verifier *access.Verifier, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		store:     store,
		verifier:  verifier,
		logger:    logger,
		chunkSize: MaxChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateVideo(ctx context.Context, c Caller, fileName, contentType string, size int64) (*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: size must not be negative", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now().UTC().Truncate(time.Second)
	v := &Video{
		ID:          NewID(),
		Owner:       c.Owner,
		FileName:    SanitizeFileName(fileName),
		ContentType: contentType,
		Size:        size,
		Status:      StatusUploaded,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateVideo(ctx, v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}

	s.log().Info("video record created",
		"video_id", v.ID,
		"owner", v.Owner,
		"file_name", v.FileName,
		"size", humanize.IBytes(uint64(size)),
	)
	return v, nil
}

func (s *Service) PutChunk(ctx context.Context, c Caller, id string, index int, data []byte) (*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}

	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()

	v, err := s.ownedVideo(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusUploaded {
		return nil, fmt.Errorf("%w: video is %s", ErrInvalidInput, v.Status)
	}
	if index != v.ChunksReceived {
		return nil, fmt.Errorf("%w: got chunk %d, expected %d", ErrOutOfOrder, index, v.ChunksReceived)
	}

	n := int64(len(data))
	switch {
	case n == 0:
		return nil, fmt.Errorf("%w: empty chunk", ErrInvalidInput)
	case n > s.chunkSize:
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrChunkTooLarge, n, s.chunkSize)
	case v.BytesReceived+n > v.Size:
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrSizeExceeded, v.BytesReceived+n, v.Size)
	case n < s.chunkSize && v.BytesReceived+n != v.Size:
		return nil, fmt.Errorf("%w: only the final chunk may be shorter than %d bytes", ErrInvalidInput, s.chunkSize)
	}

	if err := s.store.PutChunk(ctx, id, index, data); err != nil {
		return nil, fmt.Errorf("store chunk: %w", err)
	}
	if err := s.repo.AdvanceChunks(ctx, id, index, n); err != nil {
		return nil, fmt.Errorf("record chunk: %w", err)
	}

	v.ChunksReceived++
	v.BytesReceived += n
	v.UpdatedAt = time.Now().UTC()

	s.log().Debug("chunk stored", "video_id", id, "index", index, "bytes", n)
	if v.Complete() {
		s.log().Info("upload complete", "video_id", id, "chunks", v.ChunksReceived)
	}
	return v, nil
}

func (s *Service) MarkRegion(ctx context.Context, c Caller, id string, r geometry.IntRect) (*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidRegion, r)
	}

	v, err := s.ownedVideo(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !v.Complete() {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, v.BytesReceived, v.Size)
	}

	if err := s.repo.UpdateRegion(ctx, id, r); err != nil {
		return nil, fmt.Errorf("update region: %w", err)
	}
	v.Region = &r
	s.log().Info("region marked", "video_id", id, "x", r.X, "y", r.Y, "width", r.Width, "height", r.Height)
	return v, nil
}

func (s *Service) SetStatus(ctx context.Context, c Caller, id string, status Status, errorMsg string) (*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	if status == StatusDeleted {
		return nil, fmt.Errorf("%w: use delete to remove a video", ErrInvalidInput)
	}

	v, err := s.ownedVideo(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if status == StatusProcessing && !v.Complete() {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, v.BytesReceived, v.Size)
	}
	if status != StatusFailed {
		errorMsg = ""
	}

	if err := s.repo.UpdateStatus(ctx, id, status, errorMsg); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	v.Status = status
	v.Error = errorMsg
	s.log().Info("status updated", "video_id", id, "status", status)
	return v, nil
}

func (s *Service) GetVideo(ctx context.Context, c Caller, id string) (*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	if v.Owner != c.Owner {
		return nil, ErrForbidden
	}
	return v, nil
}

// ListVideos lists the live videos of owner. Callers may only list their own.
func (s *Service) ListVideos(ctx context.Context, c Caller, owner string) ([]*Video, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	if owner == "" {
		owner = c.Owner
	}
	if owner != c.Owner {
		return nil, ErrForbidden
	}
	videos, err := s.repo.ListVideosByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if videos == nil {
		videos = []*Video{}
	}
	return videos, nil
}

// DeleteVideo marks the record deleted and drops its chunks.
func (s *Service) DeleteVideo(ctx context.Context, c Caller, id string) error {
	if err := s.authorize(c); err != nil {
		return err
	}

	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()

	if _, err := s.ownedVideo(ctx, c, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusDeleted, ""); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if err := s.store.DeleteChunks(ctx, id); err != nil {
		s.log().Warn("failed to remove chunks", "video_id", id, "error", err)
	}
	s.log().Info("video deleted", "video_id", id)
	return nil
}

// OpenContent returns a seekable view over the assembled upload.
func (s *Service) OpenContent(ctx context.Context, c Caller, id string) (*Content, error) {
	if err := s.authorize(c); err != nil {
		return nil, err
	}
	v, err := s.ownedVideo(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !v.Complete() {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrIncomplete, v.BytesReceived, v.Size)
	}
	return newContent(ctx, s.store, v, s.chunkSize), nil
}

func (s *Service) authorize(c Caller) error {
	if err := s.verifier.Verify(c.Secret); err != nil {
		return err
	}
	if c.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	return nil
}

// ownedVideo loads a live video belonging to the caller.
func (s *Service) ownedVideo(ctx context.Context, c Caller, id string) (*Video, error) {
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	if v.Owner != c.Owner {
		return nil, ErrForbidden
	}
	if v.Status == StatusDeleted {
		return nil, ErrDeleted
	}
	return v, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.logger
}

// IsAccessDenied reports whether err came from a rejected secret.
func IsAccessDenied(err error) bool {
	return errors.Is(err, access.ErrInvalidSecret)
}
