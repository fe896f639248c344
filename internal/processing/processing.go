// Package processing drives the remote removal step for an uploaded video:
// mark the region, flag the video as processing, wait for the reconstruction
// and record the outcome.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/logging"
	"github.com/heimdex/watermark-eraser/internal/media"
)

var (
	ErrLocked            = errors.New(access.LockedReason)
	ErrAlreadyProcessing = errors.New("video is already being processed")
)

// Remote is the part of the media service processing needs.
type Remote interface {
	MarkRegion(ctx context.Context, token, videoID string, r geometry.IntRect) error
	SetStatus(ctx context.Context, token, videoID string, status media.Status) error
}

// TokenSource hands out the current access token.
type TokenSource interface {
	CurrentAccessToken() (string, bool)
}

// Completer performs the reconstruction itself.
type Completer interface {
	Complete(ctx context.Context, videoID string, region geometry.IntRect) error
}

// DelayCompleter stands in for the remote reconstruction by waiting.
type DelayCompleter struct {
	Delay time.Duration
}

func (d DelayCompleter) Complete(ctx context.Context, _ string, _ geometry.IntRect) error {
	if d.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, videoID string, region geometry.IntRect) error

func (f CompleterFunc) Complete(ctx context.Context, videoID string, region geometry.IntRect) error {
	return f(ctx, videoID, region)
}

// StatusText is the user facing description of a video status.
func StatusText(s media.Status) string {
	switch s {
	case media.StatusUploaded:
		return "Video uploaded, ready for processing"
	case media.StatusProcessing:
		return "Processing video with AI reconstruction..."
	case media.StatusCompleted:
		return "Processing complete"
	case media.StatusFailed:
		return "Processing failed"
	case media.StatusDeleted:
		return "Video deleted"
	default:
		return "Unknown status"
	}
}

// Runner runs at most one processing job per video.
type Runner struct {
	remote    Remote
	tokens    TokenSource
	completer Completer
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func NewRunner(remote Remote, tokens TokenSource, completer Completer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if completer == nil {
		completer = DelayCompleter{}
	}
	return &Runner{
		remote:    remote,
		tokens:    tokens,
		completer: completer,
		logger:    logging.WithComponent(logger, "processing"),
		inflight:  make(map[string]struct{}),
	}
}

// Process runs the whole sequence for videoID and blocks until it finishes.
// The region is rounded to whole pixels before it is marked.
func (r *Runner) Process(ctx context.Context, videoID string, region geometry.Rect) error {
	if !r.acquire(videoID) {
		return ErrAlreadyProcessing
	}
	defer r.release(videoID)
	return r.run(ctx, videoID, region.Round())
}

// Submit starts Process in the background. The returned error only covers
// the checks made before the goroutine starts.
func (r *Runner) Submit(ctx context.Context, videoID string, region geometry.Rect) error {
	if _, ok := r.tokens.CurrentAccessToken(); !ok {
		return ErrLocked
	}
	if !r.acquire(videoID) {
		return ErrAlreadyProcessing
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(videoID)
		if err := r.run(ctx, videoID, region.Round()); err != nil {
			r.logger.Error("processing failed", "video_id", videoID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) Busy(videoID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[videoID]
	return ok
}

func (r *Runner) run(ctx context.Context, videoID string, region geometry.IntRect) error {
	logger := logging.WithVideoID(r.logger, videoID)

	token, ok := r.tokens.CurrentAccessToken()
	if !ok {
		return ErrLocked
	}

	if err := r.remote.MarkRegion(ctx, token, videoID, region); err != nil {
		return fmt.Errorf("mark region: %w", err)
	}
	if err := r.remote.SetStatus(ctx, token, videoID, media.StatusProcessing); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	logger.Info("processing started", "x", region.X, "y", region.Y, "width", region.Width, "height", region.Height)

	if err := r.completer.Complete(ctx, videoID, region); err != nil {
		// The failure must be recorded even when ctx is what failed.
		if serr := r.remote.SetStatus(context.WithoutCancel(ctx), token, videoID, media.StatusFailed); serr != nil {
			logger.Warn("failed to record processing failure", "error", serr)
		}
		return fmt.Errorf("reconstruct: %w", err)
	}

	if err := r.remote.SetStatus(ctx, token, videoID, media.StatusCompleted); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	logger.Info("processing completed")
	return nil
}

func (r *Runner) acquire(videoID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[videoID]; ok {
		return false
	}
	r.inflight[videoID] = struct{}{}
	return true
}

func (r *Runner) release(videoID string) {
	r.mu.Lock()
	delete(r.inflight, videoID)
	r.mu.Unlock()
}
