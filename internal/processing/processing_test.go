package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/media"
)

type recordingRemote struct {
	mu       sync.Mutex
	calls    []string
	region   geometry.IntRect
	markErr  error
	statuses []media.Status
}

func (r *recordingRemote) MarkRegion(_ context.Context, token, videoID string, rect geometry.IntRect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "mark:"+videoID)
	r.region = rect
	return r.markErr
}

func (r *recordingRemote) SetStatus(_ context.Context, token, videoID string, status media.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "status:"+string(status))
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *recordingRemote) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestProcess_MarksRoundedRegionThenCompletes(t *testing.T) {
	remote := &recordingRemote{}
	runner := NewRunner(remote, access.StaticGate("secret"), DelayCompleter{}, nil)

	err := runner.Process(context.Background(), "vid1", geometry.Rect{X: 671.6, Y: 432.4, Width: 575.5, Height: 216.2})
	require.NoError(t, err)

	assert.Equal(t, []string{"mark:vid1", "status:processing", "status:completed"}, remote.snapshot())
	assert.Equal(t, geometry.IntRect{X: 672, Y: 432, Width: 576, Height: 216}, remote.region)
}

func TestProcess_CompleterFailureMarksFailed(t *testing.T) {
	remote := &recordingRemote{}
	boom := errors.New("gpu unavailable")
	runner := NewRunner(remote, access.StaticGate("secret"), CompleterFunc(func(context.Context, string, geometry.IntRect) error {
		return boom
	}), nil)

	err := runner.Process(context.Background(), "vid1", geometry.Rect{Width: 50, Height: 50})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []media.Status{media.StatusProcessing, media.StatusFailed}, remote.statuses)
}

func TestProcess_MarkFailureStopsEarly(t *testing.T) {
	remote := &recordingRemote{markErr: errors.New("Invalid access secret")}
	runner := NewRunner(remote, access.StaticGate("secret"), nil, nil)

	err := runner.Process(context.Background(), "vid1", geometry.Rect{Width: 50, Height: 50})
	require.Error(t, err)
	assert.Empty(t, remote.statuses)
}

func TestProcess_Locked(t *testing.T) {
	remote := &recordingRemote{}
	runner := NewRunner(remote, access.StaticGate(""), nil, nil)

	assert.ErrorIs(t, runner.Process(context.Background(), "vid1", geometry.Rect{}), ErrLocked)
	assert.ErrorIs(t, runner.Submit(context.Background(), "vid1", geometry.Rect{}), ErrLocked)
	assert.Empty(t, remote.snapshot())
}

func TestSubmit_RejectsDuplicate(t *testing.T) {
	remote := &recordingRemote{}
	release := make(chan struct{})
	runner := NewRunner(remote, access.StaticGate("secret"), CompleterFunc(func(ctx context.Context, _ string, _ geometry.IntRect) error {
		<-release
		return nil
	}), nil)

	require.NoError(t, runner.Submit(context.Background(), "vid1", geometry.Rect{Width: 50, Height: 50}))
	assert.True(t, runner.Busy("vid1"))
	assert.ErrorIs(t, runner.Submit(context.Background(), "vid1", geometry.Rect{Width: 50, Height: 50}), ErrAlreadyProcessing)

	close(release)
	runner.Wait()
	assert.False(t, runner.Busy("vid1"))
	assert.Equal(t, media.StatusCompleted, remote.statuses[len(remote.statuses)-1])
}

func TestDelayCompleter_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := DelayCompleter{Delay: time.Minute}.Complete(ctx, "vid1", geometry.IntRect{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Video uploaded, ready for processing", StatusText(media.StatusUploaded))
	assert.Equal(t, "Processing video with AI reconstruction...", StatusText(media.StatusProcessing))
	assert.Equal(t, "Processing complete", StatusText(media.StatusCompleted))
	assert.Equal(t, "Processing failed", StatusText(media.StatusFailed))
	assert.Equal(t, "Unknown status", StatusText(media.Status("archived")))
}
