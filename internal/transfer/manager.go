package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// State is the lifecycle state of a transfer session.
type State string

const (
	StateIdle           State = "idle"
	StateCreatingRecord State = "creating_record"
	StateSendingChunks  State = "sending_chunks"
	StateCompleted      State = "completed"
	StateCancelled      State = "cancelled"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transitions happen without Retry.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// RemoteService is the part of the remote media service a transfer needs.
type RemoteService interface {
	CreateRecord(ctx context.Context, token, fileName, contentType string, size int64) (string, error)
	SendChunk(ctx context.Context, token, videoID string, index int, data []byte) error
}

// AccessGate hands out the caller's access token, if any.
type AccessGate interface {
	CurrentAccessToken() (string, bool)
}

// Status is what the UI observes of the current session.
type Status struct {
	SessionID       string    `json:"session_id,omitempty"`
	FileName        string    `json:"file_name,omitempty"`
	State           State     `json:"state"`
	ProgressPercent float64   `json:"progress_percent"`
	ChunksSent      int       `json:"chunks_sent"`
	ChunkCount      int       `json:"chunk_count"`
	VideoID         string    `json:"video_id,omitempty"`
	ErrorKind       Kind      `json:"error_kind,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ObserverFunc receives a Status after every change, one call at a time and
// in the order the changes happened. It must not block for long and must not
// call Cancel, Start or Retry.
type ObserverFunc func(Status)

// Session is the bookkeeping for one upload attempt.
type Session struct {
	ID          string
	FileName    string
	ContentType string
	Plan        Plan
	ChunksSent  int
	VideoID     string
	State       State

	cancelOnce sync.Once
	cancelCh   chan struct{}
	cancelled  atomic.Bool
}

func newSession(src Source, chunkSize int64) *Session {
	return &Session{
		ID:          uuid.NewString(),
		FileName:    src.Name(),
		ContentType: src.ContentType(),
		Plan:        planWithChunkSize(src.Size(), chunkSize),
		State:       StateIdle,
		cancelCh:    make(chan struct{}),
	}
}

func (s *Session) requestCancel() {
	s.cancelOnce.Do(func() {
		s.cancelled.Store(true)
		close(s.cancelCh)
	})
}

// Config wires a Manager to its collaborators.
type Config struct {
	Remote   RemoteService
	Gate     AccessGate
	Logger   *slog.Logger
	Observer ObserverFunc
	// ChunkSize overrides the 1 MiB default; used by tests.
	ChunkSize int64
}

// Manager drives one session at a time. A second Start while a session is
// active is rejected with ErrTransferInProgress.
type Manager struct {
	remote    RemoteService
	gate      AccessGate
	logger    *slog.Logger
	observer  ObserverFunc
	chunkSize int64

	active atomic.Bool

	// notifyMu is taken before mu and held until the observer returns.
	notifyMu sync.Mutex

	mu      sync.Mutex
	session *Session
	status  Status
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	return &Manager{
		remote:    cfg.Remote,
		gate:      cfg.Gate,
		logger:    logger,
		observer:  cfg.Observer,
		chunkSize: chunkSize,
		status:    Status{State: StateIdle, UpdatedAt: time.Now()},
	}
}

// Snapshot returns the current status.
func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	return m.active.Load()
}

// Start uploads src and returns the created video ID. It blocks until the
// session reaches a terminal state.
func (m *Manager) Start(ctx context.Context, src Source) (string, error) {
	if !m.active.CompareAndSwap(false, true) {
		return "", ErrTransferInProgress
	}
	defer m.active.Store(false)
	return m.run(ctx, src)
}

// DoneFunc receives the outcome of a background session.
type DoneFunc func(videoID string, err error)

// StartAsync runs Start in its own goroutine. ErrTransferInProgress is
// reported synchronously; every other outcome goes to done, which may be nil.
func (m *Manager) StartAsync(ctx context.Context, src Source, done DoneFunc) error {
	if !m.active.CompareAndSwap(false, true) {
		return ErrTransferInProgress
	}
	go m.runAsync(ctx, src, done)
	return nil
}

// RetryAsync is the background form of Retry.
func (m *Manager) RetryAsync(ctx context.Context, src Source, done DoneFunc) error {
	if !m.active.CompareAndSwap(false, true) {
		return ErrTransferInProgress
	}
	m.reset()
	go m.runAsync(ctx, src, done)
	return nil
}

func (m *Manager) runAsync(ctx context.Context, src Source, done DoneFunc) {
	videoID, err := m.run(ctx, src)
	m.active.Store(false)
	if done != nil {
		done(videoID, err)
	}
}

func (m *Manager) run(ctx context.Context, src Source) (string, error) {
	sess := newSession(src, m.chunkSize)
	logger := m.logger.With("session_id", sess.ID, "file_name", sess.FileName)

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
	m.publish(sess, nil)

	token, ok := m.gate.CurrentAccessToken()
	if !ok || token == "" {
		logger.Warn("upload rejected: no access token")
		return "", m.fail(sess, accessDenied(nil))
	}

	m.transition(sess, StateCreatingRecord)
	logger.Info("creating media record",
		"content_type", sess.ContentType,
		"size", humanize.IBytes(uint64(sess.Plan.TotalSize)),
		"chunks", sess.Plan.ChunkCount,
	)

	videoID, err := m.remote.CreateRecord(ctx, token, sess.FileName, sess.ContentType, sess.Plan.TotalSize)
	if err != nil {
		logger.Error("create record failed", "error", err)
		return "", m.fail(sess, classify(err))
	}

	m.mu.Lock()
	sess.VideoID = videoID
	m.mu.Unlock()
	if sess.cancelled.Load() {
		logger.Info("upload cancelled before first chunk", "video_id", videoID)
		return "", m.fail(sess, cancelled(nil))
	}
	m.transition(sess, StateSendingChunks)

	for i := 0; i < sess.Plan.ChunkCount; i++ {
		select {
		case <-sess.cancelCh:
			logger.Info("upload cancelled", "chunks_sent", sess.ChunksSent)
			return "", m.fail(sess, cancelled(nil))
		case <-ctx.Done():
			logger.Info("upload context done", "chunks_sent", sess.ChunksSent, "error", ctx.Err())
			return "", m.fail(sess, cancelled(ctx.Err()))
		default:
		}

		data, err := readChunk(src, sess.Plan, i)
		if err != nil {
			logger.Error("read chunk failed", "index", i, "error", err)
			return "", m.fail(sess, classify(err))
		}

		// The in-flight chunk runs to completion; Cancel only takes effect
		// at the next boundary.
		if err := m.remote.SendChunk(context.WithoutCancel(ctx), token, videoID, i, data); err != nil {
			logger.Error("send chunk failed", "index", i, "error", err)
			return "", m.fail(sess, classify(err))
		}

		m.mu.Lock()
		sess.ChunksSent = i + 1
		m.mu.Unlock()
		m.publish(sess, nil)

		logger.Debug("chunk sent", "index", i, "bytes", len(data))
	}

	m.transition(sess, StateCompleted)
	logger.Info("upload completed", "video_id", videoID)
	return videoID, nil
}

// Cancel asks the running session to stop before its next chunk and resets
// the progress seen by the caller. Calling it again, or with no session
// running, has no further effect.
func (m *Manager) Cancel() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	sess := m.session
	if sess == nil || sess.State.Terminal() {
		m.mu.Unlock()
		return
	}
	sess.requestCancel()
	m.status.ProgressPercent = 0
	m.status.ErrorKind = ""
	m.status.ErrorMessage = ""
	m.status.UpdatedAt = time.Now()
	status := m.status
	m.mu.Unlock()

	m.logger.Info("upload cancel requested", "session_id", sess.ID)
	m.notify(status)
}

// Retry discards the previous session and starts over from zero with a new
// record. It is not a resume.
func (m *Manager) Retry(ctx context.Context, src Source) (string, error) {
	if !m.active.CompareAndSwap(false, true) {
		return "", ErrTransferInProgress
	}
	defer m.active.Store(false)
	m.reset()
	return m.run(ctx, src)
}

func (m *Manager) reset() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.session = nil
	m.status = Status{State: StateIdle, UpdatedAt: time.Now()}
	status := m.status
	m.mu.Unlock()
	m.notify(status)
}

func (m *Manager) transition(sess *Session, state State) {
	m.mu.Lock()
	sess.State = state
	m.mu.Unlock()
	m.publish(sess, nil)
}

func (m *Manager) fail(sess *Session, terr *Error) error {
	state := StateFailed
	if terr.Kind == KindCancelled {
		state = StateCancelled
	}
	m.mu.Lock()
	sess.State = state
	m.mu.Unlock()
	m.publish(sess, terr)
	return terr
}

// publish rebuilds the status from sess. After a cancel request progress
// stays at zero.
func (m *Manager) publish(sess *Session, terr *Error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}

	progress := sess.Plan.Progress(sess.ChunksSent)
	if sess.State == StateCompleted {
		progress = 100
	}
	if sess.cancelled.Load() {
		progress = 0
	}

	m.status = Status{
		SessionID:       sess.ID,
		FileName:        sess.FileName,
		State:           sess.State,
		ProgressPercent: progress,
		ChunksSent:      sess.ChunksSent,
		ChunkCount:      sess.Plan.ChunkCount,
		VideoID:         sess.VideoID,
		UpdatedAt:       time.Now(),
	}
	if terr != nil {
		m.status.ErrorKind = terr.Kind
		m.status.ErrorMessage = terr.Message
	}
	status := m.status
	m.mu.Unlock()

	m.notify(status)
}

func (m *Manager) notify(status Status) {
	if m.observer != nil {
		m.observer(status)
	}
}

func readChunk(src Source, plan Plan, index int) ([]byte, error) {
	buf := make([]byte, plan.ChunkLength(index))
	n, err := src.ReadAt(buf, plan.Offset(index))
	if n == len(buf) {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read chunk %d: %w", index, err)
}
