package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/cloud"
	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/logging"
	"github.com/heimdex/watermark-eraser/internal/media"
	"github.com/heimdex/watermark-eraser/internal/processing"
	"github.com/heimdex/watermark-eraser/internal/region"
	"github.com/heimdex/watermark-eraser/internal/transfer"
)

type AgentConfig struct {
	Port      int
	Token     string
	Gate      *access.Gate
	Uploads   *transfer.Manager
	Remote    cloud.Client
	Processor *processing.Runner
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
	// ShareURL is the page access links point at. Empty omits share_url.
	ShareURL string
	// BaseContext outlives requests and bounds background uploads and
	// processing jobs. Defaults to context.Background.
	BaseContext context.Context
}

func NewAgentRouter(cfg AgentConfig) *chi.Mux {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	a := &agent{cfg: cfg, editors: make(map[string]*editorSession)}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoopbackOnly(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg.StartTime, cfg.Version))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Token, cfg.Logger))

		r.Get("/access", a.accessStatus)
		r.Post("/access/unlock", a.unlock)
		r.Delete("/access", a.lock)

		r.Post("/uploads", a.startUpload)
		r.Get("/uploads/current", a.currentUpload)
		r.Post("/uploads/current/cancel", a.cancelUpload)
		r.Post("/uploads/current/retry", a.retryUpload)

		r.Post("/editor/sessions", a.createEditor)
		r.Get("/editor/sessions/{id}", a.getEditor)
		r.Delete("/editor/sessions/{id}", a.deleteEditor)
		r.Put("/editor/sessions/{id}/media", a.setEditorMedia)
		r.Post("/editor/sessions/{id}/events", a.editorEvent)
		r.Put("/editor/sessions/{id}/region", a.setEditorRegion)
		r.Post("/editor/sessions/{id}/confirm", a.confirmEditor)

		r.Get("/videos", a.listVideos)
		r.Get("/videos/{id}", a.getVideo)
		r.Delete("/videos/{id}", a.deleteVideo)
	})

	return r
}

type editorSession struct {
	videoID string
	editor  *region.Editor
}

type agent struct {
	cfg AgentConfig

	mu         sync.Mutex
	editors    map[string]*editorSession
	lastUpload string
}

// Access

func (a *agent) accessStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, a.accessResponse())
}

func (a *agent) accessResponse() AccessResponse {
	if !a.cfg.Gate.Unlocked() {
		return AccessResponse{Unlocked: false, Reason: access.LockedReason}
	}
	resp := AccessResponse{Unlocked: true}
	if a.cfg.ShareURL != "" {
		link, ok, err := a.cfg.Gate.ShareLink(a.cfg.ShareURL)
		if err != nil {
			a.cfg.Logger.Warn("cannot build share link", "error", err)
		} else if ok {
			resp.ShareURL = link
		}
	}
	return resp
}

func (a *agent) unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}

	var err error
	if req.URL != "" {
		err = a.cfg.Gate.UnlockFromFragment(req.URL)
	} else {
		err = a.cfg.Gate.Unlock(req.Secret)
	}
	if err != nil {
		a.cfg.Logger.Warn("unlock rejected", "error", err)
		WriteError(w, http.StatusForbidden, access.ErrInvalidSecret.Error(), cloud.CodeAccessDenied)
		return
	}

	a.cfg.Logger.Info("access unlocked")
	WriteJSON(w, http.StatusOK, a.accessResponse())
}

func (a *agent) lock(w http.ResponseWriter, r *http.Request) {
	a.cfg.Gate.Clear()
	a.cfg.Logger.Info("access locked")
	w.WriteHeader(http.StatusNoContent)
}

// Uploads

func (a *agent) startUpload(w http.ResponseWriter, r *http.Request) {
	var req StartUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		WriteError(w, http.StatusBadRequest, "path is required", "INVALID_REQUEST")
		return
	}
	a.launchUpload(w, req.Path, false)
}

func (a *agent) retryUpload(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	path := a.lastUpload
	a.mu.Unlock()
	if path == "" {
		WriteError(w, http.StatusNotFound, "no upload to retry", "NOT_FOUND")
		return
	}
	a.launchUpload(w, path, true)
}

func (a *agent) launchUpload(w http.ResponseWriter, path string, retry bool) {
	if a.cfg.Uploads.Active() {
		WriteError(w, http.StatusConflict, transfer.ErrTransferInProgress.Error(), "UPLOAD_IN_PROGRESS")
		return
	}

	src, err := transfer.OpenFile(path)
	if err != nil {
		a.cfg.Logger.Warn("cannot open upload", "path", logging.SanitizePath(path), "error", err)
		WriteError(w, http.StatusBadRequest, "cannot open file", "INVALID_FILE")
		return
	}

	logger := a.cfg.Logger
	done := func(videoID string, err error) {
		src.Close()
		if err != nil {
			logger.Warn("upload ended", "file_name", src.Name(), "error", err)
			return
		}
		logger.Info("upload finished", "file_name", src.Name(), "video_id", videoID)
	}

	start := a.cfg.Uploads.StartAsync
	if retry {
		start = a.cfg.Uploads.RetryAsync
	}
	if err := start(a.cfg.BaseContext, src, done); err != nil {
		src.Close()
		WriteError(w, http.StatusConflict, err.Error(), "UPLOAD_IN_PROGRESS")
		return
	}

	a.mu.Lock()
	a.lastUpload = path
	a.mu.Unlock()

	logger.Info("upload accepted",
		"file_name", src.Name(),
		"size", humanize.IBytes(uint64(src.Size())),
		"retry", retry,
	)
	WriteJSON(w, http.StatusAccepted, StartUploadResponse{
		FileName: src.Name(),
		Size:     src.Size(),
		Chunks:   transfer.NewPlan(src.Size()).ChunkCount,
	})
}

func (a *agent) currentUpload(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, a.cfg.Uploads.Snapshot())
}

func (a *agent) cancelUpload(w http.ResponseWriter, r *http.Request) {
	a.cfg.Uploads.Cancel()
	WriteJSON(w, http.StatusOK, a.cfg.Uploads.Snapshot())
}

// Editor sessions

func (a *agent) createEditor(w http.ResponseWriter, r *http.Request) {
	var req CreateEditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
		WriteError(w, http.StatusBadRequest, "video_id is required", "INVALID_REQUEST")
		return
	}

	token, ok := a.token(w)
	if !ok {
		return
	}
	v, err := a.cfg.Remote.GetVideo(r.Context(), token, req.VideoID)
	if err != nil {
		a.writeRemoteError(w, err)
		return
	}
	if !v.Complete() {
		WriteError(w, http.StatusConflict, media.ErrIncomplete.Error(), "INCOMPLETE")
		return
	}

	id := uuid.NewString()
	sess := &editorSession{videoID: v.ID, editor: region.NewEditor()}
	a.mu.Lock()
	a.editors[id] = sess
	a.mu.Unlock()

	WriteJSON(w, http.StatusCreated, EditorToResponse(id, sess.videoID, sess.editor.Session()))
}

func (a *agent) getEditor(w http.ResponseWriter, r *http.Request) {
	a.withEditor(w, r, func(id string, sess *editorSession) (int, error) {
		return http.StatusOK, nil
	})
}

func (a *agent) deleteEditor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	_, ok := a.editors[id]
	delete(a.editors, id)
	a.mu.Unlock()
	if !ok {
		WriteError(w, http.StatusNotFound, "editor session not found", "NOT_FOUND")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *agent) setEditorMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	a.withEditor(w, r, func(id string, sess *editorSession) (int, error) {
		sess.editor.Initialize(req.Width, req.Height)
		return http.StatusOK, nil
	})
}

var errUnknownEvent = errors.New("unknown event type")

func (a *agent) editorEvent(w http.ResponseWriter, r *http.Request) {
	var req EditorEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}

	a.withEditor(w, r, func(id string, sess *editorSession) (int, error) {
		p := geometry.Point{X: req.X, Y: req.Y}
		switch region.EventType(req.Type) {
		case region.EventBeginDrag:
			sess.editor.BeginDrag(p)
		case region.EventBeginResize:
			corner, err := region.ParseCorner(req.Corner)
			if err != nil {
				return http.StatusBadRequest, err
			}
			sess.editor.BeginResize(corner, p)
		case region.EventMove:
			sess.editor.Update(p, req.DisplayWidth)
		case region.EventEnd:
			sess.editor.End()
		case region.EventReset:
			sess.editor.Apply(region.Event{Type: region.EventReset})
		default:
			return http.StatusBadRequest, errUnknownEvent
		}
		return http.StatusOK, nil
	})
}

func (a *agent) setEditorRegion(w http.ResponseWriter, r *http.Request) {
	var req RegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	a.withEditor(w, r, func(id string, sess *editorSession) (int, error) {
		if !sess.editor.Session().Media.Known() {
			return http.StatusConflict, errors.New("media size not reported yet")
		}
		sess.editor.Apply(region.Event{Type: region.EventSetRegion, Region: req.Rect()})
		return http.StatusOK, nil
	})
}

func (a *agent) confirmEditor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.mu.Lock()
	sess, ok := a.editors[id]
	var (
		rect      geometry.Rect
		hasRegion bool
	)
	if ok {
		rect, hasRegion = sess.editor.Region()
	}
	a.mu.Unlock()

	switch {
	case !ok:
		WriteError(w, http.StatusNotFound, "editor session not found", "NOT_FOUND")
		return
	case !hasRegion:
		WriteError(w, http.StatusConflict, "no region selected", "NO_REGION")
		return
	}

	err := a.cfg.Processor.Submit(a.cfg.BaseContext, sess.videoID, rect)
	switch {
	case errors.Is(err, processing.ErrLocked):
		WriteError(w, http.StatusForbidden, access.LockedReason, "LOCKED")
		return
	case errors.Is(err, processing.ErrAlreadyProcessing):
		WriteError(w, http.StatusConflict, err.Error(), "ALREADY_PROCESSING")
		return
	case err != nil:
		a.cfg.Logger.Error("failed to submit processing", "video_id", sess.videoID, "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to start processing", "INTERNAL_ERROR")
		return
	}

	WriteJSON(w, http.StatusAccepted, ConfirmResponse{
		VideoID: sess.videoID,
		Region:  rect.Round(),
		Status:  string(media.StatusProcessing),
	})
}

// withEditor runs fn on the session named in the URL while holding the
// editor lock, then writes the session back.
func (a *agent) withEditor(w http.ResponseWriter, r *http.Request, fn func(id string, sess *editorSession) (int, error)) {
	id := chi.URLParam(r, "id")

	a.mu.Lock()
	sess, ok := a.editors[id]
	if !ok {
		a.mu.Unlock()
		WriteError(w, http.StatusNotFound, "editor session not found", "NOT_FOUND")
		return
	}
	status, err := fn(id, sess)
	resp := EditorToResponse(id, sess.videoID, sess.editor.Session())
	a.mu.Unlock()

	if err != nil {
		WriteError(w, status, err.Error(), "INVALID_REQUEST")
		return
	}
	WriteJSON(w, status, resp)
}

// Videos

func (a *agent) listVideos(w http.ResponseWriter, r *http.Request) {
	token, ok := a.token(w)
	if !ok {
		return
	}
	videos, err := a.cfg.Remote.ListVideos(r.Context(), token)
	if err != nil {
		a.writeRemoteError(w, err)
		return
	}

	resp := AgentVideosResponse{Videos: make([]AgentVideoResponse, len(videos))}
	for i, v := range videos {
		resp.Videos[i] = VideoToAgentResponse(v, a.cfg.Processor.Busy(v.ID))
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (a *agent) getVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := a.token(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	v, err := a.cfg.Remote.GetVideo(r.Context(), token, id)
	if err != nil {
		a.writeRemoteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, VideoToAgentResponse(v, a.cfg.Processor.Busy(v.ID)))
}

func (a *agent) deleteVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := a.token(w)
	if !ok {
		return
	}
	if err := a.cfg.Remote.DeleteVideo(r.Context(), token, chi.URLParam(r, "id")); err != nil {
		a.writeRemoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// token returns the held access secret or answers 403 when locked.
func (a *agent) token(w http.ResponseWriter) (string, bool) {
	token, ok := a.cfg.Gate.CurrentAccessToken()
	if !ok {
		WriteError(w, http.StatusForbidden, access.LockedReason, "LOCKED")
		return "", false
	}
	return token, true
}

func (a *agent) writeRemoteError(w http.ResponseWriter, err error) {
	var remoteErr *cloud.RemoteError
	if !errors.As(err, &remoteErr) {
		a.cfg.Logger.Error("media service unreachable", "error", err)
		WriteError(w, http.StatusBadGateway, "media service unavailable", "UPSTREAM_UNAVAILABLE")
		return
	}

	switch {
	case remoteErr.AccessDenied():
		WriteError(w, http.StatusForbidden, access.LockedReason, cloud.CodeAccessDenied)
	case remoteErr.NotFound():
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
	case remoteErr.StatusCode == http.StatusForbidden:
		WriteError(w, http.StatusForbidden, "video belongs to another owner", cloud.CodeForbidden)
	case remoteErr.StatusCode == http.StatusGone:
		WriteError(w, http.StatusGone, "video deleted", "DELETED")
	case remoteErr.StatusCode == http.StatusConflict:
		WriteError(w, http.StatusConflict, remoteErr.Error(), "CONFLICT")
	default:
		a.cfg.Logger.Error("media service request failed", "status", remoteErr.StatusCode, "error", err)
		WriteError(w, http.StatusBadGateway, remoteErr.Error(), "UPSTREAM_ERROR")
	}
}
