package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/cloud"
	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/media"
	"github.com/heimdex/watermark-eraser/internal/playback"
)

type MediaConfig struct {
	Port      int
	Service   media.MediaService
	Playback  *playback.Server
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

func NewMediaRouter(cfg MediaConfig) *chi.Mux {
	if cfg.Playback == nil {
		cfg.Playback = playback.NewServer(cfg.Logger)
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg.StartTime, cfg.Version))

	r.Group(func(r chi.Router) {
		r.Use(CallerMiddleware())

		r.Post("/videos", createVideoHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))
		r.Delete("/videos/{id}", deleteVideoHandler(cfg))
		r.Put("/videos/{id}/chunks/{index}", putChunkHandler(cfg))
		r.Put("/videos/{id}/region", markRegionHandler(cfg))
		r.Put("/videos/{id}/status", setStatusHandler(cfg))
		r.Get("/videos/{id}/content", contentHandler(cfg))
		r.Head("/videos/{id}/content", contentHandler(cfg))
	})

	return r
}

func healthHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(startTime).Seconds()),
		})
	}
}

func createVideoHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
			return
		}

		v, err := cfg.Service.CreateVideo(r.Context(), callerFrom(r), req.FileName, req.ContentType, req.Size)
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, v)
	}
}

func listVideosHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Service.ListVideos(r.Context(), callerFrom(r), r.URL.Query().Get("owner"))
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideosResponse{Videos: videos})
	}
}

func getVideoHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Service.GetVideo(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	}
}

func deleteVideoHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteVideo(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func putChunkHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || index < 0 {
			WriteError(w, http.StatusBadRequest, "invalid chunk index", "INVALID_REQUEST")
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, media.MaxChunkSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, "chunk too large", "CHUNK_TOO_LARGE")
				return
			}
			WriteError(w, http.StatusBadRequest, "failed to read chunk", "INVALID_REQUEST")
			return
		}

		v, err := cfg.Service.PutChunk(r.Context(), callerFrom(r), chi.URLParam(r, "id"), index, data)
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	}
}

func markRegionHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rect geometry.IntRect
		if err := json.NewDecoder(r.Body).Decode(&rect); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
			return
		}

		v, err := cfg.Service.MarkRegion(r.Context(), callerFrom(r), chi.URLParam(r, "id"), rect)
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	}
}

func setStatusHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
			return
		}
		status, err := media.ParseStatus(req.Status)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_STATUS")
			return
		}

		v, err := cfg.Service.SetStatus(r.Context(), callerFrom(r), chi.URLParam(r, "id"), status, req.Error)
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	}
}

func contentHandler(cfg MediaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := cfg.Service.OpenContent(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			writeMediaError(w, cfg.Logger, err)
			return
		}

		if err := cfg.Playback.Serve(w, r, content, content.Video.FileName, content.Video.ContentType); err != nil {
			cfg.Logger.Error("content download failed", "video_id", content.Video.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read content", "INTERNAL_ERROR")
		}
	}
}

// writeMediaError maps service errors onto HTTP statuses. A rejected secret
// is always reported with the same fixed message.
func writeMediaError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidSecret):
		WriteError(w, http.StatusForbidden, access.ErrInvalidSecret.Error(), cloud.CodeAccessDenied)
	case errors.Is(err, media.ErrForbidden):
		WriteError(w, http.StatusForbidden, err.Error(), cloud.CodeForbidden)
	case errors.Is(err, media.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, media.ErrDeleted):
		WriteError(w, http.StatusGone, err.Error(), "DELETED")
	case errors.Is(err, media.ErrOutOfOrder):
		WriteError(w, http.StatusConflict, err.Error(), "OUT_OF_ORDER")
	case errors.Is(err, media.ErrChunkTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "CHUNK_TOO_LARGE")
	case errors.Is(err, media.ErrSizeExceeded):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "SIZE_EXCEEDED")
	case errors.Is(err, media.ErrIncomplete):
		WriteError(w, http.StatusConflict, err.Error(), "INCOMPLETE")
	case errors.Is(err, media.ErrInvalidRegion):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_REGION")
	case errors.Is(err, media.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
	default:
		logger.Error("media request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
