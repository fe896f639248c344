package api

import (
	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/media"
	"github.com/heimdex/watermark-eraser/internal/processing"
	"github.com/heimdex/watermark-eraser/internal/region"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Media service

type CreateVideoRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type VideosResponse struct {
	Videos []*media.Video `json:"videos"`
}

// Agent

type UnlockRequest struct {
	Secret string `json:"secret,omitempty"`
	URL    string `json:"url,omitempty"`
}

type AccessResponse struct {
	Unlocked bool   `json:"unlocked"`
	Reason   string `json:"reason,omitempty"`
	ShareURL string `json:"share_url,omitempty"`
}

type StartUploadRequest struct {
	Path string `json:"path"`
}

type StartUploadResponse struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Chunks   int    `json:"chunks"`
}

type CreateEditorRequest struct {
	VideoID string `json:"video_id"`
}

type MediaSizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type EditorEventRequest struct {
	Type         string  `json:"type"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Corner       string  `json:"corner,omitempty"`
	DisplayWidth float64 `json:"display_width,omitempty"`
}

type RegionRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r RegionRequest) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

type EditorResponse struct {
	ID      string         `json:"id"`
	VideoID string         `json:"video_id"`
	Media   geometry.Size  `json:"media"`
	Region  *geometry.Rect `json:"region"`
	// Rounded is the region as it will be sent for processing.
	Rounded *geometry.IntRect `json:"rounded,omitempty"`
	Mode    string            `json:"mode"`
	Corner  string            `json:"corner,omitempty"`
}

type ConfirmResponse struct {
	VideoID string           `json:"video_id"`
	Region  geometry.IntRect `json:"region"`
	Status  string           `json:"status"`
}

type AgentVideoResponse struct {
	*media.Video
	StatusText string `json:"status_text"`
	Processing bool   `json:"processing"`
}

type AgentVideosResponse struct {
	Videos []AgentVideoResponse `json:"videos"`
}

func EditorToResponse(id, videoID string, s region.Session) EditorResponse {
	resp := EditorResponse{
		ID:      id,
		VideoID: videoID,
		Media:   s.Media,
		Mode:    s.Mode.String(),
		Corner:  string(s.Corner),
	}
	if s.HasRegion {
		r := s.Region
		rounded := r.Round()
		resp.Region = &r
		resp.Rounded = &rounded
	}
	return resp
}

func VideoToAgentResponse(v *media.Video, busy bool) AgentVideoResponse {
	return AgentVideoResponse{
		Video:      v,
		StatusText: processing.StatusText(v.Status),
		Processing: busy,
	}
}
