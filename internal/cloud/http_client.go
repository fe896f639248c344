package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/heimdex/watermark-eraser/internal/geometry"
	"github.com/heimdex/watermark-eraser/internal/logging"
	"github.com/heimdex/watermark-eraser/internal/media"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// HTTPClient is the media service client used by the agent.
type HTTPClient struct {
	baseURL    string
	owner      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, owner string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		owner:   owner,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type createVideoRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type statusRequest struct {
	Status media.Status `json:"status"`
}

type listResponse struct {
	Videos []*media.Video `json:"videos"`
}

func (c *HTTPClient) CreateRecord(ctx context.Context, token, fileName, contentType string, size int64) (string, error) {
	var v media.Video
	err := c.doJSON(ctx, token, http.MethodPost, "/videos", createVideoRequest{
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	}, &v)
	if err != nil {
		return "", err
	}
	if v.ID == "" {
		return "", fmt.Errorf("media service returned no video id")
	}

	c.logger.Info("media record created",
		"video_id", v.ID,
		"file_name", fileName,
		"size", humanize.IBytes(uint64(size)),
	)
	return v.ID, nil
}

func (c *HTTPClient) SendChunk(ctx context.Context, token, videoID string, index int, data []byte) error {
	path := "/videos/" + url.PathEscape(videoID) + "/chunks/" + strconv.Itoa(index)
	req, err := c.newRequest(ctx, token, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	return c.do(req, nil)
}

func (c *HTTPClient) MarkRegion(ctx context.Context, token, videoID string, r geometry.IntRect) error {
	return c.doJSON(ctx, token, http.MethodPut, "/videos/"+url.PathEscape(videoID)+"/region", r, nil)
}

func (c *HTTPClient) SetStatus(ctx context.Context, token, videoID string, status media.Status) error {
	return c.doJSON(ctx, token, http.MethodPut, "/videos/"+url.PathEscape(videoID)+"/status", statusRequest{Status: status}, nil)
}

func (c *HTTPClient) GetVideo(ctx context.Context, token, videoID string) (*media.Video, error) {
	var v media.Video
	if err := c.doJSON(ctx, token, http.MethodGet, "/videos/"+url.PathEscape(videoID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) ListVideos(ctx context.Context, token string) ([]*media.Video, error) {
	var out listResponse
	if err := c.doJSON(ctx, token, http.MethodGet, "/videos?owner="+url.QueryEscape(c.owner), nil, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

func (c *HTTPClient) DeleteVideo(ctx context.Context, token, videoID string) error {
	return c.doJSON(ctx, token, http.MethodDelete, "/videos/"+url.PathEscape(videoID), nil, nil)
}

func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, "", http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, token, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, token, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set(HeaderAccessSecret, token)
	}
	req.Header.Set(HeaderOwnerID, c.owner)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		remoteErr := &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var parsed struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			remoteErr.Code = parsed.Code
		}
		c.logger.Warn("media service request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"code", remoteErr.Code,
		)
		return remoteErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
